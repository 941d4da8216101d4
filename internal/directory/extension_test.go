package directory

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionAttributeName(t *testing.T) {
	tests := []struct {
		index   int
		want    string
		wantErr bool
	}{
		{index: 0, wantErr: true},
		{index: 1, want: "extensionAttribute1"},
		{index: 9, want: "extensionAttribute9"},
		{index: 15, want: "extensionAttribute15"},
		{index: 16, wantErr: true},
		{index: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.index), func(t *testing.T) {
			got, err := ExtensionAttributeName(tt.index)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtensionAttributes(t *testing.T) {
	user := NewUser(NewEntry(newMockClient(t), testUserDN, true))
	group := NewGroup(NewEntry(newMockClient(t), "CN=Staff,DC=example,DC=com", true))

	for _, x := range []interface {
		GetExtensionAttribute(int) (string, error)
		SetExtensionAttribute(int, string) error
		ExtensionAttributes() map[int]string
	}{user, group} {
		v, err := x.GetExtensionAttribute(3)
		require.NoError(t, err)
		assert.Empty(t, v)

		require.NoError(t, x.SetExtensionAttribute(3, "cost-centre-42"))
		require.NoError(t, x.SetExtensionAttribute(15, "x"))

		v, err = x.GetExtensionAttribute(3)
		require.NoError(t, err)
		assert.Equal(t, "cost-centre-42", v)
		assert.Equal(t, map[int]string{3: "cost-centre-42", 15: "x"}, x.ExtensionAttributes())

		_, err = x.GetExtensionAttribute(0)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.ErrorIs(t, x.SetExtensionAttribute(16, "y"), ErrInvalidArgument)
	}

	assert.Equal(t, []string{"extensionAttribute15", "extensionAttribute3"}, user.Properties().Changed())
}
