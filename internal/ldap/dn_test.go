package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDNCase(t *testing.T) {
	tests := []struct {
		name    string
		dn      string
		want    string
		wantErr bool
	}{
		{name: "lowercase types", dn: "cn=john,ou=users,dc=example,dc=com", want: "CN=john,OU=users,DC=example,DC=com"},
		{name: "already normalized", dn: "CN=John,DC=example,DC=com", want: "CN=John,DC=example,DC=com"},
		{name: "escaped comma survives", dn: `cn=Doe\, John,dc=example,dc=com`, want: `CN=Doe\, John,DC=example,DC=com`},
		{name: "surrounding whitespace", dn: "  ou=a,dc=example,dc=com ", want: "OU=a,DC=example,DC=com"},
		{name: "empty", dn: "", want: ""},
		{name: "invalid", dn: "not a dn", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDNCase(tt.dn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParentDN(t *testing.T) {
	tests := []struct {
		dn   string
		want string
	}{
		{dn: "CN=John,OU=Users,DC=example,DC=com", want: "OU=Users,DC=example,DC=com"},
		{dn: `cn=Doe\, John,ou=Users,dc=example,dc=com`, want: "OU=Users,DC=example,DC=com"},
		{dn: "DC=com", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.dn, func(t *testing.T) {
			got, err := ParentDN(tt.dn)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParentDN("")
	assert.Error(t, err)
}

func TestFirstRDN(t *testing.T) {
	rdn, err := FirstRDN(`cn=Doe\, John,OU=Users,DC=example,DC=com`)
	require.NoError(t, err)
	assert.Equal(t, `CN=Doe\, John`, rdn)

	typ, err := FirstRDNType("ou=Users,DC=example,DC=com")
	require.NoError(t, err)
	assert.Equal(t, "OU", typ)

	value, err := ExtractRDNValue("CN=John Doe,OU=Users,DC=example,DC=com", "ou")
	require.NoError(t, err)
	assert.Equal(t, "Users", value)

	_, err = ExtractRDNValue("CN=John Doe,DC=example,DC=com", "OU")
	assert.Error(t, err)
}

func TestBuildRDN(t *testing.T) {
	tests := []struct {
		name     string
		attrType string
		input    string
		want     string
		wantErr  bool
	}{
		{name: "bare name", attrType: "CN", input: "John Doe", want: "CN=John Doe"},
		{name: "name with comma", attrType: "CN", input: "Doe, John", want: `CN=Doe\, John`},
		{name: "already an RDN", attrType: "CN", input: "cn=John", want: "CN=John"},
		{name: "OU type", attrType: "ou", input: "Sales", want: "OU=Sales"},
		{name: "equals inside value", attrType: "CN", input: "a b=c", want: "CN=a b=c"},
		{name: "empty", attrType: "CN", input: " ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildRDN(tt.attrType, tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinDN(t *testing.T) {
	assert.Equal(t, "CN=a,DC=example,DC=com", JoinDN("CN=a", "DC=example,DC=com"))
	assert.Equal(t, "DC=com", JoinDN("DC=com", ""))
}

func TestIsDNDescendant(t *testing.T) {
	ok, err := IsDNDescendant("CN=u,OU=B,OU=A,DC=example,DC=com", "ou=a,dc=example,dc=com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsDNDescendant("OU=A,DC=example,DC=com", "OU=A,DC=example,DC=com")
	require.NoError(t, err)
	assert.False(t, ok, "a DN is not its own descendant")

	_, err = IsDNDescendant("garbage", "DC=com")
	assert.Error(t, err)
}

func TestIsNamingContextRoot(t *testing.T) {
	assert.True(t, IsNamingContextRoot("DC=example,DC=com"))
	assert.True(t, IsNamingContextRoot("dc=com"))
	assert.False(t, IsNamingContextRoot("OU=A,DC=example,DC=com"))
	assert.False(t, IsNamingContextRoot(""))
}

func TestValidateDNSyntax(t *testing.T) {
	assert.NoError(t, ValidateDNSyntax("CN=a,DC=example,DC=com"))
	assert.Error(t, ValidateDNSyntax(""))
	assert.Error(t, ValidateDNSyntax("CN"))
}

func TestEscapeDNValue(t *testing.T) {
	assert.Equal(t, `Doe\, John`, EscapeDNValue("Doe, John"))
	assert.Equal(t, `\#1`, EscapeDNValue("#1"))
	assert.Equal(t, "plain", EscapeDNValue("plain"))
}
