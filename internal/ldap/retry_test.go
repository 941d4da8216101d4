package ldap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(retries int) *ConnectionConfig {
	config := DefaultConfig()
	config.MaxRetries = retries
	config.InitialBackoff = time.Millisecond
	config.MaxBackoff = 2 * time.Millisecond
	return config
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name         string
		retries      int
		errs         []error
		wantAttempts int
		wantErr      bool
		wantWrapped  bool
	}{
		{
			name:         "success first try",
			retries:      3,
			errs:         []error{nil},
			wantAttempts: 1,
		},
		{
			name:         "success after retryable failures",
			retries:      3,
			errs:         []error{ldap.NewError(ldap.LDAPResultBusy, errors.New("busy")), ldap.NewError(ldap.LDAPResultUnavailable, errors.New("unavailable")), nil},
			wantAttempts: 3,
		},
		{
			name:         "permanent failure is not retried",
			retries:      3,
			errs:         []error{ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("missing"))},
			wantAttempts: 1,
			wantErr:      true,
		},
		{
			name:         "retries exhausted",
			retries:      2,
			errs:         []error{errors.New("connection reset"), errors.New("connection reset"), errors.New("connection reset")},
			wantAttempts: 3,
			wantErr:      true,
			wantWrapped:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := retry(context.Background(), fastRetryConfig(tt.retries), func() error {
				err := tt.errs[attempts]
				attempts++
				return err
			})

			assert.Equal(t, tt.wantAttempts, attempts)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)

			var connErr *ConnectionError
			assert.Equal(t, tt.wantWrapped, errors.As(err, &connErr))
			assert.False(t, IsRetryableError(err) && tt.wantWrapped, "exhausted errors must not be retried again")
		})
	}
}

func TestRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := retry(ctx, fastRetryConfig(5), func() error {
		attempts++
		return errors.New("connection reset")
	})

	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 1)
}
