package ldap

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// ProviderData is handed to every resource and data source by the provider's
// Configure. Wrappers opened from it must not close Client.
type ProviderData struct {
	Client   Client
	BaseDN   string
	Resolver *Resolver
}

// NewProviderData wraps client. An empty baseDN is discovered from the root DSE.
func NewProviderData(ctx context.Context, client Client, baseDN string) (*ProviderData, error) {
	if client == nil {
		return nil, fmt.Errorf("LDAP client is not initialized")
	}

	if baseDN == "" {
		discovered, err := client.GetBaseDN(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not determine base DN: %w", err)
		}
		baseDN = discovered
	}

	tflog.SubsystemDebug(ctx, SubsystemProvider, "Provider data initialized", map[string]any{
		"base_dn": baseDN,
	})

	return &ProviderData{
		Client:   client,
		BaseDN:   baseDN,
		Resolver: NewResolver(client, baseDN),
	}, nil
}

// ValidateConnection pings the directory.
func (pd *ProviderData) ValidateConnection(ctx context.Context) error {
	if pd.Client == nil {
		return fmt.Errorf("LDAP client is not initialized")
	}
	if err := pd.Client.Ping(ctx); err != nil {
		return fmt.Errorf("LDAP client connection failed: %w", err)
	}
	return nil
}

// Stats reports pool statistics alongside the base DN for diagnostics.
func (pd *ProviderData) Stats() map[string]any {
	stats := pd.Client.Stats()
	return map[string]any{
		"base_dn":            pd.BaseDN,
		"pool_total":         stats.Total,
		"pool_active":        stats.Active,
		"pool_idle":          stats.Idle,
		"pool_unhealthy":     stats.Unhealthy,
		"pool_created":       stats.Created,
		"pool_errors":        stats.Errors,
		"pool_uptime_second": int64(stats.Uptime.Seconds()),
	}
}

// Close releases the underlying client.
func (pd *ProviderData) Close() error {
	if pd.Client == nil {
		return nil
	}
	return pd.Client.Close()
}
