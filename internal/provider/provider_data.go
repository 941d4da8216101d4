package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-adex/internal/directory"
	ldapclient "github.com/isometry/terraform-provider-adex/internal/ldap"
)

// providerDataFrom asserts the value handed to Configure. kind is "Data
// Source" or "Resource" and only shapes the diagnostic.
func providerDataFrom(providerData any, kind string, diags *diag.Diagnostics) *ldapclient.ProviderData {
	data, ok := providerData.(*ldapclient.ProviderData)
	if !ok {
		diags.AddError(
			"Unexpected "+kind+" Configure Type",
			fmt.Sprintf("Expected *ldapclient.ProviderData, got: %T. Please report this issue to the provider developers.", providerData),
		)
		return nil
	}
	return data
}

// lookup is one candidate identifier of a data source.
type lookup struct {
	idType ldapclient.IdentifierType
	value  types.String
}

// resolveLookup returns the DN named by the first configured lookup. A DN is
// returned as given; wrappers report a missing object when they read it.
func resolveLookup(ctx context.Context, pd *ldapclient.ProviderData, lookups ...lookup) (string, error) {
	for _, l := range lookups {
		if l.value.IsNull() || l.value.IsUnknown() || l.value.ValueString() == "" {
			continue
		}

		tflog.SubsystemDebug(ctx, ldapclient.SubsystemProvider, "Resolving lookup", map[string]any{
			"type":  l.idType.String(),
			"value": l.value.ValueString(),
		})

		if l.idType == ldapclient.IdentifierTypeDN {
			return ldapclient.NormalizeDNCase(l.value.ValueString())
		}
		return pd.Resolver.Resolve(ctx, l.idType, l.value.ValueString())
	}
	return "", fmt.Errorf("no valid lookup method provided")
}

// isNotFound reports whether err means the object does not exist.
func isNotFound(err error) bool {
	return ldapclient.IsNotFoundError(err) || errors.Is(err, directory.ErrNotFound)
}

// addReadError reports a failed lookup or read of kind ("User", "Group", ...).
func addReadError(diags *diag.Diagnostics, kind string, err error) {
	if isNotFound(err) {
		diags.AddError(kind+" Not Found", "The specified Active Directory object could not be found: "+err.Error())
		return
	}
	diags.AddError("Error Reading "+kind, "Could not read Active Directory object: "+err.Error())
}

// keepConfigured leaves a configured lookup value as written so state matches
// configuration even when the server spells it differently.
func keepConfigured(configured, read types.String) types.String {
	if configured.IsNull() || configured.IsUnknown() {
		return read
	}
	return configured
}
