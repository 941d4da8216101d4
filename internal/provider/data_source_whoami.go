package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-adex/internal/directory"
	ldapclient "github.com/isometry/terraform-provider-adex/internal/ldap"
	"github.com/isometry/terraform-provider-adex/internal/provider/helpers"
)

var _ datasource.DataSource = &WhoAmIDataSource{}

func NewWhoAmIDataSource() datasource.DataSource {
	return &WhoAmIDataSource{}
}

// WhoAmIDataSource reports the bound identity and, when the server returns a
// resolvable identity, the entry behind it.
type WhoAmIDataSource struct {
	providerData *ldapclient.ProviderData
}

type WhoAmIDataSourceModel struct {
	ID                types.String `tfsdk:"id"`
	AuthzID           types.String `tfsdk:"authz_id"`
	Format            types.String `tfsdk:"format"`
	DN                types.String `tfsdk:"dn"`
	UserPrincipalName types.String `tfsdk:"upn"`
	SAMAccountName    types.String `tfsdk:"sam_account_name"`
	SID               types.String `tfsdk:"sid"`

	// From the resolved entry.
	ObjectGUID  types.String `tfsdk:"object_guid"`
	DisplayName types.String `tfsdk:"display_name"`
}

func (d *WhoAmIDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_whoami"
}

func (d *WhoAmIDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Reports the identity the provider is bound as, using the LDAP \"Who Am I?\" extended " +
			"operation (RFC 4532). When the identity resolves to a directory entry, its objectGUID and display " +
			"name are included.",

		Attributes: map[string]schema.Attribute{
			"id":       computedString("The authorization identity."),
			"authz_id": computedString("The authorization identity as returned, e.g. `u:EXAMPLE\\jdoe`."),
			"format": computedString("How `authz_id` was parsed: `dn`, `upn`, `sam`, `sid`, `empty` for an " +
				"anonymous bind, or `unknown`."),
			"dn":               computedString("The bound DN, when `format` is `dn`."),
			"upn":              computedString("The bound user principal name, when `format` is `upn`."),
			"sam_account_name": computedString("The bound `DOMAIN\\name`, when `format` is `sam`."),
			"sid":              computedString("The bound SID, when `format` is `sid`."),
			"object_guid":      computedString("The objectGUID of the bound entry, when it can be resolved."),
			"display_name":     computedString("The display name of the bound entry, when it can be resolved."),
		},
	}
}

func (d *WhoAmIDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	// Prevent panic if the provider has not been configured.
	if req.ProviderData == nil {
		return
	}
	d.providerData = providerDataFrom(req.ProviderData, "Data Source", &resp.Diagnostics)
}

func (d *WhoAmIDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data WhoAmIDataSourceModel

	ctx = initializeLogging(ctx)
	logCompletion := ldapclient.LogDataSourceOperation(ctx, "adex_whoami", "read", nil)
	defer func() { logCompletion(diagnosticsError(resp.Diagnostics)) }()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	result, err := d.providerData.Client.WhoAmI(ctx)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Performing WhoAmI Operation",
			"Could not perform LDAP Who Am I? operation: "+err.Error(),
		)
		return
	}
	if result == nil {
		resp.Diagnostics.AddError(
			"WhoAmI Operation Returned Nil",
			"The LDAP Who Am I? operation returned no result. Please report this issue to the provider developers.",
		)
		return
	}

	tflog.Debug(ctx, "Performed WhoAmI operation", map[string]any{
		"authz_id": result.AuthzID,
		"format":   result.Format,
	})

	data.ID = types.StringValue(result.AuthzID)
	data.AuthzID = types.StringValue(result.AuthzID)
	data.Format = types.StringValue(result.Format)
	data.DN = helpers.StringOrNull(result.DN)
	data.UserPrincipalName = helpers.StringOrNull(result.UserPrincipalName)
	data.SAMAccountName = helpers.StringOrNull(result.SAMAccountName)
	data.SID = helpers.StringOrNull(result.SID)
	d.describeIdentity(ctx, result, &data)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// describeIdentity fills the entry-derived fields. An identity that cannot be
// resolved leaves them null rather than failing the read.
func (d *WhoAmIDataSource) describeIdentity(ctx context.Context, result *ldapclient.WhoAmIResult, data *WhoAmIDataSourceModel) {
	data.ObjectGUID = types.StringNull()
	data.DisplayName = types.StringNull()

	var dn string
	var err error
	switch {
	case result.DN != "":
		dn = result.DN
	case result.UserPrincipalName != "":
		dn, err = d.providerData.Resolver.Resolve(ctx, ldapclient.IdentifierTypeUPN, result.UserPrincipalName)
	case result.SAMAccountName != "":
		dn, err = d.providerData.Resolver.Resolve(ctx, ldapclient.IdentifierTypeSAM, result.SAMAccountName)
	case result.SID != "":
		dn, err = d.providerData.Resolver.Resolve(ctx, ldapclient.IdentifierTypeSID, result.SID)
	default:
		return
	}
	if err != nil {
		tflog.Warn(ctx, "Could not resolve authenticated identity", map[string]any{
			"authz_id": result.AuthzID,
			"error":    err.Error(),
		})
		return
	}

	entry, err := directory.OpenEntry(ctx, d.providerData.Client, dn, directory.WithLeaveOpen())
	if err != nil {
		tflog.Warn(ctx, "Could not read authenticated identity", map[string]any{
			"dn":    dn,
			"error": err.Error(),
		})
		return
	}
	defer entry.Close()

	data.ObjectGUID = types.StringValue(entry.Guid().String())
	data.DisplayName = helpers.StringOrNull(entry.DisplayName())
}
