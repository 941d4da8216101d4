package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework-validators/datasourcevalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-adex/internal/directory"
	ldapclient "github.com/isometry/terraform-provider-adex/internal/ldap"
	"github.com/isometry/terraform-provider-adex/internal/provider/helpers"
	"github.com/isometry/terraform-provider-adex/internal/provider/validators"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &GroupDataSource{}
var _ datasource.DataSourceWithConfigValidators = &GroupDataSource{}

func NewGroupDataSource() datasource.DataSource {
	return &GroupDataSource{}
}

// GroupDataSource reads a group through directory.Group.
type GroupDataSource struct {
	providerData *ldapclient.ProviderData
}

// GroupDataSourceModel describes the data source data model.
type GroupDataSourceModel struct {
	// Lookup methods (mutually exclusive)
	ID             types.String `tfsdk:"id"`
	DN             types.String `tfsdk:"dn"`
	SID            types.String `tfsdk:"sid"`
	SAMAccountName types.String `tfsdk:"sam_account_name"`

	Name                types.String `tfsdk:"name"`
	NativeGUID          types.String `tfsdk:"native_guid"`
	SchemaClassName     types.String `tfsdk:"schema_class_name"`
	Description         types.String `tfsdk:"description"`
	DisplayName         types.String `tfsdk:"display_name"`
	EmailAddress        types.String `tfsdk:"email_address"`
	ExchangeAlias       types.String `tfsdk:"exchange_alias"`
	Notes               types.String `tfsdk:"notes"`
	Manager             types.String `tfsdk:"manager"`
	TelephoneNumber     types.String `tfsdk:"telephone_number"`
	WebPage             types.String `tfsdk:"web_page"`
	GroupType           types.Int64  `tfsdk:"group_type"`
	IsSecurityGroup     types.Bool   `tfsdk:"is_security_group"`
	SAMAccountType      types.Int64  `tfsdk:"sam_account_type"`
	Members             types.List   `tfsdk:"members"`
	ExtensionAttributes types.Map    `tfsdk:"extension_attributes"`
	WhenCreated         types.String `tfsdk:"when_created"`
	WhenChanged         types.String `tfsdk:"when_changed"`
}

func (d *GroupDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_group"
}

func (d *GroupDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Retrieves an Active Directory group. Supports lookup by objectGUID, Distinguished Name, " +
			"objectSid or sAMAccountName.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The objectGUID of the group.",
				Optional:            true,
				Computed:            true,
			},
			"dn": schema.StringAttribute{
				MarkdownDescription: "The Distinguished Name of the group. Example: `CN=Admins,OU=Groups,DC=example,DC=com`",
				Optional:            true,
				Computed:            true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
			},
			"sid": schema.StringAttribute{
				MarkdownDescription: "The objectSid of the group.",
				Optional:            true,
				Computed:            true,
			},
			"sam_account_name": schema.StringAttribute{
				MarkdownDescription: "The sAMAccountName of the group.",
				Optional:            true,
				Computed:            true,
			},

			"name":              computedString("The leading RDN of the group, e.g. `CN=Admins`."),
			"native_guid":       computedString("The objectGUID as hex of its stored byte order."),
			"schema_class_name": computedString("The most specific object class."),
			"description":       computedString("The description."),
			"display_name":      computedString("The display name."),
			"email_address":     computedString("The email address (`mail`)."),
			"exchange_alias":    computedString("The Exchange alias (`mailNickname`)."),
			"notes":             computedString("The notes (`info`)."),
			"manager":           computedString("The DN in the group's `manager` attribute."),
			"telephone_number":  computedString("The telephone number."),
			"web_page":          computedString("The home page (`wWWHomePage`)."),
			"group_type":        computedInt64("The raw `groupType` flags."),
			"is_security_group": schema.BoolAttribute{
				MarkdownDescription: "Whether the security bit of `groupType` is set.",
				Computed:            true,
			},
			"sam_account_type": computedInt64("The `sAMAccountType`."),
			"members":          computedStringList("DNs of the group's members as returned by the server."),
			"extension_attributes": schema.MapAttribute{
				MarkdownDescription: "Set `extensionAttribute1`..`extensionAttribute15` values keyed by index.",
				ElementType:         types.StringType,
				Computed:            true,
			},
			"when_created": computedString("When the group was created (RFC3339)."),
			"when_changed": computedString("When the group was last modified (RFC3339)."),
		},
	}
}

// ConfigValidators implements datasource.DataSourceWithConfigValidators.
func (d *GroupDataSource) ConfigValidators(ctx context.Context) []datasource.ConfigValidator {
	return []datasource.ConfigValidator{
		datasourcevalidator.ExactlyOneOf(
			path.MatchRoot("id"),
			path.MatchRoot("dn"),
			path.MatchRoot("sid"),
			path.MatchRoot("sam_account_name"),
		),
	}
}

func (d *GroupDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	// Prevent panic if the provider has not been configured.
	if req.ProviderData == nil {
		return
	}
	d.providerData = providerDataFrom(req.ProviderData, "Data Source", &resp.Diagnostics)
}

func (d *GroupDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data GroupDataSourceModel

	ctx = initializeLogging(ctx)
	logCompletion := ldapclient.LogDataSourceOperation(ctx, "adex_group", "read", nil)
	defer func() { logCompletion(diagnosticsError(resp.Diagnostics)) }()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	dn, err := resolveLookup(ctx, d.providerData,
		lookup{ldapclient.IdentifierTypeDN, data.DN},
		lookup{ldapclient.IdentifierTypeGUID, data.ID},
		lookup{ldapclient.IdentifierTypeSID, data.SID},
		lookup{ldapclient.IdentifierTypeSAM, data.SAMAccountName},
	)
	if err != nil {
		addReadError(&resp.Diagnostics, "Group", err)
		return
	}

	group, err := directory.OpenGroup(ctx, d.providerData.Client, dn, directory.WithLeaveOpen())
	if err != nil {
		addReadError(&resp.Diagnostics, "Group", err)
		return
	}
	defer group.Close()

	if !group.IsClass("group") {
		resp.Diagnostics.AddError(
			"Object Is Not a Group",
			fmt.Sprintf("The object %s has class %s, not group.", dn, group.SchemaClassName()),
		)
		return
	}

	tflog.Debug(ctx, "Successfully retrieved AD group", map[string]any{
		"group_guid":   group.Guid().String(),
		"group_dn":     group.Path(),
		"member_count": len(group.Members()),
	})

	resp.Diagnostics.Append(mapGroupToModel(ctx, group, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func mapGroupToModel(ctx context.Context, g *directory.Group, data *GroupDataSourceModel) diag.Diagnostics {
	var diags diag.Diagnostics

	data.ID = keepConfigured(data.ID, types.StringValue(g.Guid().String()))
	data.DN = keepConfigured(data.DN, types.StringValue(g.Path()))
	data.SID = keepConfigured(data.SID, helpers.StringOrNull(g.SID()))
	data.SAMAccountName = keepConfigured(data.SAMAccountName, helpers.StringOrNull(g.SamAccountName()))

	data.Name = types.StringValue(g.Name())
	data.NativeGUID = helpers.StringOrNull(g.NativeGuid())
	data.SchemaClassName = helpers.StringOrNull(g.SchemaClassName())
	data.Description = helpers.StringOrNull(g.Description())
	data.DisplayName = helpers.StringOrNull(g.DisplayName())
	data.EmailAddress = helpers.StringOrNull(g.EmailAddress())
	data.ExchangeAlias = helpers.StringOrNull(g.ExchangeAlias())
	data.Notes = helpers.StringOrNull(g.Notes())
	data.Manager = helpers.StringOrNull(g.Manager())
	data.TelephoneNumber = helpers.StringOrNull(g.TelephoneNumber())
	data.WebPage = helpers.StringOrNull(g.WebPage())
	data.GroupType = types.Int64Value(int64(g.GroupType()))
	data.IsSecurityGroup = types.BoolValue(g.IsSecurityGroup())
	data.SAMAccountType = types.Int64Value(int64(g.SamAccountType()))

	members, d := helpers.StringList(ctx, g.Members())
	diags.Append(d...)
	data.Members = members

	extensions, d := helpers.ExtensionAttributesToMap(ctx, g.ExtensionAttributes())
	diags.Append(d...)
	data.ExtensionAttributes = extensions

	data.WhenCreated = helpers.TimeOrNull(g.CreationDate())
	data.WhenChanged = helpers.TimeOrNull(g.ModifiedDate())

	return diags
}
