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
	"github.com/samber/lo"

	"github.com/isometry/terraform-provider-adex/internal/directory"
	ldapclient "github.com/isometry/terraform-provider-adex/internal/ldap"
	"github.com/isometry/terraform-provider-adex/internal/provider/helpers"
	"github.com/isometry/terraform-provider-adex/internal/provider/validators"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &OUDataSource{}
var _ datasource.DataSourceWithConfigValidators = &OUDataSource{}

func NewOUDataSource() datasource.DataSource {
	return &OUDataSource{}
}

// OUDataSource reads an organizational unit through directory.OU.
type OUDataSource struct {
	providerData *ldapclient.ProviderData
}

// OUDataSourceModel describes the data source data model.
type OUDataSourceModel struct {
	// Lookup methods (mutually exclusive)
	ID types.String `tfsdk:"id"`
	DN types.String `tfsdk:"dn"`

	Name            types.String `tfsdk:"name"`
	NativeGUID      types.String `tfsdk:"native_guid"`
	SchemaClassName types.String `tfsdk:"schema_class_name"`
	CanonicalName   types.String `tfsdk:"canonical_name"`
	Description     types.String `tfsdk:"description"`
	DisplayName     types.String `tfsdk:"display_name"`
	Manager         types.String `tfsdk:"manager"`
	TelephoneNumber types.String `tfsdk:"telephone_number"`
	FaxNumber       types.String `tfsdk:"fax_number"`
	WebPage         types.String `tfsdk:"web_page"`

	// Address
	Street        types.String `tfsdk:"street"`
	City          types.String `tfsdk:"city"`
	State         types.String `tfsdk:"state"`
	PostalCode    types.String `tfsdk:"postal_code"`
	PostOfficeBox types.String `tfsdk:"post_office_box"`
	Office        types.String `tfsdk:"office"`
	Country       types.String `tfsdk:"country"`
	CountryCode   types.Int64  `tfsdk:"country_code"`
	CountryName   types.String `tfsdk:"country_name"`

	// Hierarchy
	Parent     types.String `tfsdk:"parent"`
	TopLevelOU types.String `tfsdk:"top_level_ou"`
	Children   types.List   `tfsdk:"children"`

	WhenCreated types.String `tfsdk:"when_created"`
	WhenChanged types.String `tfsdk:"when_changed"`
}

func (d *OUDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_ou"
}

func (d *OUDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Retrieves an Active Directory organizational unit (OU) by objectGUID or Distinguished Name, " +
			"including its address properties and position in the OU hierarchy.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The objectGUID of the OU. Format: `550e8400-e29b-41d4-a716-446655440000`",
				Optional:            true,
				Computed:            true,
			},
			"dn": schema.StringAttribute{
				MarkdownDescription: "The Distinguished Name of the OU. Example: `OU=IT,OU=Departments,DC=example,DC=com`",
				Optional:            true,
				Computed:            true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
			},

			"name":              computedString("The leading RDN of the OU, e.g. `OU=IT`."),
			"native_guid":       computedString("The objectGUID as hex of its stored byte order."),
			"schema_class_name": computedString("The most specific object class."),
			"canonical_name":    computedString("The canonical name, e.g. `example.com/Departments/IT`."),
			"description":       computedString("The description."),
			"display_name":      computedString("The display name."),
			"manager":           computedString("The DN in the `manager` attribute."),
			"telephone_number":  computedString("The telephone number."),
			"fax_number":        computedString("The fax number (`facsimileTelephoneNumber`)."),
			"web_page":          computedString("The home page (`wWWHomePage`)."),

			"street":          computedString("The street (`street`)."),
			"city":            computedString("The city (`l`)."),
			"state":           computedString("The state or province (`st`)."),
			"postal_code":     computedString("The postal code."),
			"post_office_box": computedString("The post office box."),
			"office":          computedString("The office (`physicalDeliveryOfficeName`)."),
			"country":         computedString("The two-letter country code (`c`)."),
			"country_code":    computedInt64("The ISO 3166 numeric country code. `0` when unset."),
			"country_name":    computedString("The country name (`co`)."),

			"parent":       computedString("The DN of the parent container."),
			"top_level_ou": computedString("The outermost OU above this one. For an OU beneath the domain root, the domain."),
			"children":     computedStringList("DNs of the immediate children of any class."),

			"when_created": computedString("When the OU was created (RFC3339)."),
			"when_changed": computedString("When the OU was last modified (RFC3339)."),
		},
	}
}

// ConfigValidators implements datasource.DataSourceWithConfigValidators.
func (d *OUDataSource) ConfigValidators(ctx context.Context) []datasource.ConfigValidator {
	return []datasource.ConfigValidator{
		datasourcevalidator.ExactlyOneOf(
			path.MatchRoot("id"),
			path.MatchRoot("dn"),
		),
	}
}

func (d *OUDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	// Prevent panic if the provider has not been configured.
	if req.ProviderData == nil {
		return
	}
	d.providerData = providerDataFrom(req.ProviderData, "Data Source", &resp.Diagnostics)
}

func (d *OUDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data OUDataSourceModel

	ctx = initializeLogging(ctx)
	logCompletion := ldapclient.LogDataSourceOperation(ctx, "adex_ou", "read", nil)
	defer func() { logCompletion(diagnosticsError(resp.Diagnostics)) }()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	dn, err := resolveLookup(ctx, d.providerData,
		lookup{ldapclient.IdentifierTypeDN, data.DN},
		lookup{ldapclient.IdentifierTypeGUID, data.ID},
	)
	if err != nil {
		addReadError(&resp.Diagnostics, "OU", err)
		return
	}

	ou, err := directory.OpenOU(ctx, d.providerData.Client, dn, directory.WithLeaveOpen())
	if err != nil {
		addReadError(&resp.Diagnostics, "OU", err)
		return
	}
	defer ou.Close()

	if !ou.IsClass("organizationalUnit") {
		resp.Diagnostics.AddError(
			"Object Is Not an OU",
			fmt.Sprintf("The object %s has class %s, not organizationalUnit.", dn, ou.SchemaClassName()),
		)
		return
	}

	tflog.Debug(ctx, "Successfully retrieved AD OU", map[string]any{
		"ou_guid": ou.Guid().String(),
		"ou_dn":   ou.Path(),
	})

	resp.Diagnostics.Append(mapOUToModel(ctx, ou, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// mapOUToModel copies the OU's properties and hierarchy into the model. The
// hierarchy needs further reads, so it can fail where the plain properties
// cannot.
func mapOUToModel(ctx context.Context, ou *directory.OU, data *OUDataSourceModel) diag.Diagnostics {
	var diags diag.Diagnostics

	data.ID = keepConfigured(data.ID, types.StringValue(ou.Guid().String()))
	data.DN = keepConfigured(data.DN, types.StringValue(ou.Path()))

	data.Name = types.StringValue(ou.Name())
	data.NativeGUID = helpers.StringOrNull(ou.NativeGuid())
	data.SchemaClassName = helpers.StringOrNull(ou.SchemaClassName())
	data.Description = helpers.StringOrNull(ou.Description())
	data.DisplayName = helpers.StringOrNull(ou.DisplayName())
	data.Manager = helpers.StringOrNull(ou.Manager())
	data.TelephoneNumber = helpers.StringOrNull(ou.TelephoneNumber())
	data.FaxNumber = helpers.StringOrNull(ou.FaxNumber())
	data.WebPage = helpers.StringOrNull(ou.WebPage())

	data.Street = helpers.StringOrNull(ou.Street())
	data.City = helpers.StringOrNull(ou.City())
	data.State = helpers.StringOrNull(ou.State())
	data.PostalCode = helpers.StringOrNull(ou.PostalCode())
	data.PostOfficeBox = helpers.StringOrNull(ou.PostOfficeBox())
	data.Office = helpers.StringOrNull(ou.Office())
	data.Country = helpers.StringOrNull(ou.Country())
	data.CountryCode = types.Int64Value(int64(ou.CountryCode()))
	data.CountryName = helpers.StringOrNull(ou.CountryName())

	data.WhenCreated = helpers.TimeOrNull(ou.CreationDate())
	data.WhenChanged = helpers.TimeOrNull(ou.ModifiedDate())

	canonicalName, err := ou.CanonicalName(ctx)
	if err != nil {
		diags.AddError("Error Reading Canonical Name", err.Error())
		return diags
	}
	data.CanonicalName = helpers.StringOrNull(canonicalName)

	parent, err := ldapclient.ParentDN(ou.Path())
	if err != nil {
		diags.AddError("Error Reading Parent", err.Error())
		return diags
	}
	data.Parent = helpers.StringOrNull(parent)

	top, err := ou.GetTopLevelOU(ctx)
	if err != nil {
		diags.AddError("Error Reading Top-Level OU", err.Error())
		return diags
	}
	data.TopLevelOU = types.StringNull()
	if top != nil {
		data.TopLevelOU = types.StringValue(top.Path())
		top.Close()
	}

	children, err := ou.Children(ctx)
	if err != nil {
		diags.AddError("Error Reading Children", err.Error())
		return diags
	}
	childList, d := helpers.StringList(ctx, lo.Map(children, func(child *directory.Entry, _ int) string {
		return child.Path()
	}))
	diags.Append(d...)
	data.Children = childList

	return diags
}
