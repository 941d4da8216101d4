package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/samber/lo"

	"github.com/isometry/terraform-provider-adex/internal/directory"
	ldapclient "github.com/isometry/terraform-provider-adex/internal/ldap"
	"github.com/isometry/terraform-provider-adex/internal/provider/helpers"
	"github.com/isometry/terraform-provider-adex/internal/provider/validators"
)

var _ datasource.DataSource = &EntryDataSource{}

func NewEntryDataSource() datasource.DataSource {
	return &EntryDataSource{}
}

// EntryDataSource reads any directory entry by DN.
type EntryDataSource struct {
	providerData *ldapclient.ProviderData
}

type EntryDataSourceModel struct {
	DN         types.String `tfsdk:"dn"`
	Attributes types.List   `tfsdk:"attributes"`

	ID              types.String `tfsdk:"id"`
	Name            types.String `tfsdk:"name"`
	NativeGUID      types.String `tfsdk:"native_guid"`
	SID             types.String `tfsdk:"sid"`
	SchemaClassName types.String `tfsdk:"schema_class_name"`
	CanonicalName   types.String `tfsdk:"canonical_name"`
	Description     types.String `tfsdk:"description"`
	Parent          types.String `tfsdk:"parent"`
	Children        types.List   `tfsdk:"children"`
	Values          types.Map    `tfsdk:"values"`
	WhenCreated     types.String `tfsdk:"when_created"`
	WhenChanged     types.String `tfsdk:"when_changed"`
}

func (d *EntryDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_entry"
}

func (d *EntryDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Retrieves any Active Directory entry by Distinguished Name, together with its identity, " +
			"schema class, canonical name, timestamps and immediate children.",

		Attributes: map[string]schema.Attribute{
			"dn": schema.StringAttribute{
				MarkdownDescription: "The Distinguished Name of the entry.",
				Required:            true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
			},
			"attributes": schema.ListAttribute{
				MarkdownDescription: "Additional attribute names whose string values are returned in `values`.",
				ElementType:         types.StringType,
				Optional:            true,
			},

			"id":                computedString("The objectGUID of the entry."),
			"name":              computedString("The leading RDN of the entry."),
			"native_guid":       computedString("The objectGUID as hex of its stored byte order."),
			"sid":               computedString("The objectSid, for security principals."),
			"schema_class_name": computedString("The most specific object class."),
			"canonical_name":    computedString("The canonical name."),
			"description":       computedString("The description."),
			"parent":            computedString("The DN of the parent, or null at a naming context root."),
			"children":          computedStringList("DNs of the immediate children."),
			"values": schema.MapAttribute{
				MarkdownDescription: "Values of the names listed in `attributes`. Absent attributes are omitted.",
				ElementType:         types.ListType{ElemType: types.StringType},
				Computed:            true,
			},
			"when_created": computedString("When the entry was created (RFC3339)."),
			"when_changed": computedString("When the entry was last modified (RFC3339)."),
		},
	}
}

func (d *EntryDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	// Prevent panic if the provider has not been configured.
	if req.ProviderData == nil {
		return
	}
	d.providerData = providerDataFrom(req.ProviderData, "Data Source", &resp.Diagnostics)
}

func (d *EntryDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data EntryDataSourceModel

	ctx = initializeLogging(ctx)
	logCompletion := ldapclient.LogDataSourceOperation(ctx, "adex_entry", "read", nil)
	defer func() { logCompletion(diagnosticsError(resp.Diagnostics)) }()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	var extra []string
	if !data.Attributes.IsNull() && !data.Attributes.IsUnknown() {
		resp.Diagnostics.Append(data.Attributes.ElementsAs(ctx, &extra, false)...)
		if resp.Diagnostics.HasError() {
			return
		}
	}

	// "*" covers every user attribute; operational ones must be named.
	attributes := lo.Uniq(append([]string{"*", "modifyTimeStamp", "canonicalName"}, extra...))
	entry, err := directory.OpenEntry(ctx, d.providerData.Client, data.DN.ValueString(),
		directory.WithLeaveOpen(), directory.WithAttributes(attributes...))
	if err != nil {
		addReadError(&resp.Diagnostics, "Entry", err)
		return
	}
	defer entry.Close()

	resp.Diagnostics.Append(mapEntryToModel(ctx, entry, extra, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func mapEntryToModel(ctx context.Context, e *directory.Entry, extra []string, data *EntryDataSourceModel) diag.Diagnostics {
	var diags diag.Diagnostics

	data.ID = types.StringValue(e.Guid().String())
	data.Name = types.StringValue(e.Name())
	data.NativeGUID = helpers.StringOrNull(e.NativeGuid())
	data.SID = helpers.StringOrNull(e.SID())
	data.SchemaClassName = helpers.StringOrNull(e.SchemaClassName())
	data.Description = helpers.StringOrNull(e.Description())
	data.WhenCreated = helpers.TimeOrNull(e.CreationDate())
	data.WhenChanged = helpers.TimeOrNull(e.ModifiedDate())

	canonicalName, err := e.CanonicalName(ctx)
	if err != nil {
		diags.AddError("Error Reading Canonical Name", err.Error())
		return diags
	}
	data.CanonicalName = helpers.StringOrNull(canonicalName)

	data.Parent = types.StringNull()
	if !ldapclient.IsNamingContextRoot(e.Path()) {
		parent, err := ldapclient.ParentDN(e.Path())
		if err != nil {
			diags.AddError("Error Reading Parent", err.Error())
			return diags
		}
		data.Parent = helpers.StringOrNull(parent)
	}

	children, err := e.Children(ctx)
	if err != nil {
		diags.AddError("Error Reading Children", err.Error())
		return diags
	}
	childList, d := helpers.StringList(ctx, lo.Map(children, func(child *directory.Entry, _ int) string {
		return child.Path()
	}))
	diags.Append(d...)
	data.Children = childList

	values := make(map[string][]string, len(extra))
	for _, name := range extra {
		if v := e.InvokeGet(name); len(v) > 0 {
			values[name] = v
		}
	}
	valueMap, d := types.MapValueFrom(ctx, types.ListType{ElemType: types.StringType}, values)
	diags.Append(d...)
	data.Values = valueMap

	return diags
}
