package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/samber/lo"

	"github.com/isometry/terraform-provider-adex/internal/directory"
	ldapclient "github.com/isometry/terraform-provider-adex/internal/ldap"
	"github.com/isometry/terraform-provider-adex/internal/provider/helpers"
	customtypes "github.com/isometry/terraform-provider-adex/internal/provider/types"
	"github.com/isometry/terraform-provider-adex/internal/provider/validators"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ resource.Resource = &UserAttributesResource{}
var _ resource.ResourceWithImportState = &UserAttributesResource{}

func NewUserAttributesResource() resource.Resource {
	return &UserAttributesResource{}
}

// UserAttributesResource manages selected attributes of an existing user.
// The user itself is never created or deleted.
type UserAttributesResource struct {
	providerData *ldapclient.ProviderData
}

// UserAttributesResourceModel describes the resource data model. Null
// attributes are unmanaged.
type UserAttributesResourceModel struct {
	ID                  types.String        `tfsdk:"id"`
	DN                  customtypes.DNValue `tfsdk:"dn"`
	DisplayName         types.String        `tfsdk:"display_name"`
	Description         types.String        `tfsdk:"description"`
	Title               types.String        `tfsdk:"title"`
	Department          types.String        `tfsdk:"department"`
	Company             types.String        `tfsdk:"company"`
	Office              types.String        `tfsdk:"office"`
	TelephoneNumber     types.String        `tfsdk:"telephone_number"`
	MobilePhone         types.String        `tfsdk:"mobile_phone"`
	PrimarySmtpAddress  types.String        `tfsdk:"primary_smtp_address"`
	ExtensionAttributes types.Map           `tfsdk:"extension_attributes"`
	Enabled             types.Bool          `tfsdk:"enabled"`
	ExpirationDate      types.String        `tfsdk:"expiration_date"`
}

// managedString binds a plain string attribute of the model to its user
// accessors.
type managedString struct {
	name        string
	description string
	field       func(*UserAttributesResourceModel) *types.String
	get         func(*directory.User) string
	set         func(*directory.User, string)
}

var managedStrings = []managedString{
	{
		name:        "display_name",
		description: "The display name (`displayName`).",
		field:       func(m *UserAttributesResourceModel) *types.String { return &m.DisplayName },
		get:         (*directory.User).DisplayName,
		set:         (*directory.User).SetDisplayName,
	},
	{
		name:        "description",
		description: "The description.",
		field:       func(m *UserAttributesResourceModel) *types.String { return &m.Description },
		get:         (*directory.User).Description,
		set:         (*directory.User).SetDescription,
	},
	{
		name:        "title",
		description: "The job title (`title`).",
		field:       func(m *UserAttributesResourceModel) *types.String { return &m.Title },
		get:         (*directory.User).Title,
		set:         (*directory.User).SetTitle,
	},
	{
		name:        "department",
		description: "The department.",
		field:       func(m *UserAttributesResourceModel) *types.String { return &m.Department },
		get:         (*directory.User).Department,
		set:         (*directory.User).SetDepartment,
	},
	{
		name:        "company",
		description: "The company.",
		field:       func(m *UserAttributesResourceModel) *types.String { return &m.Company },
		get:         (*directory.User).Company,
		set:         (*directory.User).SetCompany,
	},
	{
		name:        "office",
		description: "The office (`physicalDeliveryOfficeName`).",
		field:       func(m *UserAttributesResourceModel) *types.String { return &m.Office },
		get:         (*directory.User).Office,
		set:         (*directory.User).SetOffice,
	},
	{
		name:        "telephone_number",
		description: "The telephone number.",
		field:       func(m *UserAttributesResourceModel) *types.String { return &m.TelephoneNumber },
		get:         (*directory.User).TelephoneNumber,
		set:         (*directory.User).SetTelephoneNumber,
	},
	{
		name:        "mobile_phone",
		description: "The mobile number (`mobile`).",
		field:       func(m *UserAttributesResourceModel) *types.String { return &m.MobilePhone },
		get:         (*directory.User).MobilePhone,
		set:         (*directory.User).SetMobilePhone,
	},
}

func (r *UserAttributesResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_user_attributes"
}

func (r *UserAttributesResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	attributes := map[string]schema.Attribute{
		"id": schema.StringAttribute{
			MarkdownDescription: "The objectGUID of the user.",
			Computed:            true,
			PlanModifiers: []planmodifier.String{
				stringplanmodifier.UseStateForUnknown(),
			},
		},
		"dn": schema.StringAttribute{
			MarkdownDescription: "The Distinguished Name of an existing user. Changing it moves management to another user.",
			Required:            true,
			CustomType:          customtypes.DNType{},
			Validators: []validator.String{
				validators.IsValidDN(),
			},
			PlanModifiers: []planmodifier.String{
				stringplanmodifier.RequiresReplace(),
			},
		},
		"primary_smtp_address": schema.StringAttribute{
			MarkdownDescription: "The primary SMTP address. Marks the matching `proxyAddresses` entry as `SMTP:`, " +
				"demoting any other primary and adding the address if missing. Removing it from configuration " +
				"leaves `proxyAddresses` as it is.",
			Optional: true,
			Validators: []validator.String{
				stringvalidator.LengthAtLeast(1),
			},
		},
		"extension_attributes": schema.MapAttribute{
			MarkdownDescription: "`extensionAttribute1`..`extensionAttribute15` values keyed by index. " +
				"Only listed indexes are managed; indexes removed from the map are cleared.",
			ElementType: types.StringType,
			Optional:    true,
			Validators: []validator.Map{
				validators.ExtensionAttributeKeys(),
			},
		},
		"enabled": schema.BoolAttribute{
			MarkdownDescription: "Whether the account is enabled. Only the ACCOUNTDISABLE flag of `userAccountControl` " +
				"is changed. Removing it from configuration leaves the flag as it is.",
			Optional: true,
		},
		"expiration_date": schema.StringAttribute{
			MarkdownDescription: "When the account expires (RFC3339). Removing it from configuration sets the account to never expire.",
			Optional:            true,
			Validators: []validator.String{
				validators.IsRFC3339(),
			},
		},
	}

	for _, s := range managedStrings {
		attributes[s.name] = schema.StringAttribute{
			MarkdownDescription: s.description + " Removing it from configuration clears the attribute.",
			Optional:            true,
			Validators: []validator.String{
				stringvalidator.LengthAtLeast(1),
			},
		}
	}

	resp.Schema = schema.Schema{
		MarkdownDescription: "Manages selected attributes of an existing Active Directory user. Attributes left out of " +
			"configuration are not touched. Destroying the resource clears the managed string and extension " +
			"attributes but never deletes the user.",
		Attributes: attributes,
	}
}

func (r *UserAttributesResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	// Prevent panic if the provider has not been configured.
	if req.ProviderData == nil {
		return
	}
	r.providerData = providerDataFrom(req.ProviderData, "Resource", &resp.Diagnostics)
}

func (r *UserAttributesResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var plan UserAttributesResourceModel

	ctx = initializeLogging(ctx)
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	logCompletion := ldapclient.LogResourceOperation(ctx, "adex_user_attributes", "create", map[string]any{
		"dn": plan.DN.ValueString(),
	})
	defer func() { logCompletion(diagnosticsError(resp.Diagnostics)) }()

	resp.Diagnostics.Append(r.apply(ctx, &plan, &UserAttributesResourceModel{})...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *UserAttributesResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var state UserAttributesResourceModel

	ctx = initializeLogging(ctx)
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	logCompletion := ldapclient.LogResourceOperation(ctx, "adex_user_attributes", "read", map[string]any{
		"dn": state.DN.ValueString(),
	})
	defer func() { logCompletion(diagnosticsError(resp.Diagnostics)) }()

	user, err := directory.OpenUser(ctx, r.providerData.Client, state.DN.ValueString(), directory.WithLeaveOpen())
	if err != nil {
		if isNotFound(err) {
			tflog.Warn(ctx, "User no longer exists, removing from state", map[string]any{
				"dn": state.DN.ValueString(),
			})
			resp.State.RemoveResource(ctx)
			return
		}
		addReadError(&resp.Diagnostics, "User", err)
		return
	}
	defer user.Close()

	resp.Diagnostics.Append(readUserAttributes(ctx, user, &state, false)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &state)...)
}

func (r *UserAttributesResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var plan, state UserAttributesResourceModel

	ctx = initializeLogging(ctx)
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	logCompletion := ldapclient.LogResourceOperation(ctx, "adex_user_attributes", "update", map[string]any{
		"dn": plan.DN.ValueString(),
	})
	defer func() { logCompletion(diagnosticsError(resp.Diagnostics)) }()

	resp.Diagnostics.Append(r.apply(ctx, &plan, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *UserAttributesResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var state UserAttributesResourceModel

	ctx = initializeLogging(ctx)
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	logCompletion := ldapclient.LogResourceOperation(ctx, "adex_user_attributes", "delete", map[string]any{
		"dn": state.DN.ValueString(),
	})
	defer func() { logCompletion(diagnosticsError(resp.Diagnostics)) }()

	user, err := directory.OpenUser(ctx, r.providerData.Client, state.DN.ValueString(), directory.WithLeaveOpen())
	if err != nil {
		if isNotFound(err) {
			return
		}
		addReadError(&resp.Diagnostics, "User", err)
		return
	}
	defer user.Close()

	resp.Diagnostics.Append(clearUserAttributes(ctx, user, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if err := user.CommitChanges(ctx); err != nil {
		resp.Diagnostics.AddError(
			"Error Clearing User Attributes",
			fmt.Sprintf("Could not clear attributes of %s: %s", state.DN.ValueString(), err.Error()),
		)
	}
}

// ImportState takes the DN of the user. Every managed attribute the user
// currently has is imported.
func (r *UserAttributesResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	ctx = initializeLogging(ctx)
	dn := strings.TrimSpace(req.ID)

	logCompletion := ldapclient.LogResourceOperation(ctx, "adex_user_attributes", "import", map[string]any{
		"dn": dn,
	})
	defer func() { logCompletion(diagnosticsError(resp.Diagnostics)) }()

	user, err := r.openUser(ctx, dn)
	if err != nil {
		resp.Diagnostics.AddAttributeError(path.Root("dn"), "Error Importing User Attributes", err.Error())
		return
	}
	defer user.Close()

	data := UserAttributesResourceModel{
		DN:                  customtypes.DN(dn),
		ExtensionAttributes: types.MapNull(types.StringType),
	}
	resp.Diagnostics.Append(readUserAttributes(ctx, user, &data, true)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// apply stages plan against the user and commits it. prior is the previous
// state; attributes it managed that plan drops are cleared.
func (r *UserAttributesResource) apply(ctx context.Context, plan, prior *UserAttributesResourceModel) diag.Diagnostics {
	var diags diag.Diagnostics

	user, err := r.openUser(ctx, plan.DN.ValueString())
	if err != nil {
		diags.AddAttributeError(path.Root("dn"), "Error Reading User", err.Error())
		return diags
	}
	defer user.Close()

	diags.Append(stageUserAttributes(ctx, user, plan, prior)...)
	if diags.HasError() {
		return diags
	}

	if err := user.CommitChanges(ctx); err != nil {
		diags.AddError(
			"Error Updating User Attributes",
			fmt.Sprintf("Could not update attributes of %s: %s", plan.DN.ValueString(), err.Error()),
		)
		return diags
	}

	plan.ID = types.StringValue(user.Guid().String())
	return diags
}

func (r *UserAttributesResource) openUser(ctx context.Context, dn string) (*directory.User, error) {
	user, err := directory.OpenUser(ctx, r.providerData.Client, dn, directory.WithLeaveOpen())
	if err != nil {
		return nil, err
	}
	if !user.IsClass("user") {
		user.Close()
		return nil, fmt.Errorf("%s has class %s, not user", dn, user.SchemaClassName())
	}
	return user, nil
}

// stageUserAttributes stages the difference between prior and plan.
func stageUserAttributes(ctx context.Context, user *directory.User, plan, prior *UserAttributesResourceModel) diag.Diagnostics {
	var diags diag.Diagnostics

	for _, s := range managedStrings {
		planned, previous := *s.field(plan), *s.field(prior)
		switch {
		case !planned.IsNull() && !planned.IsUnknown():
			s.set(user, planned.ValueString())
		case !previous.IsNull():
			s.set(user, "")
		}
	}

	if !plan.PrimarySmtpAddress.IsNull() && !plan.PrimarySmtpAddress.IsUnknown() {
		if err := user.SetPrimarySmtpAddress(plan.PrimarySmtpAddress.ValueString()); err != nil {
			diags.AddAttributeError(path.Root("primary_smtp_address"), "Invalid Primary SMTP Address", err.Error())
		}
	}

	planned, d := helpers.MapToExtensionAttributes(ctx, plan.ExtensionAttributes)
	diags.Append(d...)
	previous, d := helpers.MapToExtensionAttributes(ctx, prior.ExtensionAttributes)
	diags.Append(d...)
	if diags.HasError() {
		return diags
	}
	for index := range lo.OmitByKeys(previous, lo.Keys(planned)) {
		if err := user.SetExtensionAttribute(index, ""); err != nil {
			diags.AddAttributeError(path.Root("extension_attributes"), "Invalid Extension Attribute", err.Error())
		}
	}
	for index, value := range planned {
		if err := user.SetExtensionAttribute(index, value); err != nil {
			diags.AddAttributeError(path.Root("extension_attributes"), "Invalid Extension Attribute", err.Error())
		}
	}

	if !plan.Enabled.IsNull() && !plan.Enabled.IsUnknown() {
		user.SetEnabled(plan.Enabled.ValueBool())
	}

	switch {
	case !plan.ExpirationDate.IsNull() && !plan.ExpirationDate.IsUnknown():
		expires, err := helpers.ParseTime(plan.ExpirationDate)
		if err != nil {
			diags.AddAttributeError(path.Root("expiration_date"), "Invalid Expiration Date", err.Error())
			break
		}
		user.SetExpirationDate(expires)
	case !prior.ExpirationDate.IsNull():
		user.SetExpirationDate(nil)
	}

	return diags
}

// clearUserAttributes stages removal of the string and extension attributes
// state manages.
func clearUserAttributes(ctx context.Context, user *directory.User, state *UserAttributesResourceModel) diag.Diagnostics {
	for _, s := range managedStrings {
		if !s.field(state).IsNull() {
			s.set(user, "")
		}
	}

	managed, diags := helpers.MapToExtensionAttributes(ctx, state.ExtensionAttributes)
	for index := range managed {
		if err := user.SetExtensionAttribute(index, ""); err != nil {
			diags.AddAttributeError(path.Root("extension_attributes"), "Invalid Extension Attribute", err.Error())
		}
	}
	return diags
}

// readUserAttributes refreshes the model from user. Only attributes already
// managed are refreshed unless all is set, as on import.
func readUserAttributes(ctx context.Context, user *directory.User, data *UserAttributesResourceModel, all bool) diag.Diagnostics {
	var diags diag.Diagnostics

	data.ID = types.StringValue(user.Guid().String())

	for _, s := range managedStrings {
		if field := s.field(data); all || !field.IsNull() {
			*field = helpers.StringOrNull(s.get(user))
		}
	}

	// Proxy addresses compare case-insensitively.
	if all || !data.PrimarySmtpAddress.IsNull() {
		if current := user.PrimarySmtpAddress(); !strings.EqualFold(current, data.PrimarySmtpAddress.ValueString()) {
			data.PrimarySmtpAddress = helpers.StringOrNull(current)
		}
	}

	if all || !data.ExtensionAttributes.IsNull() {
		current := user.ExtensionAttributes()
		if !all {
			managed, d := helpers.MapToExtensionAttributes(ctx, data.ExtensionAttributes)
			diags.Append(d...)
			current = lo.PickByKeys(current, lo.Keys(managed))
		}
		if !all || len(current) > 0 {
			extensions, d := helpers.ExtensionAttributesToMap(ctx, current)
			diags.Append(d...)
			data.ExtensionAttributes = extensions
		}
	}

	if !data.Enabled.IsNull() || (all && user.UserAccountControl() != nil) {
		data.Enabled = types.BoolValue(user.Enabled())
	}

	if all || !data.ExpirationDate.IsNull() {
		current := user.ExpirationDate()
		previous, err := helpers.ParseTime(data.ExpirationDate)
		if err != nil || previous == nil || current == nil || !previous.Equal(*current) {
			data.ExpirationDate = helpers.TimeOrNull(current)
		}
	}

	return diags
}
