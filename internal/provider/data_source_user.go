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
var _ datasource.DataSource = &UserDataSource{}
var _ datasource.DataSourceWithConfigValidators = &UserDataSource{}

func NewUserDataSource() datasource.DataSource {
	return &UserDataSource{}
}

// UserDataSource reads a user through directory.User.
type UserDataSource struct {
	providerData *ldapclient.ProviderData
}

// UserDataSourceModel describes the data source data model with multiple lookup methods.
type UserDataSourceModel struct {
	// Lookup methods (mutually exclusive)
	ID                types.String `tfsdk:"id"`
	DN                types.String `tfsdk:"dn"`
	SID               types.String `tfsdk:"sid"`
	UserPrincipalName types.String `tfsdk:"user_principal_name"`
	SAMAccountName    types.String `tfsdk:"sam_account_name"`

	Name            types.String `tfsdk:"name"`
	NativeGUID      types.String `tfsdk:"native_guid"`
	SchemaClassName types.String `tfsdk:"schema_class_name"`
	DisplayName     types.String `tfsdk:"display_name"`
	Description     types.String `tfsdk:"description"`
	FirstName       types.String `tfsdk:"first_name"`
	LastName        types.String `tfsdk:"last_name"`
	Initials        types.String `tfsdk:"initials"`

	// Organization
	Title             types.String `tfsdk:"title"`
	Department        types.String `tfsdk:"department"`
	Company           types.String `tfsdk:"company"`
	Office            types.String `tfsdk:"office"`
	Manager           types.String `tfsdk:"manager"`
	EmployeeID        types.String `tfsdk:"employee_id"`
	Notes             types.String `tfsdk:"notes"`
	ExchangeAlias     types.String `tfsdk:"exchange_alias"`
	ExchangeAssistant types.String `tfsdk:"exchange_assistant"`

	// Contact
	EmailAddress          types.String `tfsdk:"email_address"`
	TelephoneNumber       types.String `tfsdk:"telephone_number"`
	AssistantPhone        types.String `tfsdk:"assistant_phone"`
	HomePhone             types.String `tfsdk:"home_phone"`
	MobilePhone           types.String `tfsdk:"mobile_phone"`
	PagerNumber           types.String `tfsdk:"pager_number"`
	IPPhone               types.String `tfsdk:"ip_phone"`
	FaxNumber             types.String `tfsdk:"fax_number"`
	WebPage               types.String `tfsdk:"web_page"`
	OtherTelephoneNumbers types.List   `tfsdk:"other_telephone_numbers"`
	OtherMobile           types.List   `tfsdk:"other_mobile"`
	OtherHomePhone        types.List   `tfsdk:"other_home_phone"`
	OtherFax              types.List   `tfsdk:"other_fax"`
	OtherPager            types.List   `tfsdk:"other_pager"`
	OtherIPPhone          types.List   `tfsdk:"other_ip_phone"`
	OtherWebPages         types.List   `tfsdk:"other_web_pages"`
	ProxyAddresses        types.List   `tfsdk:"proxy_addresses"`
	PrimarySMTPAddress    types.String `tfsdk:"primary_smtp_address"`
	PrimarySIPAddress     types.String `tfsdk:"primary_sip_address"`

	// Address
	Street        types.String `tfsdk:"street"`
	City          types.String `tfsdk:"city"`
	State         types.String `tfsdk:"state"`
	PostalCode    types.String `tfsdk:"postal_code"`
	PostOfficeBox types.String `tfsdk:"post_office_box"`
	Country       types.String `tfsdk:"country"`
	CountryCode   types.Int64  `tfsdk:"country_code"`
	CountryName   types.String `tfsdk:"country_name"`

	// Profile
	HomeDirectory types.String `tfsdk:"home_directory"`
	HomeDrive     types.String `tfsdk:"home_drive"`
	LoginScript   types.String `tfsdk:"login_script"`
	ProfilePath   types.String `tfsdk:"profile_path"`

	ExtensionAttributes types.Map `tfsdk:"extension_attributes"`

	// Account
	Enabled            types.Bool   `tfsdk:"enabled"`
	UserAccountControl types.Int64  `tfsdk:"user_account_control"`
	SAMAccountType     types.Int64  `tfsdk:"sam_account_type"`
	ExpirationDate     types.String `tfsdk:"expiration_date"`
	LastLogon          types.String `tfsdk:"last_logon"`
	LastLogonTimestamp types.String `tfsdk:"last_logon_timestamp"`
	WhenCreated        types.String `tfsdk:"when_created"`
	WhenChanged        types.String `tfsdk:"when_changed"`
}

func (d *UserDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_user"
}

func computedString(description string) schema.StringAttribute {
	return schema.StringAttribute{MarkdownDescription: description, Computed: true}
}

func computedStringList(description string) schema.ListAttribute {
	return schema.ListAttribute{MarkdownDescription: description, ElementType: types.StringType, Computed: true}
}

func computedInt64(description string) schema.Int64Attribute {
	return schema.Int64Attribute{MarkdownDescription: description, Computed: true}
}

func (d *UserDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Retrieves an Active Directory user. Supports lookup by objectGUID, Distinguished Name, " +
			"objectSid, userPrincipalName or sAMAccountName. Absent attributes are null.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The objectGUID of the user. Format: `550e8400-e29b-41d4-a716-446655440000`",
				Optional:            true,
				Computed:            true,
			},
			"dn": schema.StringAttribute{
				MarkdownDescription: "The Distinguished Name of the user. Example: `CN=John Doe,OU=Staff,DC=example,DC=com`",
				Optional:            true,
				Computed:            true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
			},
			"sid": schema.StringAttribute{
				MarkdownDescription: "The objectSid of the user. Example: `S-1-5-21-123456789-123456789-123456789-1001`",
				Optional:            true,
				Computed:            true,
			},
			"user_principal_name": schema.StringAttribute{
				MarkdownDescription: "The userPrincipalName of the user. Example: `jdoe@example.com`",
				Optional:            true,
				Computed:            true,
			},
			"sam_account_name": schema.StringAttribute{
				MarkdownDescription: "The sAMAccountName of the user, optionally prefixed with the NetBIOS domain. Example: `EXAMPLE\\jdoe`",
				Optional:            true,
				Computed:            true,
			},

			"name":              computedString("The leading RDN of the user, e.g. `CN=John Doe`."),
			"native_guid":       computedString("The objectGUID as hex of its stored byte order."),
			"schema_class_name": computedString("The most specific object class."),
			"display_name":      computedString("The display name (`displayName`)."),
			"description":       computedString("The description."),
			"first_name":        computedString("The given name (`givenName`)."),
			"last_name":         computedString("The surname (`sn`)."),
			"initials":          computedString("The initials."),

			"title":              computedString("The job title."),
			"department":         computedString("The department."),
			"company":            computedString("The company."),
			"office":             computedString("The office (`physicalDeliveryOfficeName`)."),
			"manager":            computedString("The DN of the user's manager."),
			"employee_id":        computedString("The employee ID (`employeeID`)."),
			"notes":              computedString("The notes (`info`)."),
			"exchange_alias":     computedString("The Exchange alias (`mailNickname`)."),
			"exchange_assistant": computedString("The Exchange assistant name (`msExchAssistantName`)."),

			"email_address":           computedString("The email address (`mail`)."),
			"telephone_number":        computedString("The office telephone number."),
			"assistant_phone":         computedString("The assistant's telephone number (`telephoneAssistant`)."),
			"home_phone":              computedString("The home telephone number."),
			"mobile_phone":            computedString("The mobile telephone number (`mobile`)."),
			"pager_number":            computedString("The pager number."),
			"ip_phone":                computedString("The IP phone number."),
			"fax_number":              computedString("The fax number (`facsimileTelephoneNumber`)."),
			"web_page":                computedString("The home page (`wWWHomePage`)."),
			"other_telephone_numbers": computedStringList("Additional office telephone numbers (`otherTelephone`)."),
			"other_mobile":            computedStringList("Additional mobile numbers."),
			"other_home_phone":        computedStringList("Additional home telephone numbers."),
			"other_fax":               computedStringList("Additional fax numbers (`otherFacsimileTelephoneNumber`)."),
			"other_pager":             computedStringList("Additional pager numbers."),
			"other_ip_phone":          computedStringList("Additional IP phone numbers."),
			"other_web_pages":         computedStringList("Additional web pages (`url`)."),
			"proxy_addresses":         computedStringList("All proxy addresses in server order."),
			"primary_smtp_address":    computedString("The primary SMTP address, from the `SMTP:` proxy address."),
			"primary_sip_address":     computedString("The primary SIP address, from the `SIP:` proxy address."),

			"street":          computedString("The street address (`streetAddress`)."),
			"city":            computedString("The city (`l`)."),
			"state":           computedString("The state or province (`st`)."),
			"postal_code":     computedString("The postal code."),
			"post_office_box": computedString("The post office box."),
			"country":         computedString("The two-letter country code (`c`)."),
			"country_code":    computedInt64("The ISO 3166 numeric country code. `0` when unset."),
			"country_name":    computedString("The country name (`co`)."),

			"home_directory": computedString("The home directory path."),
			"home_drive":     computedString("The home drive letter."),
			"login_script":   computedString("The logon script (`scriptPath`)."),
			"profile_path":   computedString("The roaming profile path."),

			"extension_attributes": schema.MapAttribute{
				MarkdownDescription: "Set `extensionAttribute1`..`extensionAttribute15` values keyed by index (`\"1\"`..`\"15\"`).",
				ElementType:         types.StringType,
				Computed:            true,
			},

			"enabled": schema.BoolAttribute{
				MarkdownDescription: "Whether the account is enabled. A user without `userAccountControl` is reported as enabled.",
				Computed:            true,
			},
			"user_account_control": computedInt64("The raw `userAccountControl` flags. Null when unset."),
			"sam_account_type":     computedInt64("The `sAMAccountType`."),
			"expiration_date":      computedString("When the account expires (RFC3339). Null when it never expires."),
			"last_logon":           computedString("The last logon recorded by the answering domain controller (RFC3339)."),
			"last_logon_timestamp": computedString("The replicated last logon timestamp (RFC3339)."),
			"when_created":         computedString("When the user was created (RFC3339)."),
			"when_changed":         computedString("When the user was last modified (RFC3339)."),
		},
	}
}

// ConfigValidators implements datasource.DataSourceWithConfigValidators.
func (d *UserDataSource) ConfigValidators(ctx context.Context) []datasource.ConfigValidator {
	return []datasource.ConfigValidator{
		datasourcevalidator.ExactlyOneOf(
			path.MatchRoot("id"),
			path.MatchRoot("dn"),
			path.MatchRoot("sid"),
			path.MatchRoot("user_principal_name"),
			path.MatchRoot("sam_account_name"),
		),
	}
}

func (d *UserDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	// Prevent panic if the provider has not been configured.
	if req.ProviderData == nil {
		return
	}
	d.providerData = providerDataFrom(req.ProviderData, "Data Source", &resp.Diagnostics)
}

func (d *UserDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data UserDataSourceModel

	ctx = initializeLogging(ctx)
	logCompletion := ldapclient.LogDataSourceOperation(ctx, "adex_user", "read", nil)
	defer func() { logCompletion(diagnosticsError(resp.Diagnostics)) }()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	dn, err := resolveLookup(ctx, d.providerData,
		lookup{ldapclient.IdentifierTypeDN, data.DN},
		lookup{ldapclient.IdentifierTypeGUID, data.ID},
		lookup{ldapclient.IdentifierTypeSID, data.SID},
		lookup{ldapclient.IdentifierTypeUPN, data.UserPrincipalName},
		lookup{ldapclient.IdentifierTypeSAM, data.SAMAccountName},
	)
	if err != nil {
		addReadError(&resp.Diagnostics, "User", err)
		return
	}

	user, err := directory.OpenUser(ctx, d.providerData.Client, dn, directory.WithLeaveOpen())
	if err != nil {
		addReadError(&resp.Diagnostics, "User", err)
		return
	}
	defer user.Close()

	if !user.IsClass("user") {
		resp.Diagnostics.AddError(
			"Object Is Not a User",
			fmt.Sprintf("The object %s has class %s, not user.", dn, user.SchemaClassName()),
		)
		return
	}

	tflog.Debug(ctx, "Successfully retrieved AD user", map[string]any{
		"user_guid": user.Guid().String(),
		"user_dn":   user.Path(),
	})

	resp.Diagnostics.Append(mapUserToModel(ctx, user, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// mapUserToModel copies the user's typed properties into the model.
func mapUserToModel(ctx context.Context, u *directory.User, data *UserDataSourceModel) diag.Diagnostics {
	var diags diag.Diagnostics

	data.ID = keepConfigured(data.ID, types.StringValue(u.Guid().String()))
	data.DN = keepConfigured(data.DN, types.StringValue(u.Path()))
	data.SID = keepConfigured(data.SID, helpers.StringOrNull(u.SID()))
	data.UserPrincipalName = keepConfigured(data.UserPrincipalName, helpers.StringOrNull(u.UserPrincipalName()))
	data.SAMAccountName = keepConfigured(data.SAMAccountName, helpers.StringOrNull(u.SamAccountName()))

	data.Name = types.StringValue(u.Name())
	data.NativeGUID = helpers.StringOrNull(u.NativeGuid())
	data.SchemaClassName = helpers.StringOrNull(u.SchemaClassName())
	data.DisplayName = helpers.StringOrNull(u.DisplayName())
	data.Description = helpers.StringOrNull(u.Description())
	data.FirstName = helpers.StringOrNull(u.Firstname())
	data.LastName = helpers.StringOrNull(u.Lastname())
	data.Initials = helpers.StringOrNull(u.Initials())

	data.Title = helpers.StringOrNull(u.Title())
	data.Department = helpers.StringOrNull(u.Department())
	data.Company = helpers.StringOrNull(u.Company())
	data.Office = helpers.StringOrNull(u.Office())
	data.Manager = helpers.StringOrNull(u.Manager())
	data.EmployeeID = helpers.StringOrNull(u.EmployeeId())
	data.Notes = helpers.StringOrNull(u.Notes())
	data.ExchangeAlias = helpers.StringOrNull(u.ExchangeAlias())
	data.ExchangeAssistant = helpers.StringOrNull(u.ExchangeAssistant())

	data.EmailAddress = helpers.StringOrNull(u.EmailAddress())
	data.TelephoneNumber = helpers.StringOrNull(u.TelephoneNumber())
	data.AssistantPhone = helpers.StringOrNull(u.AssistantPhone())
	data.HomePhone = helpers.StringOrNull(u.HomePhone())
	data.MobilePhone = helpers.StringOrNull(u.MobilePhone())
	data.PagerNumber = helpers.StringOrNull(u.PagerNumber())
	data.IPPhone = helpers.StringOrNull(u.IpPhone())
	data.FaxNumber = helpers.StringOrNull(u.FaxNumber())
	data.WebPage = helpers.StringOrNull(u.WebPage())
	data.PrimarySMTPAddress = helpers.StringOrNull(u.PrimarySmtpAddress())
	data.PrimarySIPAddress = helpers.StringOrNull(u.PrimarySipAddress())

	for _, list := range []struct {
		target *types.List
		values []string
	}{
		{&data.OtherTelephoneNumbers, u.OtherTelephoneNumbers()},
		{&data.OtherMobile, u.OtherMobile()},
		{&data.OtherHomePhone, u.OtherHomePhone()},
		{&data.OtherFax, u.OtherFax()},
		{&data.OtherPager, u.OtherPager()},
		{&data.OtherIPPhone, u.OtherIpPhone()},
		{&data.OtherWebPages, u.OtherWebPages()},
		{&data.ProxyAddresses, u.ProxyAddresses()},
	} {
		value, d := helpers.StringList(ctx, list.values)
		diags.Append(d...)
		*list.target = value
	}

	data.Street = helpers.StringOrNull(u.Street())
	data.City = helpers.StringOrNull(u.City())
	data.State = helpers.StringOrNull(u.State())
	data.PostalCode = helpers.StringOrNull(u.PostalCode())
	data.PostOfficeBox = helpers.StringOrNull(u.PostOfficeBox())
	data.Country = helpers.StringOrNull(u.Country())
	data.CountryCode = types.Int64Value(int64(u.CountryCode()))
	data.CountryName = helpers.StringOrNull(u.CountryName())

	data.HomeDirectory = helpers.StringOrNull(u.HomeDirectory())
	data.HomeDrive = helpers.StringOrNull(u.HomeDrive())
	data.LoginScript = helpers.StringOrNull(u.LoginScript())
	data.ProfilePath = helpers.StringOrNull(u.ProfilePath())

	extensions, d := helpers.ExtensionAttributesToMap(ctx, u.ExtensionAttributes())
	diags.Append(d...)
	data.ExtensionAttributes = extensions

	data.Enabled = types.BoolValue(u.Enabled())
	if uac := u.UserAccountControl(); uac != nil {
		data.UserAccountControl = types.Int64Value(int64(*uac))
	} else {
		data.UserAccountControl = types.Int64Null()
	}
	data.SAMAccountType = types.Int64Value(int64(u.SamAccountType()))
	data.ExpirationDate = helpers.TimeOrNull(u.ExpirationDate())
	data.LastLogon = helpers.TimeOrNull(u.LastLogon())
	data.LastLogonTimestamp = helpers.TimeOrNull(u.LastLogonTimestamp())
	data.WhenCreated = helpers.TimeOrNull(u.CreationDate())
	data.WhenChanged = helpers.TimeOrNull(u.ModifiedDate())

	return diags
}
