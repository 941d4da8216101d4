package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/providervalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-adex/internal/ldap"
)

// Ensure AdexProvider satisfies various provider interfaces.
var _ provider.Provider = &AdexProvider{}
var _ provider.ProviderWithConfigValidators = &AdexProvider{}

// envPrefix prefixes the environment variable backing each provider
// attribute: ldap_url is read from AD_LDAP_URL.
const envPrefix = "AD_"

// AdexProvider defines the provider implementation.
type AdexProvider struct {
	// version is "dev" for local builds, "test" under acceptance tests and
	// the release tag otherwise.
	version string
}

// AdexProviderModel describes the provider data model. Every attribute falls
// back to its environment variable when unset.
type AdexProviderModel struct {
	// domain and ldap_url are mutually exclusive
	Domain  types.String `tfsdk:"domain"`
	LdapURL types.String `tfsdk:"ldap_url"`
	BaseDN  types.String `tfsdk:"base_dn"`

	Username types.String `tfsdk:"username"`
	Password types.String `tfsdk:"password"`

	KerberosRealm  types.String `tfsdk:"kerberos_realm"`
	KerberosKeytab types.String `tfsdk:"kerberos_keytab"`
	KerberosConfig types.String `tfsdk:"kerberos_config"`
	KerberosCCache types.String `tfsdk:"kerberos_ccache"`
	KerberosSPN    types.String `tfsdk:"kerberos_spn"`

	UseTLS            types.Bool   `tfsdk:"use_tls"`
	SkipTLSVerify     types.Bool   `tfsdk:"skip_tls_verify"`
	TLSCACertFile     types.String `tfsdk:"tls_ca_cert_file"`
	TLSCACert         types.String `tfsdk:"tls_ca_cert"`
	TLSClientCertFile types.String `tfsdk:"tls_client_cert_file"`
	TLSClientKeyFile  types.String `tfsdk:"tls_client_key_file"`

	MaxConnections types.Int64 `tfsdk:"max_connections"` // connections
	MaxIdleTime    types.Int64 `tfsdk:"max_idle_time"`   // seconds
	ConnectTimeout types.Int64 `tfsdk:"connect_timeout"` // seconds

	MaxRetries     types.Int64 `tfsdk:"max_retries"`
	InitialBackoff types.Int64 `tfsdk:"initial_backoff"` // milliseconds
	MaxBackoff     types.Int64 `tfsdk:"max_backoff"`     // seconds
}

func (p *AdexProvider) Metadata(ctx context.Context, req provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "adex"
	resp.Version = p.version
}

// envVar returns the environment variable backing attribute name.
func envVar(name string) string {
	return envPrefix + strings.ToUpper(name)
}

func settingDescription(name, description string) string {
	return fmt.Sprintf("%s Can be set via the `%s` environment variable.", description, envVar(name))
}

func optionalString(name, description string, sensitive bool, validators ...validator.String) schema.StringAttribute {
	return schema.StringAttribute{
		MarkdownDescription: settingDescription(name, description),
		Optional:            true,
		Sensitive:           sensitive,
		Validators:          validators,
	}
}

func optionalBool(name, description string) schema.BoolAttribute {
	return schema.BoolAttribute{
		MarkdownDescription: settingDescription(name, description),
		Optional:            true,
	}
}

func optionalInt64(name, description string, minimum int64) schema.Int64Attribute {
	return schema.Int64Attribute{
		MarkdownDescription: settingDescription(name, description),
		Optional:            true,
		Validators: []validator.Int64{
			int64validator.AtLeast(minimum),
		},
	}
}

func (p *AdexProvider) Schema(ctx context.Context, req provider.SchemaRequest, resp *provider.SchemaResponse) {
	defaults := ldapclient.DefaultConfig()
	nonEmpty := stringvalidator.LengthAtLeast(1)

	resp.Schema = schema.Schema{
		MarkdownDescription: "The `adex` provider reads Active Directory users, groups, organizational units and " +
			"arbitrary entries through typed attribute mappings, and manages profile attributes of existing users. " +
			"It connects over LDAP/LDAPS with SRV-based domain controller discovery and connection pooling.",
		Attributes: map[string]schema.Attribute{
			"domain": optionalString("domain",
				"Domain name whose domain controllers are discovered through DNS SRV records (e.g. `example.com`). "+
					"Conflicts with `ldap_url`.", false, nonEmpty),
			"ldap_url": optionalString("ldap_url",
				"URL of a single domain controller (e.g. `ldaps://dc1.example.com:636`). Conflicts with `domain`.",
				false, nonEmpty),
			"base_dn": optionalString("base_dn",
				"Base DN for searches (e.g. `DC=example,DC=com`). Read from the root DSE when unset.", false),

			"username": optionalString("username",
				"Bind identity as a DN, UPN or SAM account name.", false),
			"password": optionalString("password", "Bind password.", true),

			"kerberos_realm": optionalString("kerberos_realm",
				"Kerberos realm (e.g. `EXAMPLE.COM`). Setting it selects GSSAPI authentication.", false),
			"kerberos_keytab": optionalString("kerberos_keytab", "Path to a keytab for `username`.", false),
			"kerberos_config": optionalString("kerberos_config",
				"Path to `krb5.conf`. A minimal configuration is generated when unset.", false),
			"kerberos_ccache": optionalString("kerberos_ccache",
				"Path to a credential cache holding existing tickets.", false),
			"kerberos_spn": optionalString("kerberos_spn",
				"Service principal to request tickets for, in the form `ldap/<hostname>`. "+
					"Needed when domain controllers are reached by IP address.", false),

			"use_tls": optionalBool("use_tls",
				fmt.Sprintf("Connect with LDAPS. Defaults to `%t`.", defaults.UseTLS)),
			"skip_tls_verify": optionalBool("skip_tls_verify",
				"Skip certificate verification. Defaults to `false`."),
			"tls_ca_cert_file": optionalString("tls_ca_cert_file",
				"Path to a PEM CA bundle used to verify domain controllers.", false),
			"tls_ca_cert": optionalString("tls_ca_cert",
				"PEM CA bundle used to verify domain controllers. Conflicts with `tls_ca_cert_file`.", true),
			"tls_client_cert_file": optionalString("tls_client_cert_file",
				"Path to a PEM client certificate for mutual TLS.", false),
			"tls_client_key_file": optionalString("tls_client_key_file",
				"Path to the PEM key of `tls_client_cert_file`.", true),

			"max_connections": optionalInt64("max_connections",
				fmt.Sprintf("Size of the connection pool. Defaults to `%d`.", defaults.MaxConnections), 1),
			"max_idle_time": optionalInt64("max_idle_time",
				fmt.Sprintf("Seconds a pooled connection may stay idle. Defaults to `%d`.",
					int64(defaults.MaxIdleTime/time.Second)), 1),
			"connect_timeout": optionalInt64("connect_timeout",
				fmt.Sprintf("Dial and operation timeout in seconds. Defaults to `%d`.",
					int64(defaults.Timeout/time.Second)), 1),

			"max_retries": optionalInt64("max_retries",
				fmt.Sprintf("Retries of a failed operation. Defaults to `%d`.", defaults.MaxRetries), 0),
			"initial_backoff": optionalInt64("initial_backoff",
				fmt.Sprintf("First retry delay in milliseconds. Defaults to `%d`.",
					defaults.InitialBackoff.Milliseconds()), 1),
			"max_backoff": optionalInt64("max_backoff",
				fmt.Sprintf("Longest retry delay in seconds. Defaults to `%d`.",
					int64(defaults.MaxBackoff/time.Second)), 1),
		},
	}
}

// ConfigValidators implements provider.ProviderWithConfigValidators.
func (p *AdexProvider) ConfigValidators(ctx context.Context) []provider.ConfigValidator {
	return []provider.ConfigValidator{
		providervalidator.Conflicting(
			path.MatchRoot("domain"),
			path.MatchRoot("ldap_url"),
		),
		providervalidator.Conflicting(
			path.MatchRoot("tls_ca_cert_file"),
			path.MatchRoot("tls_ca_cert"),
		),
	}
}

func (p *AdexProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var data AdexProviderModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	ctx = p.configureLogging(ctx)
	tflog.Info(ctx, "Configuring adex provider")

	config := p.buildLDAPConfig(&data, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	providerData, diags := p.connect(ctx, config)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	tflog.Info(ctx, "adex provider configured", providerData.Stats())

	resp.DataSourceData = providerData
	resp.ResourceData = providerData
}

// connect creates the pooled client, proves a bind works and resolves the
// base DN.
func (p *AdexProvider) connect(ctx context.Context, config *ldapclient.ConnectionConfig) (*ldapclient.ProviderData, diag.Diagnostics) {
	var diags diag.Diagnostics

	start := time.Now()
	client, err := ldapclient.NewClient(ctx, config)
	if err != nil {
		tflog.Error(ctx, "Failed to create LDAP client", map[string]any{
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		diags.AddError("Unable to Create LDAP Client", "Could not create the LDAP client: "+err.Error())
		return nil, diags
	}

	// Connect draws a pooled connection, which is bound on dial.
	if err := client.Connect(ctx); err != nil {
		tflog.Error(ctx, "Connection test failed", map[string]any{
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		summary := "Unable to Connect to Active Directory"
		if ldapclient.IsAuthenticationError(err) {
			summary = "Authentication Failed"
		}
		diags.AddError(summary,
			"The provider could not establish an authenticated connection to Active Directory. "+
				"Please verify your configuration settings.\n\nConnection Error: "+err.Error())
		return nil, diags
	}

	tflog.Info(ctx, "Connection established", map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
	})

	providerData, err := ldapclient.NewProviderData(ctx, client, config.BaseDN)
	if err != nil {
		diags.AddError("Failed to Get Base DN",
			"The base DN was not configured and could not be read from the root DSE: "+err.Error())
		return nil, diags
	}
	return providerData, diags
}

func (p *AdexProvider) configureLogging(ctx context.Context) context.Context {
	ctx = initializeLogging(ctx)
	ctx = tflog.SetField(ctx, "provider", "adex")
	return tflog.SetField(ctx, "provider_version", p.version)
}

// buildLDAPConfig overlays the configured attributes, or their environment
// variables, on the client defaults.
func (p *AdexProvider) buildLDAPConfig(data *AdexProviderModel, diags *diag.Diagnostics) *ldapclient.ConnectionConfig {
	config := ldapclient.DefaultConfig()

	config.Domain = resolveString(data.Domain, "domain")
	if ldapURL := resolveString(data.LdapURL, "ldap_url"); ldapURL != "" {
		config.LDAPURLs = []string{ldapURL}
	}
	config.BaseDN = resolveString(data.BaseDN, "base_dn")

	// Checked here rather than in ConfigValidators so the environment counts.
	if config.Domain == "" && len(config.LDAPURLs) == 0 {
		diags.AddError(
			"Missing Connection Configuration",
			fmt.Sprintf("Either 'domain' or 'ldap_url' must be configured, directly or through %s or %s.",
				envVar("domain"), envVar("ldap_url")),
		)
		return config
	}

	config.Username = resolveString(data.Username, "username")
	config.Password = resolveString(data.Password, "password")
	config.KerberosRealm = resolveString(data.KerberosRealm, "kerberos_realm")
	config.KerberosKeytab = resolveString(data.KerberosKeytab, "kerberos_keytab")
	config.KerberosConfig = resolveString(data.KerberosConfig, "kerberos_config")
	config.KerberosCCache = resolveString(data.KerberosCCache, "kerberos_ccache")
	config.KerberosSPN = resolveString(data.KerberosSPN, "kerberos_spn")

	if config.KerberosRealm == "" && (config.Username == "" || config.Password == "") {
		diags.AddError(
			"Missing Authentication Configuration",
			"Either username/password authentication or Kerberos authentication must be configured. "+
				"For username/password: provide 'username' and 'password' or set AD_USERNAME and AD_PASSWORD. "+
				"For Kerberos: provide 'kerberos_realm' together with a password, 'kerberos_keytab' or 'kerberos_ccache'.",
		)
		return config
	}

	config.UseTLS = resolveBool(data.UseTLS, "use_tls", config.UseTLS)
	config.TLSConfig.InsecureSkipVerify = resolveBool(data.SkipTLSVerify, "skip_tls_verify", false)
	config.TLSCACertFile = resolveString(data.TLSCACertFile, "tls_ca_cert_file")
	config.TLSCACert = resolveString(data.TLSCACert, "tls_ca_cert")
	config.TLSClientCertFile = resolveString(data.TLSClientCertFile, "tls_client_cert_file")
	config.TLSClientKeyFile = resolveString(data.TLSClientKeyFile, "tls_client_key_file")

	if n := resolveInt64(data.MaxConnections, "max_connections", int64(config.MaxConnections)); n > 0 {
		config.MaxConnections = int(n)
	}
	config.MaxIdleTime = resolveDuration(data.MaxIdleTime, "max_idle_time", time.Second, config.MaxIdleTime)
	config.Timeout = resolveDuration(data.ConnectTimeout, "connect_timeout", time.Second, config.Timeout)

	if n := resolveInt64(data.MaxRetries, "max_retries", int64(config.MaxRetries)); n >= 0 {
		config.MaxRetries = int(n)
	}
	config.InitialBackoff = resolveDuration(data.InitialBackoff, "initial_backoff", time.Millisecond, config.InitialBackoff)
	config.MaxBackoff = resolveDuration(data.MaxBackoff, "max_backoff", time.Second, config.MaxBackoff)

	return config
}

// resolveString returns the configured value, or the environment variable of
// attribute name when the value is unset or empty.
func resolveString(v types.String, name string) string {
	if !v.IsNull() && !v.IsUnknown() && v.ValueString() != "" {
		return v.ValueString()
	}
	return os.Getenv(envVar(name))
}

// resolveBool is resolveString for booleans. An unparsable environment value
// yields fallback.
func resolveBool(v types.Bool, name string, fallback bool) bool {
	if !v.IsNull() && !v.IsUnknown() {
		return v.ValueBool()
	}
	if parsed, err := strconv.ParseBool(os.Getenv(envVar(name))); err == nil {
		return parsed
	}
	return fallback
}

// resolveInt64 is resolveString for integers. An unparsable environment value
// yields fallback.
func resolveInt64(v types.Int64, name string, fallback int64) int64 {
	if !v.IsNull() && !v.IsUnknown() {
		return v.ValueInt64()
	}
	if parsed, err := strconv.ParseInt(os.Getenv(envVar(name)), 10, 64); err == nil {
		return parsed
	}
	return fallback
}

// resolveDuration reads a positive count of unit. Anything else keeps
// fallback.
func resolveDuration(v types.Int64, name string, unit, fallback time.Duration) time.Duration {
	if n := resolveInt64(v, name, -1); n > 0 {
		return time.Duration(n) * unit
	}
	return fallback
}

func (p *AdexProvider) Resources(ctx context.Context) []func() resource.Resource {
	return []func() resource.Resource{
		NewUserAttributesResource,
	}
}

func (p *AdexProvider) DataSources(ctx context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewEntryDataSource,
		NewGroupDataSource,
		NewOUDataSource,
		NewUserDataSource,
		NewWhoAmIDataSource,
	}
}

func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &AdexProvider{
			version: version,
		}
	}
}
