package provider

import (
	"testing"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/providerserver"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ldapclient "github.com/isometry/terraform-provider-adex/internal/ldap"
)

// clearProviderEnv blanks the environment variable of every provider
// attribute for the duration of t.
func clearProviderEnv(t *testing.T) {
	t.Helper()

	resp := &provider.SchemaResponse{}
	(&AdexProvider{}).Schema(t.Context(), provider.SchemaRequest{}, resp)
	for name := range resp.Schema.Attributes {
		t.Setenv(envVar(name), "")
	}
}

func TestProviderMetadata(t *testing.T) {
	p := &AdexProvider{version: "test"}

	resp := &provider.MetadataResponse{}
	p.Metadata(t.Context(), provider.MetadataRequest{}, resp)

	assert.Equal(t, "adex", resp.TypeName)
	assert.Equal(t, "test", resp.Version)
}

func TestProviderSchema(t *testing.T) {
	p := &AdexProvider{}

	resp := &provider.SchemaResponse{}
	p.Schema(t.Context(), provider.SchemaRequest{}, resp)
	require.False(t, resp.Diagnostics.HasError(), "%v", resp.Diagnostics)

	for _, name := range []string{
		"domain", "ldap_url", "base_dn",
		"username", "password",
		"kerberos_realm", "kerberos_keytab", "kerberos_config", "kerberos_ccache", "kerberos_spn",
		"use_tls", "skip_tls_verify", "tls_ca_cert_file", "tls_ca_cert",
		"tls_client_cert_file", "tls_client_key_file",
		"max_connections", "max_idle_time", "connect_timeout",
		"max_retries", "initial_backoff", "max_backoff",
	} {
		require.Contains(t, resp.Schema.Attributes, name)
		assert.True(t, resp.Schema.Attributes[name].IsOptional(), "%s is optional", name)
	}
	assert.True(t, resp.Schema.Attributes["password"].IsSensitive())
}

func TestProviderResources(t *testing.T) {
	p := &AdexProvider{}

	var names []string
	for _, factory := range p.Resources(t.Context()) {
		resp := &resource.MetadataResponse{}
		factory().Metadata(t.Context(), resource.MetadataRequest{ProviderTypeName: "adex"}, resp)
		names = append(names, resp.TypeName)
	}
	assert.Equal(t, []string{"adex_user_attributes"}, names)
}

func TestProviderDataSources(t *testing.T) {
	p := &AdexProvider{}

	var names []string
	for _, factory := range p.DataSources(t.Context()) {
		resp := &datasource.MetadataResponse{}
		factory().Metadata(t.Context(), datasource.MetadataRequest{ProviderTypeName: "adex"}, resp)
		names = append(names, resp.TypeName)
	}
	assert.Equal(t, []string{"adex_entry", "adex_group", "adex_ou", "adex_user", "adex_whoami"}, names)
}

func TestProviderConfigValidators(t *testing.T) {
	p := &AdexProvider{}

	validators := p.ConfigValidators(t.Context())
	require.Len(t, validators, 2)
	for _, v := range validators {
		assert.NotEmpty(t, v.Description(t.Context()))
	}
}

func TestNew(t *testing.T) {
	for _, version := range []string{"test", "dev", "1.0.0", ""} {
		t.Run("version "+version, func(t *testing.T) {
			p, ok := New(version)().(*AdexProvider)
			require.True(t, ok)
			assert.Equal(t, version, p.version)
		})
	}
}

func TestProviderServer(t *testing.T) {
	server, err := providerserver.NewProtocol6WithError(New("test")())()
	require.NoError(t, err)
	assert.NotNil(t, server)
}

func TestBuildLDAPConfig(t *testing.T) {
	tests := map[string]struct {
		model     AdexProviderModel
		env       map[string]string
		wantError string
		check     func(t *testing.T, config *ldapclient.ConnectionConfig)
	}{
		"password authentication with defaults": {
			model: AdexProviderModel{
				Domain:   types.StringValue("example.com"),
				Username: types.StringValue("admin"),
				Password: types.StringValue("secret"),
			},
			check: func(t *testing.T, config *ldapclient.ConnectionConfig) {
				assert.Equal(t, "example.com", config.Domain)
				assert.Empty(t, config.LDAPURLs)
				assert.True(t, config.UseTLS)
				assert.False(t, config.TLSConfig.InsecureSkipVerify)
				assert.Equal(t, 10, config.MaxConnections)
				assert.Equal(t, 300*time.Second, config.MaxIdleTime)
				assert.Equal(t, 30*time.Second, config.Timeout)
				assert.Equal(t, 3, config.MaxRetries)
				assert.Equal(t, 500*time.Millisecond, config.InitialBackoff)
				assert.Equal(t, 30*time.Second, config.MaxBackoff)
			},
		},
		"environment fills unset attributes": {
			env: map[string]string{
				"AD_LDAP_URL":        "ldaps://dc1.example.com:636",
				"AD_USERNAME":        "admin",
				"AD_PASSWORD":        "secret",
				"AD_SKIP_TLS_VERIFY": "true",
				"AD_MAX_CONNECTIONS": "4",
				"AD_INITIAL_BACKOFF": "250",
			},
			check: func(t *testing.T, config *ldapclient.ConnectionConfig) {
				assert.Equal(t, []string{"ldaps://dc1.example.com:636"}, config.LDAPURLs)
				assert.Equal(t, "admin", config.Username)
				assert.True(t, config.TLSConfig.InsecureSkipVerify)
				assert.Equal(t, 4, config.MaxConnections)
				assert.Equal(t, 250*time.Millisecond, config.InitialBackoff)
			},
		},
		"kerberos without password": {
			model: AdexProviderModel{
				Domain:         types.StringValue("example.com"),
				KerberosRealm:  types.StringValue("EXAMPLE.COM"),
				KerberosKeytab: types.StringValue("/etc/krb5.keytab"),
				UseTLS:         types.BoolValue(false),
			},
			check: func(t *testing.T, config *ldapclient.ConnectionConfig) {
				assert.Equal(t, "EXAMPLE.COM", config.KerberosRealm)
				assert.Equal(t, "/etc/krb5.keytab", config.KerberosKeytab)
				assert.False(t, config.UseTLS)
			},
		},
		"missing connection": {
			model: AdexProviderModel{
				Username: types.StringValue("admin"),
				Password: types.StringValue("secret"),
			},
			wantError: "Missing Connection Configuration",
		},
		"missing authentication": {
			model: AdexProviderModel{
				Domain:   types.StringValue("example.com"),
				Username: types.StringValue("admin"),
			},
			wantError: "Missing Authentication Configuration",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			clearProviderEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var diags diag.Diagnostics
			config := (&AdexProvider{}).buildLDAPConfig(&tt.model, &diags)

			if tt.wantError != "" {
				require.True(t, diags.HasError())
				assert.Equal(t, tt.wantError, diags.Errors()[0].Summary())
				return
			}
			require.False(t, diags.HasError(), "%v", diags)

			tt.check(t, config)
		})
	}
}

func TestSettingResolution(t *testing.T) {
	assert.Equal(t, "AD_KERBEROS_SPN", envVar("kerberos_spn"))

	t.Run("string", func(t *testing.T) {
		t.Setenv("AD_TEST_VALUE", "from-env")
		assert.Equal(t, "from-config", resolveString(types.StringValue("from-config"), "test_value"))
		assert.Equal(t, "from-env", resolveString(types.StringNull(), "test_value"))
		assert.Equal(t, "from-env", resolveString(types.StringValue(""), "test_value"))
	})

	t.Run("bool", func(t *testing.T) {
		t.Setenv("AD_TEST_VALUE", "false")
		assert.True(t, resolveBool(types.BoolValue(true), "test_value", false))
		assert.False(t, resolveBool(types.BoolNull(), "test_value", true))

		t.Setenv("AD_TEST_VALUE", "maybe")
		assert.True(t, resolveBool(types.BoolNull(), "test_value", true), "unparsable falls back")
	})

	t.Run("int64", func(t *testing.T) {
		t.Setenv("AD_TEST_VALUE", "7")
		assert.Equal(t, int64(1), resolveInt64(types.Int64Value(1), "test_value", 9))
		assert.Equal(t, int64(7), resolveInt64(types.Int64Null(), "test_value", 9))

		t.Setenv("AD_TEST_VALUE", "")
		assert.Equal(t, int64(9), resolveInt64(types.Int64Null(), "test_value", 9))
	})

	t.Run("duration", func(t *testing.T) {
		t.Setenv("AD_TEST_VALUE", "")
		assert.Equal(t, 2*time.Second, resolveDuration(types.Int64Value(2), "test_value", time.Second, time.Minute))
		assert.Equal(t, time.Minute, resolveDuration(types.Int64Null(), "test_value", time.Second, time.Minute))
		assert.Equal(t, time.Minute, resolveDuration(types.Int64Value(0), "test_value", time.Second, time.Minute))
	})
}

func TestProviderSchema_environmentDocumented(t *testing.T) {
	resp := &provider.SchemaResponse{}
	(&AdexProvider{}).Schema(t.Context(), provider.SchemaRequest{}, resp)

	for name, attribute := range resp.Schema.Attributes {
		assert.Contains(t, attribute.GetMarkdownDescription(), "`"+envVar(name)+"`")
	}
}
