package provider

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"strings"
	"testing"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/providerserver"
	"github.com/hashicorp/terraform-plugin-framework/tfsdk"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-go/tfprotov6"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/isometry/terraform-provider-adex/internal/directory"
	ldapclient "github.com/isometry/terraform-provider-adex/internal/ldap"
	"github.com/isometry/terraform-provider-adex/internal/ldap/ldaptest"
)

// Environment variables read by acceptance tests. A .env file in the
// package directory is loaded first when present.
const (
	EnvTestDomain   = "AD_TEST_DOMAIN"
	EnvTestLDAPURL  = "AD_TEST_LDAP_URL"
	EnvTestUsername = "AD_TEST_USERNAME"
	EnvTestPassword = "AD_TEST_PASSWORD"
	EnvTestBaseDN   = "AD_TEST_BASE_DN"
	EnvTestKeytab   = "AD_TEST_KEYTAB"
	EnvTestRealm    = "AD_TEST_REALM"

	// Existing objects the read-only tests and adex_user_attributes use.
	EnvTestUserDN  = "AD_TEST_USER_DN"
	EnvTestGroupDN = "AD_TEST_GROUP_DN"
	EnvTestOUDN    = "AD_TEST_OU_DN"
)

// testAccProtoV6ProviderFactories instantiates the provider for each
// Terraform CLI command during acceptance testing.
var testAccProtoV6ProviderFactories = map[string]func() (tfprotov6.ProviderServer, error){
	"adex": providerserver.NewProtocol6WithError(New("test")()),
}

// TestConfig holds the acceptance test environment.
type TestConfig struct {
	Domain   string
	LDAPURL  string
	Username string
	Password string
	BaseDN   string
	Keytab   string
	Realm    string
	UserDN   string
	GroupDN  string
	OUDN     string
}

// UseKerberos reports whether keytab authentication is configured.
func (c *TestConfig) UseKerberos() bool {
	return c.Keytab != "" && c.Realm != ""
}

// GetTestConfig returns the test configuration from the environment.
func GetTestConfig() *TestConfig {
	_ = godotenv.Load()

	return &TestConfig{
		Domain:   os.Getenv(EnvTestDomain),
		LDAPURL:  os.Getenv(EnvTestLDAPURL),
		Username: os.Getenv(EnvTestUsername),
		Password: os.Getenv(EnvTestPassword),
		BaseDN:   os.Getenv(EnvTestBaseDN),
		Keytab:   os.Getenv(EnvTestKeytab),
		Realm:    os.Getenv(EnvTestRealm),
		UserDN:   os.Getenv(EnvTestUserDN),
		GroupDN:  os.Getenv(EnvTestGroupDN),
		OUDN:     os.Getenv(EnvTestOUDN),
	}
}

// testAccPreCheck skips unless TF_ACC is set and a directory is configured.
// required names further environment variables the test needs.
func testAccPreCheck(t *testing.T, required ...string) *TestConfig {
	t.Helper()

	if os.Getenv("TF_ACC") == "" {
		t.Skip("Skipping acceptance test - set TF_ACC=1 to run")
	}

	config := GetTestConfig()
	if config.LDAPURL == "" && config.Domain == "" {
		t.Skipf("Skipping test: either %s or %s must be set", EnvTestLDAPURL, EnvTestDomain)
	}
	if config.Username == "" && !config.UseKerberos() {
		t.Skipf("Skipping test: %s must be set (or configure Kerberos)", EnvTestUsername)
	}
	if config.Password == "" && !config.UseKerberos() {
		t.Skipf("Skipping test: %s must be set (or configure Kerberos)", EnvTestPassword)
	}
	for _, name := range required {
		if os.Getenv(name) == "" {
			t.Skipf("Skipping test: %s must be set", name)
		}
	}

	return config
}

// testAccProviderConfig renders a provider block for the environment.
func testAccProviderConfig() string {
	config := GetTestConfig()

	var b strings.Builder
	b.WriteString("provider \"adex\" {\n")
	if config.LDAPURL != "" {
		fmt.Fprintf(&b, "  ldap_url = %q\n", config.LDAPURL)
	} else {
		fmt.Fprintf(&b, "  domain = %q\n", config.Domain)
	}
	if config.BaseDN != "" {
		fmt.Fprintf(&b, "  base_dn = %q\n", config.BaseDN)
	}
	if config.Username != "" {
		fmt.Fprintf(&b, "  username = %q\n", config.Username)
	}
	if config.UseKerberos() {
		fmt.Fprintf(&b, "  kerberos_realm = %q\n", config.Realm)
		fmt.Fprintf(&b, "  kerberos_keytab = %q\n", config.Keytab)
	} else {
		fmt.Fprintf(&b, "  password = %q\n", config.Password)
	}
	b.WriteString("}\n")

	return b.String()
}

// testAccClient opens a directory client outside Terraform, for checks
// against the server itself.
func testAccClient(t *testing.T) ldapclient.Client {
	t.Helper()

	config := GetTestConfig()
	ldapConfig := ldapclient.DefaultConfig()
	ldapConfig.Domain = config.Domain
	if config.LDAPURL != "" {
		ldapConfig.LDAPURLs = []string{config.LDAPURL}
	}
	ldapConfig.BaseDN = config.BaseDN
	ldapConfig.Username = config.Username
	ldapConfig.Password = config.Password
	ldapConfig.KerberosKeytab = config.Keytab
	ldapConfig.KerberosRealm = config.Realm

	client, err := ldapclient.NewClient(t.Context(), ldapConfig)
	if err != nil {
		t.Fatalf("Failed to create LDAP client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return client
}

// testAccUserExtensionAttribute reads extensionAttribute{index} of the test
// user directly.
func testAccUserExtensionAttribute(t *testing.T, client ldapclient.Client, index int) (string, error) {
	t.Helper()

	user, err := directory.OpenUser(t.Context(), client, GetTestConfig().UserDN, directory.WithLeaveOpen())
	if err != nil {
		return "", err
	}
	defer user.Close()

	return user.GetExtensionAttribute(index)
}

// Fixtures for unit tests against a mocked client.
const (
	testBaseDN  = "DC=example,DC=com"
	testCorpDN  = "OU=Corp,DC=example,DC=com"
	testOUDN    = "OU=Staff,OU=Corp,DC=example,DC=com"
	testUserDN  = "CN=John Doe,OU=Staff,OU=Corp,DC=example,DC=com"
	testGroupDN = "CN=Admins,OU=Staff,OU=Corp,DC=example,DC=com"
	testGUID    = "12345678-1234-5678-9abc-def012345678"
	testSID     = "S-1-5-21-1004336348-1177238915-682003330-1105"
)

// newTestProviderData returns provider data over a mock client whose
// expectations are asserted when the test ends.
func newTestProviderData(t *testing.T) (*ldapclient.ProviderData, *ldaptest.MockClient) {
	t.Helper()

	mc := &ldaptest.MockClient{}
	t.Cleanup(func() { mc.AssertExpectations(t) })

	return &ldapclient.ProviderData{
		Client:   mc,
		BaseDN:   testBaseDN,
		Resolver: ldapclient.NewResolver(mc, testBaseDN),
	}, mc
}

// expectEntry answers a base-scope read of dn with attrs.
func expectEntry(mc *ldaptest.MockClient, dn string, attrs map[string][]string) *mock.Call {
	return mc.On("Search", mock.Anything, ldaptest.SearchBase(dn, ldapclient.ScopeBaseObject)).
		Return(ldaptest.Entries(goldap.NewEntry(dn, attrs)), nil)
}

// expectMissing answers a base-scope read of dn with noSuchObject.
func expectMissing(mc *ldaptest.MockClient, dn string) *mock.Call {
	err := ldapclient.NewLDAPErrorWithDN("search", dn,
		goldap.NewError(goldap.LDAPResultNoSuchObject, errors.New("no such object")))
	return mc.On("Search", mock.Anything, ldaptest.SearchBase(dn, ldapclient.ScopeBaseObject)).
		Return(nil, err)
}

// expectChildren answers a one-level listing of dn.
func expectChildren(mc *ldaptest.MockClient, dn string, children ...string) *mock.Call {
	entries := make([]*goldap.Entry, 0, len(children))
	for _, child := range children {
		entries = append(entries, goldap.NewEntry(child, map[string][]string{"objectClass": {"top", "container"}}))
	}
	return mc.On("SearchWithPaging", mock.Anything, ldaptest.SearchBase(dn, ldapclient.ScopeSingleLevel)).
		Return(ldaptest.Entries(entries...), nil)
}

// testGUIDValue is testGUID as stored in objectGUID.
func testGUIDValue() string {
	return string(ldapclient.NewGUIDHandler().ToBytes(uuid.MustParse(testGUID)))
}

// testSIDValue is testSID as stored in objectSid.
func testSIDValue(t *testing.T) string {
	t.Helper()

	b, err := ldapclient.NewSIDHandler().ToBytes(testSID)
	require.NoError(t, err)
	return string(b)
}

// readDataSource configures d with pd and reads it. config sets attributes
// of the data source's configuration; the rest are null.
func readDataSource(t *testing.T, d datasource.DataSource, pd *ldapclient.ProviderData, config map[string]tftypes.Value) *datasource.ReadResponse {
	t.Helper()
	ctx := t.Context()

	configurable, ok := d.(datasource.DataSourceWithConfigure)
	require.True(t, ok)
	configureResp := &datasource.ConfigureResponse{}
	configurable.Configure(ctx, datasource.ConfigureRequest{ProviderData: pd}, configureResp)
	require.False(t, configureResp.Diagnostics.HasError(), "%v", configureResp.Diagnostics)

	schemaResp := &datasource.SchemaResponse{}
	d.Schema(ctx, datasource.SchemaRequest{}, schemaResp)
	require.False(t, schemaResp.Diagnostics.HasError(), "%v", schemaResp.Diagnostics)

	objectType, ok := schemaResp.Schema.Type().TerraformType(ctx).(tftypes.Object)
	require.True(t, ok)

	values := make(map[string]tftypes.Value, len(objectType.AttributeTypes))
	for name, attrType := range objectType.AttributeTypes {
		values[name] = tftypes.NewValue(attrType, nil)
	}
	maps.Copy(values, config)

	resp := &datasource.ReadResponse{
		State: tfsdk.State{Schema: schemaResp.Schema, Raw: tftypes.NewValue(objectType, nil)},
	}
	d.Read(ctx, datasource.ReadRequest{
		Config: tfsdk.Config{Schema: schemaResp.Schema, Raw: tftypes.NewValue(objectType, values)},
	}, resp)

	return resp
}

func stringValue(s string) tftypes.Value {
	return tftypes.NewValue(tftypes.String, s)
}

func listStrings(t *testing.T, list types.List) []string {
	t.Helper()

	var out []string
	require.False(t, list.ElementsAs(t.Context(), &out, false).HasError())
	return out
}

func mapStrings(t *testing.T, m types.Map) map[string]string {
	t.Helper()

	var out map[string]string
	require.False(t, m.ElementsAs(t.Context(), &out, false).HasError())
	return out
}
