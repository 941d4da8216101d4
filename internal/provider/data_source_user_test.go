package provider

import (
	"fmt"
	"regexp"
	"testing"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
	"github.com/hashicorp/terraform-plugin-testing/helper/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	ldapclient "github.com/isometry/terraform-provider-adex/internal/ldap"
	"github.com/isometry/terraform-provider-adex/internal/ldap/ldaptest"
)

func testUserAttributes(t *testing.T) map[string][]string {
	return map[string][]string{
		"objectClass":         {"top", "person", "organizationalPerson", "user"},
		"objectGUID":          {testGUIDValue()},
		"objectSid":           {testSIDValue(t)},
		"sAMAccountName":      {"jdoe"},
		"userPrincipalName":   {"jdoe@example.com"},
		"displayName":         {"John Doe"},
		"givenName":           {"John"},
		"sn":                  {"Doe"},
		"title":               {"Engineer"},
		"manager":             {"CN=Jane Roe,OU=Staff,OU=Corp,DC=example,DC=com"},
		"proxyAddresses":      {"smtp:jd@example.com", "SMTP:john@example.com", "sip:john@example.com"},
		"otherTelephone":      {"+1 555 0101", "+1 555 0102"},
		"extensionAttribute3": {"blue"},
		"countryCode":         {"840"},
		"userAccountControl":  {"514"},
		"sAMAccountType":      {"805306368"},
		"accountExpires":      {"135379296000000000"},
		"whenCreated":         {"20240115123000.0Z"},
	}
}

func TestUserDataSource_Read(t *testing.T) {
	t.Run("by dn", func(t *testing.T) {
		pd, mc := newTestProviderData(t)
		expectEntry(mc, testUserDN, testUserAttributes(t)).Once()

		resp := readDataSource(t, NewUserDataSource(), pd, map[string]tftypes.Value{
			"dn": stringValue(testUserDN),
		})
		require.False(t, resp.Diagnostics.HasError(), "%v", resp.Diagnostics)

		var data UserDataSourceModel
		require.False(t, resp.State.Get(t.Context(), &data).HasError())

		assert.Equal(t, testGUID, data.ID.ValueString())
		assert.Equal(t, testUserDN, data.DN.ValueString())
		assert.Equal(t, testSID, data.SID.ValueString())
		assert.Equal(t, "jdoe", data.SAMAccountName.ValueString())
		assert.Equal(t, "jdoe@example.com", data.UserPrincipalName.ValueString())
		assert.Equal(t, "CN=John Doe", data.Name.ValueString())
		assert.Equal(t, "user", data.SchemaClassName.ValueString())
		assert.Equal(t, "John", data.FirstName.ValueString())
		assert.Equal(t, "Doe", data.LastName.ValueString())
		assert.Equal(t, "Engineer", data.Title.ValueString())
		assert.Equal(t, "CN=Jane Roe,OU=Staff,OU=Corp,DC=example,DC=com", data.Manager.ValueString())
		assert.True(t, data.Department.IsNull(), "absent attributes are null")

		assert.Equal(t, "john@example.com", data.PrimarySMTPAddress.ValueString())
		assert.Equal(t, "john@example.com", data.PrimarySIPAddress.ValueString())
		assert.Len(t, data.ProxyAddresses.Elements(), 3)
		assert.Equal(t, []string{"+1 555 0101", "+1 555 0102"}, listStrings(t, data.OtherTelephoneNumbers))
		assert.Empty(t, data.OtherMobile.Elements())
		assert.Equal(t, map[string]string{"3": "blue"}, mapStrings(t, data.ExtensionAttributes))

		assert.Equal(t, int64(840), data.CountryCode.ValueInt64())
		assert.False(t, data.Enabled.ValueBool())
		assert.Equal(t, int64(514), data.UserAccountControl.ValueInt64())
		assert.Equal(t, int64(805306368), data.SAMAccountType.ValueInt64())
		assert.Equal(t, "2030-01-01T00:00:00Z", data.ExpirationDate.ValueString())
		assert.True(t, data.LastLogon.IsNull())
		assert.Equal(t, "2024-01-15T12:30:00Z", data.WhenCreated.ValueString())
	})

	t.Run("by sam account name", func(t *testing.T) {
		pd, mc := newTestProviderData(t)
		mc.On("Search", mock.Anything, mock.MatchedBy(func(req *ldapclient.SearchRequest) bool {
			return req.BaseDN == testBaseDN && req.Filter == "(sAMAccountName=jdoe)"
		})).Return(ldaptest.Entries(goldap.NewEntry(testUserDN, nil)), nil).Once()
		expectEntry(mc, testUserDN, testUserAttributes(t)).Once()

		resp := readDataSource(t, NewUserDataSource(), pd, map[string]tftypes.Value{
			"sam_account_name": stringValue(`EXAMPLE\jdoe`),
		})
		require.False(t, resp.Diagnostics.HasError(), "%v", resp.Diagnostics)

		var data UserDataSourceModel
		require.False(t, resp.State.Get(t.Context(), &data).HasError())

		assert.Equal(t, `EXAMPLE\jdoe`, data.SAMAccountName.ValueString(), "configured lookup is kept")
		assert.Equal(t, testUserDN, data.DN.ValueString())
	})

	t.Run("user without userAccountControl", func(t *testing.T) {
		pd, mc := newTestProviderData(t)
		expectEntry(mc, testUserDN, map[string][]string{
			"objectClass": {"top", "person", "organizationalPerson", "user"},
		}).Once()

		resp := readDataSource(t, NewUserDataSource(), pd, map[string]tftypes.Value{
			"dn": stringValue(testUserDN),
		})
		require.False(t, resp.Diagnostics.HasError(), "%v", resp.Diagnostics)

		var data UserDataSourceModel
		require.False(t, resp.State.Get(t.Context(), &data).HasError())

		assert.True(t, data.Enabled.ValueBool())
		assert.True(t, data.UserAccountControl.IsNull())
		assert.True(t, data.ExpirationDate.IsNull())
		assert.False(t, data.ExtensionAttributes.IsNull())
		assert.Empty(t, data.ExtensionAttributes.Elements())
	})

	t.Run("not a user", func(t *testing.T) {
		pd, mc := newTestProviderData(t)
		expectEntry(mc, testGroupDN, map[string][]string{"objectClass": {"top", "group"}}).Once()

		resp := readDataSource(t, NewUserDataSource(), pd, map[string]tftypes.Value{
			"dn": stringValue(testGroupDN),
		})
		require.True(t, resp.Diagnostics.HasError())
		assert.Equal(t, "Object Is Not a User", resp.Diagnostics.Errors()[0].Summary())
	})

	t.Run("not found", func(t *testing.T) {
		pd, mc := newTestProviderData(t)
		expectMissing(mc, testUserDN).Once()

		resp := readDataSource(t, NewUserDataSource(), pd, map[string]tftypes.Value{
			"dn": stringValue(testUserDN),
		})
		require.True(t, resp.Diagnostics.HasError())
		assert.Equal(t, "User Not Found", resp.Diagnostics.Errors()[0].Summary())
	})
}

func TestAccUserDataSource(t *testing.T) {
	config := testAccPreCheck(t, EnvTestUserDN)

	resource.Test(t, resource.TestCase{
		ProtoV6ProviderFactories: testAccProtoV6ProviderFactories,
		Steps: []resource.TestStep{
			{
				Config: testAccUserDataSourceConfig("dn", config.UserDN),
				Check: resource.ComposeAggregateTestCheckFunc(
					resource.TestCheckResourceAttr("data.adex_user.test", "dn", config.UserDN),
					resource.TestCheckResourceAttr("data.adex_user.test", "schema_class_name", "user"),
					resource.TestCheckResourceAttrSet("data.adex_user.test", "id"),
					resource.TestCheckResourceAttrSet("data.adex_user.test", "sid"),
					resource.TestCheckResourceAttrSet("data.adex_user.test", "sam_account_name"),
					resource.TestCheckResourceAttrSet("data.adex_user.test", "enabled"),
					resource.TestCheckResourceAttrSet("data.adex_user.test", "when_created"),
				),
			},
		},
	})
}

func TestAccUserDataSource_bySAMAccountName(t *testing.T) {
	config := testAccPreCheck(t, EnvTestUserDN)

	resource.Test(t, resource.TestCase{
		ProtoV6ProviderFactories: testAccProtoV6ProviderFactories,
		Steps: []resource.TestStep{
			{
				Config: testAccUserDataSourceConfig("dn", config.UserDN) + `
data "adex_user" "by_sam" {
  sam_account_name = data.adex_user.test.sam_account_name
}
`,
				Check: resource.ComposeAggregateTestCheckFunc(
					resource.TestCheckResourceAttrPair("data.adex_user.by_sam", "id", "data.adex_user.test", "id"),
					resource.TestCheckResourceAttrPair("data.adex_user.by_sam", "sid", "data.adex_user.test", "sid"),
				),
			},
		},
	})
}

func TestAccUserDataSource_configValidation(t *testing.T) {
	testAccPreCheck(t)

	resource.Test(t, resource.TestCase{
		ProtoV6ProviderFactories: testAccProtoV6ProviderFactories,
		Steps: []resource.TestStep{
			{
				Config:      testAccProviderConfig() + `data "adex_user" "test" {}`,
				ExpectError: regexp.MustCompile(`Invalid Attribute Combination`),
			},
			{
				Config: testAccProviderConfig() + `
data "adex_user" "test" {
  sam_account_name    = "jdoe"
  user_principal_name = "jdoe@example.com"
}
`,
				ExpectError: regexp.MustCompile(`Invalid Attribute Combination`),
			},
			{
				Config:      testAccUserDataSourceConfig("dn", "CN=No Such User,"+GetTestConfig().BaseDN),
				ExpectError: regexp.MustCompile(`User Not Found`),
			},
		},
	})
}

func testAccUserDataSourceConfig(attribute, value string) string {
	return testAccProviderConfig() + fmt.Sprintf(`
data "adex_user" "test" {
  %s = %q
}
`, attribute, value)
}
