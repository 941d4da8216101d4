package ldap_test

import (
	"context"
	"errors"
	"testing"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/isometry/terraform-provider-adex/internal/ldap"
	"github.com/isometry/terraform-provider-adex/internal/ldap/ldaptest"
)

const baseDN = "DC=example,DC=com"

func TestDetectIdentifierType(t *testing.T) {
	tests := []struct {
		identifier string
		want       ldap.IdentifierType
	}{
		{"CN=John Doe,OU=Users,DC=example,DC=com", ldap.IdentifierTypeDN},
		{"ou=Sales,dc=example,dc=com", ldap.IdentifierTypeDN},
		{"12345678-1234-5678-9abc-def012345678", ldap.IdentifierTypeGUID},
		{"S-1-5-21-1004336348-1177238915-682003330-512", ldap.IdentifierTypeSID},
		{"jdoe@example.com", ldap.IdentifierTypeUPN},
		{"EXAMPLE\\jdoe", ldap.IdentifierTypeSAM},
		{"jdoe", ldap.IdentifierTypeSAM},
		{"", ldap.IdentifierTypeUnknown},
		{"two words", ldap.IdentifierTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			assert.Equal(t, tt.want, ldap.DetectIdentifierType(tt.identifier))
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	userDN := "CN=John Doe,OU=Users,DC=example,DC=com"

	tests := []struct {
		name       string
		identifier string
		wantFilter string
	}{
		{
			name:       "UPN",
			identifier: "jdoe@example.com",
			wantFilter: "(userPrincipalName=jdoe@example.com)",
		},
		{
			name:       "SAM with domain",
			identifier: "EXAMPLE\\jdoe",
			wantFilter: "(sAMAccountName=jdoe)",
		},
		{
			name:       "SID",
			identifier: "S-1-5-21-1004336348-1177238915-682003330-1104",
			wantFilter: "(objectSid=S-1-5-21-1004336348-1177238915-682003330-1104)",
		},
		{
			name:       "GUID",
			identifier: "12345678-1234-5678-9abc-def012345678",
			wantFilter: `(objectGUID=\78\56\34\12\34\12\78\56\9a\bc\de\f0\12\34\56\78)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &ldaptest.MockClient{}
			client.On("Search", mock.Anything, mock.MatchedBy(func(req *ldap.SearchRequest) bool {
				return req.BaseDN == baseDN && req.Filter == tt.wantFilter && req.Scope == ldap.ScopeWholeSubtree
			})).Return(ldaptest.Entries(goldap.NewEntry("cn=John Doe,ou=Users,dc=example,dc=com", nil)), nil).Once()

			dn, err := ldap.NewResolver(client, baseDN).ResolveToDN(context.Background(), tt.identifier)
			require.NoError(t, err)
			assert.Equal(t, userDN, dn)
			client.AssertExpectations(t)
		})
	}
}

func TestResolver_ResolveDN(t *testing.T) {
	client := &ldaptest.MockClient{}
	client.On("Search", mock.Anything, ldaptest.SearchBase("CN=jdoe,DC=example,DC=com", ldap.ScopeBaseObject)).
		Return(ldaptest.Entries(goldap.NewEntry("CN=jdoe,DC=example,DC=com", map[string][]string{
			"distinguishedName": {"CN=JDoe,DC=Example,DC=com"},
		})), nil).Once()

	dn, err := ldap.NewResolver(client, baseDN).ResolveToDN(context.Background(), "cn=jdoe,dc=example,dc=com")
	require.NoError(t, err)
	assert.Equal(t, "CN=JDoe,DC=Example,DC=com", dn)
	client.AssertExpectations(t)
}

func TestResolver_NotFound(t *testing.T) {
	client := &ldaptest.MockClient{}
	client.On("Search", mock.Anything, mock.Anything).Return(ldaptest.Entries(), nil).Once()

	_, err := ldap.NewResolver(client, baseDN).Resolve(context.Background(), ldap.IdentifierTypeUPN, "nobody@example.com")
	require.Error(t, err)
	assert.True(t, ldap.IsNotFoundError(err))
}

func TestResolver_Ambiguous(t *testing.T) {
	client := &ldaptest.MockClient{}
	client.On("Search", mock.Anything, mock.Anything).Return(ldaptest.Entries(
		goldap.NewEntry("CN=a,DC=example,DC=com", nil),
		goldap.NewEntry("CN=b,DC=example,DC=com", nil),
	), nil).Once()

	_, err := ldap.NewResolver(client, baseDN).Resolve(context.Background(), ldap.IdentifierTypeSAM, "dup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than one")
}

func TestResolver_DiscoversBaseDN(t *testing.T) {
	client := &ldaptest.MockClient{}
	client.On("GetBaseDN", mock.Anything).Return(baseDN, nil).Once()
	client.On("Search", mock.Anything, ldaptest.SearchBase(baseDN, ldap.ScopeWholeSubtree)).
		Return(ldaptest.Entries(goldap.NewEntry("CN=a,DC=example,DC=com", nil)), nil).Once()

	dn, err := ldap.NewResolver(client, "").Resolve(context.Background(), ldap.IdentifierTypeSAM, "a")
	require.NoError(t, err)
	assert.Equal(t, "CN=a,DC=example,DC=com", dn)
	client.AssertExpectations(t)
}

func TestResolver_SearchError(t *testing.T) {
	client := &ldaptest.MockClient{}
	client.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

	_, err := ldap.NewResolver(client, baseDN).Resolve(context.Background(), ldap.IdentifierTypeUPN, "jdoe@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	_, err = ldap.NewResolver(client, baseDN).ResolveToDN(context.Background(), "two words")
	assert.Error(t, err)
}
