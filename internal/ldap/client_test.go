package ldap

import (
	"context"
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockConn struct {
	mock.Mock
}

func (m *mockConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	args := m.Called(req)
	result, _ := args.Get(0).(*ldap.SearchResult)
	return result, args.Error(1)
}

func (m *mockConn) Add(req *ldap.AddRequest) error {
	return m.Called(req).Error(0)
}

func (m *mockConn) Modify(req *ldap.ModifyRequest) error {
	return m.Called(req).Error(0)
}

func (m *mockConn) ModifyDN(req *ldap.ModifyDNRequest) error {
	return m.Called(req).Error(0)
}

func (m *mockConn) Del(req *ldap.DelRequest) error {
	return m.Called(req).Error(0)
}

func (m *mockConn) WhoAmI(controls []ldap.Control) (*ldap.WhoAmIResult, error) {
	args := m.Called(controls)
	result, _ := args.Get(0).(*ldap.WhoAmIResult)
	return result, args.Error(1)
}

func newTestClient(t *testing.T, mc *mockConn) *client {
	t.Helper()
	t.Cleanup(func() {
		mc.AssertExpectations(t)
	})
	return &client{
		config: fastRetryConfig(1),
		acquire: func(context.Context) (conn, func(), error) {
			return mc, func() {}, nil
		},
		logContext: context.Background(),
	}
}

func delFor(dn string, subtree bool) any {
	return mock.MatchedBy(func(req *ldap.DelRequest) bool {
		if req.DN != dn {
			return false
		}
		return subtree == (ldap.FindControl(req.Controls, ldap.ControlTypeSubtreeDelete) != nil)
	})
}

func TestClient_Search(t *testing.T) {
	conn := &mockConn{}
	c := newTestClient(t, conn)

	entries := []*ldap.Entry{
		ldap.NewEntry("CN=a,DC=example,DC=com", nil),
		ldap.NewEntry("CN=b,DC=example,DC=com", nil),
	}
	conn.On("Search", mock.MatchedBy(func(req *ldap.SearchRequest) bool {
		return req.BaseDN == "DC=example,DC=com" && req.Filter == "(cn=*)" && req.SizeLimit == 2
	})).Return(&ldap.SearchResult{Entries: entries}, nil).Once()

	result, err := c.Search(context.Background(), &SearchRequest{
		BaseDN:    "DC=example,DC=com",
		Scope:     ScopeWholeSubtree,
		Filter:    "(cn=*)",
		SizeLimit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.True(t, result.HasMore)

	_, err = c.Search(context.Background(), nil)
	assert.Error(t, err)
}

func TestClient_SearchNotFound(t *testing.T) {
	conn := &mockConn{}
	c := newTestClient(t, conn)

	conn.On("Search", mock.Anything).
		Return(nil, ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("missing"))).Once()

	_, err := c.Search(context.Background(), &SearchRequest{BaseDN: "OU=gone,DC=example,DC=com", Filter: "(objectClass=*)"})
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))

	var ldapErr *LDAPError
	require.ErrorAs(t, err, &ldapErr)
	assert.Equal(t, "OU=gone,DC=example,DC=com", ldapErr.DN)
}

func TestClient_SearchWithPaging(t *testing.T) {
	conn := &mockConn{}
	c := newTestClient(t, conn)

	withCookie := ldap.NewControlPaging(pageSize)
	withCookie.SetCookie([]byte("next"))

	conn.On("Search", mock.MatchedBy(func(req *ldap.SearchRequest) bool {
		paging, ok := ldap.FindControl(req.Controls, ldap.ControlTypePaging).(*ldap.ControlPaging)
		return ok && len(paging.Cookie) == 0
	})).Return(&ldap.SearchResult{
		Entries:  []*ldap.Entry{ldap.NewEntry("CN=a,DC=example,DC=com", nil)},
		Controls: []ldap.Control{withCookie},
	}, nil).Once()

	conn.On("Search", mock.MatchedBy(func(req *ldap.SearchRequest) bool {
		paging, ok := ldap.FindControl(req.Controls, ldap.ControlTypePaging).(*ldap.ControlPaging)
		return ok && string(paging.Cookie) == "next"
	})).Return(&ldap.SearchResult{
		Entries: []*ldap.Entry{ldap.NewEntry("CN=b,DC=example,DC=com", nil)},
	}, nil).Once()

	result, err := c.SearchWithPaging(context.Background(), &SearchRequest{
		BaseDN: "DC=example,DC=com",
		Scope:  ScopeWholeSubtree,
		Filter: "(objectClass=user)",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.False(t, result.HasMore)
	assert.Equal(t, "CN=b,DC=example,DC=com", result.Entries[1].DN)
}

func TestClient_Add(t *testing.T) {
	conn := &mockConn{}
	c := newTestClient(t, conn)

	conn.On("Add", mock.MatchedBy(func(req *ldap.AddRequest) bool {
		return req.DN == "CN=g,DC=example,DC=com" &&
			len(req.Attributes) == 2 &&
			req.Attributes[0].Type == "objectClass" &&
			req.Attributes[1].Type == "sAMAccountName"
	})).Return(nil).Once()

	err := c.Add(context.Background(), &AddRequest{
		DN: "CN=g,DC=example,DC=com",
		Attributes: map[string][]string{
			"sAMAccountName": {"g"},
			"objectClass":    {"top", "group"},
		},
	})
	require.NoError(t, err)

	assert.Error(t, c.Add(context.Background(), nil))
	assert.Error(t, c.Add(context.Background(), &AddRequest{}))
}

func TestClient_Modify(t *testing.T) {
	conn := &mockConn{}
	c := newTestClient(t, conn)

	conn.On("Modify", mock.MatchedBy(func(req *ldap.ModifyRequest) bool {
		if req.DN != "CN=u,DC=example,DC=com" || len(req.Changes) != 4 {
			return false
		}
		return req.Changes[0].Operation == ldap.DeleteAttribute &&
			req.Changes[0].Modification.Type == "unicodePwd" &&
			len(req.Changes[0].Modification.Vals) == 1 &&
			req.Changes[1].Operation == ldap.AddAttribute &&
			req.Changes[2].Operation == ldap.ReplaceAttribute &&
			req.Changes[3].Operation == ldap.DeleteAttribute &&
			req.Changes[3].Modification.Type == "info"
	})).Return(nil).Once()

	err := c.Modify(context.Background(), &ModifyRequest{
		DN:                "CN=u,DC=example,DC=com",
		DeleteValues:      map[string][]string{"unicodePwd": {"old"}},
		AddAttributes:     map[string][]string{"otherTelephone": {"555"}},
		ReplaceAttributes: map[string][]string{"l": {"Berlin"}},
		DeleteAttributes:  []string{"info"},
	})
	require.NoError(t, err)
}

func TestClient_Modify_empty(t *testing.T) {
	conn := &mockConn{}
	c := newTestClient(t, conn)

	require.NoError(t, c.Modify(context.Background(), &ModifyRequest{DN: "CN=u,DC=example,DC=com"}))
	conn.AssertNotCalled(t, "Modify", mock.Anything)
}

func TestClient_RetryTakesFreshConnection(t *testing.T) {
	dead, healthy := &mockConn{}, &mockConn{}
	dead.On("Del", mock.Anything).Return(ldap.NewError(ldap.ErrorNetwork, errors.New("connection reset"))).Once()
	healthy.On("Del", mock.Anything).Return(nil).Once()

	handed := []*mockConn{dead, healthy}
	var acquired, released int
	c := &client{
		config: fastRetryConfig(2),
		acquire: func(context.Context) (conn, func(), error) {
			mc := handed[acquired]
			acquired++
			return mc, func() { released++ }, nil
		},
		logContext: context.Background(),
	}

	require.NoError(t, c.Delete(context.Background(), "CN=u,DC=example,DC=com"))
	assert.Equal(t, 2, acquired)
	assert.Equal(t, 2, released)
	dead.AssertExpectations(t)
	healthy.AssertExpectations(t)
}

func TestClient_ModifyDN(t *testing.T) {
	conn := &mockConn{}
	c := newTestClient(t, conn)

	conn.On("ModifyDN", mock.MatchedBy(func(req *ldap.ModifyDNRequest) bool {
		return req.DN == "CN=u,OU=A,DC=example,DC=com" &&
			req.NewRDN == "CN=v" &&
			req.DeleteOldRDN &&
			req.NewSuperior == "OU=B,DC=example,DC=com"
	})).Return(nil).Once()

	require.NoError(t, c.ModifyDN(context.Background(), &ModifyDNRequest{
		DN:           "CN=u,OU=A,DC=example,DC=com",
		NewRDN:       "CN=v",
		DeleteOldRDN: true,
		NewSuperior:  "OU=B,DC=example,DC=com",
	}))

	assert.Error(t, c.ModifyDN(context.Background(), &ModifyDNRequest{DN: "CN=u"}))
}

func TestClient_DeleteTree(t *testing.T) {
	t.Run("subtree control accepted", func(t *testing.T) {
		conn := &mockConn{}
		c := newTestClient(t, conn)

		conn.On("Del", delFor("OU=A,DC=example,DC=com", true)).Return(nil).Once()

		require.NoError(t, c.DeleteTree(context.Background(), "OU=A,DC=example,DC=com"))
	})

	t.Run("recursive fallback", func(t *testing.T) {
		conn := &mockConn{}
		c := newTestClient(t, conn)

		root := "OU=A,DC=example,DC=com"
		child := "OU=B,OU=A,DC=example,DC=com"
		leaf := "CN=u,OU=B,OU=A,DC=example,DC=com"

		conn.On("Del", delFor(root, true)).
			Return(ldap.NewError(ldap.LDAPResultUnavailableCriticalExtension, errors.New("unsupported"))).Once()

		children := map[string][]*ldap.Entry{
			root:  {ldap.NewEntry(child, nil)},
			child: {ldap.NewEntry(leaf, nil)},
			leaf:  nil,
		}
		for base, entries := range children {
			conn.On("Search", mock.MatchedBy(func(req *ldap.SearchRequest) bool {
				return req.BaseDN == base && req.Scope == ldap.ScopeSingleLevel
			})).Return(&ldap.SearchResult{Entries: entries}, nil).Once()
		}

		var order []string
		for _, dn := range []string{leaf, child, root} {
			conn.On("Del", delFor(dn, false)).Run(func(args mock.Arguments) {
				order = append(order, args.Get(0).(*ldap.DelRequest).DN)
			}).Return(nil).Once()
		}

		require.NoError(t, c.DeleteTree(context.Background(), root))
		assert.Equal(t, []string{leaf, child, root}, order)
	})

	t.Run("other errors are returned", func(t *testing.T) {
		conn := &mockConn{}
		c := newTestClient(t, conn)

		conn.On("Del", delFor("OU=A,DC=example,DC=com", true)).
			Return(ldap.NewError(ldap.LDAPResultInsufficientAccessRights, errors.New("denied"))).Once()

		err := c.DeleteTree(context.Background(), "OU=A,DC=example,DC=com")
		require.Error(t, err)
		assert.True(t, IsPermissionError(err))
	})
}

func TestClient_WhoAmI(t *testing.T) {
	conn := &mockConn{}
	c := newTestClient(t, conn)

	conn.On("WhoAmI", mock.Anything).Return(&ldap.WhoAmIResult{AuthzID: "u:EXAMPLE\\jdoe"}, nil).Once()

	result, err := c.WhoAmI(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sam", result.Format)
	assert.Equal(t, "EXAMPLE\\jdoe", result.SAMAccountName)
}

func TestParseAuthzID(t *testing.T) {
	tests := []struct {
		authzID    string
		wantFormat string
	}{
		{"dn:CN=John Doe,OU=Users,DC=example,DC=com", "dn"},
		{"u:jdoe@example.com", "upn"},
		{"u:EXAMPLE\\jdoe", "sam"},
		{"S-1-5-21-1004336348-1177238915-682003330-512", "sid"},
		{"", "empty"},
		{"anonymous", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.authzID, func(t *testing.T) {
			result := parseAuthzID(tt.authzID)
			assert.Equal(t, tt.wantFormat, result.Format)
			assert.Equal(t, tt.authzID, result.AuthzID)
		})
	}
}

func TestClient_GetBaseDN(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		c := newTestClient(t, &mockConn{})
		c.config.BaseDN = "DC=example,DC=com"

		baseDN, err := c.GetBaseDN(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "DC=example,DC=com", baseDN)
	})

	t.Run("root DSE", func(t *testing.T) {
		conn := &mockConn{}
		c := newTestClient(t, conn)

		conn.On("Search", mock.MatchedBy(func(req *ldap.SearchRequest) bool {
			return req.BaseDN == "" && req.Scope == ldap.ScopeBaseObject
		})).Return(&ldap.SearchResult{Entries: []*ldap.Entry{
			ldap.NewEntry("", map[string][]string{"defaultNamingContext": {"DC=corp,DC=example,DC=com"}}),
		}}, nil).Once()

		baseDN, err := c.GetBaseDN(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "DC=corp,DC=example,DC=com", baseDN)
	})
}
