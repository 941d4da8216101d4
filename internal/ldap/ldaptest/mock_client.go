// Package ldaptest provides a testify mock of ldap.Client.
package ldaptest

import (
	"context"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/mock"

	"github.com/isometry/terraform-provider-adex/internal/ldap"
)

var _ ldap.Client = (*MockClient)(nil)

// MockClient implements ldap.Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockClient) Search(ctx context.Context, req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*ldap.SearchResult)
	return result, args.Error(1)
}

func (m *MockClient) SearchWithPaging(ctx context.Context, req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*ldap.SearchResult)
	return result, args.Error(1)
}

func (m *MockClient) Add(ctx context.Context, req *ldap.AddRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockClient) Modify(ctx context.Context, req *ldap.ModifyRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockClient) ModifyDN(ctx context.Context, req *ldap.ModifyDNRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockClient) Delete(ctx context.Context, dn string) error {
	args := m.Called(ctx, dn)
	return args.Error(0)
}

func (m *MockClient) DeleteTree(ctx context.Context, dn string) error {
	args := m.Called(ctx, dn)
	return args.Error(0)
}

func (m *MockClient) GetBaseDN(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockClient) WhoAmI(ctx context.Context) (*ldap.WhoAmIResult, error) {
	args := m.Called(ctx)
	result, _ := args.Get(0).(*ldap.WhoAmIResult)
	return result, args.Error(1)
}

func (m *MockClient) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) Stats() ldap.PoolStats {
	args := m.Called()
	stats, _ := args.Get(0).(ldap.PoolStats)
	return stats
}

// Entries wraps entries in a SearchResult.
func Entries(entries ...*goldap.Entry) *ldap.SearchResult {
	return &ldap.SearchResult{Entries: entries, Total: len(entries)}
}

// SearchBase matches a SearchRequest by base DN and scope.
func SearchBase(baseDN string, scope ldap.SearchScope) any {
	return mock.MatchedBy(func(req *ldap.SearchRequest) bool {
		return req.BaseDN == baseDN && req.Scope == scope
	})
}
