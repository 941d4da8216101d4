package ldap

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Paged search limits.
const (
	pageSize          = 1000
	maxPagesPerSearch = 1000
	maxSearchDuration = 30 * time.Minute
)

var (
	dnPattern  = regexp.MustCompile(`(?i)^(CN|OU|DC|O|L|ST|C|UID)=`)
	sidPattern = regexp.MustCompile(`^S-\d+-\d+(-\d+)*$`)
)

// conn is the subset of *ldap.Conn used by the client.
type conn interface {
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Add(req *ldap.AddRequest) error
	Modify(req *ldap.ModifyRequest) error
	ModifyDN(req *ldap.ModifyDNRequest) error
	Del(req *ldap.DelRequest) error
	WhoAmI(controls []ldap.Control) (*ldap.WhoAmIResult, error)
}

// acquireFunc hands out a connection and a function that releases it.
type acquireFunc func(ctx context.Context) (conn, func(), error)

// client implements the Client interface.
type client struct {
	pool       ConnectionPool
	config     *ConnectionConfig
	acquire    acquireFunc
	logContext context.Context // Context with configured subsystems for logging
}

// NewClient creates a new LDAP client with connection pooling.
func NewClient(ctx context.Context, config *ConnectionConfig) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Creating new LDAP client", map[string]any{
		"domain":          config.Domain,
		"ldap_urls_count": len(config.LDAPURLs),
		"auth_method":     config.GetAuthMethod().String(),
		"use_tls":         config.UseTLS,
		"max_connections": config.MaxConnections,
	})

	start := time.Now()
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		tflog.SubsystemError(ctx, SubsystemLDAP, "Failed to create connection pool", map[string]any{
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	c := &client{
		pool:       pool,
		config:     config,
		logContext: ctx,
	}
	c.acquire = c.acquireFromPool

	tflog.SubsystemInfo(ctx, SubsystemLDAP, "LDAP client created successfully", map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
		"pool_size":   config.MaxConnections,
	})

	return c, nil
}

func (c *client) acquireFromPool(ctx context.Context) (conn, func(), error) {
	pooled, err := c.pool.Get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return pooled.Conn(), pooled.Close, nil
}

// do runs op with retry, wrapping failures as LDAPError. Each attempt takes
// its own pooled connection, so a retry after a dropped connection is not
// sent down the same socket.
func (c *client) do(ctx context.Context, operation, dn string, op func(conn) error) error {
	err := retry(ctx, c.config, func() error {
		conn, release, err := c.acquire(ctx)
		if err != nil {
			return err
		}
		defer release()

		return op(conn)
	})
	if err != nil {
		return NewLDAPErrorWithDN(operation, dn, err)
	}
	return nil
}

// Connect verifies that a connection can be established and used.
func (c *client) Connect(ctx context.Context) error {
	return LogOperation(ctx, SubsystemLDAP, "connection_test", map[string]any{
		"domain": c.config.Domain,
	}, func() error {
		return c.Ping(ctx)
	})
}

// Close closes the client and all its connections.
func (c *client) Close() error {
	if c.pool == nil {
		return nil
	}
	return c.pool.Close()
}

// Search performs an LDAP search.
func (c *client) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req == nil {
		return nil, errors.New("search request cannot be nil")
	}

	fields := searchFields(req)
	start := time.Now()

	var result *ldap.SearchResult
	err := c.do(ctx, "search", req.BaseDN, func(conn conn) error {
		var searchErr error
		result, searchErr = conn.Search(toLDAPSearchRequest(req, req.SizeLimit, nil))
		return searchErr
	})
	if err != nil {
		LogLDAPError(ctx, SubsystemLDAP, "search", err, fields)
		return nil, err
	}

	hasMore := req.SizeLimit > 0 && len(result.Entries) >= req.SizeLimit

	fields["duration_ms"] = time.Since(start).Milliseconds()
	fields["entries_found"] = len(result.Entries)
	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Search completed", fields)

	return &SearchResult{
		Entries: result.Entries,
		Total:   len(result.Entries),
		HasMore: hasMore,
	}, nil
}

// SearchWithPaging performs an LDAP search using the paged results control.
func (c *client) SearchWithPaging(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req == nil {
		return nil, errors.New("search request cannot be nil")
	}

	fields := searchFields(req)
	start := time.Now()

	conn, release, err := c.acquire(ctx)
	if err != nil {
		LogLDAPError(ctx, SubsystemLDAP, "get_connection", err, fields)
		return nil, err
	}
	defer release()

	var entries []*ldap.Entry
	paging := ldap.NewControlPaging(pageSize)

	for page := 1; ; page++ {
		if page > maxPagesPerSearch || time.Since(start) > maxSearchDuration {
			tflog.SubsystemError(ctx, SubsystemLDAP, "Paged search exceeded its limits, terminating", map[string]any{
				"base_dn":       req.BaseDN,
				"pages":         page - 1,
				"entries_found": len(entries),
			})
			return &SearchResult{Entries: entries, Total: len(entries), HasMore: true}, nil
		}

		if err := ctx.Err(); err != nil {
			return &SearchResult{Entries: entries, Total: len(entries), HasMore: true}, err
		}

		var result *ldap.SearchResult
		err := retry(ctx, c.config, func() error {
			var searchErr error
			result, searchErr = conn.Search(toLDAPSearchRequest(req, 0, []ldap.Control{paging}))
			return searchErr
		})
		if err != nil {
			wrapped := NewLDAPErrorWithDN("paged_search", req.BaseDN, err)
			LogLDAPError(ctx, SubsystemLDAP, "paged_search", wrapped, fields)
			return nil, wrapped
		}

		entries = append(entries, result.Entries...)

		tflog.SubsystemTrace(ctx, SubsystemLDAP, "Completed search page", map[string]any{
			"page":          page,
			"page_entries":  len(result.Entries),
			"total_entries": len(entries),
		})

		response, ok := ldap.FindControl(result.Controls, ldap.ControlTypePaging).(*ldap.ControlPaging)
		if !ok || len(response.Cookie) == 0 {
			break
		}
		paging.SetCookie(response.Cookie)
	}

	fields["duration_ms"] = time.Since(start).Milliseconds()
	fields["total_entries"] = len(entries)
	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Paged search completed", fields)

	return &SearchResult{Entries: entries, Total: len(entries)}, nil
}

// Add creates a new LDAP entry.
func (c *client) Add(ctx context.Context, req *AddRequest) error {
	if req == nil {
		return errors.New("add request cannot be nil")
	}
	if req.DN == "" {
		return errors.New("DN cannot be empty")
	}

	ldapReq := ldap.NewAddRequest(req.DN, nil)
	for _, name := range sortedKeys(req.Attributes) {
		ldapReq.Attribute(name, req.Attributes[name])
	}

	return c.do(ctx, "add", req.DN, func(conn conn) error {
		return conn.Add(ldapReq)
	})
}

// Modify modifies an existing LDAP entry.
func (c *client) Modify(ctx context.Context, req *ModifyRequest) error {
	if req == nil {
		return errors.New("modify request cannot be nil")
	}
	if req.DN == "" {
		return errors.New("DN cannot be empty")
	}
	if req.IsEmpty() {
		tflog.SubsystemTrace(ctx, SubsystemLDAP, "Skipping empty modify", map[string]any{"dn": req.DN})
		return nil
	}

	ldapReq := ldap.NewModifyRequest(req.DN, nil)
	for _, name := range sortedKeys(req.DeleteValues) {
		ldapReq.Delete(name, req.DeleteValues[name])
	}
	for _, name := range sortedKeys(req.AddAttributes) {
		ldapReq.Add(name, req.AddAttributes[name])
	}
	for _, name := range sortedKeys(req.ReplaceAttributes) {
		ldapReq.Replace(name, req.ReplaceAttributes[name])
	}
	for _, name := range req.DeleteAttributes {
		ldapReq.Delete(name, []string{})
	}

	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Modifying entry", map[string]any{
		"dn":      req.DN,
		"changes": len(ldapReq.Changes),
	})

	return c.do(ctx, "modify", req.DN, func(conn conn) error {
		return conn.Modify(ldapReq)
	})
}

// ModifyDN moves or renames an LDAP entry.
func (c *client) ModifyDN(ctx context.Context, req *ModifyDNRequest) error {
	if req == nil {
		return errors.New("modify DN request cannot be nil")
	}
	if req.DN == "" {
		return errors.New("DN cannot be empty")
	}
	if req.NewRDN == "" {
		return errors.New("new RDN cannot be empty")
	}

	ldapReq := ldap.NewModifyDNRequest(req.DN, req.NewRDN, req.DeleteOldRDN, req.NewSuperior)

	return c.do(ctx, "modify_dn", req.DN, func(conn conn) error {
		return conn.ModifyDN(ldapReq)
	})
}

// Delete removes a leaf LDAP entry.
func (c *client) Delete(ctx context.Context, dn string) error {
	if dn == "" {
		return errors.New("DN cannot be empty")
	}

	return c.do(ctx, "delete", dn, func(conn conn) error {
		return conn.Del(ldap.NewDelRequest(dn, nil))
	})
}

// DeleteTree removes an entry and everything beneath it. The subtree delete
// control is tried first; servers that reject it get a depth-first delete.
func (c *client) DeleteTree(ctx context.Context, dn string) error {
	if dn == "" {
		return errors.New("DN cannot be empty")
	}

	err := c.do(ctx, "delete_tree", dn, func(conn conn) error {
		return conn.Del(ldap.NewDelRequest(dn, []ldap.Control{ldap.NewControlSubtreeDelete()}))
	})
	if err == nil {
		return nil
	}

	if !IsLDAPResultCode(err, ldap.LDAPResultUnavailableCriticalExtension) &&
		!IsLDAPResultCode(err, ldap.LDAPResultNotAllowedOnNonLeaf) &&
		!IsLDAPResultCode(err, ldap.LDAPResultUnwillingToPerform) {
		return err
	}

	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Subtree delete control rejected, deleting recursively", map[string]any{
		"dn":    dn,
		"error": err.Error(),
	})
	return c.deleteRecursive(ctx, dn)
}

func (c *client) deleteRecursive(ctx context.Context, dn string) error {
	children, err := c.SearchWithPaging(ctx, &SearchRequest{
		BaseDN:     dn,
		Scope:      ScopeSingleLevel,
		Filter:     "(objectClass=*)",
		Attributes: []string{"1.1"},
	})
	if err != nil {
		return err
	}

	for _, child := range children.Entries {
		if err := c.deleteRecursive(ctx, child.DN); err != nil {
			return err
		}
	}

	return c.Delete(ctx, dn)
}

// Ping tests connectivity to the LDAP server.
func (c *client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", "", func(conn conn) error {
		_, err := conn.Search(rootDSERequest("defaultNamingContext"))
		return err
	})
}

// Stats returns pool statistics.
func (c *client) Stats() PoolStats {
	if c.pool == nil {
		return PoolStats{}
	}
	return c.pool.Stats()
}

// WhoAmI performs the LDAP Who Am I? extended operation.
func (c *client) WhoAmI(ctx context.Context) (*WhoAmIResult, error) {
	var result *ldap.WhoAmIResult
	err := c.do(ctx, "whoami", "", func(conn conn) error {
		var whoamiErr error
		result, whoamiErr = conn.WhoAmI(nil)
		return whoamiErr
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("WhoAmI operation returned nil result")
	}

	return parseAuthzID(result.AuthzID), nil
}

// parseAuthzID classifies an authorization identity.
func parseAuthzID(authzID string) *WhoAmIResult {
	result := &WhoAmIResult{AuthzID: authzID}

	id := strings.TrimPrefix(strings.TrimPrefix(authzID, "dn:"), "u:")

	switch {
	case id == "":
		result.Format = "empty"
	case dnPattern.MatchString(id):
		result.Format = "dn"
		result.DN = id
	case sidPattern.MatchString(id):
		result.Format = "sid"
		result.SID = id
	case strings.Contains(id, "\\"):
		result.Format = "sam"
		result.SAMAccountName = id
	case strings.Contains(id, "@"):
		result.Format = "upn"
		result.UserPrincipalName = id
	default:
		result.Format = "unknown"
	}

	return result
}

// GetBaseDN returns the configured base DN, or the defaultNamingContext of the root DSE.
func (c *client) GetBaseDN(ctx context.Context) (string, error) {
	if c.config.BaseDN != "" {
		return c.config.BaseDN, nil
	}

	result, err := c.Search(ctx, &SearchRequest{
		Scope:      ScopeBaseObject,
		Filter:     "(objectClass=*)",
		Attributes: []string{"defaultNamingContext"},
		SizeLimit:  1,
		TimeLimit:  5 * time.Second,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get base DN: %w", err)
	}
	if len(result.Entries) == 0 {
		return "", errors.New("no root DSE found")
	}

	baseDN := result.Entries[0].GetAttributeValue("defaultNamingContext")
	if baseDN == "" {
		return "", errors.New("no defaultNamingContext found in root DSE")
	}
	return baseDN, nil
}

func toLDAPSearchRequest(req *SearchRequest, sizeLimit int, controls []ldap.Control) *ldap.SearchRequest {
	return ldap.NewSearchRequest(
		req.BaseDN,
		int(req.Scope),
		int(req.DerefAliases),
		sizeLimit,
		int(req.TimeLimit.Seconds()),
		false,
		req.Filter,
		req.Attributes,
		controls,
	)
}

func sortedKeys(m map[string][]string) []string {
	return slices.Sorted(maps.Keys(m))
}

func searchFields(req *SearchRequest) map[string]any {
	return map[string]any{
		"base_dn":    req.BaseDN,
		"scope":      req.Scope.String(),
		"filter":     req.Filter,
		"attributes": req.Attributes,
		"size_limit": req.SizeLimit,
	}
}
