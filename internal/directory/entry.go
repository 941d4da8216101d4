package directory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/samber/lo"

	"github.com/isometry/terraform-provider-adex/internal/ldap"
)

const (
	attrCanonicalName = "canonicalName"
	attrObjectClass   = "objectClass"
	attrObjectGUID    = "objectGUID"
	attrObjectSID     = "objectSid"
	attrUnicodePwd    = "unicodePwd"

	classOrganizationalUnit = "organizationalUnit"

	matchAll = "(objectClass=*)"
)

// allAttributes is requested by a full refresh. modifyTimeStamp is
// constructed and only returned on request.
var allAttributes = []string{"*", "modifyTimeStamp"}

// entryAttributes are the attributes read by the Entry accessors.
var entryAttributes = []string{
	attrObjectClass, attrObjectGUID, attrObjectSID, "distinguishedName", "name",
	"whenCreated", "modifyTimeStamp",
	"description", "displayName", "manager", "telephoneNumber", "wWWHomePage", "url",
}

// systemAttributes are owned by the directory and never copied.
var systemAttributes = []string{
	"distinguishedName", "name", attrObjectGUID, attrObjectSID, "objectCategory",
	"instanceType", "isCriticalSystemObject", "systemFlags",
	"whenCreated", "whenChanged", "createTimeStamp", "modifyTimeStamp",
	"uSNCreated", "uSNChanged", "dSCorePropagationData", attrCanonicalName,
	"memberOf", "primaryGroupID", "sAMAccountType", "sAMAccountName", "userPrincipalName",
	"lastLogon", "lastLogonTimestamp", "lastLogoff", "logonCount", "badPwdCount",
	"badPasswordTime", "pwdLastSet", "lockoutTime", "objectSidHistory", "sIDHistory",
	"nTSecurityDescriptor", "replPropertyMetaData", attrUnicodePwd,
}

// Option configures an entry opened by OpenEntry and friends.
type Option func(*options)

type options struct {
	leaveOpen  bool
	attributes []string
}

// WithLeaveOpen keeps the client open when the entry is closed. Use it when
// the client is shared.
func WithLeaveOpen() Option {
	return func(o *options) {
		o.leaveOpen = true
	}
}

// WithAttributes limits the attributes loaded when the entry is opened.
func WithAttributes(names ...string) Option {
	return func(o *options) {
		o.attributes = names
	}
}

func buildOptions(opts []Option) *options {
	o := &options{attributes: allAttributes}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Entry wraps a single directory object. It is not safe for concurrent
// mutation.
type Entry struct {
	client    ldap.Client
	dn        string
	props     *Properties
	leaveOpen bool
	closed    bool
	fetched   map[string]bool
}

// NewEntry wraps dn without reading it. When leaveOpen is false, Close also
// closes client.
func NewEntry(client ldap.Client, dn string, leaveOpen bool) *Entry {
	return &Entry{
		client:    client,
		dn:        dn,
		props:     NewProperties(),
		leaveOpen: leaveOpen,
		fetched:   make(map[string]bool),
	}
}

// OpenEntry reads dn and returns it wrapped. A missing DN yields an error
// matching ErrNotFound.
func OpenEntry(ctx context.Context, client ldap.Client, dn string, opts ...Option) (*Entry, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client cannot be nil", ErrInvalidArgument)
	}
	if err := ldap.ValidateDNSyntax(dn); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	o := buildOptions(opts)
	e := NewEntry(client, dn, o.leaveOpen)

	if err := e.load(ctx, o.attributes); err != nil {
		return nil, err
	}
	return e, nil
}

// Exists reports whether dn can be read.
func Exists(ctx context.Context, client ldap.Client, dn string) (bool, error) {
	result, err := client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     dn,
		Scope:      ldap.ScopeBaseObject,
		Filter:     matchAll,
		Attributes: []string{"1.1"},
	})
	if err != nil {
		if ldap.IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existence of %s: %w", dn, err)
	}
	return len(result.Entries) > 0, nil
}

// load reads attributes and replaces the whole cache.
func (e *Entry) load(ctx context.Context, attributes []string) error {
	entry, err := e.read(ctx, attributes)
	if err != nil {
		return err
	}
	e.props.Merge(entry)
	return nil
}

func (e *Entry) read(ctx context.Context, attributes []string) (*goldap.Entry, error) {
	if e.closed {
		return nil, ErrClosed
	}

	result, err := e.client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     e.dn,
		Scope:      ldap.ScopeBaseObject,
		Filter:     matchAll,
		Attributes: attributes,
	})
	if err != nil {
		if ldap.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, e.dn, err)
		}
		return nil, fmt.Errorf("failed to read %s: %w", e.dn, err)
	}
	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, e.dn)
	}
	return result.Entries[0], nil
}

// Name returns the leading RDN, e.g. "CN=John Doe".
func (e *Entry) Name() string {
	rdn, err := ldap.FirstRDN(e.dn)
	if err != nil {
		return e.dn
	}
	return rdn
}

// Path returns the DN.
func (e *Entry) Path() string { return e.dn }

// String returns the DN.
func (e *Entry) String() string { return e.dn }

// Properties returns the attribute cache.
func (e *Entry) Properties() *Properties { return e.props }

// Client returns the client the entry was read from.
func (e *Entry) Client() ldap.Client { return e.client }

// Guid returns objectGUID, or uuid.Nil when it is absent or malformed.
func (e *Entry) Guid() uuid.UUID {
	id, err := ldap.NewGUIDHandler().FromBytes(e.props.Bytes(attrObjectGUID))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// NativeGuid returns the raw objectGUID bytes in hex.
func (e *Entry) NativeGuid() string {
	if !e.props.Contains(attrObjectGUID) {
		return ""
	}
	return ldap.NewGUIDHandler().NativeGUID(e.props.Bytes(attrObjectGUID))
}

// SID returns objectSid in S-1-... form, or "" when absent.
func (e *Entry) SID() string {
	if !e.props.Contains(attrObjectSID) {
		return ""
	}
	sid, err := ldap.NewSIDHandler().FromBytes(e.props.Bytes(attrObjectSID))
	if err != nil {
		return ""
	}
	return sid
}

// SchemaClassName returns the most specific objectClass.
func (e *Entry) SchemaClassName() string {
	classes := e.props.Values(attrObjectClass)
	if len(classes) == 0 {
		return ""
	}
	return classes[len(classes)-1]
}

// IsClass reports whether class is among the entry's object classes.
func (e *Entry) IsClass(class string) bool {
	return lo.ContainsBy(e.props.Values(attrObjectClass), func(c string) bool {
		return strings.EqualFold(c, class)
	})
}

// CanonicalName returns canonicalName, reading it from the server the first
// time it is missing from the cache.
func (e *Entry) CanonicalName(ctx context.Context) (string, error) {
	if !e.props.Contains(attrCanonicalName) && !e.fetched[strings.ToLower(attrCanonicalName)] {
		if err := e.RefreshCache(ctx, attrCanonicalName); err != nil {
			return "", err
		}
	}
	return e.props.Value(attrCanonicalName), nil
}

// CreationDate returns whenCreated.
func (e *Entry) CreationDate() *time.Time { return e.getGeneralizedTime("whenCreated") }
// ModifiedDate returns modifyTimeStamp.
func (e *Entry) ModifiedDate() *time.Time { return e.getGeneralizedTime("modifyTimeStamp") }

// Description returns description.
func (e *Entry) Description() string { return e.getString("description") }
func (e *Entry) SetDescription(v string) { e.setString("description", v) }

// DisplayName returns displayName.
func (e *Entry) DisplayName() string { return e.getString("displayName") }
func (e *Entry) SetDisplayName(v string) { e.setString("displayName", v) }

// Manager returns the DN of the entry's manager.
func (e *Entry) Manager() string { return e.getString("manager") }
func (e *Entry) SetManager(v string) { e.setString("manager", v) }

// TelephoneNumber returns telephoneNumber.
func (e *Entry) TelephoneNumber() string { return e.getString("telephoneNumber") }
func (e *Entry) SetTelephoneNumber(v string) { e.setString("telephoneNumber", v) }

// WebPage returns wWWHomePage.
func (e *Entry) WebPage() string { return e.getString("wWWHomePage") }
func (e *Entry) SetWebPage(v string) { e.setString("wWWHomePage", v) }

// OtherWebPages returns the values of url.
func (e *Entry) OtherWebPages() []string { return e.getStrings("url") }
func (e *Entry) SetOtherWebPages(v []string) { e.setStrings("url", v) }

// InvokeGet returns the raw values of name.
func (e *Entry) InvokeGet(name string) []string {
	return e.props.Values(name)
}

// InvokeSet stages values for name.
func (e *Entry) InvokeSet(name string, values ...string) {
	e.props.Set(name, values...)
}

// CommitChanges sends all staged changes in one modify.
func (e *Entry) CommitChanges(ctx context.Context) error {
	if e.closed {
		return ErrClosed
	}
	if !e.props.HasChanges() {
		return nil
	}

	req := e.props.Changes(e.dn)
	err := ldap.LogOperation(ctx, ldap.SubsystemDirectory, "commit", map[string]any{
		"dn":         e.dn,
		"attributes": e.props.Changed(),
	}, func() error {
		return e.client.Modify(ctx, req)
	})
	if err != nil {
		return fmt.Errorf("failed to commit changes to %s: %w", e.dn, err)
	}

	e.props.Reset()
	return nil
}

// RefreshCache reloads the named attributes, or every attribute when none
// are named. Staged changes survive a refresh.
func (e *Entry) RefreshCache(ctx context.Context, names ...string) error {
	attributes := names
	if len(names) == 0 {
		attributes = allAttributes
	}

	entry, err := e.read(ctx, attributes)
	if err != nil {
		return err
	}

	tflog.SubsystemDebug(ctx, ldap.SubsystemDirectory, "Refreshed property cache", map[string]any{
		"dn":         e.dn,
		"attributes": attributes,
	})

	e.props.Merge(entry, names...)
	for _, name := range names {
		e.fetched[strings.ToLower(name)] = true
	}
	return nil
}

// Rename changes the RDN value within the current parent. newName may carry
// its attribute type ("CN=x") or not ("x").
func (e *Entry) Rename(ctx context.Context, newName string) error {
	return e.modifyDN(ctx, "rename", "", newName)
}

// MoveTo moves the entry beneath parent. An empty newName keeps the current
// RDN.
func (e *Entry) MoveTo(ctx context.Context, parent, newName string) error {
	if err := ldap.ValidateDNSyntax(parent); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return e.modifyDN(ctx, "move", parent, newName)
}

func (e *Entry) modifyDN(ctx context.Context, operation, newSuperior, newName string) error {
	if e.closed {
		return ErrClosed
	}

	rdn, err := e.targetRDN(newName, newSuperior != "")
	if err != nil {
		return err
	}

	parent := newSuperior
	if parent == "" {
		if parent, err = ldap.ParentDN(e.dn); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}
	newDN := ldap.JoinDN(rdn, parent)
	if inside, err := ldap.IsDNDescendant(newDN, e.dn); err == nil && inside {
		return fmt.Errorf("%w: cannot move %s beneath itself", ErrInvalidArgument, e.dn)
	}

	err = ldap.LogOperation(ctx, ldap.SubsystemDirectory, operation, map[string]any{
		"dn":     e.dn,
		"new_dn": newDN,
	}, func() error {
		return e.client.ModifyDN(ctx, &ldap.ModifyDNRequest{
			DN:           e.dn,
			NewRDN:       rdn,
			DeleteOldRDN: true,
			NewSuperior:  newSuperior,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", operation, e.dn, err)
	}

	e.dn = newDN
	return nil
}

// targetRDN builds the RDN for a rename, move or copy. An empty name keeps
// the current RDN when allowed.
func (e *Entry) targetRDN(newName string, keepOnEmpty bool) (string, error) {
	if strings.TrimSpace(newName) == "" {
		if !keepOnEmpty {
			return "", fmt.Errorf("%w: new name cannot be empty", ErrInvalidArgument)
		}
		rdn, err := ldap.FirstRDN(e.dn)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		return rdn, nil
	}

	attrType, err := ldap.FirstRDNType(e.dn)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	rdn, err := ldap.BuildRDN(attrType, newName)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return rdn, nil
}

// CopyTo creates a copy of the entry beneath parent and returns it. The copy
// carries every cached attribute except those owned by the directory. An
// empty newName keeps the current RDN.
func (e *Entry) CopyTo(ctx context.Context, parent, newName string) (*Entry, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if err := ldap.ValidateDNSyntax(parent); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	rdn, err := e.targetRDN(newName, true)
	if err != nil {
		return nil, err
	}
	newDN := ldap.JoinDN(rdn, parent)

	if len(e.props.Names()) == 0 {
		if err := e.RefreshCache(ctx); err != nil {
			return nil, err
		}
	}

	attrs := copyableAttributes(e.props.snapshot())
	if rdnType, rdnValue, ok := strings.Cut(rdn, "="); ok {
		if value, err := ldap.ExtractRDNValue(newDN, rdnType); err == nil {
			rdnValue = value
		}
		// The naming attribute must agree with the new RDN.
		for name := range attrs {
			if strings.EqualFold(name, rdnType) {
				delete(attrs, name)
			}
		}
		attrs[strings.ToLower(rdnType)] = []string{rdnValue}
	}

	err = ldap.LogOperation(ctx, ldap.SubsystemDirectory, "copy", map[string]any{
		"dn":     e.dn,
		"new_dn": newDN,
	}, func() error {
		return e.client.Add(ctx, &ldap.AddRequest{DN: newDN, Attributes: attrs})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to copy %s to %s: %w", e.dn, newDN, err)
	}

	copied := NewEntry(e.client, newDN, true)
	copied.props = propertiesFrom(attrs)
	return copied, nil
}

func copyableAttributes(values map[string][]string) map[string][]string {
	return lo.OmitBy(values, func(name string, _ []string) bool {
		return lo.ContainsBy(systemAttributes, func(system string) bool {
			return strings.EqualFold(system, name)
		})
	})
}

// DeleteTree deletes the entry and everything beneath it.
func (e *Entry) DeleteTree(ctx context.Context) error {
	if e.closed {
		return ErrClosed
	}

	err := ldap.LogOperation(ctx, ldap.SubsystemDirectory, "delete_tree", map[string]any{
		"dn": e.dn,
	}, func() error {
		return e.client.DeleteTree(ctx, e.dn)
	})
	if err != nil {
		return fmt.Errorf("failed to delete tree %s: %w", e.dn, err)
	}
	return nil
}

// Parent returns the parent entry, or nil at a naming context root. The
// parent shares the client and never closes it.
func (e *Entry) Parent(ctx context.Context) (*Entry, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if ldap.IsNamingContextRoot(e.dn) {
		return nil, nil
	}

	parentDN, err := ldap.ParentDN(e.dn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if parentDN == "" {
		return nil, nil
	}

	return OpenEntry(ctx, e.client, parentDN, WithLeaveOpen())
}

// Children returns the entries directly beneath this one.
func (e *Entry) Children(ctx context.Context) ([]*Entry, error) {
	if e.closed {
		return nil, ErrClosed
	}

	result, err := e.client.SearchWithPaging(ctx, &ldap.SearchRequest{
		BaseDN:     e.dn,
		Scope:      ldap.ScopeSingleLevel,
		Filter:     matchAll,
		Attributes: allAttributes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list children of %s: %w", e.dn, err)
	}

	return lo.Map(result.Entries, func(entry *goldap.Entry, _ int) *Entry {
		child := NewEntry(e.client, entry.DN, true)
		child.props.Merge(entry)
		return child
	}), nil
}

// GetTopLevelOU walks up from the parent while the next ancestor is an
// organizational unit and returns the last entry reached. It returns nil
// when the entry has no parent.
func (e *Entry) GetTopLevelOU(ctx context.Context) (*OU, error) {
	parent, err := e.Parent(ctx)
	if err != nil || parent == nil {
		return nil, err
	}

	for {
		grandparent, err := parent.Parent(ctx)
		if err != nil {
			return nil, err
		}
		if grandparent == nil || !strings.EqualFold(grandparent.SchemaClassName(), classOrganizationalUnit) {
			break
		}
		parent = grandparent
	}

	return NewOU(parent), nil
}

// Invoke runs an ADSI-style method. SetPassword(new) and
// ChangePassword(old, new) are supported.
func (e *Entry) Invoke(ctx context.Context, method string, args ...string) error {
	if e.closed {
		return ErrClosed
	}

	req := &ldap.ModifyRequest{DN: e.dn}
	switch {
	case strings.EqualFold(method, "SetPassword"):
		if len(args) != 1 {
			return fmt.Errorf("%w: SetPassword takes 1 argument, got %d", ErrInvalidArgument, len(args))
		}
		pwd, err := encodePassword(args[0])
		if err != nil {
			return err
		}
		req.ReplaceAttributes = map[string][]string{attrUnicodePwd: {pwd}}

	case strings.EqualFold(method, "ChangePassword"):
		if len(args) != 2 {
			return fmt.Errorf("%w: ChangePassword takes 2 arguments, got %d", ErrInvalidArgument, len(args))
		}
		oldPwd, err := encodePassword(args[0])
		if err != nil {
			return err
		}
		newPwd, err := encodePassword(args[1])
		if err != nil {
			return err
		}
		req.DeleteValues = map[string][]string{attrUnicodePwd: {oldPwd}}
		req.AddAttributes = map[string][]string{attrUnicodePwd: {newPwd}}

	default:
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidArgument, method)
	}

	err := ldap.LogOperation(ctx, ldap.SubsystemDirectory, "invoke", map[string]any{
		"dn":     e.dn,
		"method": method,
	}, func() error {
		return e.client.Modify(ctx, req)
	})
	if err != nil {
		return fmt.Errorf("failed to invoke %s on %s: %w", method, e.dn, err)
	}
	return nil
}

// Close releases the entry. The client is closed only when the entry owns
// it. Closing twice is a no-op.
func (e *Entry) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	if e.leaveOpen || e.client == nil {
		return nil
	}
	return e.client.Close()
}

func (e *Entry) getString(name string) string {
	return e.props.Value(name)
}

// setString stages v. An empty string clears the attribute.
func (e *Entry) setString(name, v string) {
	if v == "" {
		e.props.Clear(name)
		return
	}
	e.props.Set(name, v)
}

func (e *Entry) getStrings(name string) []string {
	return e.props.Values(name)
}

// setStrings stages values in the given order. Empty values are dropped.
func (e *Entry) setStrings(name string, values []string) {
	e.props.Set(name, lo.Compact(values)...)
}

// getInt32 returns the attribute as int32. ok is false when it is absent or
// not a number.
func (e *Entry) getInt32(name string) (int32, bool) {
	if !e.props.Contains(name) {
		return 0, false
	}
	v, err := strconv.ParseInt(e.props.Value(name), 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(v), true
}

func (e *Entry) setInt32(name string, v int32) {
	e.props.Set(name, strconv.FormatInt(int64(v), 10))
}

func (e *Entry) getFileTime(name string) *time.Time {
	t, err := ldap.ParseFileTime(e.props.Value(name))
	if err != nil {
		return nil
	}
	return t
}

// setFileTime stages t as a FILETIME. nil stores the "never" value.
func (e *Entry) setFileTime(name string, t *time.Time) {
	e.props.Set(name, ldap.FormatFileTime(t))
}

func (e *Entry) getGeneralizedTime(name string) *time.Time {
	t, err := ldap.ParseGeneralizedTime(e.props.Value(name))
	if err != nil {
		return nil
	}
	return t
}
