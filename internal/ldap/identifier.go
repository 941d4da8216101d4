package ldap

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// IdentifierType represents the type of identifier detected.
type IdentifierType int

const (
	IdentifierTypeUnknown IdentifierType = iota
	IdentifierTypeDN                     // Distinguished Name
	IdentifierTypeGUID                   // objectGUID
	IdentifierTypeSID                    // objectSid
	IdentifierTypeUPN                    // userPrincipalName
	IdentifierTypeSAM                    // sAMAccountName, optionally DOMAIN\name
)

// String returns the string representation of the identifier type.
func (i IdentifierType) String() string {
	switch i {
	case IdentifierTypeDN:
		return "DN"
	case IdentifierTypeGUID:
		return "GUID"
	case IdentifierTypeSID:
		return "SID"
	case IdentifierTypeUPN:
		return "UPN"
	case IdentifierTypeSAM:
		return "SAM"
	default:
		return "Unknown"
	}
}

var (
	dnRegex  = regexp.MustCompile(`^(?i)(CN|OU|DC|O|C|L|ST|STREET|UID)=.+`)
	upnRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	samRegex = regexp.MustCompile(`^([^\\@\s]+\\)?[^\\@\s]+$`)
)

// DetectIdentifierType classifies identifier. The checks run from most to least specific.
func DetectIdentifierType(identifier string) IdentifierType {
	identifier = strings.TrimSpace(identifier)

	switch {
	case identifier == "":
		return IdentifierTypeUnknown
	case dnRegex.MatchString(identifier):
		return IdentifierTypeDN
	case NewGUIDHandler().IsValidGUID(identifier):
		return IdentifierTypeGUID
	case NewSIDHandler().Validate(identifier) == nil:
		return IdentifierTypeSID
	case upnRegex.MatchString(identifier):
		return IdentifierTypeUPN
	case samRegex.MatchString(identifier):
		return IdentifierTypeSAM
	}
	return IdentifierTypeUnknown
}

// Resolver turns DNs, GUIDs, SIDs, UPNs and sAMAccountNames into DNs.
type Resolver struct {
	client Client
	baseDN string
	guids  *GUIDHandler
	sids   *SIDHandler
}

// NewResolver creates a resolver searching beneath baseDN.
func NewResolver(client Client, baseDN string) *Resolver {
	return &Resolver{
		client: client,
		baseDN: baseDN,
		guids:  NewGUIDHandler(),
		sids:   NewSIDHandler(),
	}
}

// ResolveToDN detects the identifier type and resolves it.
func (r *Resolver) ResolveToDN(ctx context.Context, identifier string) (string, error) {
	idType := DetectIdentifierType(identifier)
	if idType == IdentifierTypeUnknown {
		return "", fmt.Errorf("unable to determine identifier type for: %q", identifier)
	}
	return r.Resolve(ctx, idType, identifier)
}

// Resolve looks up value as an identifier of type idType. Objects that do not
// exist yield an LDAPError in the not_found category.
func (r *Resolver) Resolve(ctx context.Context, idType IdentifierType, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%s identifier cannot be empty", idType)
	}

	var filter string
	switch idType {
	case IdentifierTypeDN:
		return r.resolveDN(ctx, value)
	case IdentifierTypeGUID:
		id, err := r.guids.ParseGUID(value)
		if err != nil {
			return "", err
		}
		filter = r.guids.SearchFilter(id)
	case IdentifierTypeSID:
		f, err := r.sids.SearchFilter(value)
		if err != nil {
			return "", err
		}
		filter = f
	case IdentifierTypeUPN:
		filter = fmt.Sprintf("(userPrincipalName=%s)", ldap.EscapeFilter(value))
	case IdentifierTypeSAM:
		if _, name, ok := strings.Cut(value, "\\"); ok {
			value = name
		}
		filter = fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(value))
	default:
		return "", fmt.Errorf("unsupported identifier type: %s", idType)
	}

	tflog.SubsystemTrace(ctx, SubsystemLDAP, "Resolving identifier", map[string]any{
		"type":   idType.String(),
		"filter": filter,
	})

	baseDN := r.baseDN
	if baseDN == "" {
		var err error
		if baseDN, err = r.client.GetBaseDN(ctx); err != nil {
			return "", err
		}
	}

	result, err := r.client.Search(ctx, &SearchRequest{
		BaseDN:     baseDN,
		Scope:      ScopeWholeSubtree,
		Filter:     filter,
		Attributes: []string{"distinguishedName"},
		SizeLimit:  2,
	})
	if err != nil {
		return "", fmt.Errorf("%s search failed: %w", idType, err)
	}

	switch len(result.Entries) {
	case 0:
		return "", notFound("resolve", fmt.Sprintf("no object with %s %s", idType, value))
	case 1:
		return NormalizeDNCase(result.Entries[0].DN)
	default:
		return "", fmt.Errorf("%s %s matches more than one object", idType, value)
	}
}

// resolveDN confirms the DN exists and returns the server's spelling of it.
func (r *Resolver) resolveDN(ctx context.Context, dn string) (string, error) {
	normalized, err := NormalizeDNCase(dn)
	if err != nil {
		return "", err
	}

	result, err := r.client.Search(ctx, &SearchRequest{
		BaseDN:     normalized,
		Scope:      ScopeBaseObject,
		Filter:     "(objectClass=*)",
		Attributes: []string{"distinguishedName"},
		SizeLimit:  1,
	})
	if err != nil {
		return "", err
	}
	if len(result.Entries) == 0 {
		return "", notFound("resolve", "DN not found: "+normalized)
	}

	if canonical := result.Entries[0].GetAttributeValue("distinguishedName"); canonical != "" {
		return NormalizeDNCase(canonical)
	}
	return normalized, nil
}

// notFound builds an LDAPError equivalent to a NoSuchObject result.
func notFound(operation, message string) error {
	return NewLDAPError(operation, ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New(message)))
}
