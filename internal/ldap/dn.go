package ldap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ParseDN parses dn, rejecting the empty string.
func ParseDN(dn string) (*ldap.DN, error) {
	dn = strings.TrimSpace(dn)
	if dn == "" {
		return nil, errors.New("DN cannot be empty")
	}

	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return nil, fmt.Errorf("invalid DN syntax: %w", err)
	}
	return parsed, nil
}

// ValidateDNSyntax validates that a string is a properly formatted Distinguished Name.
func ValidateDNSyntax(dn string) error {
	_, err := ParseDN(dn)
	return err
}

// EscapeDNValue escapes an attribute value for use inside an RDN (RFC 4514).
func EscapeDNValue(value string) string {
	return ldap.EscapeDN(value)
}

// formatRDN renders an RDN with uppercase attribute types, the form AD returns.
func formatRDN(rdn *ldap.RelativeDN) string {
	attrs := make([]string, len(rdn.Attributes))
	for i, attr := range rdn.Attributes {
		attrs[i] = strings.ToUpper(attr.Type) + "=" + EscapeDNValue(attr.Value)
	}
	return strings.Join(attrs, "+")
}

func formatDN(rdns []*ldap.RelativeDN) string {
	parts := make([]string, len(rdns))
	for i, rdn := range rdns {
		parts[i] = formatRDN(rdn)
	}
	return strings.Join(parts, ",")
}

// NormalizeDNCase uppercases the attribute types of dn and leaves values untouched.
//
//	"cn=john,ou=users,dc=example,dc=com" → "CN=john,OU=users,DC=example,DC=com"
func NormalizeDNCase(dn string) (string, error) {
	if strings.TrimSpace(dn) == "" {
		return "", nil
	}

	parsed, err := ParseDN(dn)
	if err != nil {
		return "", err
	}
	return formatDN(parsed.RDNs), nil
}

// ParentDN returns dn without its first RDN, or "" for a single-RDN DN.
func ParentDN(dn string) (string, error) {
	parsed, err := ParseDN(dn)
	if err != nil {
		return "", err
	}
	if len(parsed.RDNs) <= 1 {
		return "", nil
	}
	return formatDN(parsed.RDNs[1:]), nil
}

// FirstRDN returns the leading RDN of dn, e.g. "CN=John Doe".
func FirstRDN(dn string) (string, error) {
	parsed, err := ParseDN(dn)
	if err != nil {
		return "", err
	}
	return formatRDN(parsed.RDNs[0]), nil
}

// FirstRDNType returns the attribute type of the leading RDN in upper case.
func FirstRDNType(dn string) (string, error) {
	parsed, err := ParseDN(dn)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(parsed.RDNs[0].Attributes[0].Type), nil
}

// ExtractRDNValue extracts the value of the first RDN component with the specified attribute type.
func ExtractRDNValue(dn, attrType string) (string, error) {
	parsed, err := ParseDN(dn)
	if err != nil {
		return "", err
	}

	for _, rdn := range parsed.RDNs {
		for _, attr := range rdn.Attributes {
			if strings.EqualFold(attr.Type, attrType) {
				return attr.Value, nil
			}
		}
	}

	return "", fmt.Errorf("attribute type '%s' not found in DN '%s'", attrType, dn)
}

// BuildRDN turns name into an RDN of type attrType. A name that already
// parses as an RDN ("CN=x") is returned in normalized form.
func BuildRDN(attrType, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("name cannot be empty")
	}

	if typ, _, ok := strings.Cut(name, "="); ok && !strings.ContainsAny(typ, " ,+\\\"") {
		parsed, err := ldap.ParseDN(name)
		if err == nil && len(parsed.RDNs) == 1 {
			return formatRDN(parsed.RDNs[0]), nil
		}
	}

	return strings.ToUpper(attrType) + "=" + EscapeDNValue(name), nil
}

// JoinDN prefixes parent with rdn.
func JoinDN(rdn, parent string) string {
	if parent == "" {
		return rdn
	}
	return rdn + "," + parent
}

// IsDNDescendant reports whether child lies strictly beneath ancestor, ignoring case.
func IsDNDescendant(child, ancestor string) (bool, error) {
	parsedChild, err := ParseDN(child)
	if err != nil {
		return false, fmt.Errorf("invalid child DN: %w", err)
	}
	parsedAncestor, err := ParseDN(ancestor)
	if err != nil {
		return false, fmt.Errorf("invalid ancestor DN: %w", err)
	}
	return parsedAncestor.AncestorOfFold(parsedChild), nil
}

// IsNamingContextRoot reports whether every RDN of dn is a domain component.
func IsNamingContextRoot(dn string) bool {
	parsed, err := ParseDN(dn)
	if err != nil {
		return false
	}
	for _, rdn := range parsed.RDNs {
		for _, attr := range rdn.Attributes {
			if !strings.EqualFold(attr.Type, "DC") {
				return false
			}
		}
	}
	return true
}
