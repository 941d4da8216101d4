package ldap

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
)

// GUIDBytesLength is the size of a binary objectGUID.
const GUIDBytesLength = 16

// GUIDHandler converts between the mixed-endian objectGUID stored by Active
// Directory and RFC 4122 UUIDs.
//
// AD stores the first three GUID fields little-endian and the last eight
// bytes in network order.
type GUIDHandler struct{}

// NewGUIDHandler creates a new GUID handler instance.
func NewGUIDHandler() *GUIDHandler {
	return &GUIDHandler{}
}

// swapGUIDEndianness converts between the AD byte layout and RFC 4122 order.
// The swap is its own inverse.
func swapGUIDEndianness(b []byte) []byte {
	out := make([]byte, GUIDBytesLength)
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	copy(out[8:], b[8:])
	return out
}

// ParseGUID accepts hyphenated, compact or braced GUID strings.
func (g *GUIDHandler) ParseGUID(guidString string) (uuid.UUID, error) {
	guidString = strings.TrimSpace(guidString)
	if guidString == "" {
		return uuid.Nil, errors.New("GUID string cannot be empty")
	}

	id, err := uuid.Parse(guidString)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid GUID format %q: %w", guidString, err)
	}
	return id, nil
}

// IsValidGUID reports whether s parses as a GUID.
func (g *GUIDHandler) IsValidGUID(s string) bool {
	_, err := g.ParseGUID(s)
	return err == nil
}

// NormalizeGUID returns s in lowercase hyphenated form.
func (g *GUIDHandler) NormalizeGUID(s string) (string, error) {
	id, err := g.ParseGUID(s)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// FromBytes decodes a binary objectGUID.
func (g *GUIDHandler) FromBytes(b []byte) (uuid.UUID, error) {
	if len(b) != GUIDBytesLength {
		return uuid.Nil, fmt.Errorf("invalid GUID byte length: expected %d, got %d", GUIDBytesLength, len(b))
	}
	return uuid.FromBytes(swapGUIDEndianness(b))
}

// ToBytes encodes id in the layout AD stores in objectGUID.
func (g *GUIDHandler) ToBytes(id uuid.UUID) []byte {
	return swapGUIDEndianness(id[:])
}

// NativeGUID returns the hex of the stored objectGUID bytes, the form ADSI
// reports as NativeGuid.
func (g *GUIDHandler) NativeGUID(b []byte) string {
	return hex.EncodeToString(b)
}

// SearchFilter builds an objectGUID equality filter with every byte escaped.
func (g *GUIDHandler) SearchFilter(id uuid.UUID) string {
	var sb strings.Builder
	sb.WriteString("(objectGUID=")
	for _, b := range g.ToBytes(id) {
		fmt.Fprintf(&sb, "\\%02x", b)
	}
	sb.WriteString(")")
	return sb.String()
}

// ExtractGUID reads objectGUID from an entry.
func (g *GUIDHandler) ExtractGUID(entry *ldap.Entry) (uuid.UUID, error) {
	if entry == nil {
		return uuid.Nil, errors.New("LDAP entry cannot be nil")
	}

	raw := entry.GetRawAttributeValue("objectGUID")
	if len(raw) == 0 {
		return uuid.Nil, errors.New("objectGUID attribute not found in entry")
	}
	return g.FromBytes(raw)
}
