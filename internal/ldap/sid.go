package ldap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/go-objectsid"
	"github.com/go-ldap/ldap/v3"
)

var sidStringRegex = regexp.MustCompile(`^S-1-\d+(-\d+)*$`)

// wellKnownSIDPrefixes covers the fixed authorities and the built-in service accounts.
// Entries ending in "-" match whole subtrees.
var wellKnownSIDPrefixes = []string{
	"S-1-0-",
	"S-1-1-",
	"S-1-2-",
	"S-1-3-",
	"S-1-4-",
	"S-1-5-18",
	"S-1-5-19",
	"S-1-5-20",
	"S-1-5-32-",
}

// SIDHandler converts Active Directory objectSid values.
type SIDHandler struct{}

// NewSIDHandler creates a new SID handler instance.
func NewSIDHandler() *SIDHandler {
	return &SIDHandler{}
}

// FromBytes decodes a binary SID into S-1-... form.
func (s *SIDHandler) FromBytes(b []byte) (string, error) {
	if len(b) < 8 {
		return "", fmt.Errorf("binary SID too short: %d bytes", len(b))
	}
	if want := 8 + 4*int(b[1]); len(b) != want {
		return "", fmt.Errorf("binary SID length %d does not match %d sub-authorities", len(b), b[1])
	}

	return objectsid.Decode(b).String(), nil
}

// ToBytes encodes a SID string in the binary layout AD stores.
func (s *SIDHandler) ToBytes(sid string) ([]byte, error) {
	if err := s.Validate(sid); err != nil {
		return nil, err
	}

	parts := strings.Split(sid, "-")[1:]
	var revision, authority uint64
	if _, err := fmt.Sscan(parts[0], &revision); err != nil {
		return nil, fmt.Errorf("invalid SID revision: %w", err)
	}
	if _, err := fmt.Sscan(parts[1], &authority); err != nil {
		return nil, fmt.Errorf("invalid SID authority: %w", err)
	}
	subs := parts[2:]

	out := make([]byte, 8, 8+4*len(subs))
	out[0] = byte(revision)
	out[1] = byte(len(subs))
	for i := range 6 {
		out[2+i] = byte(authority >> (8 * (5 - i)))
	}
	for _, sub := range subs {
		var v uint32
		if _, err := fmt.Sscan(sub, &v); err != nil {
			return nil, fmt.Errorf("invalid SID sub-authority %q: %w", sub, err)
		}
		out = binary.LittleEndian.AppendUint32(out, v)
	}
	return out, nil
}

// Validate checks the textual form of a SID.
func (s *SIDHandler) Validate(sid string) error {
	if sid == "" {
		return errors.New("SID string cannot be empty")
	}
	if !sidStringRegex.MatchString(sid) {
		return fmt.Errorf("invalid SID format: %s", sid)
	}
	if n := strings.Count(sid, "-") - 2; n > 15 {
		return fmt.Errorf("SID has %d sub-authorities, at most 15 allowed", n)
	}
	return nil
}

// ExtractSID reads objectSid from an entry.
func (s *SIDHandler) ExtractSID(entry *ldap.Entry) (string, error) {
	if entry == nil {
		return "", errors.New("LDAP entry cannot be nil")
	}

	raw := entry.GetRawAttributeValue("objectSid")
	if len(raw) == 0 {
		return "", errors.New("objectSid attribute not found in entry")
	}
	return s.FromBytes(raw)
}

// SearchFilter builds an objectSid equality filter. AD accepts the string form.
func (s *SIDHandler) SearchFilter(sid string) (string, error) {
	if err := s.Validate(sid); err != nil {
		return "", err
	}
	return fmt.Sprintf("(objectSid=%s)", ldap.EscapeFilter(sid)), nil
}

// IsWellKnownSID reports whether sid belongs to a fixed authority or built-in account.
func (s *SIDHandler) IsWellKnownSID(sid string) bool {
	for _, known := range wellKnownSIDPrefixes {
		if prefix, ok := strings.CutSuffix(known, "-"); ok {
			if sid == prefix || strings.HasPrefix(sid, known) {
				return true
			}
			continue
		}
		if sid == known {
			return true
		}
	}
	return false
}
