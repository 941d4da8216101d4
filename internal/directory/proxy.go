package directory

import (
	"fmt"
	"slices"
	"strings"
)

const attrProxyAddresses = "proxyAddresses"

// Address protocol prefixes. The upper-case form marks the primary address.
const (
	ProtocolSMTP = "SMTP"
	ProtocolSIP  = "SIP"
)

// PrimaryAddress returns the address marked primary for protocol, meaning
// the first value with the upper-case "PROTOCOL:" prefix. With
// caseInsensitiveFallback, the first value with the prefix in any case is
// used when none is marked.
func PrimaryAddress(addresses []string, protocol string, caseInsensitiveFallback bool) string {
	primary := strings.ToUpper(protocol) + ":"
	for _, addr := range addresses {
		if rest, ok := strings.CutPrefix(addr, primary); ok {
			return rest
		}
	}

	if caseInsensitiveFallback {
		for _, addr := range addresses {
			if len(addr) >= len(primary) && strings.EqualFold(addr[:len(primary)], primary) {
				return addr[len(primary):]
			}
		}
	}
	return ""
}

// SetPrimaryAddress marks value as the primary address for protocol and
// returns the updated list. Existing matches are promoted, other primaries
// are demoted, and value is appended when it was not present. Order is
// preserved.
func SetPrimaryAddress(addresses []string, protocol, value string) ([]string, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: %s address cannot be empty", ErrInvalidArgument, protocol)
	}

	primary := strings.ToUpper(protocol) + ":"
	secondary := strings.ToLower(protocol) + ":"

	out := slices.Clone(addresses)
	updated := false
	for i, addr := range out {
		if strings.EqualFold(addr, secondary+value) {
			out[i] = primary + value
			updated = true
		} else if rest, ok := strings.CutPrefix(addr, primary); ok {
			out[i] = secondary + rest
		}
	}

	if !updated {
		out = append(out, primary+value)
	}
	return out, nil
}
