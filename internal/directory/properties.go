package directory

import (
	"maps"
	"slices"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/isometry/terraform-provider-adex/internal/ldap"
)

// Properties is the attribute cache of an entry. Attribute names are
// case-sensitive and values are kept in server order. Binary attributes hold
// their raw bytes as strings.
type Properties struct {
	values  map[string][]string
	pending map[string][]string // staged replaces; an empty slice clears
}

// NewProperties returns an empty property set.
func NewProperties() *Properties {
	return &Properties{
		values:  make(map[string][]string),
		pending: make(map[string][]string),
	}
}

// Contains reports whether the attribute has at least one value.
func (p *Properties) Contains(name string) bool {
	return len(p.values[name]) > 0
}

// Value returns the first value of name, or "" when absent.
func (p *Properties) Value(name string) string {
	if vals := p.values[name]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Values returns a copy of the values of name, or nil when absent.
func (p *Properties) Values(name string) []string {
	if !p.Contains(name) {
		return nil
	}
	return slices.Clone(p.values[name])
}

// Bytes returns the first value of name as raw bytes.
func (p *Properties) Bytes(name string) []byte {
	if !p.Contains(name) {
		return nil
	}
	return []byte(p.values[name][0])
}

// Names returns the sorted names of all present attributes.
func (p *Properties) Names() []string {
	names := make([]string, 0, len(p.values))
	for name, vals := range p.values {
		if len(vals) > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Set stages a replace of name. With no values the attribute is cleared.
func (p *Properties) Set(name string, values ...string) {
	vals := slices.Clone(values)
	if vals == nil {
		vals = []string{}
	}

	p.pending[name] = vals
	if len(vals) == 0 {
		delete(p.values, name)
		return
	}
	p.values[name] = slices.Clone(vals)
}

// Clear stages removal of name.
func (p *Properties) Clear(name string) {
	p.Set(name)
}

// HasChanges reports whether any change is staged.
func (p *Properties) HasChanges() bool {
	return len(p.pending) > 0
}

// Changed returns the sorted names of attributes with staged changes.
func (p *Properties) Changed() []string {
	return slices.Sorted(maps.Keys(p.pending))
}

// Changes returns the staged modifications for dn.
func (p *Properties) Changes(dn string) *ldap.ModifyRequest {
	req := &ldap.ModifyRequest{
		DN:                dn,
		ReplaceAttributes: make(map[string][]string, len(p.pending)),
	}
	for name, vals := range p.pending {
		req.ReplaceAttributes[name] = slices.Clone(vals)
	}
	return req
}

// Reset drops all staged changes. The local view keeps the staged values.
func (p *Properties) Reset() {
	clear(p.pending)
}

// Merge loads the attributes of entry. When names are given, only those
// attributes are replaced and any of them missing from entry are dropped;
// otherwise the whole cache is replaced. Names match cached attributes
// ignoring case, as the server does. Staged values stay visible.
func (p *Properties) Merge(entry *goldap.Entry, names ...string) {
	if len(names) == 0 {
		clear(p.values)
	}
	maps.DeleteFunc(p.values, func(cached string, _ []string) bool {
		return slices.ContainsFunc(names, func(name string) bool {
			return strings.EqualFold(cached, name)
		})
	})

	if entry != nil {
		for _, attr := range entry.Attributes {
			if len(attr.Values) > 0 {
				p.values[attr.Name] = slices.Clone(attr.Values)
			}
		}
	}

	for name, vals := range p.pending {
		if len(vals) == 0 {
			delete(p.values, name)
			continue
		}
		p.values[name] = slices.Clone(vals)
	}
}

// snapshot returns a copy of all present values.
func (p *Properties) snapshot() map[string][]string {
	out := make(map[string][]string, len(p.values))
	for name, vals := range p.values {
		if len(vals) > 0 {
			out[name] = slices.Clone(vals)
		}
	}
	return out
}

func propertiesFrom(values map[string][]string) *Properties {
	p := NewProperties()
	for name, vals := range values {
		if len(vals) > 0 {
			p.values[name] = slices.Clone(vals)
		}
	}
	return p
}
