package directory

import (
	"context"

	"github.com/samber/lo"

	"github.com/isometry/terraform-provider-adex/internal/ldap"
)

// groupType flags.
const (
	GroupTypeGlobal      int32 = 0x00000002
	GroupTypeDomainLocal int32 = 0x00000004
	GroupTypeUniversal   int32 = 0x00000008
	GroupTypeSecurity    int32 = -0x80000000
)

// GroupAttributes is the attribute set loaded by OpenGroup.
var GroupAttributes = lo.Uniq(lo.Flatten([][]string{entryAttributes, {
	"mail", "mailNickname", "info", "sAMAccountType", "sAMAccountName", "groupType", "member",
}, extensionAttributes}))

// Group wraps a group object.
type Group struct {
	*Entry
	extensible
}

func NewGroup(entry *Entry) *Group {
	return &Group{Entry: entry, extensible: extensible{entry}}
}

// OpenGroup reads the group at dn with GroupAttributes. Groups with more
// than 1500 members need a ranged read of member, which is not done here.
func OpenGroup(ctx context.Context, client ldap.Client, dn string, opts ...Option) (*Group, error) {
	entry, err := OpenEntry(ctx, client, dn, append([]Option{WithAttributes(GroupAttributes...)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return NewGroup(entry), nil
}

// EmailAddress returns mail.
func (g *Group) EmailAddress() string { return g.getString("mail") }
func (g *Group) SetEmailAddress(v string) { g.setString("mail", v) }

// ExchangeAlias returns mailNickname.
func (g *Group) ExchangeAlias() string { return g.getString("mailNickname") }
func (g *Group) SetExchangeAlias(v string) { g.setString("mailNickname", v) }

// Notes returns info.
func (g *Group) Notes() string { return g.getString("info") }
func (g *Group) SetNotes(v string) { g.setString("info", v) }

// SamAccountType returns sAMAccountType. It is read-only.
func (g *Group) SamAccountType() int32 {
	v, _ := g.getInt32("sAMAccountType")
	return v
}

// SamAccountName returns sAMAccountName.
func (g *Group) SamAccountName() string { return g.getString("sAMAccountName") }
func (g *Group) SetSamAccountName(v string) { g.setString("sAMAccountName", v) }

// GroupType returns the raw groupType flags.
func (g *Group) GroupType() int32 {
	v, _ := g.getInt32("groupType")
	return v
}

// IsSecurityGroup reports whether the security bit of groupType is set.
func (g *Group) IsSecurityGroup() bool {
	return g.GroupType()&GroupTypeSecurity != 0
}

// Members returns the member DNs.
func (g *Group) Members() []string { return g.getStrings("member") }

// CopyTo copies the group beneath parent. Membership is copied with the
// other attributes.
func (g *Group) CopyTo(ctx context.Context, parent, newName string) (*Group, error) {
	entry, err := g.Entry.CopyTo(ctx, parent, newName)
	if err != nil {
		return nil, err
	}
	return NewGroup(entry), nil
}
