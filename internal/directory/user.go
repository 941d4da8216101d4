package directory

import (
	"context"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/isometry/terraform-provider-adex/internal/ldap"
)

// userAccountControl flags.
const (
	UACAccountDisabled      int32 = 0x00000002
	UACHomeDirRequired      int32 = 0x00000008
	UACLockout              int32 = 0x00000010
	UACPasswordNotRequired  int32 = 0x00000020
	UACPasswordCantChange   int32 = 0x00000040
	UACNormalAccount        int32 = 0x00000200
	UACPasswordNeverExpires int32 = 0x00010000
	UACSmartCardRequired    int32 = 0x00040000
	UACTrustedForDelegation int32 = 0x00080000
	UACNotDelegated         int32 = 0x00100000
	UACDontRequirePreauth   int32 = 0x00400000
	UACPasswordExpired      int32 = 0x00800000
)

const attrUserAccountControl = "userAccountControl"

// UserAttributes is the attribute set loaded by OpenUser.
var UserAttributes = lo.Uniq(lo.Flatten([][]string{entryAttributes, {
	"telephoneAssistant", "l", "company", "c", "countryCode", "co", "department",
	"mail", "employeeID", "mailNickname", "msExchAssistantName", "accountExpires",
	"facsimileTelephoneNumber", "givenName", "homeDirectory", "homeDrive", "homePhone",
	"initials", "ipPhone", "lastLogon", "lastLogonTimestamp", "sn", "scriptPath",
	"mobile", "info", "physicalDeliveryOfficeName", "otherFacsimileTelephoneNumber",
	"otherHomePhone", "otherIpPhone", "otherMobile", "otherPager", "otherTelephone",
	"pager", "postalCode", "postOfficeBox", attrProxyAddresses, "profilePath",
	"sAMAccountType", "sAMAccountName", "st", "streetAddress", "title",
	attrUserAccountControl, "userPrincipalName",
}, extensionAttributes}))

// User wraps a user object.
type User struct {
	*Entry
	extensible
}

// NewUser wraps an entry as a user. The user shares the entry's state.
func NewUser(entry *Entry) *User {
	return &User{Entry: entry, extensible: extensible{entry}}
}

// OpenUser reads the user at dn with UserAttributes.
func OpenUser(ctx context.Context, client ldap.Client, dn string, opts ...Option) (*User, error) {
	entry, err := OpenEntry(ctx, client, dn, append([]Option{WithAttributes(UserAttributes...)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return NewUser(entry), nil
}

// AssistantPhone returns telephoneAssistant.
func (u *User) AssistantPhone() string { return u.getString("telephoneAssistant") }
func (u *User) SetAssistantPhone(v string) { u.setString("telephoneAssistant", v) }

// City returns l.
func (u *User) City() string { return u.getString("l") }
func (u *User) SetCity(v string) { u.setString("l", v) }

// Company returns company.
func (u *User) Company() string { return u.getString("company") }
func (u *User) SetCompany(v string) { u.setString("company", v) }

// Country returns the two-letter country code.
func (u *User) Country() string { return u.getString("c") }
func (u *User) SetCountry(v string) { u.setString("c", v) }

// CountryCode returns the ISO 3166 numeric code, or 0 when absent.
func (u *User) CountryCode() int32 {
	v, _ := u.getInt32("countryCode")
	return v
}

func (u *User) SetCountryCode(v int32) { u.setInt32("countryCode", v) }

// CountryName returns co.
func (u *User) CountryName() string { return u.getString("co") }
func (u *User) SetCountryName(v string) { u.setString("co", v) }

// Department returns department.
func (u *User) Department() string { return u.getString("department") }
func (u *User) SetDepartment(v string) { u.setString("department", v) }

// EmailAddress returns mail.
func (u *User) EmailAddress() string { return u.getString("mail") }
func (u *User) SetEmailAddress(v string) { u.setString("mail", v) }

// EmployeeId returns employeeID.
func (u *User) EmployeeId() string { return u.getString("employeeID") }
func (u *User) SetEmployeeId(v string) { u.setString("employeeID", v) }

// Enabled reports whether ACCOUNTDISABLE is clear. A user without
// userAccountControl reads as enabled.
func (u *User) Enabled() bool {
	uac := u.UserAccountControl()
	return uac == nil || *uac&UACAccountDisabled == 0
}

// SetEnabled flips ACCOUNTDISABLE and leaves every other flag alone.
func (u *User) SetEnabled(enabled bool) {
	uac := UACNormalAccount
	if current := u.UserAccountControl(); current != nil {
		uac = *current
	}

	if enabled {
		uac &^= UACAccountDisabled
	} else {
		uac |= UACAccountDisabled
	}
	u.setInt32(attrUserAccountControl, uac)
}

// ExchangeAlias returns mailNickname.
func (u *User) ExchangeAlias() string { return u.getString("mailNickname") }
func (u *User) SetExchangeAlias(v string) { u.setString("mailNickname", v) }

// ExchangeAssistant returns msExchAssistantName.
func (u *User) ExchangeAssistant() string { return u.getString("msExchAssistantName") }
func (u *User) SetExchangeAssistant(v string) { u.setString("msExchAssistantName", v) }

// ExpirationDate returns accountExpires, or nil when the account never
// expires.
func (u *User) ExpirationDate() *time.Time { return u.getFileTime("accountExpires") }

// SetExpirationDate stages accountExpires. nil means never.
func (u *User) SetExpirationDate(t *time.Time) { u.setFileTime("accountExpires", t) }

// FaxNumber returns facsimileTelephoneNumber.
func (u *User) FaxNumber() string { return u.getString("facsimileTelephoneNumber") }
func (u *User) SetFaxNumber(v string) { u.setString("facsimileTelephoneNumber", v) }

// Firstname returns givenName.
func (u *User) Firstname() string { return u.getString("givenName") }
func (u *User) SetFirstname(v string) { u.setString("givenName", v) }

// HomeDirectory returns homeDirectory.
func (u *User) HomeDirectory() string { return u.getString("homeDirectory") }
func (u *User) SetHomeDirectory(v string) { u.setString("homeDirectory", v) }

// HomeDrive returns homeDrive.
func (u *User) HomeDrive() string { return u.getString("homeDrive") }
func (u *User) SetHomeDrive(v string) { u.setString("homeDrive", v) }

// HomePhone returns homePhone.
func (u *User) HomePhone() string { return u.getString("homePhone") }
func (u *User) SetHomePhone(v string) { u.setString("homePhone", v) }

// Initials returns initials.
func (u *User) Initials() string { return u.getString("initials") }
func (u *User) SetInitials(v string) { u.setString("initials", v) }

// IpPhone returns ipPhone.
func (u *User) IpPhone() string { return u.getString("ipPhone") }
func (u *User) SetIpPhone(v string) { u.setString("ipPhone", v) }

// LastLogon is not replicated; each domain controller holds its own value.
func (u *User) LastLogon() *time.Time { return u.getFileTime("lastLogon") }

// LastLogonTimestamp returns lastLogonTimestamp.
func (u *User) LastLogonTimestamp() *time.Time { return u.getFileTime("lastLogonTimestamp") }

// Lastname returns sn.
func (u *User) Lastname() string { return u.getString("sn") }
func (u *User) SetLastname(v string) { u.setString("sn", v) }

// LoginScript returns scriptPath.
func (u *User) LoginScript() string { return u.getString("scriptPath") }
func (u *User) SetLoginScript(v string) { u.setString("scriptPath", v) }

// MobilePhone returns mobile.
func (u *User) MobilePhone() string { return u.getString("mobile") }
func (u *User) SetMobilePhone(v string) { u.setString("mobile", v) }

// Notes returns info.
func (u *User) Notes() string { return u.getString("info") }
func (u *User) SetNotes(v string) { u.setString("info", v) }

// Office returns physicalDeliveryOfficeName.
func (u *User) Office() string { return u.getString("physicalDeliveryOfficeName") }
func (u *User) SetOffice(v string) { u.setString("physicalDeliveryOfficeName", v) }

// OtherFax returns the values of otherFacsimileTelephoneNumber.
func (u *User) OtherFax() []string { return u.getStrings("otherFacsimileTelephoneNumber") }
func (u *User) SetOtherFax(v []string) { u.setStrings("otherFacsimileTelephoneNumber", v) }

// OtherHomePhone returns the values of otherHomePhone.
func (u *User) OtherHomePhone() []string { return u.getStrings("otherHomePhone") }
func (u *User) SetOtherHomePhone(v []string) { u.setStrings("otherHomePhone", v) }

// OtherIpPhone returns the values of otherIpPhone.
func (u *User) OtherIpPhone() []string { return u.getStrings("otherIpPhone") }
func (u *User) SetOtherIpPhone(v []string) { u.setStrings("otherIpPhone", v) }

// OtherMobile returns the values of otherMobile.
func (u *User) OtherMobile() []string { return u.getStrings("otherMobile") }
func (u *User) SetOtherMobile(v []string) { u.setStrings("otherMobile", v) }

// OtherPager returns the values of otherPager.
func (u *User) OtherPager() []string { return u.getStrings("otherPager") }
func (u *User) SetOtherPager(v []string) { u.setStrings("otherPager", v) }

// OtherTelephoneNumbers returns the values of otherTelephone.
func (u *User) OtherTelephoneNumbers() []string { return u.getStrings("otherTelephone") }
func (u *User) SetOtherTelephoneNumbers(v []string) { u.setStrings("otherTelephone", v) }

// PagerNumber returns pager.
func (u *User) PagerNumber() string { return u.getString("pager") }
func (u *User) SetPagerNumber(v string) { u.setString("pager", v) }

// PostalCode returns postalCode.
func (u *User) PostalCode() string { return u.getString("postalCode") }
func (u *User) SetPostalCode(v string) { u.setString("postalCode", v) }

// PostOfficeBox returns postOfficeBox.
func (u *User) PostOfficeBox() string { return u.getString("postOfficeBox") }
func (u *User) SetPostOfficeBox(v string) { u.setString("postOfficeBox", v) }

// PrimarySipAddress returns the SIP: proxy address, falling back to the
// first sip: address in any case.
func (u *User) PrimarySipAddress() string {
	return PrimaryAddress(u.ProxyAddresses(), ProtocolSIP, true)
}

// SetPrimarySipAddress makes v the SIP: address in proxyAddresses.
func (u *User) SetPrimarySipAddress(v string) error {
	return u.setPrimaryAddress(ProtocolSIP, v)
}

// PrimarySmtpAddress returns the SMTP: proxy address.
func (u *User) PrimarySmtpAddress() string {
	return PrimaryAddress(u.ProxyAddresses(), ProtocolSMTP, false)
}

// SetPrimarySmtpAddress makes v the SMTP: address in proxyAddresses,
// demoting the previous primary.
func (u *User) SetPrimarySmtpAddress(v string) error {
	return u.setPrimaryAddress(ProtocolSMTP, v)
}

func (u *User) setPrimaryAddress(protocol, v string) error {
	addresses, err := SetPrimaryAddress(u.ProxyAddresses(), protocol, v)
	if err != nil {
		return err
	}
	u.SetProxyAddresses(addresses)
	return nil
}

// ProfilePath returns profilePath.
func (u *User) ProfilePath() string { return u.getString("profilePath") }
func (u *User) SetProfilePath(v string) { u.setString("profilePath", v) }

// ProxyAddresses returns the values of proxyAddresses.
func (u *User) ProxyAddresses() []string { return u.getStrings(attrProxyAddresses) }
func (u *User) SetProxyAddresses(v []string) { u.setStrings(attrProxyAddresses, v) }

// SamAccountType is read-only.
func (u *User) SamAccountType() int32 {
	v, _ := u.getInt32("sAMAccountType")
	return v
}

// SamAccountName returns sAMAccountName.
func (u *User) SamAccountName() string { return u.getString("sAMAccountName") }
func (u *User) SetSamAccountName(v string) { u.setString("sAMAccountName", v) }

// State returns st.
func (u *User) State() string { return u.getString("st") }
func (u *User) SetState(v string) { u.setString("st", v) }

// Street returns streetAddress.
func (u *User) Street() string { return u.getString("streetAddress") }
func (u *User) SetStreet(v string) { u.setString("streetAddress", v) }

// Title returns title.
func (u *User) Title() string { return u.getString("title") }
func (u *User) SetTitle(v string) { u.setString("title", v) }

// UserAccountControl returns the raw flags, or nil when absent.
func (u *User) UserAccountControl() *int32 {
	v, ok := u.getInt32(attrUserAccountControl)
	if !ok {
		return nil
	}
	return &v
}

// SetUserAccountControl stages the raw flags. nil clears the attribute.
func (u *User) SetUserAccountControl(v *int32) {
	if v == nil {
		u.props.Clear(attrUserAccountControl)
		return
	}
	u.props.Set(attrUserAccountControl, strconv.FormatInt(int64(*v), 10))
}

// UserPrincipalName returns userPrincipalName.
func (u *User) UserPrincipalName() string { return u.getString("userPrincipalName") }
func (u *User) SetUserPrincipalName(v string) { u.setString("userPrincipalName", v) }

// CopyTo copies the user beneath parent. See Entry.CopyTo.
func (u *User) CopyTo(ctx context.Context, parent, newName string) (*User, error) {
	entry, err := u.Entry.CopyTo(ctx, parent, newName)
	if err != nil {
		return nil, err
	}
	return NewUser(entry), nil
}
