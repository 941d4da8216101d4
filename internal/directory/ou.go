package directory

import (
	"context"

	"github.com/samber/lo"

	"github.com/isometry/terraform-provider-adex/internal/ldap"
)

// OUAttributes is the attribute set loaded by OpenOU.
var OUAttributes = lo.Uniq(lo.Flatten([][]string{entryAttributes, {
	"ou", "l", "c", "countryCode", "co", "facsimileTelephoneNumber",
	"physicalDeliveryOfficeName", "postalCode", "postOfficeBox", "st", "street",
}}))

// OU wraps an organizational unit.
type OU struct {
	*Entry
}

func NewOU(entry *Entry) *OU {
	return &OU{Entry: entry}
}

// OpenOU reads the OU at dn with OUAttributes.
func OpenOU(ctx context.Context, client ldap.Client, dn string, opts ...Option) (*OU, error) {
	entry, err := OpenEntry(ctx, client, dn, append([]Option{WithAttributes(OUAttributes...)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return NewOU(entry), nil
}

// City returns l.
func (o *OU) City() string { return o.getString("l") }
func (o *OU) SetCity(v string) { o.setString("l", v) }

// Country returns c.
func (o *OU) Country() string { return o.getString("c") }
func (o *OU) SetCountry(v string) { o.setString("c", v) }

// CountryCode returns countryCode, or 0 when absent.
func (o *OU) CountryCode() int32 {
	v, _ := o.getInt32("countryCode")
	return v
}

func (o *OU) SetCountryCode(v int32) { o.setInt32("countryCode", v) }

// CountryName returns co.
func (o *OU) CountryName() string { return o.getString("co") }
func (o *OU) SetCountryName(v string) { o.setString("co", v) }

// FaxNumber returns facsimileTelephoneNumber.
func (o *OU) FaxNumber() string { return o.getString("facsimileTelephoneNumber") }
func (o *OU) SetFaxNumber(v string) { o.setString("facsimileTelephoneNumber", v) }

// Office returns physicalDeliveryOfficeName.
func (o *OU) Office() string { return o.getString("physicalDeliveryOfficeName") }
func (o *OU) SetOffice(v string) { o.setString("physicalDeliveryOfficeName", v) }

// PostalCode returns postalCode.
func (o *OU) PostalCode() string { return o.getString("postalCode") }
func (o *OU) SetPostalCode(v string) { o.setString("postalCode", v) }

// PostOfficeBox returns postOfficeBox.
func (o *OU) PostOfficeBox() string { return o.getString("postOfficeBox") }
func (o *OU) SetPostOfficeBox(v string) { o.setString("postOfficeBox", v) }

// State returns st.
func (o *OU) State() string { return o.getString("st") }
func (o *OU) SetState(v string) { o.setString("st", v) }

// Street uses the street attribute, not streetAddress as on users.
func (o *OU) Street() string { return o.getString("street") }
func (o *OU) SetStreet(v string) { o.setString("street", v) }

// CopyTo copies the OU, without its children, beneath parent.
func (o *OU) CopyTo(ctx context.Context, parent, newName string) (*OU, error) {
	entry, err := o.Entry.CopyTo(ctx, parent, newName)
	if err != nil {
		return nil, err
	}
	return NewOU(entry), nil
}
