// Package validators holds attribute validators shared by the provider's
// schemas.
package validators

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
)

var _ validator.String = stringCheck{}

// stringCheck validates configured strings with check. summary titles the
// diagnostic.
type stringCheck struct {
	description string
	summary     string
	check       func(string) error
}

func (v stringCheck) Description(_ context.Context) string {
	return v.description
}

func (v stringCheck) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

func (v stringCheck) ValidateString(_ context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()
	if err := v.check(value); err != nil {
		response.Diagnostics.AddAttributeError(
			request.Path,
			v.summary,
			fmt.Sprintf("The value %q is not valid: %s", value, err.Error()),
		)
	}
}

// IsValidDN returns a validator which ensures that any configured
// attribute value is a valid Distinguished Name (DN).
//
// Unknown values and null values are skipped from validation.
func IsValidDN() validator.String {
	return stringCheck{
		description: "value must be a valid Distinguished Name (DN)",
		summary:     "Invalid Distinguished Name",
		check: func(value string) error {
			if value == "" {
				return errors.New("DN cannot be empty")
			}
			_, err := ldap.ParseDN(value)
			return err
		},
	}
}

// IsRFC3339 returns a validator which ensures that any configured attribute
// value is an RFC3339 timestamp.
func IsRFC3339() validator.String {
	return stringCheck{
		description: "value must be an RFC3339 timestamp",
		summary:     "Invalid Timestamp",
		check: func(value string) error {
			_, err := time.Parse(time.RFC3339, value)
			return err
		},
	}
}
