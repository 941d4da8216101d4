package validators

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"

	"github.com/isometry/terraform-provider-adex/internal/directory"
)

var _ validator.Map = extensionAttributeKeysValidator{}

// extensionAttributeKeysValidator checks that map keys name extension
// attribute indexes.
type extensionAttributeKeysValidator struct{}

func (v extensionAttributeKeysValidator) Description(_ context.Context) string {
	return fmt.Sprintf("map keys must be extension attribute indexes from %d to %d",
		directory.MinExtensionAttribute, directory.MaxExtensionAttribute)
}

func (v extensionAttributeKeysValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

func (v extensionAttributeKeysValidator) ValidateMap(ctx context.Context, request validator.MapRequest, response *validator.MapResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	for key := range request.ConfigValue.Elements() {
		index, err := strconv.Atoi(key)
		if err == nil {
			_, err = directory.ExtensionAttributeName(index)
		}
		if err != nil {
			response.Diagnostics.AddAttributeError(
				request.Path.AtMapKey(key),
				"Invalid Extension Attribute Key",
				fmt.Sprintf("The key %q is not valid: %s.", key, v.Description(ctx)),
			)
		}
	}
}

// ExtensionAttributeKeys returns a validator which ensures every map key is a
// decimal index between 1 and 15, naming extensionAttribute1..15.
//
// Unknown values and null values are skipped from validation.
func ExtensionAttributeKeys() validator.Map {
	return extensionAttributeKeysValidator{}
}
