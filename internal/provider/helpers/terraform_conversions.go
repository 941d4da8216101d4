// Package helpers converts between directory wrapper values and Terraform
// framework values.
package helpers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/samber/lo"
)

// StringOrNull maps the wrappers' "" (absent) to null.
func StringOrNull(v string) types.String {
	if v == "" {
		return types.StringNull()
	}
	return types.StringValue(v)
}

// TimeOrNull formats t as RFC3339 in UTC, or null when t is nil.
func TimeOrNull(t *time.Time) types.String {
	if t == nil {
		return types.StringNull()
	}
	return types.StringValue(t.UTC().Format(time.RFC3339))
}

// ParseTime parses an RFC3339 value. Null, unknown and "" yield nil.
func ParseTime(v types.String) (*time.Time, error) {
	if v.IsNull() || v.IsUnknown() || v.ValueString() == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v.ValueString())
	if err != nil {
		return nil, fmt.Errorf("invalid RFC3339 timestamp %q: %w", v.ValueString(), err)
	}
	return &t, nil
}

// StringList converts values to a list of strings. nil becomes an empty list.
func StringList(ctx context.Context, values []string) (types.List, diag.Diagnostics) {
	return types.ListValueFrom(ctx, types.StringType, lo.Ternary(values == nil, []string{}, values))
}

// ExtensionAttributesToMap keys extension attribute values by their index.
func ExtensionAttributesToMap(ctx context.Context, values map[int]string) (types.Map, diag.Diagnostics) {
	return types.MapValueFrom(ctx, types.StringType, lo.MapKeys(values, func(_ string, index int) string {
		return strconv.Itoa(index)
	}))
}

// MapToExtensionAttributes is the inverse of ExtensionAttributesToMap. Keys
// must be decimal indexes; range checks are left to the directory package.
func MapToExtensionAttributes(ctx context.Context, m types.Map) (map[int]string, diag.Diagnostics) {
	var diags diag.Diagnostics
	if m.IsNull() || m.IsUnknown() {
		return map[int]string{}, diags
	}

	raw := make(map[string]string, len(m.Elements()))
	diags.Append(m.ElementsAs(ctx, &raw, false)...)
	if diags.HasError() {
		return nil, diags
	}

	result := make(map[int]string, len(raw))
	for key, value := range raw {
		index, err := strconv.Atoi(key)
		if err != nil {
			diags.AddError("Invalid Extension Attribute Key", fmt.Sprintf("Key %q is not a number.", key))
			continue
		}
		result[index] = value
	}
	return result, diags
}
