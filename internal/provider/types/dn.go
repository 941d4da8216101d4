// Package types holds custom Terraform attribute types.
package types

import (
	"context"
	"fmt"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types/basetypes"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
)

var (
	_ basetypes.StringTypable                    = DNType{}
	_ basetypes.StringValuableWithSemanticEquals = DNValue{}
)

// DNType is a string attribute holding a Distinguished Name. Values that
// differ only in case or spacing around separators compare equal, so a DN
// echoed back by the directory does not show as drift.
type DNType struct {
	basetypes.StringType
}

func (t DNType) String() string { return "DNType" }

func (t DNType) ValueType(_ context.Context) attr.Value { return DNValue{} }

func (t DNType) Equal(o attr.Type) bool {
	other, ok := o.(DNType)
	return ok && t.StringType.Equal(other.StringType)
}

func (t DNType) ValueFromString(_ context.Context, in basetypes.StringValue) (basetypes.StringValuable, diag.Diagnostics) {
	return DNValue{StringValue: in}, nil
}

func (t DNType) ValueFromTerraform(ctx context.Context, in tftypes.Value) (attr.Value, error) {
	value, err := t.StringType.ValueFromTerraform(ctx, in)
	if err != nil {
		return nil, err
	}

	s, ok := value.(basetypes.StringValue)
	if !ok {
		return nil, fmt.Errorf("unexpected value type %T", value)
	}
	return DNValue{StringValue: s}, nil
}

// DNValue is a value of DNType.
type DNValue struct {
	basetypes.StringValue
}

func (v DNValue) Equal(o attr.Value) bool {
	other, ok := o.(DNValue)
	return ok && v.StringValue.Equal(other.StringValue)
}

func (v DNValue) Type(_ context.Context) attr.Type { return DNType{} }

// StringSemanticEquals compares the parsed DNs case-insensitively. Values
// that do not parse fall back to a case-insensitive string comparison.
func (v DNValue) StringSemanticEquals(_ context.Context, newValuable basetypes.StringValuable) (bool, diag.Diagnostics) {
	var diags diag.Diagnostics

	other, ok := newValuable.(DNValue)
	if !ok {
		diags.AddError(
			"Semantic Equality Check Error",
			fmt.Sprintf("Expected DNValue, got %T. Please report this issue to the provider developers.", newValuable),
		)
		return false, diags
	}

	if v.IsNull() || v.IsUnknown() || other.IsNull() || other.IsUnknown() {
		return v.Equal(other), diags
	}

	return DNEqual(v.ValueString(), other.ValueString()), diags
}

// DNEqual reports whether a and b name the same entry.
func DNEqual(a, b string) bool {
	da, errA := goldap.ParseDN(a)
	db, errB := goldap.ParseDN(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return da.EqualFold(db)
}

func DN(value string) DNValue { return DNValue{StringValue: basetypes.NewStringValue(value)} }

func DNNull() DNValue { return DNValue{StringValue: basetypes.NewStringNull()} }

func DNUnknown() DNValue { return DNValue{StringValue: basetypes.NewStringUnknown()} }
