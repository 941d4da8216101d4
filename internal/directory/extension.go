package directory

import (
	"fmt"

	"github.com/samber/lo"
)

const (
	MinExtensionAttribute = 1
	MaxExtensionAttribute = 15
)

// extensionAttributes lists extensionAttribute1 through extensionAttribute15.
var extensionAttributes = lo.Map(lo.RangeFrom(MinExtensionAttribute, MaxExtensionAttribute), func(i, _ int) string {
	return fmt.Sprintf("extensionAttribute%d", i)
})

// ExtensionAttributeName returns the attribute name for index.
func ExtensionAttributeName(index int) (string, error) {
	if index < MinExtensionAttribute || index > MaxExtensionAttribute {
		return "", fmt.Errorf("%w: extension attribute index must be between %d and %d, got %d",
			ErrInvalidArgument, MinExtensionAttribute, MaxExtensionAttribute, index)
	}
	return extensionAttributes[index-1], nil
}

// extensible gives User and Group the extensionAttribute accessors.
type extensible struct {
	*Entry
}

// GetExtensionAttribute returns extensionAttribute{index}.
func (x extensible) GetExtensionAttribute(index int) (string, error) {
	name, err := ExtensionAttributeName(index)
	if err != nil {
		return "", err
	}
	return x.getString(name), nil
}

// SetExtensionAttribute stages extensionAttribute{index}. An empty value
// clears it.
func (x extensible) SetExtensionAttribute(index int, value string) error {
	name, err := ExtensionAttributeName(index)
	if err != nil {
		return err
	}
	x.setString(name, value)
	return nil
}

// ExtensionAttributes returns the set extension attributes keyed by index.
func (x extensible) ExtensionAttributes() map[int]string {
	out := make(map[int]string)
	for i, name := range extensionAttributes {
		if v := x.getString(name); v != "" {
			out[i+MinExtensionAttribute] = v
		}
	}
	return out
}
