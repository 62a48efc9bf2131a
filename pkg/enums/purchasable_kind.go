package enums

import "fmt"

// PurchasableKind discriminates the two sellable catalog shapes. Grants for
// both kinds live in one table keyed by (buyer, kind, id).
type PurchasableKind string

const (
	PurchasableKindCourse PurchasableKind = "course"
	PurchasableKindPath   PurchasableKind = "path"
)

var validPurchasableKinds = []PurchasableKind{
	PurchasableKindCourse,
	PurchasableKindPath,
}

// String implements fmt.Stringer.
func (k PurchasableKind) String() string {
	return string(k)
}

// IsValid reports whether the value is known.
func (k PurchasableKind) IsValid() bool {
	for _, candidate := range validPurchasableKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParsePurchasableKind converts raw input into a PurchasableKind.
func ParsePurchasableKind(value string) (PurchasableKind, error) {
	for _, candidate := range validPurchasableKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchasable kind %q", value)
}
