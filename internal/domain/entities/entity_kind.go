package entities

import (
	"fmt"
	"strings"
)

// EntityKind identifies one of the searchable entity collections.
// The numeric value doubles as the ranking priority: lower sorts first.
type EntityKind int

const (
	KindSubstanceRoot    EntityKind = iota + 1 // VTM
	KindGenericProduct                         // VMP
	KindBrandedProduct                         // AMP
	KindPackage                                // AMPP
	KindManufacturer                           // company
	KindTherapeuticGroup                       // VMP group
	KindRawSubstance                           // substance
	KindClassification                         // ATC
)

// AllKinds lists every entity kind in priority order. Searchers are
// dispatched in this order, which is also the dedup tie-break order.
var AllKinds = []EntityKind{
	KindSubstanceRoot,
	KindGenericProduct,
	KindBrandedProduct,
	KindPackage,
	KindManufacturer,
	KindTherapeuticGroup,
	KindRawSubstance,
	KindClassification,
}

// String returns the wire name of the kind
func (k EntityKind) String() string {
	switch k {
	case KindSubstanceRoot:
		return "vtm"
	case KindGenericProduct:
		return "vmp"
	case KindBrandedProduct:
		return "amp"
	case KindPackage:
		return "ampp"
	case KindManufacturer:
		return "company"
	case KindTherapeuticGroup:
		return "vmp_group"
	case KindRawSubstance:
		return "substance"
	case KindClassification:
		return "atc"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Priority is the tie-break rank used after score. Lower is better.
func (k EntityKind) Priority() int {
	return int(k)
}

// Valid reports whether k is one of the known kinds
func (k EntityKind) Valid() bool {
	return k >= KindSubstanceRoot && k <= KindClassification
}

// ParseEntityKind maps a wire name to its kind
func ParseEntityKind(s string) (EntityKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, k := range AllKinds {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown entity type %q", s)
}

// ParseEntityKinds parses a comma-separated list of kinds. Duplicates are
// collapsed and blank entries ignored.
func ParseEntityKinds(csv string) ([]EntityKind, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	seen := make(map[EntityKind]bool)
	var kinds []EntityKind
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := ParseEntityKind(part)
		if err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// MarshalText implements encoding.TextMarshaler
func (k EntityKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid entity kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *EntityKind) UnmarshalText(text []byte) error {
	parsed, err := ParseEntityKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
