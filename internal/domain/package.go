package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CustomPackageIDPrefix marks package ids synthesized for free-text requests.
const CustomPackageIDPrefix = "custom_"

// CustomPackageName is the booking label used for custom requests.
const CustomPackageName = "Custom Photography Package"

// CustomQuote is the price shown for custom packages.
const CustomQuote = "Custom Quote"

// PackageKind tags the Package variant.
type PackageKind string

const (
	PackagePredefined PackageKind = "predefined"
	PackageCustom     PackageKind = "custom"
)

// Package is a tagged variant: exactly one of Predefined or Custom is set.
type Package struct {
	Predefined *PredefinedPackage
	Custom     *CustomPackage
}

// PredefinedPackage references a catalog entry.
type PredefinedPackage struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// CustomPackage carries free-text requirements; it never has a price.
type CustomPackage struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// NewPredefined wraps a catalog selection.
func NewPredefined(id, name string, price float64) Package {
	return Package{Predefined: &PredefinedPackage{ID: id, Name: name, Price: price}}
}

// NewCustom wraps a free-text request.
func NewCustom(id, description string) Package {
	return Package{Custom: &CustomPackage{ID: id, Description: description}}
}

// CustomPackageID synthesizes the id for a custom request.
func CustomPackageID(epochMillis int64) string {
	return fmt.Sprintf("%s%d", CustomPackageIDPrefix, epochMillis)
}

// IsCustomPackageID reports whether id was synthesized for a custom request.
func IsCustomPackageID(id string) bool {
	return strings.HasPrefix(id, CustomPackageIDPrefix)
}

func (p Package) clone() Package {
	var out Package
	if p.Predefined != nil {
		v := *p.Predefined
		out.Predefined = &v
	}
	if p.Custom != nil {
		v := *p.Custom
		out.Custom = &v
	}
	return out
}

// Kind returns the variant tag, or "" for the zero value.
func (p Package) Kind() PackageKind {
	switch {
	case p.Predefined != nil:
		return PackagePredefined
	case p.Custom != nil:
		return PackageCustom
	}
	return ""
}

// ID returns the id of whichever variant is set.
func (p Package) ID() string {
	switch {
	case p.Predefined != nil:
		return p.Predefined.ID
	case p.Custom != nil:
		return p.Custom.ID
	}
	return ""
}

// DisplayName is the label shown to visitors and admins.
func (p Package) DisplayName() string {
	switch {
	case p.Predefined != nil:
		return p.Predefined.Name
	case p.Custom != nil:
		return CustomPackageName
	}
	return ""
}

// PriceLabel is the human price string.
func (p Package) PriceLabel() string {
	if p.Predefined != nil {
		return FormatINR(p.Predefined.Price)
	}
	return CustomQuote
}

type packageJSON struct {
	Kind        PackageKind `json:"kind"`
	ID          string      `json:"id"`
	Name        string      `json:"name,omitempty"`
	Price       any         `json:"price,omitempty"`
	Description string      `json:"description,omitempty"`
}

// MarshalJSON flattens the variant with an explicit kind tag.
func (p Package) MarshalJSON() ([]byte, error) {
	switch {
	case p.Predefined != nil:
		return json.Marshal(packageJSON{Kind: PackagePredefined, ID: p.Predefined.ID, Name: p.Predefined.Name, Price: p.Predefined.Price})
	case p.Custom != nil:
		return json.Marshal(packageJSON{Kind: PackageCustom, ID: p.Custom.ID, Name: CustomPackageName, Price: CustomQuote, Description: p.Custom.Description})
	}
	return []byte("null"), nil
}

// UnmarshalJSON reads the flattened form written by MarshalJSON.
func (p *Package) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Package{}
		return nil
	}
	var raw struct {
		Kind        PackageKind     `json:"kind"`
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Price       json.RawMessage `json:"price"`
		Description string          `json:"description"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case PackagePredefined:
		var price float64
		if len(raw.Price) > 0 {
			if err := json.Unmarshal(raw.Price, &price); err != nil {
				return fmt.Errorf("domain: predefined package price: %w", err)
			}
		}
		*p = NewPredefined(raw.ID, raw.Name, price)
	case PackageCustom:
		*p = NewCustom(raw.ID, raw.Description)
	default:
		return fmt.Errorf("domain: unknown package kind %q", raw.Kind)
	}
	return nil
}

// FormatINR renders a rupee amount with Indian digit grouping, e.g. ₹1,25,000.
func FormatINR(amount float64) string {
	whole := int64(amount + 0.5)
	s := fmt.Sprintf("%d", whole)
	if len(s) <= 3 {
		return "₹" + s
	}
	head, tail := s[:len(s)-3], s[len(s)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return "₹" + strings.Join(groups, ",") + "," + tail
}
