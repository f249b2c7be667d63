package entity

import "fmt"

// Category is the closed set of sweet categories.
type Category uint8

const (
	CategoryUnknown Category = iota
	CategorySyrupBased
	CategoryDry
	CategoryFried
	CategoryMilkBased
	CategoryOther
)

var categoryNames = [...]string{
	CategoryUnknown:    "",
	CategorySyrupBased: "Syrup-based",
	CategoryDry:        "Dry",
	CategoryFried:      "Fried",
	CategoryMilkBased:  "Milk-based",
	CategoryOther:      "Other",
}

// Categories returns every valid category in display order.
func Categories() []Category {
	return []Category{CategorySyrupBased, CategoryDry, CategoryFried, CategoryMilkBased, CategoryOther}
}

// ParseCategory matches s exactly against the category names.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories() {
		if categoryNames[c] == s {
			return c, nil
		}
	}
	return CategoryUnknown, fmt.Errorf("unknown category %q", s)
}

func (c Category) Valid() bool {
	return c > CategoryUnknown && c <= CategoryOther
}

func (c Category) String() string {
	if int(c) >= len(categoryNames) {
		return ""
	}
	return categoryNames[c]
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
