package entity

import (
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/oksasatya/go-sweet-shop/pkg/validation"
)

func init() {
	validation.Register("category", func(fl validator.FieldLevel) bool {
		c, ok := fl.Field().Interface().(Category)
		return ok && c.Valid()
	})
}

// MaxQuantity is the largest stock level a sweet can hold. The column is a
// 32-bit integer.
const MaxQuantity = math.MaxInt32

// Sweet is a catalog item. Quantity must never go below zero.
// Version starts at 1 and grows by one with every committed change.
type Sweet struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description" validate:"required"`
	Price       float64   `json:"price" validate:"gte=0"`
	Category    Category  `json:"category" validate:"category"`
	Image       string    `json:"image" validate:"required"`
	Quantity    int       `json:"quantity" validate:"gte=0,lte=2147483647"`
	CreatedAt   time.Time `json:"createdAt"`
	Version     int64     `json:"-"`
}

// Validate checks the record invariants shared by create and update.
func (s *Sweet) Validate() error {
	if err := validation.Struct(s); err != nil {
		return NewValidationError("invalid sweet", validation.ToDetails(err))
	}
	return nil
}

// QuantityRangeError reports a stock level that would not fit MaxQuantity.
func QuantityRangeError() error {
	return NewValidationError("quantity out of range", map[string]string{
		"quantity": "must be less than or equal to 2147483647",
	})
}

// SweetPatch carries caller supplied fields. A nil field was not supplied.
type SweetPatch struct {
	Name        *string
	Description *string
	Price       *float64
	Category    *string
	Image       *string
	Quantity    *int
}

// Missing lists the fields a new sweet cannot be created without.
func (p SweetPatch) Missing() []string {
	var missing []string
	if p.Name == nil || strings.TrimSpace(*p.Name) == "" {
		missing = append(missing, "name")
	}
	if p.Description == nil || strings.TrimSpace(*p.Description) == "" {
		missing = append(missing, "description")
	}
	if p.Price == nil {
		missing = append(missing, "price")
	}
	if p.Category == nil || *p.Category == "" {
		missing = append(missing, "category")
	}
	if p.Image == nil || strings.TrimSpace(*p.Image) == "" {
		missing = append(missing, "image")
	}
	return missing
}

// Apply merges the supplied fields over s. ID and CreatedAt are never touched.
func (p SweetPatch) Apply(s *Sweet) error {
	if p.Category != nil {
		c, err := ParseCategory(*p.Category)
		if err != nil {
			return NewValidationError("invalid sweet", map[string]string{"category": "must be one of: " + categoryList()})
		}
		s.Category = c
	}
	if p.Name != nil {
		s.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		s.Description = strings.TrimSpace(*p.Description)
	}
	if p.Price != nil {
		s.Price = *p.Price
	}
	if p.Image != nil {
		s.Image = strings.TrimSpace(*p.Image)
	}
	if p.Quantity != nil {
		s.Quantity = *p.Quantity
	}
	return nil
}

func categoryList() string {
	names := make([]string, 0, len(Categories()))
	for _, c := range Categories() {
		names = append(names, c.String())
	}
	return strings.Join(names, ", ")
}
