package models

import (
	"fmt"
	"strings"
)

// Category is the closed set of ledger categories.
type Category string

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryUtilities     Category = "Utilities"
	CategoryRent          Category = "Rent"
	CategoryEntertainment Category = "Entertainment"
	CategoryShopping      Category = "Shopping"
	CategoryHealth        Category = "Health"
	CategoryEducation     Category = "Education"
	CategorySalary        Category = "Salary"
	CategoryInvestment    Category = "Investment"
	CategoryOtherIncome   Category = "Other Income"
	CategorySavings       Category = "Savings"
	CategoryMisc          Category = "Misc"

	// CategoryUncategorized is used for entries without a recognised category.
	CategoryUncategorized Category = "Uncategorized"
)

var selectable = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryUtilities,
	CategoryRent,
	CategoryEntertainment,
	CategoryShopping,
	CategoryHealth,
	CategoryEducation,
	CategorySalary,
	CategoryInvestment,
	CategoryOtherIncome,
	CategorySavings,
	CategoryMisc,
}

// Categories returns the categories offered for selection, in display order.
func Categories() []Category {
	out := make([]Category, len(selectable))
	copy(out, selectable)
	return out
}

// ParseCategory resolves user input to a category. Empty input yields
// CategoryUncategorized; matching ignores case.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CategoryUncategorized, nil
	}
	if strings.EqualFold(s, string(CategoryUncategorized)) {
		return CategoryUncategorized, nil
	}
	for _, c := range selectable {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// NormalizeCategory maps a stored value onto the closed set, falling back to
// CategoryUncategorized.
func NormalizeCategory(s string) Category {
	c, err := ParseCategory(s)
	if err != nil {
		return CategoryUncategorized
	}
	return c
}

// IsIncome reports whether entries in this category count as income.
func (c Category) IsIncome() bool {
	switch c {
	case CategorySalary, CategoryInvestment, CategoryOtherIncome:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}
