package core

import (
	"fmt"
	"sort"
	"strings"
)

// BuiltinCategory is one of the fixed category tags.
type BuiltinCategory string

const (
	Groceries BuiltinCategory = "groceries"
	Rent      BuiltinCategory = "rent"
	Bills     BuiltinCategory = "bills"
	Transport BuiltinCategory = "transport"
	Health    BuiltinCategory = "health"
	Education BuiltinCategory = "education"
	Dining    BuiltinCategory = "dining"
	Shopping  BuiltinCategory = "shopping"
	Other     BuiltinCategory = "other"
)

const customKeyPrefix = "custom:"

var builtinCategories = []BuiltinCategory{
	Groceries, Rent, Bills, Transport, Health, Education, Dining, Shopping, Other,
}

var builtinNames = map[BuiltinCategory]string{
	Groceries: "Groceries",
	Rent:      "Rent",
	Bills:     "Bills",
	Transport: "Transport",
	Health:    "Health",
	Education: "Education",
	Dining:    "Dining",
	Shopping:  "Shopping",
	Other:     "Other",
}

// Category is either a builtin tag or a user-defined custom name. Exactly one
// of the two variants is set; use Builtin and Custom to construct values.
type Category struct {
	builtin BuiltinCategory
	custom  string
}

func Builtin(tag BuiltinCategory) Category { return Category{builtin: tag} }

func Custom(name string) Category { return Category{custom: name} }

// BuiltinCategories returns the fixed tags in display order.
func BuiltinCategories() []BuiltinCategory {
	return append([]BuiltinCategory(nil), builtinCategories...)
}

func (c Category) IsCustom() bool { return c.custom != "" }

// Tag returns the builtin tag and true, or "" and false for a custom category.
func (c Category) Tag() (BuiltinCategory, bool) {
	if c.IsCustom() {
		return "", false
	}
	return c.builtin, true
}

// CustomName returns the name of a custom category, or "".
func (c Category) CustomName() string { return c.custom }

// Key returns the stable storage key.
func (c Category) Key() string {
	if c.IsCustom() {
		return customKeyPrefix + c.custom
	}
	return string(c.builtin)
}

func (c Category) DisplayName() string {
	if c.IsCustom() {
		return c.custom
	}
	if n, ok := builtinNames[c.builtin]; ok {
		return n
	}
	return string(c.builtin)
}

func (c Category) String() string { return c.Key() }

func (c Category) Validate() error {
	if c.IsCustom() {
		if strings.TrimSpace(c.custom) == "" {
			return ErrEmptyCategoryName
		}
		return nil
	}
	if _, ok := builtinNames[c.builtin]; !ok {
		return ErrUnknownCategory
	}
	return nil
}

// ParseCategoryKey is the inverse of Key.
func ParseCategoryKey(key string) (Category, error) {
	if name, ok := strings.CutPrefix(key, customKeyPrefix); ok {
		if strings.TrimSpace(name) == "" {
			return Category{}, ErrEmptyCategoryName
		}
		return Custom(name), nil
	}
	c := Builtin(BuiltinCategory(key))
	if err := c.Validate(); err != nil {
		return Category{}, fmt.Errorf("%w: %q", err, key)
	}
	return c, nil
}

// LookupBuiltin matches a tag or display name case-insensitively.
func LookupBuiltin(s string) (BuiltinCategory, bool) {
	s = strings.TrimSpace(s)
	for _, b := range builtinCategories {
		if strings.EqualFold(s, string(b)) || strings.EqualFold(s, builtinNames[b]) {
			return b, true
		}
	}
	return "", false
}

func sortFold(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
}
