package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Category struct {
	UUID      uuid.UUID `json:"uuid"`
	Name      string    `json:"name"`
	GroupName string    `json:"group"`
}

// String renders the category in the group:name form accepted by ParseCategory.
func (c Category) String() string {
	return c.GroupName + ":" + c.Name
}

// ParseCategory parses "group:name".
func ParseCategory(s string) (Category, error) {
	group, name, ok := strings.Cut(s, ":")
	group, name = strings.TrimSpace(group), strings.TrimSpace(name)
	if !ok || group == "" || name == "" {
		return Category{}, fmt.Errorf("category %q must be in the form group:name", s)
	}
	return Category{GroupName: group, Name: name}, nil
}

// DefaultCategories is the set installed by `category init`.
var DefaultCategories = map[string][]string{
	"Mandatory":     {"Energy", "Food", "Insurance"},
	"Discretionary": {"Entertainment", "Hobbies", "Vacation"},
}

type DisplayName struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}
