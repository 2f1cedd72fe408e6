package models

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CategoryRequest is the body of the create and update category endpoints
type CategoryRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description string  `json:"description,omitempty" validate:"max=2000"`
	ImageURL    string  `json:"imageUrl,omitempty" validate:"omitempty,max=255"`
	ParentID    *string `json:"parentId,omitempty" validate:"omitempty,uuid"`
}

// Normalize trims surrounding whitespace from the text fields
func (r *CategoryRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.ImageURL = strings.TrimSpace(r.ImageURL)
	if r.ParentID != nil && strings.TrimSpace(*r.ParentID) == "" {
		r.ParentID = nil
	}
}

// Validate normalizes and validates the category request
func (r *CategoryRequest) Validate() error {
	r.Normalize()
	return validate.Struct(r)
}

// ReorderRequest replaces the child order of one parent. A nil ParentID
// addresses the root level.
type ReorderRequest struct {
	ParentID           *string  `json:"parentId"`
	OrderedCategoryIDs []string `json:"orderedCategoryIds" validate:"required,min=1,dive,required"`
}

// Validate validates the reorder request
func (r *ReorderRequest) Validate() error {
	if r.ParentID != nil && strings.TrimSpace(*r.ParentID) == "" {
		r.ParentID = nil
	}
	return validate.Struct(r)
}
