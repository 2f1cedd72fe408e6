package models

import "time"

// CategoryNode is one node of the category hierarchy as served by the admin tree
// endpoint. Children order is the display order among siblings.
type CategoryNode struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	ImageURL     string          `json:"imageUrl,omitempty"`
	ParentID     *string         `json:"parentId,omitempty"`
	ParentName   string          `json:"parentName,omitempty"`
	DisplayOrder int             `json:"displayOrder"`
	DirectCount  int64           `json:"productCount"`
	TotalCount   int64           `json:"totalProductCount"`
	Depth        int             `json:"depth"`
	CreatedAt    time.Time       `json:"createdAt,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt,omitempty"`
	Children     []*CategoryNode `json:"children"`
}

// NewCategoryNode creates a node with an empty child list
func NewCategoryNode(id, name string) *CategoryNode {
	return &CategoryNode{
		ID:       id,
		Name:     name,
		Children: make([]*CategoryNode, 0),
	}
}

// AddChild appends a child node
func (n *CategoryNode) AddChild(child *CategoryNode) {
	n.Children = append(n.Children, child)
}

// IsRoot reports whether the node sits at the top level
func (n *CategoryNode) IsRoot() bool {
	return n.ParentID == nil
}
