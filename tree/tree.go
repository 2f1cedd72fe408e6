// Package tree holds the pure operations on a category forest: copying,
// searching, flattening, count normalization and sibling reordering.
// None of the functions mutate their input.
package tree

import (
	"strings"

	"github.com/shopverse/category_service/models"
)

// FlatNode is one pre-order entry of a flattened forest
type FlatNode struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Depth int    `json:"depth"`
}

// IndentedLabel renders the entry with one "— " per nesting level
func (f FlatNode) IndentedLabel() string {
	return strings.Repeat("— ", f.Depth) + f.Name
}

// Clone returns a deep copy of the forest preserving every field and child
// order. Nil entries are dropped at every level.
func Clone(nodes []*models.CategoryNode) []*models.CategoryNode {
	if nodes == nil {
		return nil
	}
	out := make([]*models.CategoryNode, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, cloneNode(n))
		}
	}
	return out
}

func cloneNode(n *models.CategoryNode) *models.CategoryNode {
	c := *n
	if n.ParentID != nil {
		pid := *n.ParentID
		c.ParentID = &pid
	}
	c.Children = Clone(n.Children)
	if c.Children == nil {
		c.Children = make([]*models.CategoryNode, 0)
	}
	return &c
}

// Find returns the first node with the given id in depth-first order, or nil.
func Find(nodes []*models.CategoryNode, id string) *models.CategoryNode {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.ID == id {
			return n
		}
		if match := Find(n.Children, id); match != nil {
			return match
		}
	}
	return nil
}

// CollectDescendantIDs returns the node's own id plus the ids of all its
// transitive children. It walks with an explicit stack so malformed, very deep
// trees cannot exhaust the goroutine stack.
func CollectDescendantIDs(node *models.CategoryNode) map[string]struct{} {
	ids := make(map[string]struct{})
	if node == nil {
		return ids
	}
	collect(ids, []*models.CategoryNode{node})
	return ids
}

// CollectAllIDs returns the ids of every node in the forest
func CollectAllIDs(nodes []*models.CategoryNode) map[string]struct{} {
	ids := make(map[string]struct{})
	collect(ids, nodes)
	return ids
}

func collect(ids map[string]struct{}, roots []*models.CategoryNode) {
	stack := append([]*models.CategoryNode(nil), roots...)
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == nil {
			continue
		}
		if _, seen := ids[current.ID]; seen {
			continue
		}
		ids[current.ID] = struct{}{}
		stack = append(stack, current.Children...)
	}
}

// Flatten emits one entry per node in pre-order with its nesting depth (roots are 0).
func Flatten(nodes []*models.CategoryNode) []FlatNode {
	result := make([]FlatNode, 0)
	return flatten(result, nodes, 0)
}

func flatten(result []FlatNode, nodes []*models.CategoryNode, depth int) []FlatNode {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		result = append(result, FlatNode{ID: n.ID, Name: n.Name, Depth: depth})
		result = flatten(result, n.Children, depth+1)
	}
	return result
}

// Normalize returns a copy of the forest with nil child lists replaced by empty
// ones, negative direct counts reset to zero, depths assigned and every
// TotalCount recomputed bottom-up. Incoming TotalCount values are never trusted.
func Normalize(nodes []*models.CategoryNode) []*models.CategoryNode {
	out := Clone(nodes)
	if out == nil {
		out = make([]*models.CategoryNode, 0)
	}
	for _, n := range out {
		normalizeNode(n, 0)
	}
	return out
}

func normalizeNode(n *models.CategoryNode, depth int) int64 {
	if n == nil {
		return 0
	}
	if n.DirectCount < 0 {
		n.DirectCount = 0
	}
	n.Depth = depth
	total := n.DirectCount
	for _, child := range n.Children {
		total += normalizeNode(child, depth+1)
	}
	n.TotalCount = total
	return total
}
