package tree

import "github.com/shopverse/category_service/models"

// Reorder moves nodeID to targetIndex among the children of parentID (nil for
// the root level) and returns the new forest plus the resulting sibling ids.
//
// targetIndex is read against the sibling list before the moved node is
// removed, which is how a drop zone in front of sibling N is addressed. When
// nodeID is not a child of parentID the original forest is returned together
// with a nil order and the caller should skip the commit.
func Reorder(nodes []*models.CategoryNode, parentID *string, nodeID string, targetIndex int) ([]*models.CategoryNode, []string) {
	cloned := Clone(nodes)

	var siblings []*models.CategoryNode
	var parent *models.CategoryNode
	if parentID == nil {
		siblings = cloned
	} else if parent = Find(cloned, *parentID); parent != nil {
		siblings = parent.Children
	}

	currentIndex := -1
	for i, n := range siblings {
		if n != nil && n.ID == nodeID {
			currentIndex = i
			break
		}
	}
	if currentIndex == -1 {
		return nodes, nil
	}

	insertIndex := targetIndex
	if insertIndex < 0 {
		insertIndex = 0
	}
	if insertIndex > len(siblings) {
		insertIndex = len(siblings)
	}

	moved := siblings[currentIndex]
	siblings = append(siblings[:currentIndex], siblings[currentIndex+1:]...)
	if currentIndex < targetIndex {
		insertIndex = max(0, insertIndex-1)
	}

	siblings = append(siblings, nil)
	copy(siblings[insertIndex+1:], siblings[insertIndex:])
	siblings[insertIndex] = moved

	if parent != nil {
		parent.Children = siblings
	} else {
		cloned = siblings
	}

	ordered := make([]string, len(siblings))
	for i, n := range siblings {
		ordered[i] = n.ID
	}
	return cloned, ordered
}
