// Package engine keeps the client-side copy of the category tree for one
// editing session and applies sibling reorders optimistically before
// committing them to the authoritative store.
//
// The local tree is a disposable projection: it is replaced wholesale on every
// load, swapped for a reordered copy on every move, and reloaded from the store
// whenever a commit fails. Nothing is ever patched in place.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/shopverse/category_service/models"
	"github.com/shopverse/category_service/tree"
)

// Errors reported by the engine and by Store implementations.
var (
	// ErrLoadFailed wraps any failure of Store.FetchTree
	ErrLoadFailed = errors.New("unable to load category tree")
	// ErrCommitRejected is returned by stores when the order command was refused
	ErrCommitRejected = errors.New("category order rejected")
	// ErrTransportFailure is returned by stores when the remote could not be reached
	ErrTransportFailure = errors.New("category store unreachable")
)

// Store is the authoritative remote category store.
type Store interface {
	// FetchTree returns the whole forest with direct counts filled in.
	// Aggregate counts may be missing.
	FetchTree(ctx context.Context) ([]*models.CategoryNode, error)

	// SetSiblingOrder replaces the child order of parentID (nil for the root
	// level) with orderedIDs. Submitting the same order twice is harmless.
	SetSiblingOrder(ctx context.Context, parentID *string, orderedIDs []string) error
}

// CommitError reports a failed order commit. The local tree has already been
// replaced by a fresh copy from the store unless ResyncErr is set.
type CommitError struct {
	Err       error
	ResyncErr error
}

func (e *CommitError) Error() string {
	if e.ResyncErr != nil {
		return fmt.Sprintf("commit category order: %v (resync failed: %v)", e.Err, e.ResyncErr)
	}
	return fmt.Sprintf("commit category order: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Resynced reports whether the local tree was reloaded after the failure
func (e *CommitError) Resynced() bool { return e.ResyncErr == nil }

// MoveResult describes an applied move
type MoveResult struct {
	ParentID   *string
	NodeID     string
	OrderedIDs []string
}

// Summary aggregates the loaded tree
type Summary struct {
	TotalCategories int   `json:"totalCategories"`
	RootCategories  int   `json:"rootCategories"`
	TotalProducts   int64 `json:"totalProducts"`
	MaxDepth        int   `json:"maxDepth"`
}

type dragSource struct {
	nodeID   string
	parentID *string
}

type dropTarget struct {
	parentID *string
	index    int
}

// Session owns the current tree, the expanded-node set and the in-progress
// drag of one editor.
type Session struct {
	store Store
	log   *zap.SugaredLogger

	mu         sync.Mutex
	tree       []*models.CategoryNode
	expanded   map[string]struct{}
	drag       *dragSource
	drop       *dropTarget
	generation uint64
	fetchSeq   uint64
}

// NewSession creates an empty session. Call Load before moving anything.
func NewSession(store Store, log *zap.SugaredLogger) *Session {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Session{
		store:    store,
		log:      log,
		tree:     make([]*models.CategoryNode, 0),
		expanded: make(map[string]struct{}),
	}
}

// Load fetches the tree, normalizes its counts and replaces the local copy.
// Expanded ids that no longer exist are dropped; when none survive every root
// is expanded. expandIDs are added when they exist in the new tree.
//
// If another Load starts before this one returns, the older response is
// discarded.
func (s *Session) Load(ctx context.Context, expandIDs ...string) error {
	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	nodes, err := s.store.FetchTree(ctx)
	if err != nil {
		s.log.Warnw("category tree load failed", "error", err)
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	normalized := tree.Normalize(nodes)
	all := tree.CollectAllIDs(normalized)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.fetchSeq {
		s.log.Debugw("discarding superseded category tree", "seq", seq, "latest", s.fetchSeq)
		return nil
	}

	s.tree = normalized
	s.generation++

	next := make(map[string]struct{}, len(s.expanded))
	for id := range s.expanded {
		if _, ok := all[id]; ok {
			next[id] = struct{}{}
		}
	}
	if len(next) == 0 {
		for _, n := range normalized {
			next[n.ID] = struct{}{}
		}
	}
	for _, id := range expandIDs {
		if _, ok := all[id]; ok {
			next[id] = struct{}{}
		}
	}
	s.expanded = next

	if s.drag != nil {
		if _, ok := all[s.drag.nodeID]; !ok {
			s.drag, s.drop = nil, nil
		}
	}

	s.log.Debugw("category tree loaded", "categories", len(all), "generation", s.generation)
	return nil
}

// Tree returns a copy of the current tree
func (s *Session) Tree() []*models.CategoryNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tree.Clone(s.tree)
}

// Generation increases every time the local tree is replaced
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// BeginMove records nodeID, currently a child of parentID, as the drag source.
func (s *Session) BeginMove(nodeID string, parentID *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag = &dragSource{nodeID: nodeID, parentID: copyID(parentID)}
	s.drop = nil
}

// DragSource returns the node being moved, if any
func (s *Session) DragSource() (nodeID string, parentID *string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil {
		return "", nil, false
	}
	return s.drag.nodeID, copyID(s.drag.parentID), true
}

// ProposeDrop records the drop position. Drops under a different parent than
// the one the move began in are ignored and false is returned: categories are
// never re-parented by dragging.
func (s *Session) ProposeDrop(parentID *string, targetIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil || !sameParent(s.drag.parentID, parentID) {
		return false
	}
	s.drop = &dropTarget{parentID: copyID(parentID), index: targetIndex}
	return true
}

// CancelMove forgets the drag source and any proposed drop
func (s *Session) CancelMove() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag, s.drop = nil, nil
}

// CommitMove applies the proposed drop to the local tree and sends the new
// sibling order to the store. It returns a nil result when there is nothing to
// do: no drag, no accepted drop, or a node that is no longer under its parent.
// In the last case the drag source is kept so another drop can be proposed.
//
// On a failed commit the tree is reloaded from the store and a *CommitError is
// returned together with the move that was attempted.
func (s *Session) CommitMove(ctx context.Context) (*MoveResult, error) {
	s.mu.Lock()
	drag, drop := s.drag, s.drop
	s.drag, s.drop = nil, nil
	if drag == nil || drop == nil {
		s.mu.Unlock()
		return nil, nil
	}

	next, ordered := tree.Reorder(s.tree, drop.parentID, drag.nodeID, drop.index)
	if len(ordered) == 0 {
		s.drag = drag
		s.mu.Unlock()
		s.log.Debugw("category move skipped, node not under parent",
			"node", drag.nodeID, "parent", idString(drop.parentID))
		return nil, nil
	}
	s.tree = next
	s.generation++
	s.mu.Unlock()

	result := &MoveResult{ParentID: drop.parentID, NodeID: drag.nodeID, OrderedIDs: ordered}
	s.log.Debugw("category move applied locally",
		"node", drag.nodeID, "parent", idString(drop.parentID), "index", drop.index)

	if err := s.store.SetSiblingOrder(ctx, drop.parentID, ordered); err != nil {
		s.log.Warnw("category order commit failed, reloading tree",
			"node", drag.nodeID, "parent", idString(drop.parentID), "error", err)
		commitErr := &CommitError{Err: err}
		if loadErr := s.Load(ctx); loadErr != nil {
			commitErr.ResyncErr = loadErr
		}
		return result, commitErr
	}

	s.log.Infow("category order committed", "parent", idString(drop.parentID), "count", len(ordered))
	return result, nil
}

// Move runs a complete begin, drop and commit cycle
func (s *Session) Move(ctx context.Context, parentID *string, nodeID string, targetIndex int) (*MoveResult, error) {
	s.BeginMove(nodeID, parentID)
	s.ProposeDrop(parentID, targetIndex)
	return s.CommitMove(ctx)
}

// ToggleExpand flips the expanded state of id
func (s *Session) ToggleExpand(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expanded[id]; ok {
		delete(s.expanded, id)
		return
	}
	s.expanded[id] = struct{}{}
}

// IsExpanded reports whether id is expanded
func (s *Session) IsExpanded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.expanded[id]
	return ok
}

// ExpandedIDs returns the expanded ids in sorted order
func (s *Session) ExpandedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.expanded))
	for id := range s.expanded {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ParentOptions lists the categories selectable as parent of editingID: the
// whole flattened tree minus the category itself and its descendants. An empty
// editingID means a new category and returns every entry.
func (s *Session) ParentOptions(editingID string) []tree.FlatNode {
	s.mu.Lock()
	defer s.mu.Unlock()

	flat := tree.Flatten(s.tree)
	if editingID == "" {
		return flat
	}
	excluded := tree.CollectDescendantIDs(tree.Find(s.tree, editingID))
	options := make([]tree.FlatNode, 0, len(flat))
	for _, f := range flat {
		if _, skip := excluded[f.ID]; !skip {
			options = append(options, f)
		}
	}
	return options
}

// Summary aggregates the current tree
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		TotalCategories: len(tree.CollectAllIDs(s.tree)),
		RootCategories:  len(s.tree),
	}
	for _, root := range s.tree {
		sum.TotalProducts += root.TotalCount
	}
	for _, f := range tree.Flatten(s.tree) {
		if f.Depth > sum.MaxDepth {
			sum.MaxDepth = f.Depth
		}
	}
	return sum
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func idString(id *string) string {
	if id == nil {
		return "root"
	}
	return *id
}
