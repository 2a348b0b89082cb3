package hierarchy

import (
	"fmt"

	"bahamut/pkg/types"
)

// Node is one stop place in a parent/child tree. Parent is a back-reference
// for upward walks only.
type Node struct {
	Place    *types.StopPlace
	Parent   *Node
	Children []*Node
}

func (n *Node) IsRoot() bool {
	return n.Parent == nil
}

// Depth is 0 for a root.
func (n *Node) Depth() int {
	d := 0
	for p := n.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// Ancestors returns the parent chain, nearest first.
func (n *Node) Ancestors() []*Node {
	var out []*Node
	for p := n.Parent; p != nil; p = p.Parent {
		out = append(out, p)
	}
	return out
}

// Walk visits n and its descendants in pre-order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// CycleError is returned when parent references loop back on themselves.
type CycleError struct {
	ID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("stop place hierarchy has a parent reference cycle at %s", e.ID)
}

// Build links flat stop places into trees via their parent references and
// returns every node reachable from a root in depth-first pre-order.
// Places whose parent does not exist are left out.
func Build(places []types.StopPlace) ([]*Node, error) {
	byParent := make(map[string][]*types.StopPlace)
	var roots []*types.StopPlace
	for i := range places {
		p := &places[i]
		if p.HasParent() {
			byParent[p.ParentRef] = append(byParent[p.ParentRef], p)
		} else {
			roots = append(roots, p)
		}
	}

	out := make([]*Node, 0, len(places))
	reached := make(map[*types.StopPlace]bool, len(places))

	var attach func(parent *Node, path map[string]bool) error
	attach = func(parent *Node, path map[string]bool) error {
		for _, place := range byParent[parent.Place.ID] {
			if path[place.ID] {
				return &CycleError{ID: place.ID}
			}
			child := &Node{Place: place, Parent: parent}
			parent.Children = append(parent.Children, child)
			out = append(out, child)
			reached[place] = true

			path[place.ID] = true
			err := attach(child, path)
			delete(path, place.ID)
			if err != nil {
				return err
			}
		}
		return nil
	}

	for _, place := range roots {
		root := &Node{Place: place}
		out = append(out, root)
		reached[place] = true
		if err := attach(root, map[string]bool{place.ID: true}); err != nil {
			return nil, err
		}
	}

	if err := checkUnreached(places, reached); err != nil {
		return nil, err
	}
	return out, nil
}

// checkUnreached reports a cycle among places no root leads to. Chains that
// end at an unknown parent are plain orphans.
func checkUnreached(places []types.StopPlace, reached map[*types.StopPlace]bool) error {
	byID := make(map[string]*types.StopPlace, len(places))
	for i := range places {
		if _, dup := byID[places[i].ID]; !dup {
			byID[places[i].ID] = &places[i]
		}
	}

	for i := range places {
		p := &places[i]
		if reached[p] {
			continue
		}
		seen := map[string]bool{}
		for cur := p; cur != nil && cur.HasParent(); cur = byID[cur.ParentRef] {
			if seen[cur.ID] {
				return &CycleError{ID: cur.ID}
			}
			seen[cur.ID] = true
		}
	}
	return nil
}
