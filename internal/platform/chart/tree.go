package chart

import (
	"sort"

	"github.com/google/uuid"
)

// Tree is the account hierarchy of one company, indexed by id
type Tree struct {
	nodes    map[uuid.UUID]*Account
	children map[uuid.UUID][]uuid.UUID
	roots    []uuid.UUID
}

// NewTree indexes accounts by id. Accounts whose parent is not in the set
// are treated as roots. Children are ordered by code.
func NewTree(accounts []*Account) *Tree {
	t := &Tree{
		nodes:    make(map[uuid.UUID]*Account, len(accounts)),
		children: make(map[uuid.UUID][]uuid.UUID),
	}
	for _, a := range accounts {
		t.nodes[a.ID] = a
	}

	sorted := make([]*Account, len(accounts))
	copy(sorted, accounts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	for _, a := range sorted {
		if a.ParentID != nil {
			if _, ok := t.nodes[*a.ParentID]; ok {
				t.children[*a.ParentID] = append(t.children[*a.ParentID], a.ID)
				continue
			}
		}
		t.roots = append(t.roots, a.ID)
	}
	return t
}

// Get returns the account with the given id
func (t *Tree) Get(id uuid.UUID) (*Account, bool) {
	a, ok := t.nodes[id]
	return a, ok
}

// Len returns the number of accounts
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Roots returns the accounts without parent
func (t *Tree) Roots() []*Account {
	return t.resolve(t.roots)
}

// Children returns the direct children of an account
func (t *Tree) Children(id uuid.UUID) []*Account {
	return t.resolve(t.children[id])
}

// Ancestors returns the parent chain of an account, nearest first
func (t *Tree) Ancestors(id uuid.UUID) []*Account {
	var result []*Account
	seen := map[uuid.UUID]bool{id: true}

	node, ok := t.nodes[id]
	for ok && node.ParentID != nil && !seen[*node.ParentID] {
		parent, found := t.nodes[*node.ParentID]
		if !found {
			break
		}
		seen[parent.ID] = true
		result = append(result, parent)
		node = parent
	}
	return result
}

// Descendants returns every account below id, depth first
func (t *Tree) Descendants(id uuid.UUID) []*Account {
	var result []*Account
	stack := append([]uuid.UUID(nil), t.children[id]...)
	for len(stack) > 0 {
		next := stack[0]
		stack = stack[1:]
		result = append(result, t.nodes[next])
		stack = append(append([]uuid.UUID(nil), t.children[next]...), stack...)
	}
	return result
}

// IsAncestor reports whether candidate appears in the parent chain of id
func (t *Tree) IsAncestor(candidate, id uuid.UUID) bool {
	for _, a := range t.Ancestors(id) {
		if a.ID == candidate {
			return true
		}
	}
	return false
}

func (t *Tree) resolve(ids []uuid.UUID) []*Account {
	result := make([]*Account, 0, len(ids))
	for _, id := range ids {
		result = append(result, t.nodes[id])
	}
	return result
}
