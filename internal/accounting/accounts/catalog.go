package accounts

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Catalog is an immutable arena over the account forest. Nodes are addressed
// by position; parent/child links are index lists, never pointers.
type Catalog struct {
	accounts    []Account
	index       map[int64]int
	children    [][]int
	roots       []int
	costCenters map[int64]CostCenter
}

// NewCatalog builds the arena. Accounts whose parent is missing (or that sit
// on a parent cycle) become additional roots. Siblings are ordered by code.
func NewCatalog(accounts []Account, costCenters []CostCenter) (*Catalog, error) {
	sorted := make([]Account, len(accounts))
	copy(sorted, accounts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	c := &Catalog{
		accounts:    sorted,
		index:       make(map[int64]int, len(sorted)),
		children:    make([][]int, len(sorted)),
		costCenters: make(map[int64]CostCenter, len(costCenters)),
	}
	for i, acc := range sorted {
		if _, dup := c.index[acc.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate account id %d", shared.ErrValidation, acc.ID)
		}
		c.index[acc.ID] = i
	}
	parent := make([]int, len(sorted))
	for i, acc := range sorted {
		parent[i] = -1
		if acc.ParentID == nil || *acc.ParentID == acc.ID {
			c.roots = append(c.roots, i)
			continue
		}
		p, ok := c.index[*acc.ParentID]
		if !ok {
			c.roots = append(c.roots, i)
			continue
		}
		parent[i] = p
		c.children[p] = append(c.children[p], i)
	}
	c.breakCycles(parent)
	for _, cc := range costCenters {
		c.costCenters[cc.ID] = cc
	}
	return c, nil
}

// breakCycles promotes the lowest-code node of every unreachable component to
// a root so each account is visited exactly once from Roots.
func (c *Catalog) breakCycles(parent []int) {
	reached := make([]bool, len(c.accounts))
	var mark func(int)
	mark = func(i int) {
		if reached[i] {
			return
		}
		reached[i] = true
		for _, child := range c.children[i] {
			mark(child)
		}
	}
	for _, r := range c.roots {
		mark(r)
	}
	for i := range c.accounts {
		if reached[i] {
			continue
		}
		p := parent[i]
		siblings := c.children[p]
		for k, s := range siblings {
			if s == i {
				c.children[p] = append(siblings[:k:k], siblings[k+1:]...)
				break
			}
		}
		c.roots = append(c.roots, i)
		mark(i)
	}
	sort.Ints(c.roots)
}

// Len returns the number of accounts in the catalog.
func (c *Catalog) Len() int { return len(c.accounts) }

// Get returns the account with the given id.
func (c *Catalog) Get(id int64) (Account, bool) {
	i, ok := c.index[id]
	if !ok {
		return Account{}, false
	}
	return c.accounts[i], true
}

// Roots returns root account ids ordered by code.
func (c *Catalog) Roots() []int64 {
	return c.ids(c.roots)
}

// Children returns the direct children of id ordered by code.
func (c *Catalog) Children(id int64) []int64 {
	i, ok := c.index[id]
	if !ok {
		return nil
	}
	return c.ids(c.children[i])
}

// IsLeaf reports whether the account has no children.
func (c *Catalog) IsLeaf(id int64) bool {
	i, ok := c.index[id]
	return ok && len(c.children[i]) == 0
}

// RequirePostable fails unless id names an active, postable leaf account.
func (c *Catalog) RequirePostable(id int64) (Account, error) {
	acc, ok := c.Get(id)
	if !ok {
		return Account{}, fmt.Errorf("%w: %w: unknown account %d", shared.ErrNotFound, shared.ErrAccountNotPostable, id)
	}
	if !acc.IsPostable || !acc.IsActive || !c.IsLeaf(id) {
		return Account{}, fmt.Errorf("%w: account %s", shared.ErrAccountNotPostable, acc.Code)
	}
	return acc, nil
}

// RequireCostCenter fails when id is not a known cost center.
func (c *Catalog) RequireCostCenter(id int64) (CostCenter, error) {
	cc, ok := c.costCenters[id]
	if !ok {
		return CostCenter{}, fmt.Errorf("%w: unknown cost center %d", shared.ErrValidation, id)
	}
	return cc, nil
}

// CostCenters returns every cost center ordered by code.
func (c *Catalog) CostCenters() []CostCenter {
	out := make([]CostCenter, 0, len(c.costCenters))
	for _, cc := range c.costCenters {
		out = append(out, cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Search matches term against code and both names, ignoring case and
// Unicode compatibility differences. An empty term matches everything.
func (c *Catalog) Search(term string, postableOnly bool) []Account {
	fold := cases.Fold()
	needle := fold.String(norm.NFKC.String(strings.TrimSpace(term)))
	out := make([]Account, 0)
	for _, acc := range c.accounts {
		if postableOnly {
			if _, err := c.RequirePostable(acc.ID); err != nil {
				continue
			}
		}
		if needle != "" && !matches(fold, needle, acc.Code, acc.NameAr, acc.NameEn) {
			continue
		}
		out = append(out, acc)
	}
	return out
}

func matches(fold cases.Caser, needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(fold.String(norm.NFKC.String(f)), needle) {
			return true
		}
	}
	return false
}

func (c *Catalog) ids(idx []int) []int64 {
	out := make([]int64, len(idx))
	for k, i := range idx {
		out[k] = c.accounts[i].ID
	}
	return out
}
