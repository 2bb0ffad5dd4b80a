package rebate

import (
	"fmt"
	"sort"

	"github.com/attaboy/backoffice/internal/domain"
)

// Catalog holds rebate setups keyed by their unique name.
type Catalog struct {
	setups map[string]domain.RebateSetup
	frozen map[string]bool
}

// NewCatalog validates setups and rejects duplicate names.
func NewCatalog(setups ...domain.RebateSetup) (*Catalog, error) {
	c := &Catalog{
		setups: make(map[string]domain.RebateSetup, len(setups)),
		frozen: make(map[string]bool),
	}
	for _, s := range setups {
		if _, exists := c.setups[s.Name]; exists {
			return nil, domain.ErrConflict(fmt.Sprintf("duplicate rebate setup name %q", s.Name))
		}
		if err := domain.ValidateRebateSetup(s); err != nil {
			return nil, domain.ErrValidation(fmt.Sprintf("rebate setup %q: %v", s.Name, err))
		}
		c.setups[s.Name] = s
	}
	return c, nil
}

// Lookup returns a copy of the named setup.
func (c *Catalog) Lookup(name string) (*domain.RebateSetup, bool) {
	if c == nil {
		return nil, false
	}
	s, ok := c.setups[name]
	if !ok {
		return nil, false
	}
	return &s, true
}

// All returns the setups ordered by name.
func (c *Catalog) All() []domain.RebateSetup {
	out := make([]domain.RebateSetup, 0, len(c.setups))
	for _, s := range c.setups {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Put creates or replaces a setup. A frozen setup cannot be edited.
func (c *Catalog) Put(s domain.RebateSetup) error {
	if err := domain.ValidateRebateSetup(s); err != nil {
		return domain.ErrValidation(err.Error())
	}
	if c.frozen[s.Name] {
		return domain.ErrConflict(fmt.Sprintf("rebate setup %q is referenced by a completed transaction", s.Name))
	}
	c.setups[s.Name] = s
	return nil
}

// Freeze marks a setup as referenced by a completed transaction.
func (c *Catalog) Freeze(name string) {
	if _, ok := c.setups[name]; ok {
		c.frozen[name] = true
	}
}

// Frozen reports whether the named setup has been frozen.
func (c *Catalog) Frozen(name string) bool {
	return c.frozen[name]
}
