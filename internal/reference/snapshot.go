package reference

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Snapshot is a validated, read-only view of the reference tables. It is
// safe for any number of concurrent readers.
type Snapshot struct {
	combos   map[string]ComboDefinition
	yields   map[string]float64
	costs    map[string]decimal.Decimal
	targets  map[uint]map[string]Target
	proxies  map[uint]uint
	proteins map[string]string // lowercase -> canonical key
}

// Normalize is the matching form of an item identifier.
func Normalize(item string) string {
	return strings.ToLower(strings.TrimSpace(item))
}

func NewSnapshot(t Tables) (*Snapshot, error) {
	s := &Snapshot{
		combos:   make(map[string]ComboDefinition, len(t.Combos)),
		yields:   make(map[string]float64, len(t.Yields)),
		costs:    make(map[string]decimal.Decimal, len(t.Costs)),
		targets:  make(map[uint]map[string]Target, len(t.Targets)),
		proxies:  make(map[uint]uint, len(t.Proxies)),
		proteins: make(map[string]string),
	}

	for p, y := range t.Yields {
		if !(y > 0 && y <= 1) {
			return nil, fmt.Errorf("%w: %q has yield %v, want (0, 1]", ErrInvalidYield, p, y)
		}
		s.yields[p] = y
		if err := s.indexProtein(p); err != nil {
			return nil, err
		}
	}

	for p, c := range t.Costs {
		if c.IsNegative() {
			return nil, fmt.Errorf("%w: %q costs %s per lb", ErrInvalidCost, p, c)
		}
		s.costs[p] = c
		if err := s.indexProtein(p); err != nil {
			return nil, err
		}
	}

	for _, c := range t.Combos {
		key := Normalize(c.DisplayName)
		if key == "" || len(c.Components) == 0 {
			return nil, fmt.Errorf("%w: %q has no name or no components", ErrInvalidCombo, c.DisplayName)
		}
		if _, dup := s.combos[key]; dup {
			return nil, fmt.Errorf("%w: %q defined twice", ErrInvalidCombo, c.DisplayName)
		}
		comps := make([]ComboComponent, len(c.Components))
		for i, comp := range c.Components {
			if !(comp.WeightPerUnit > 0) {
				return nil, fmt.Errorf("%w: %q component %q weighs %v", ErrInvalidCombo, c.DisplayName, comp.Protein, comp.WeightPerUnit)
			}
			if err := s.indexProtein(comp.Protein); err != nil {
				return nil, err
			}
			comps[i] = comp
		}
		s.combos[key] = ComboDefinition{DisplayName: c.DisplayName, Components: comps}
	}

	for storeID, byProtein := range t.Targets {
		m := make(map[string]Target, len(byProtein))
		for p, tg := range byProtein {
			if tg.WeightPerGuest < 0 {
				return nil, fmt.Errorf("%w: store %d %q target %v lbs/guest", ErrInvalidTarget, storeID, p, tg.WeightPerGuest)
			}
			if tg.CostPerGuest != nil {
				c := *tg.CostPerGuest
				tg.CostPerGuest = &c
			}
			m[p] = tg
			if err := s.indexProtein(p); err != nil {
				return nil, err
			}
		}
		s.targets[storeID] = m
	}

	for storeID, proxy := range t.Proxies {
		s.proxies[storeID] = proxy
	}

	return s, nil
}

func (s *Snapshot) indexProtein(p string) error {
	key := Normalize(p)
	if existing, ok := s.proteins[key]; ok && existing != p {
		return fmt.Errorf("%w: %q and %q", ErrAmbiguousProtein, existing, p)
	}
	s.proteins[key] = p
	return nil
}

// Combo looks up a combo by item identifier (case-insensitive, trimmed).
func (s *Snapshot) Combo(item string) (ComboDefinition, bool) {
	c, ok := s.combos[Normalize(item)]
	return c, ok
}

// Protein returns the canonical protein key for an item identifier.
func (s *Snapshot) Protein(item string) (string, bool) {
	p, ok := s.proteins[Normalize(item)]
	return p, ok
}

// Yield returns the trim yield of a protein. Proteins without an entry
// lose nothing in trimming, so the default is 1.0.
func (s *Snapshot) Yield(protein string) (float64, error) {
	y, ok := s.yields[protein]
	if !ok {
		return 1.0, nil
	}
	if !(y > 0 && y <= 1) {
		return 0, fmt.Errorf("%w: %q has yield %v", ErrInvalidYield, protein, y)
	}
	return y, nil
}

// Cost returns the cost per lb. There is no default.
func (s *Snapshot) Cost(protein string) (decimal.Decimal, bool) {
	c, ok := s.costs[protein]
	return c, ok
}

// Target resolves a store's target for a protein. A store with no targets
// at all falls back to its proxy store, one level deep.
func (s *Snapshot) Target(storeID uint, protein string) (Target, bool) {
	byProtein, ok := s.targets[s.targetStore(storeID)]
	if !ok {
		return Target{}, false
	}
	t, ok := byProtein[protein]
	return t, ok
}

// TargetProteins lists the proteins a store (or its proxy) has targets for, sorted.
func (s *Snapshot) TargetProteins(storeID uint) []string {
	byProtein := s.targets[s.targetStore(storeID)]
	out := make([]string, 0, len(byProtein))
	for p := range byProtein {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s *Snapshot) targetStore(storeID uint) uint {
	if _, measured := s.targets[storeID]; measured {
		return storeID
	}
	if proxy, ok := s.proxies[storeID]; ok {
		return proxy
	}
	return storeID
}

// Proteins lists every canonical protein key known to the snapshot, sorted.
func (s *Snapshot) Proteins() []string {
	out := make([]string, 0, len(s.proteins))
	for _, p := range s.proteins {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Holder publishes the current snapshot to concurrent readers.
type Holder struct {
	p atomic.Pointer[Snapshot]
}

func NewHolder(s *Snapshot) *Holder {
	h := &Holder{}
	h.p.Store(s)
	return h
}

func (h *Holder) Load() *Snapshot {
	return h.p.Load()
}

// Swap installs a new snapshot and returns the previous one.
func (h *Holder) Swap(s *Snapshot) *Snapshot {
	return h.p.Swap(s)
}
