package meat

import (
	"errors"
	"fmt"

	"meatengine/internal/reference"
)

var (
	ErrUnrecognizedItem  = errors.New("unrecognized item")
	ErrMissingCostEntry  = errors.New("missing cost entry")
	ErrMissingTarget     = errors.New("missing meat target")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidGuestCount = errors.New("invalid guest count")
	ErrInvalidYield      = reference.ErrInvalidYield
)

// UnrecognizedItemError is returned when an item is neither a combo nor a
// known protein. The caller decides whether to drop, log or escalate.
type UnrecognizedItemError struct {
	Item string
}

func (e *UnrecognizedItemError) Error() string {
	return fmt.Sprintf("unrecognized item %q", e.Item)
}

func (e *UnrecognizedItemError) Unwrap() error { return ErrUnrecognizedItem }

type GapKind string

const (
	GapMissingCost   GapKind = "missing_cost"
	GapMissingTarget GapKind = "missing_target"
	GapInvalidYield  GapKind = "invalid_yield"
)

// ConfigGapError marks reference data that is missing or broken. These must
// reach an operator; they are never defaulted.
type ConfigGapError struct {
	Kind    GapKind `json:"kind"`
	StoreID uint    `json:"store_id"`
	Protein string  `json:"protein"`
	Err     error   `json:"-"`
}

func (e *ConfigGapError) Error() string {
	return fmt.Sprintf("configuration gap (%s) for store %d, protein %q: %v", e.Kind, e.StoreID, e.Protein, e.Err)
}

func (e *ConfigGapError) Unwrap() error { return e.Err }

func gapFor(storeID uint, protein string, err error) error {
	var kind GapKind
	switch {
	case errors.Is(err, ErrMissingCostEntry):
		kind = GapMissingCost
	case errors.Is(err, ErrMissingTarget):
		kind = GapMissingTarget
	case errors.Is(err, ErrInvalidYield):
		kind = GapInvalidYield
	default:
		return err
	}
	return &ConfigGapError{Kind: kind, StoreID: storeID, Protein: protein, Err: err}
}
