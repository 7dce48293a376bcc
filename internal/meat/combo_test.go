package meat

import (
	"errors"
	"testing"

	"meatengine/internal/reference"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFamilyPlatterTimesThree(t *testing.T) {
	r := NewResolver(testSnapshot(t))

	lines, err := r.Resolve("Family Platter", 3)
	require.NoError(t, err)
	assert.Equal(t, []Line{
		{Protein: "Picanha", Weight: 3.0},
		{Protein: "Chicken", Weight: 3.0},
		{Protein: "Lamb Chops", Weight: 1.5},
	}, lines)
}

func TestResolveComboWeightsSumToDefinition(t *testing.T) {
	for _, snap := range []*reference.Snapshot{testSnapshot(t), defaultSnapshot(t)} {
		r := NewResolver(snap)
		for _, name := range []string{"Family Platter", "Churrasco Plate"} {
			combo, ok := snap.Combo(name)
			require.True(t, ok)

			var want float64
			for _, c := range combo.Components {
				want += c.WeightPerUnit
			}

			lines, err := r.Resolve(name, 1)
			require.NoError(t, err)
			var got float64
			for _, l := range lines {
				got += l.Weight
			}
			assert.InDelta(t, want, got, 1e-9, name)
		}
	}
}

func TestResolveNormalizesIdentifier(t *testing.T) {
	r := NewResolver(testSnapshot(t))

	lines, err := r.Resolve("  churrasco PLATE\t", 2)
	require.NoError(t, err)
	assert.Len(t, lines, 3)

	lines, err = r.Resolve(" picanha ", 4.25)
	require.NoError(t, err)
	assert.Equal(t, []Line{{Protein: "Picanha", Weight: 4.25}}, lines)
}

func TestResolveUnrecognizedItem(t *testing.T) {
	r := NewResolver(testSnapshot(t))

	_, err := r.Resolve("Pao de Queijo", 12)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnrecognizedItem))

	var unrec *UnrecognizedItemError
	require.True(t, errors.As(err, &unrec))
	assert.Equal(t, "Pao de Queijo", unrec.Item)
}

func TestResolveRejectsNegativeQuantity(t *testing.T) {
	r := NewResolver(testSnapshot(t))
	_, err := r.Resolve("Picanha", -1)
	assert.True(t, errors.Is(err, ErrInvalidQuantity))
}

func defaultSnapshot(t *testing.T) *reference.Snapshot {
	t.Helper()
	snap, err := reference.NewSnapshot(reference.Defaults())
	require.NoError(t, err)
	return snap
}
