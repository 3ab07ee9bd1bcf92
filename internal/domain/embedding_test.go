package domain

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/stretchr/testify/assert"
)

func TestVector_Validate(t *testing.T) {
	assert.NoError(t, Vector{1, 0}.Validate(2))
	assert.ErrorIs(t, Vector{1, 0, 0}.Validate(2), e.ErrDimensionMismatch)
	assert.ErrorIs(t, Vector{}.Validate(2), e.ErrValidation)
	assert.ErrorIs(t, Vector{math.NaN(), 1}.Validate(2), e.ErrNonFiniteVector)
	assert.ErrorIs(t, Vector{math.Inf(1), 1}.Validate(2), e.ErrValidation)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity(Vector{1, 0}, Vector{1, 0}), 1e-12)
	assert.InDelta(t, 0.0, CosineSimilarity(Vector{1, 0}, Vector{0, 1}), 1e-12)
	assert.InDelta(t, -1.0, CosineSimilarity(Vector{1, 0}, Vector{-2, 0}), 1e-12)
	assert.InDelta(t, 0.9939, CosineSimilarity(Vector{1, 0}, Vector{0.9, 0.1}), 1e-4)

	assert.Zero(t, CosineSimilarity(Vector{0, 0}, Vector{1, 0}))
	assert.Zero(t, CosineSimilarity(Vector{1}, Vector{1, 0}))
}

func TestCosineSimilarity_StaysInRange(t *testing.T) {
	rnd := rand.New(rand.NewPCG(7, 11))

	for range 500 {
		a := make(Vector, DefaultVectorSize)
		b := make(Vector, DefaultVectorSize)
		for i := range a {
			a[i] = rnd.NormFloat64()
			b[i] = rnd.NormFloat64()
		}

		self := CosineSimilarity(a, a)
		assert.LessOrEqual(t, self, 1.0)
		assert.InDelta(t, 1.0, self, 1e-12)

		opposite := make(Vector, len(a))
		for i := range a {
			opposite[i] = -a[i]
		}
		assert.GreaterOrEqual(t, CosineSimilarity(a, opposite), -1.0)

		cross := CosineSimilarity(a, b)
		assert.LessOrEqual(t, cross, 1.0)
		assert.GreaterOrEqual(t, cross, -1.0)
	}
}

func TestProduct_CloneIsDeep(t *testing.T) {
	p := &Product{ID: "a", Embedding: Vector{1, 2}, Metadata: &Metadata{Brand: "acme"}}
	c := p.Clone()

	c.Embedding[0] = 42
	c.Metadata.Brand = "other"

	assert.Equal(t, 1.0, p.Embedding[0])
	assert.Equal(t, "acme", p.Metadata.Brand)
}
