package domain

import (
	"fmt"
	"math"

	"github.com/DRSN-tech/visual-search/pkg/e"
)

// DefaultVectorSize — размерность эмбеддингов в текущей конфигурации (text-embedding-004).
const DefaultVectorSize = 768

// Vector — эмбеддинг изображения фиксированной длины D.
type Vector []float64

// Match — результат запроса к векторному индексу.
type Match struct {
	ID    string
	Score float64
}

// Validate проверяет, что длина вектора равна dim и все компоненты конечны.
func (v Vector) Validate(dim int) error {
	if len(v) != dim {
		return fmt.Errorf("%w: got %d, want %d", e.ErrDimensionMismatch, len(v), dim)
	}

	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return e.ErrNonFiniteVector
		}
	}

	return nil
}

func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

// Norm возвращает евклидову норму вектора.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Float32 конвертирует вектор для клиентов, которые хранят float32 (Qdrant, Gemini).
func (v Vector) Float32() []float32 {
	res := make([]float32, len(v))
	for i, x := range v {
		res[i] = float32(x)
	}
	return res
}

// VectorFromFloat32 конвертирует ответ провайдера в Vector.
func VectorFromFloat32(values []float32) Vector {
	res := make(Vector, len(values))
	for i, x := range values {
		res[i] = float64(x)
	}
	return res
}

// CosineSimilarity считает косинусное сходство. Для векторов разной длины
// или с нулевой нормой возвращает 0.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return CosineWithNorms(a, b, a.Norm(), b.Norm())
}

// CosineWithNorms считает косинусное сходство с заранее посчитанными нормами.
// Результат ограничен отрезком [-1, 1]: ошибка округления в норме не должна
// выводить сходство вектора с самим собой за 1.
func CosineWithNorms(a, b Vector, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}

	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}

	return max(-1, min(1, dot/(normA*normB)))
}
