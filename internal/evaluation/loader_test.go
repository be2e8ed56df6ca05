package evaluation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
)

func TestLoadGoldenQueries_ValidFile(t *testing.T) {
	content := `[
		{"id": "q1", "query": "paracetamol", "category": "name", "expected": ["vtm:1001", "atc:N02BE01"], "difficulty": "easy"},
		{"id": "q2", "query": "", "relations": {"company": "C01"}, "types": ["amp", "ampp"], "category": "filter", "expected": ["amp:3001"], "difficulty": "medium"}
	]`
	path := writeTempFile(t, content)

	queries, err := LoadGoldenQueries(path)
	require.NoError(t, err)
	require.Len(t, queries, 2)

	assert.Equal(t, "q1", queries[0].ID)
	assert.Equal(t, CategoryName, queries[0].Category)
	assert.Equal(t, []string{"vtm:1001", "atc:N02BE01"}, queries[0].Expected)
	assert.Equal(t, "C01", queries[1].Relations.ManufacturerCode)
	assert.Equal(t, []entities.EntityKind{entities.KindBrandedProduct, entities.KindPackage}, queries[1].Types)
	assert.NoError(t, ValidateGoldenQueries(queries))
}

func TestLoadGoldenQueries_Errors(t *testing.T) {
	_, err := LoadGoldenQueries("/nonexistent/path.json")
	assert.Error(t, err)

	_, err = LoadGoldenQueries(writeTempFile(t, `not valid json`))
	assert.Error(t, err)

	_, err = LoadGoldenQueries(writeTempFile(t, `[{"id": "q1", "types": ["pill"]}]`))
	assert.Error(t, err)
}

func TestValidateGoldenQueries_Rejects(t *testing.T) {
	valid := GoldenQuery{ID: "q1", Query: "paracetamol", Category: CategoryName, Expected: []string{"vtm:1001"}, Difficulty: "easy"}

	tests := map[string]func(q *GoldenQuery){
		"missing id":         func(q *GoldenQuery) { q.ID = "" },
		"no text or filter":  func(q *GoldenQuery) { q.Query = "  " },
		"invalid category":   func(q *GoldenQuery) { q.Category = "symptom" },
		"invalid difficulty": func(q *GoldenQuery) { q.Difficulty = "impossible" },
		"no expectations":    func(q *GoldenQuery) { q.Expected = nil },
		"malformed key":      func(q *GoldenQuery) { q.Expected = []string{"1001"} },
		"unknown type":       func(q *GoldenQuery) { q.Expected = []string{"pill:1001"} },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			q := valid
			mutate(&q)
			assert.Error(t, ValidateGoldenQueries([]GoldenQuery{q}))
		})
	}
}

func TestValidateGoldenQueries_DuplicateIDs(t *testing.T) {
	q := GoldenQuery{ID: "q1", Query: "paracetamol", Category: CategoryName, Expected: []string{"vtm:1001"}, Difficulty: "easy"}
	err := ValidateGoldenQueries([]GoldenQuery{q, q})
	assert.ErrorContains(t, err, "duplicate id")
}

func TestValidateGoldenQueries_FilterOnly(t *testing.T) {
	q := GoldenQuery{
		ID:         "q1",
		Relations:  entities.RelationshipFilters{ManufacturerCode: "C01"},
		Category:   CategoryFilter,
		Expected:   []string{"amp:3001"},
		Difficulty: "easy",
	}
	assert.NoError(t, ValidateGoldenQueries([]GoldenQuery{q}))
}

func TestCategory_IsValid(t *testing.T) {
	for _, c := range []Category{CategoryName, CategoryCode, CategoryFilter} {
		assert.True(t, c.IsValid(), c)
	}
	assert.False(t, Category("").IsValid())
	assert.False(t, Category("intent").IsValid())
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "golden.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
