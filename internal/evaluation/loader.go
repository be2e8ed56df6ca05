package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
)

// LoadGoldenQueries reads and parses a golden query set from a JSON file.
func LoadGoldenQueries(path string) ([]GoldenQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden queries file: %w", err)
	}

	var queries []GoldenQuery
	if err := json.Unmarshal(data, &queries); err != nil {
		return nil, fmt.Errorf("failed to parse golden queries: %w", err)
	}

	return queries, nil
}

var validDifficulties = map[string]bool{
	"easy":   true,
	"medium": true,
	"hard":   true,
}

// ValidateGoldenQueries checks that all golden queries have required fields and valid values.
func ValidateGoldenQueries(queries []GoldenQuery) error {
	seen := make(map[string]struct{}, len(queries))

	for i, q := range queries {
		if q.ID == "" {
			return fmt.Errorf("query at index %d: missing id", i)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("query at index %d: duplicate id %q", i, q.ID)
		}
		seen[q.ID] = struct{}{}

		if strings.TrimSpace(q.Query) == "" && !q.Relations.Any() {
			return fmt.Errorf("query %q: needs query text or a relationship filter", q.ID)
		}
		if !q.Category.IsValid() {
			return fmt.Errorf("query %q: invalid category %q", q.ID, q.Category)
		}
		if !validDifficulties[q.Difficulty] {
			return fmt.Errorf("query %q: invalid difficulty %q (must be easy/medium/hard)", q.ID, q.Difficulty)
		}
		if len(q.Expected) == 0 {
			return fmt.Errorf("query %q: no expected results", q.ID)
		}
		for _, key := range q.Expected {
			if err := validateResultKey(key); err != nil {
				return fmt.Errorf("query %q: %w", q.ID, err)
			}
		}
	}

	return nil
}

func validateResultKey(key string) error {
	kind, code, ok := strings.Cut(key, ":")
	if !ok || code == "" {
		return fmt.Errorf("expected result %q is not <type>:<code>", key)
	}
	if _, err := entities.ParseEntityKind(kind); err != nil {
		return fmt.Errorf("expected result %q: %w", key, err)
	}
	return nil
}
