package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
)

func TestClassifyQuery(t *testing.T) {
	tests := []struct {
		query string
		want  entities.QueryShape
	}{
		{"1234567", entities.ShapeNumericCode},
		{" 1234567 ", entities.ShapeNumericCode},
		{"123456", entities.ShapeFreeText},
		{"12345678", entities.ShapeFreeText},
		{"C10AA05", entities.ShapeClassificationCode},
		{"c10aa05", entities.ShapeClassificationCode},
		{"N02", entities.ShapeClassificationCode},
		{"N02B", entities.ShapeClassificationCode},
		{"N02BE01", entities.ShapeClassificationCode},
		{"N02BE012", entities.ShapeFreeText},
		{"paracetamol", entities.ShapeFreeText},
		{"C1", entities.ShapeFreeText},
		{"", entities.ShapeFreeText},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyQuery(tt.query))
		})
	}
}
