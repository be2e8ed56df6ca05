package main

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
	apperrors "github.com/to-ny/medsearch-sub001/pkg/errors"
)

const sampleSnapshot = "../../internal/adapters/snapshot/testdata/sample.json"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Execute(args, &out)
	return out.String(), err
}

func TestSearch_Text(t *testing.T) {
	out, err := run(t, "search", "dafalgan", "--snapshot", sampleSnapshot)
	require.NoError(t, err)

	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "Dafalgan 500 mg")
	assert.Contains(t, out, "CNK 1234567")
	assert.Contains(t, out, "Showing 1-")
}

func TestSearch_JSON(t *testing.T) {
	out, err := run(t, "search", "1234567", "--snapshot", sampleSnapshot, "--json")
	require.NoError(t, err)

	var resp entities.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, entities.KindPackage, resp.Results[0].EntityType)
	assert.Equal(t, "4001", resp.Results[0].Code)
	assert.Equal(t, entities.MatchedShortCode, resp.Results[0].MatchedField)
}

func TestSearch_FilterOnly(t *testing.T) {
	out, err := run(t, "search", "--snapshot", sampleSnapshot, "--company", "C01", "--types", "amp,ampp", "--json")
	require.NoError(t, err)

	var resp entities.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.TotalCount)
	for _, item := range resp.Results {
		assert.Contains(t, []entities.EntityKind{entities.KindBrandedProduct, entities.KindPackage}, item.EntityType)
	}
}

func TestSearch_NoResults(t *testing.T) {
	out, err := run(t, "search", "zzzzzz", "--snapshot", sampleSnapshot)
	require.NoError(t, err)
	assert.Contains(t, out, `No results for "zzzzzz"`)
}

func TestSearch_Errors(t *testing.T) {
	_, err := run(t, "search", "pa", "--snapshot", sampleSnapshot)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeQueryTooShort))

	_, err = run(t, "search", "paracetamol", "--snapshot", sampleSnapshot, "--types", "pill")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidParams))

	_, err = run(t, "search", "paracetamol", "--snapshot", "does-not-exist.json")
	assert.Error(t, err)
}

func TestSearch_HugeLimitWithOffset(t *testing.T) {
	out, err := run(t, "search", "paracetamol", "--snapshot", sampleSnapshot,
		"--limit", "9223372036854775807", "--offset", "1", "--json")
	require.NoError(t, err)

	var resp entities.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Results, resp.TotalCount-1)
	assert.False(t, resp.Pagination.HasMore)
}

func TestSearch_RejectsOutOfRangeCap(t *testing.T) {
	for _, v := range []string{"0", "10001", "9223372036854775807"} {
		_, err := run(t, "search", "paracetamol", "--snapshot", sampleSnapshot, "--cap", v)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidParams), v)
	}
}

func TestLoad_RejectsSnapshotTarget(t *testing.T) {
	_, err := run(t, "load", sampleSnapshot, "--snapshot", sampleSnapshot)
	assert.ErrorContains(t, err, "--dsn")
}

func TestRunMain_ExitCode(t *testing.T) {
	var code int
	var out bytes.Buffer
	runMain([]string{"medsearch", "search", "pa", "--snapshot", sampleSnapshot}, &out, func(c int) { code = c })
	assert.Equal(t, 1, code)
}

func TestEval_GoldenSet(t *testing.T) {
	out, err := run(t, "eval", "../../internal/evaluation/testdata/golden.json",
		"--snapshot", sampleSnapshot, "--min-recall", "1", "--min-mrr", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "code-cnk")
	assert.Contains(t, out, "overall  recall@10 1.000  mrr@10 1.000")
}

func TestEval_BelowThreshold(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/golden.json"
	require.NoError(t, os.WriteFile(path, []byte(
		`[{"id": "miss", "query": "paracetamol", "category": "name", "expected": ["vtm:9999"], "difficulty": "hard"}]`,
	), 0644))

	_, err := run(t, "eval", path, "--snapshot", sampleSnapshot, "--min-recall", "0.5")
	assert.ErrorContains(t, err, "below thresholds")
}
