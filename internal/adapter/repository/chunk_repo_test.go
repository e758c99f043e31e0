package repository

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Equal scores must not reshuffle candidates between runs, so every search
// query has to carry the (ordinal, id) tie-break after its primary sort key.
func TestSearchQueries_OrderingIsFullyDetermined(t *testing.T) {
	tieBreak := regexp.MustCompile(`ORDER BY .+, ordinal ASC, id ASC`)

	assert.Regexp(t, tieBreak, denseSearchQuery,
		"dense search must break distance ties on ordinal and id")
	assert.Regexp(t, tieBreak, sparseSearchQuery,
		"sparse search must break rank ties on ordinal and id")
}

func TestSearchQueries_ScoreColumnsMatchScanOrder(t *testing.T) {
	columns := `SELECT id, source_uri, title, ordinal, content, start_offset, end_offset,`

	assert.Contains(t, denseSearchQuery, columns)
	assert.Contains(t, sparseSearchQuery, columns)
	assert.Contains(t, denseSearchQuery, `1 - (embedding <=> $1) AS score`)
	assert.Contains(t, sparseSearchQuery, `ts_rank_cd(tsv, q) AS score`)
}
