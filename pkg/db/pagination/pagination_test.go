package pagination

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCursorPageInfoTrimsExtraRow(t *testing.T) {
	rows := []int{1, 2, 3, 4}
	page, info := BuildCursorPageInfo(rows, 3, func(v int) string { return strconv.Itoa(v) })

	assert.Equal(t, []int{1, 2, 3}, page)
	assert.True(t, info.HasMore)
	assert.Equal(t, "3", info.NextPageToken)
}

func TestBuildCursorPageInfoLastPage(t *testing.T) {
	page, info := BuildCursorPageInfo([]int{1, 2}, 3, func(v int) string { return strconv.Itoa(v) })

	assert.Len(t, page, 2)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", OccurredAt: "2026-10-14T08:00:00Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)

	_, err = DecodeCursor("%%%")
	assert.Error(t, err)
}

func TestLimitClamps(t *testing.T) {
	assert.Equal(t, 20, Pagination{}.Limit(20))
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 10_000}.Limit(20))
	assert.Equal(t, 5, Pagination{PageSize: 5}.Limit(20))
}
