package chunker

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idRow struct {
	ID int64 `db:"id"`
}

type fakeQueryer struct {
	calls  int
	failOn map[int]bool
}

func (f *fakeQueryer) Rebind(query string) string { return query }

func (f *fakeQueryer) SelectContext(_ context.Context, dest any, _ string, args ...any) error {
	f.calls++
	if f.failOn[f.calls] {
		return errors.New("chunk exploded")
	}
	rows := dest.(*[]idRow)
	for _, arg := range args {
		*rows = append(*rows, idRow{ID: arg.(int64)})
	}
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

const baseQuery = "SELECT id FROM Things WHERE id IN (?)"

func TestSelectInIssuesCeilChunks(t *testing.T) {
	tests := []struct {
		name      string
		keys      int
		chunkSize int
		wantCalls int
	}{
		{"exact multiple", 4, 2, 2},
		{"remainder chunk", 5, 2, 3},
		{"single chunk", 3, 10, 1},
		{"one key", 1, 2000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeQueryer{}
			ex := NewExecutor(db, testLogger(), tt.chunkSize, false)

			keys := make([]int64, tt.keys)
			for i := range keys {
				keys[i] = int64(i + 1)
			}

			rows, err := SelectIn[idRow](context.Background(), ex, baseQuery, keys)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, db.calls)

			got := make(map[int64]bool, len(rows))
			for _, row := range rows {
				got[row.ID] = true
			}
			assert.Len(t, got, tt.keys, "union of chunk results must equal the key list")
			for _, k := range keys {
				assert.True(t, got[k])
			}
		})
	}
}

func TestSelectInEmptyKeyList(t *testing.T) {
	db := &fakeQueryer{}
	ex := NewExecutor(db, testLogger(), 2, false)

	rows, err := SelectIn[idRow](context.Background(), ex, baseQuery, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, db.calls, "empty key list must not issue any query")
}

func TestSelectInBestEffortSkipsFailedChunk(t *testing.T) {
	db := &fakeQueryer{failOn: map[int]bool{2: true}}
	ex := NewExecutor(db, testLogger(), 2, false)

	rows, err := SelectIn[idRow](context.Background(), ex, baseQuery, []int64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, 3, db.calls, "remaining chunks still run after a failure")

	got := make([]int64, 0, len(rows))
	for _, row := range rows {
		got = append(got, row.ID)
	}
	assert.ElementsMatch(t, []int64{1, 2, 5, 6}, got)
}

func TestSelectInFailFastAborts(t *testing.T) {
	db := &fakeQueryer{failOn: map[int]bool{2: true}}
	ex := NewExecutor(db, testLogger(), 2, true)

	_, err := SelectIn[idRow](context.Background(), ex, baseQuery, []int64{1, 2, 3, 4, 5, 6})
	require.Error(t, err)
	assert.Equal(t, 2, db.calls, "no chunks run past the failure")
}

func TestNewExecutorDefaultChunkSize(t *testing.T) {
	ex := NewExecutor(&fakeQueryer{}, testLogger(), 0, false)
	assert.Equal(t, DefaultChunkSize, ex.ChunkSize())
}
