package recorder

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BreakoutScreener/internal/model"
)

func snapshotAt(t time.Time, results ...model.BreakoutResult) *model.Snapshot {
	return &model.Snapshot{
		CycleID:     uuid.NewString(),
		EvaluatedAt: t,
		Sector:      model.SectorAll,
		Results:     results,
		Omitted:     []model.Omission{{InstrumentID: "NSE_EQ|LT", Reason: model.OmitProviderError, Detail: "status 500"}},
		Duration:    1500 * time.Millisecond,
	}
}

func TestSQLiteRecorder_RecordAndQuery(t *testing.T) {
	r, err := NewSQLiteRecorder(":memory:")
	require.NoError(t, err)
	defer r.Close()

	t0 := time.Date(2024, 6, 3, 4, 0, 0, 0, time.UTC)
	vwap := 101.25
	first := snapshotAt(t0,
		model.BreakoutResult{InstrumentID: "NSE_EQ|INFY", Name: "INFY", Sector: "IT", LivePrice: 105, ReferenceLevel: 100, VWAP: &vwap, Breakout: true, EvaluatedAt: t0},
		model.BreakoutResult{InstrumentID: "NSE_EQ|TCS", Name: "TCS", Sector: "IT", LivePrice: 98, ReferenceLevel: 100, EvaluatedAt: t0},
	)
	t1 := t0.Add(5 * time.Minute)
	second := snapshotAt(t1,
		model.BreakoutResult{InstrumentID: "NSE_EQ|TCS", Name: "TCS", Sector: "IT", LivePrice: 102, ReferenceLevel: 100, Breakout: true, EvaluatedAt: t1},
	)
	require.NoError(t, r.RecordSnapshot(first))
	require.NoError(t, r.RecordSnapshot(second))

	recs, err := r.RecentBreakouts(10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "NSE_EQ|TCS", recs[0].InstrumentID)
	assert.Equal(t, second.CycleID, recs[0].CycleID)
	assert.Nil(t, recs[0].VWAP)
	assert.Equal(t, "NSE_EQ|INFY", recs[1].InstrumentID)
	require.NotNil(t, recs[1].VWAP)
	assert.Equal(t, 101.25, *recs[1].VWAP)
	assert.True(t, recs[1].EvaluatedAt.Equal(t0))

	recs, err = r.RecentBreakouts(1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	var cycles, omissions int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM cycles`).Scan(&cycles))
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM omissions`).Scan(&omissions))
	assert.Equal(t, 2, cycles)
	assert.Equal(t, 2, omissions)
}

func TestSQLiteRecorder_DuplicateCycleRollsBack(t *testing.T) {
	r, err := NewSQLiteRecorder(":memory:")
	require.NoError(t, err)
	defer r.Close()

	t0 := time.Date(2024, 6, 3, 4, 0, 0, 0, time.UTC)
	snap := snapshotAt(t0, model.BreakoutResult{InstrumentID: "A", Breakout: true, EvaluatedAt: t0})
	require.NoError(t, r.RecordSnapshot(snap))
	assert.Error(t, r.RecordSnapshot(snap))

	recs, err := r.RecentBreakouts(10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordSnapshot(&model.Snapshot{}))
	recs, err := r.RecentBreakouts(5)
	assert.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, r.Close())
}
