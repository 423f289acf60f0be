package screener

import (
	"errors"
	"strings"
	"testing"
	"time"

	"BreakoutScreener/internal/model"
	"BreakoutScreener/internal/recorder"
	"BreakoutScreener/internal/session"
	"BreakoutScreener/internal/universe"
)

var ist = session.DefaultGate().Location()

type fakeSource struct {
	snap   *model.Snapshot
	health model.EngineHealth
}

func (f *fakeSource) Latest() *model.Snapshot    { return f.snap }
func (f *fakeSource) Health() model.EngineHealth { return f.health }

type fakeRecorder struct {
	recorder.NoopRecorder
	records []recorder.BreakoutRecord
	err     error
}

func (f *fakeRecorder) RecentBreakouts(limit int) ([]recorder.BreakoutRecord, error) {
	return f.records, f.err
}

func newTestService(t *testing.T, src *fakeSource, rec recorder.Recorder, breakoutsOnly bool, now time.Time) *Service {
	t.Helper()
	u, err := universe.New([]string{"IT", "BANKING"}, []model.Instrument{
		{ID: "NSE_EQ|INFY", Name: "INFY", Sector: "IT"},
		{ID: "NSE_EQ|TCS", Name: "TCS", Sector: "IT"},
		{ID: "NSE_EQ|HDFCBANK", Name: "HDFCBANK", Sector: "BANKING"},
	})
	if err != nil {
		t.Fatalf("universe: %v", err)
	}
	svc := NewService(src, u, session.DefaultGate(), rec, breakoutsOnly)
	svc.Now = func() time.Time { return now }
	return svc
}

func openSnapshot() *model.Snapshot {
	at := time.Date(2024, 6, 3, 10, 5, 0, 0, ist)
	return &model.Snapshot{
		CycleID:     "c1",
		EvaluatedAt: at,
		Results: []model.BreakoutResult{
			{InstrumentID: "NSE_EQ|INFY", Name: "INFY", Sector: "IT", LivePrice: 105, ReferenceLevel: 100, Breakout: true},
			{InstrumentID: "NSE_EQ|TCS", Name: "TCS", Sector: "IT", LivePrice: 98, ReferenceLevel: 100},
			{InstrumentID: "NSE_EQ|HDFCBANK", Name: "HDFCBANK", Sector: "BANKING", LivePrice: 1600, ReferenceLevel: 1590, Breakout: true},
		},
	}
}

func TestGetSectors(t *testing.T) {
	svc := newTestService(t, &fakeSource{}, nil, true, time.Now())
	got := svc.GetSectors()
	want := []string{"ALL", "IT", "BANKING"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("GetSectors() = %v, want %v", got, want)
	}
}

func TestGetScreenerResults(t *testing.T) {
	open := time.Date(2024, 6, 3, 10, 7, 0, 0, ist)
	tests := []struct {
		name          string
		sector        string
		breakoutsOnly bool
		wantIDs       []string
	}{
		{"all breakouts", "ALL", true, []string{"NSE_EQ|INFY", "NSE_EQ|HDFCBANK"}},
		{"default sector", "", true, []string{"NSE_EQ|INFY", "NSE_EQ|HDFCBANK"}},
		{"sector breakouts", "IT", true, []string{"NSE_EQ|INFY"}},
		{"sector all rows", "IT", false, []string{"NSE_EQ|INFY", "NSE_EQ|TCS"}},
		{"unknown sector", "TEXTILES", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, &fakeSource{snap: openSnapshot()}, nil, tt.breakoutsOnly, open)
			resp := svc.GetScreenerResults(tt.sector)
			if resp.Status != StatusOpen {
				t.Fatalf("expected OPEN, got %s", resp.Status)
			}
			if resp.Results == nil {
				t.Fatal("results must never be nil")
			}
			if len(resp.Results) != len(tt.wantIDs) {
				t.Fatalf("expected %d results, got %d", len(tt.wantIDs), len(resp.Results))
			}
			for i, id := range tt.wantIDs {
				if resp.Results[i].InstrumentID != id {
					t.Errorf("result %d = %s, want %s", i, resp.Results[i].InstrumentID, id)
				}
			}
		})
	}
}

func TestGetScreenerResultsMarketClosed(t *testing.T) {
	early := time.Date(2024, 6, 3, 8, 0, 0, 0, ist)
	svc := newTestService(t, &fakeSource{snap: openSnapshot()}, nil, true, early)

	resp := svc.GetScreenerResults("ALL")
	if resp.Status != StatusMarketClosed {
		t.Errorf("expected MARKET_CLOSED, got %s", resp.Status)
	}
	if len(resp.Results) != 0 {
		t.Errorf("expected no rows with closed marker, got %d", len(resp.Results))
	}
}

func TestGetScreenerResultsPending(t *testing.T) {
	open := time.Date(2024, 6, 3, 9, 16, 0, 0, ist)
	for _, snap := range []*model.Snapshot{nil, {MarketClosed: true}} {
		svc := newTestService(t, &fakeSource{snap: snap}, nil, true, open)
		if got := svc.GetScreenerResults("IT").Status; got != StatusPending {
			t.Errorf("expected PENDING, got %s", got)
		}
	}
}

func TestHandleCommand(t *testing.T) {
	open := time.Date(2024, 6, 3, 10, 7, 0, 0, ist)
	rec := &fakeRecorder{records: []recorder.BreakoutRecord{{Name: "INFY", Sector: "IT", Price: 105, ReferenceLevel: 100, EvaluatedAt: open}}}
	src := &fakeSource{snap: openSnapshot(), health: model.EngineHealth{Status: model.HealthOK, State: "Idle"}}
	svc := newTestService(t, src, rec, true, open)

	tests := []struct {
		command string
		want    []string
		notWant []string
	}{
		{"/screener", []string{"INFY", "HDFCBANK"}, []string{"TCS"}},
		{"/screener it", []string{"INFY"}, []string{"HDFCBANK"}},
		{"/screener@BreakoutBot IT", []string{"INFY"}, nil},
		{"/screener TEXTILES", []string{"Sectors", "BANKING"}, nil},
		{"/sectors", []string{"ALL", "IT", "BANKING"}, nil},
		{"/health", []string{"Engine OK"}, nil},
		{"/history", []string{"INFY", "105\\.00"}, nil},
		{"/ping", []string{"pong"}, nil},
		{"/unknown", []string{"Available commands"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			got := svc.HandleCommand(tt.command)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("expected %q in reply %q", w, got)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(got, w) {
					t.Errorf("did not expect %q in reply %q", w, got)
				}
			}
		})
	}
}

func TestHandleCommandHistoryError(t *testing.T) {
	svc := newTestService(t, &fakeSource{}, &fakeRecorder{err: errors.New("db locked")}, true, time.Now())
	if got := svc.HandleCommand("/history"); !strings.Contains(got, "unavailable") {
		t.Errorf("unexpected reply %q", got)
	}
}
