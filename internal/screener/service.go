// Package screener exposes the engine's read-side operations to callers.
// Reads never trigger provider fetches.
package screener

import (
	"strings"
	"time"

	"BreakoutScreener/internal/logger"
	"BreakoutScreener/internal/model"
	"BreakoutScreener/internal/notifier"
	"BreakoutScreener/internal/recorder"
	"BreakoutScreener/internal/session"
	"BreakoutScreener/internal/universe"
)

// Status describes what a screener response contains.
type Status string

const (
	StatusOpen         Status = "OPEN"
	StatusMarketClosed Status = "MARKET_CLOSED"
	StatusPending      Status = "PENDING"
)

const historyLimit = 10

// Source is the published state of the engine. Implemented by *scheduler.Scheduler.
type Source interface {
	Latest() *model.Snapshot
	Health() model.EngineHealth
}

// Response is one sector-filtered view of the latest snapshot.
// Results is never nil.
type Response struct {
	Status      Status                 `json:"status"`
	Sector      string                 `json:"sector"`
	EvaluatedAt time.Time              `json:"evaluated_at"`
	CycleID     string                 `json:"cycle_id,omitempty"`
	Results     []model.BreakoutResult `json:"results"`
}

// Service answers sector, result and health queries from the latest snapshot.
type Service struct {
	source        Source
	universe      *universe.Universe
	gate          *session.Gate
	recorder      recorder.Recorder
	breakoutsOnly bool
	// Now is the read clock; defaults to time.Now.
	Now func() time.Time
}

// NewService creates a service. A nil rec disables /history.
func NewService(src Source, u *universe.Universe, gate *session.Gate, rec recorder.Recorder, breakoutsOnly bool) *Service {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Service{
		source:        src,
		universe:      u,
		gate:          gate,
		recorder:      rec,
		breakoutsOnly: breakoutsOnly,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// GetSectors returns the sector names led by "ALL".
func (s *Service) GetSectors() []string {
	return s.universe.Sectors()
}

// GetScreenerResults returns the latest results for sector ("" means ALL).
// Outside the session a single market-closed marker is returned instead.
func (s *Service) GetScreenerResults(sector string) Response {
	if sector == "" {
		sector = model.SectorAll
	}
	resp := Response{Sector: sector, Results: []model.BreakoutResult{}}

	now := s.now()
	if !s.gate.IsOpen(now) {
		resp.Status = StatusMarketClosed
		resp.EvaluatedAt = now
		return resp
	}
	snap := s.source.Latest()
	if snap == nil || snap.MarketClosed {
		resp.Status = StatusPending
		return resp
	}

	resp.Status = StatusOpen
	resp.EvaluatedAt = snap.EvaluatedAt
	resp.CycleID = snap.CycleID
	for _, r := range snap.Results {
		if sector != model.SectorAll && r.Sector != sector {
			continue
		}
		if s.breakoutsOnly && !r.Breakout {
			continue
		}
		resp.Results = append(resp.Results, r)
	}
	return resp
}

// GetEngineHealth returns the scheduler's health.
func (s *Service) GetEngineHealth() model.EngineHealth {
	return s.source.Health()
}

// HandleCommand processes a chat command and returns a MarkdownV2 reply.
func (s *Service) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	// "/screener@MyBot IT" addresses a specific bot in group chats.
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")

	switch name {
	case "/screener":
		sector := model.SectorAll
		if len(fields) > 1 {
			sector = strings.ToUpper(fields[1])
		}
		if !s.universe.HasSector(sector) {
			return notifier.FormatSectors(s.GetSectors())
		}
		resp := s.GetScreenerResults(sector)
		return notifier.FormatScreenerResults(resp.Sector, string(resp.Status), resp.EvaluatedAt, resp.Results)
	case "/sectors":
		return notifier.FormatSectors(s.GetSectors())
	case "/health":
		return notifier.FormatHealth(s.GetEngineHealth())
	case "/history":
		records, err := s.recorder.RecentBreakouts(historyLimit)
		if err != nil {
			logger.Error("recent breakouts: %v", err)
			return "❌ History is unavailable right now\\."
		}
		return notifier.FormatHistory(records)
	case "/ping":
		return "pong"
	default:
		return helpText
	}
}

const helpText = "Available commands:\n" +
	"• /screener \\[SECTOR\\] \\- current breakouts\n" +
	"• /sectors \\- list sectors\n" +
	"• /health \\- engine status\n" +
	"• /history \\- recent breakouts\n" +
	"• /ping"
