package notifier

import (
	"fmt"
	"strings"
	"time"

	"BreakoutScreener/internal/model"
	"BreakoutScreener/internal/recorder"
)

const timeLayout = "2006-01-02 15:04"

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

func esc(format string, args ...interface{}) string {
	return escapeMarkdownV2(fmt.Sprintf(format, args...))
}

func optional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func writeResult(b *strings.Builder, i int, r model.BreakoutResult) {
	marker, op := "▫️", "vs"
	if r.Breakout {
		marker, op = "🚀", ">"
	}
	b.WriteString(fmt.Sprintf("%s *%s* %s\n", marker, esc("%d. %s", i+1, r.Name), esc("[%s]", r.Sector)))
	b.WriteString(esc("   price %.2f %s high %.2f (%+.2f%%)\n", r.LivePrice, op, r.ReferenceLevel, pctAbove(r.LivePrice, r.ReferenceLevel)))
	b.WriteString(esc("   VWAP %s | RSI %s\n", optional(r.VWAP), optional(r.RSI)))
}

func pctAbove(price, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return (price - ref) / ref * 100
}

// FormatBreakoutAlert formats newly detected breakouts.
func FormatBreakoutAlert(results []model.BreakoutResult, at time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🚨 *New breakouts* \\| %s\n\n", esc("%s", at.Format(timeLayout))))
	for i, r := range results {
		writeResult(&b, i, r)
	}
	return b.String()
}

// FormatScreenerResults formats a screener query reply.
func FormatScreenerResults(sector, status string, evaluatedAt time.Time, results []model.BreakoutResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 *Screener* %s\n", esc("[%s]", sector)))
	switch status {
	case "MARKET_CLOSED":
		b.WriteString("🔒 Market closed\\. No screening outside trading hours\\.\n")
		return b.String()
	case "PENDING":
		b.WriteString("⏳ First screening cycle has not completed yet\\.\n")
		return b.String()
	}
	b.WriteString(esc("Evaluated %s\n\n", evaluatedAt.Format(timeLayout)))
	if len(results) == 0 {
		b.WriteString("No breakouts right now\\.\n")
		return b.String()
	}
	for i, r := range results {
		writeResult(&b, i, r)
	}
	return b.String()
}

// FormatSectors formats the sector list.
func FormatSectors(sectors []string) string {
	var b strings.Builder
	b.WriteString("🗂 *Sectors*\n")
	for _, s := range sectors {
		b.WriteString(esc("• %s\n", s))
	}
	b.WriteString(esc("\nUse /screener <SECTOR> to filter.\n"))
	return b.String()
}

// FormatHealth formats the engine health.
func FormatHealth(h model.EngineHealth) string {
	icon := "✅"
	switch h.Status {
	case model.HealthDegraded:
		icon = "⚠️"
	case model.HealthMarketClosed:
		icon = "🔒"
	case model.HealthStarting:
		icon = "⏳"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s *Engine %s*\n", icon, esc("%s", string(h.Status))))
	b.WriteString(esc("State: %s\n", h.State))
	if h.LastSuccessfulCycle.IsZero() {
		b.WriteString(esc("Last success: never\n"))
	} else {
		b.WriteString(esc("Last success: %s\n", h.LastSuccessfulCycle.Format(timeLayout)))
	}
	b.WriteString(esc("Consecutive failures: %d\n", h.ConsecutiveFailures))
	b.WriteString(esc("Last cycle: %d evaluated, %d omitted, %d stale in %s\n",
		h.Evaluated, h.Omitted, h.StaleInstruments, h.LastCycleDuration.Round(time.Millisecond)))
	return b.String()
}

// FormatHistory formats recent breakout records.
func FormatHistory(records []recorder.BreakoutRecord) string {
	var b strings.Builder
	b.WriteString("🕘 *Recent breakouts*\n")
	if len(records) == 0 {
		b.WriteString("No breakouts recorded\\.\n")
		return b.String()
	}
	for _, r := range records {
		b.WriteString(esc("%s %s [%s] %.2f > %.2f\n",
			r.EvaluatedAt.Format(timeLayout), r.Name, r.Sector, r.Price, r.ReferenceLevel))
	}
	return b.String()
}

// FormatDegraded formats the alert sent when the engine first becomes degraded.
func FormatDegraded(h model.EngineHealth, cause string) string {
	text := fmt.Sprintf("⚠️ *Screener degraded*\n%s",
		esc("%d consecutive cycles produced no result.\n", h.ConsecutiveFailures))
	if cause != "" {
		text += fmt.Sprintf("`%s`", escapeMarkdownV2(cause))
	}
	return text
}

// FormatRecovered formats the alert sent on the first success after degradation.
func FormatRecovered(failures int) string {
	return fmt.Sprintf("✅ *Screener recovered* after %d consecutive failure\\(s\\)", failures)
}
