package browser

import (
	"fmt"
	"strings"

	"gatewaybot/internal/vc"
)

// vcGridRows and vcGridCols fix the seek grid at 32 segments (4 rows of 8),
// each one carrying its own absolute-seek callback.
const (
	vcGridRows = 4
	vcGridCols = 8
	vcGridSize = vcGridRows * vcGridCols
)

// VCPlayerView renders the full player screen for chatID's active voice
// chat stream: title, elapsed/total, the 32-segment position grid, a
// -10s / pause-resume / +10s control row and a Stop / Back row. Segments strictly before the
// current position render ▓, the segment containing it renders 🔘, and
// later segments render ░; the duration denominator falls back to 7200
// seconds when the stream's own duration could not be probed.
func VCPlayerView(chatID int64, state vc.StreamState, position int) View {
	total := vc.DurationSeconds(state)
	if total <= 0 {
		total = 7200
	}
	if position < 0 {
		position = 0
	}
	if position > total {
		position = total
	}

	currentSegment := position * vcGridSize / total
	if currentSegment >= vcGridSize {
		currentSegment = vcGridSize - 1
	}

	var rows []Row
	for r := 0; r < vcGridRows; r++ {
		row := make(Row, 0, vcGridCols)
		for col := 0; col < vcGridCols; col++ {
			seg := r*vcGridCols + col
			glyph := "░"
			switch {
			case seg < currentSegment:
				glyph = "▓"
			case seg == currentSegment:
				glyph = "🔘"
			}
			segSeconds := seg * total / vcGridSize
			row = append(row, Button{
				Text: glyph,
				Data: truncate(fmt.Sprintf("bvj|%d|%d", chatID, segSeconds)),
			})
		}
		rows = append(rows, row)
	}

	pauseLabel, pauseData := "⏸ Pause", fmt.Sprintf("bvp|%d", chatID)
	if state.Paused {
		pauseLabel, pauseData = "▶️ Resume", fmt.Sprintf("bvr|%d", chatID)
	}
	rows = append(rows, Row{
		{Text: "⏪ -10s", Data: truncate(fmt.Sprintf("bvk|%d|-10", chatID))},
		{Text: pauseLabel, Data: truncate(pauseData)},
		{Text: "⏩ +10s", Data: truncate(fmt.Sprintf("bvk|%d|10", chatID))},
	})
	rows = append(rows, Row{
		{Text: "⏹ Stop", Data: truncate(fmt.Sprintf("bvs|%d", chatID))},
		{Text: "⬅️ Back", Data: truncate(fmt.Sprintf("bvb|%d", chatID))},
	})

	title := state.Title
	if len(title) > 40 {
		title = title[:40] + "…"
	}
	header := fmt.Sprintf("🔊 %s\n%s / %s", title, formatClock(position), formatClock(total))
	if state.Paused {
		header += "\n⏸ Paused"
	}

	return View{Header: header, Rows: rows}
}

func formatClock(totalSeconds int) string {
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ParseVCAbsoluteSeek parses a "bvj|<chat>|<absSeconds>" callback payload.
func ParseVCAbsoluteSeek(data string) (chatID int64, absSeconds int, ok bool) {
	parts := strings.Split(data, "|")
	if len(parts) != 3 || parts[0] != "bvj" {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(parts[1]+" "+parts[2], "%d %d", &chatID, &absSeconds); err != nil {
		return 0, 0, false
	}
	return chatID, absSeconds, true
}
