package logger

import (
	"fmt"
	"time"
)

// formatLine lays out one log line as "HH:MM:SS.mmm [tag] COLORLEVELreset: msg\n",
// omitting the "[tag]" segment when tag is empty.
func formatLine(tag string, level LogLevel, at time.Time, format string, args ...any) string {
	ts := at.Format("15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	color := paint(level)

	if tag == "" {
		return fmt.Sprintf("%s %s%s%s: %s\n", ts, color, level, ansiReset, msg)
	}
	return fmt.Sprintf("%s [%s] %s%s%s: %s\n", ts, tag, color, level, ansiReset, msg)
}
