// Package gallery holds the presentation helpers the asset cards rely on.
package gallery

import (
	"fmt"
	"math"
)

// CompressionPercent returns how much smaller the transformed rendition is
// than the original, as a rounded percentage. A rendition larger than its
// original yields a negative value; callers decide whether to clamp for
// display. A zero original yields 0 rather than dividing by zero.
func CompressionPercent(originalBytes, compressedBytes int64) int {
	if originalBytes <= 0 {
		return 0
	}
	ratio := 1 - float64(compressedBytes)/float64(originalBytes)
	return int(math.Round(ratio * 100))
}

// FormatDuration renders seconds as m:ss.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	minutes := int(seconds) / 60
	remaining := int(math.Round(math.Mod(seconds, 60)))
	if remaining == 60 {
		minutes++
		remaining = 0
	}
	return fmt.Sprintf("%d:%02d", minutes, remaining)
}

// FormatSize renders a byte count using IEC units.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
