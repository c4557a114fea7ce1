package utils

import (
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strings"

	"github.com/docker/go-units"
)

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

func IsArchive(name string) bool {
	return slices.Contains(ArchiveExtensions, strings.ToLower(filepath.Ext(name)))
}

func FormatBytes(bytes int64) string {
	return units.BytesSize(float64(bytes))
}

// FormatSpeed renders bytes per second as B/s, KB/s or MB/s
func FormatSpeed(bps float64) string {
	if math.IsNaN(bps) || math.IsInf(bps, 0) || bps < 0 {
		bps = 0
	}
	switch {
	case bps < 1024:
		return fmt.Sprintf("%.0f B/s", bps)
	case bps < 1024*1024:
		return fmt.Sprintf("%.1f KB/s", bps/1024)
	default:
		return fmt.Sprintf("%.2f MB/s", bps/1024/1024)
	}
}

// FormatRemaining renders a remaining-time estimate in seconds; "--" when unknown
func FormatRemaining(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "--"
	}
	total := int(math.Ceil(seconds))
	if total < 60 {
		return fmt.Sprintf("%ds", total)
	}
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}

func FormatETA(snapshot ProgressSnapshot) string {
	if !snapshot.ETAKnown {
		return "--"
	}
	return FormatRemaining(snapshot.ETA.Seconds())
}
