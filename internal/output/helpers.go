package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/tanq16/rfidrop/internal/utils"
	"golang.org/x/term"
)

// PrintProgressBar draws a fixed-width bar for a 0-100 percentage
func PrintProgressBar(percent, width int) string {
	if width <= 0 {
		width = 30
	}
	percent = max(0, min(percent, 100))
	filled := percent * width / 100
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(StyleSymbols["hline"], filled)
	bar += strings.Repeat(" ", width-filled)
	bar += StyleSymbols["bullet"]
	return fmt.Sprintf("%s %d%%", bar, percent)
}

// ProgressLine is the stream line shown under an active upload
func ProgressLine(s utils.ProgressSnapshot) string {
	return fmt.Sprintf("%s %s %s / %s %s %d/%d parts %s %s %s ETA %s",
		PrintProgressBar(s.Percent, 30),
		StyleSymbols["bullet"],
		utils.FormatBytes(s.Transferred), utils.FormatBytes(s.Total),
		StyleSymbols["bullet"],
		s.CompletedParts, s.TotalParts,
		StyleSymbols["bullet"],
		utils.FormatSpeed(s.Throughput),
		StyleSymbols["bullet"],
		utils.FormatETA(s),
	)
}

func getTerminalHeight() int {
	_, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || height <= 0 {
		return 24
	}
	return height
}
