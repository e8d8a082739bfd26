package transfer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// progressRe matches rclone's -P stats line, e.g.
// "Transferred:   1.5 MiB / 10 MiB, 15%, 500 KiB/s, ETA 17s"
var progressRe = regexp.MustCompile(`Transferred:\s+([^/]+?) / ([^,]+), (\d+)%, ([^,]+), ETA (\S+)`)

// Progress is one parsed stats sample.
type Progress struct {
	Transferred string
	Total       string
	Percent     int
	Speed       string
	ETA         string
}

// ParseProgress extracts a stats sample from one line of rclone output.
// Lines without a percentage (rclone prints "-" before totals are known)
// are skipped.
func ParseProgress(line string) (Progress, bool) {
	m := progressRe.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}

	percent, err := strconv.Atoi(m[3])
	if err != nil {
		return Progress{}, false
	}

	return Progress{
		Transferred: strings.TrimSpace(m[1]),
		Total:       strings.TrimSpace(m[2]),
		Percent:     percent,
		Speed:       strings.TrimSpace(m[4]),
		ETA:         strings.TrimSpace(m[5]),
	}, true
}

// bar renders a ten-slot progress bar.
func (p Progress) bar() string {
	filled := p.Percent / 10
	if filled > 10 {
		filled = 10
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

// Render formats the sample for the progress message.
func (p Progress) Render(jobID string) string {
	return fmt.Sprintf("transfer %s\n[%s] %d%%\n%s / %s, %s, ETA %s",
		jobID, p.bar(), p.Percent, p.Transferred, p.Total, p.Speed, p.ETA)
}
