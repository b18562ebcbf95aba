package history

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FormatRuns renders runs as a markdown report grouped by day, newest day
// first within the header summary.
func FormatRuns(runs []Run) string {
	var b strings.Builder

	total := len(runs)
	var successCount int
	var totalTokens int
	dayGroups := make(map[string][]Run)
	for _, r := range runs {
		if r.Outcome == "SUCCESS" {
			successCount++
		}
		totalTokens += r.TokensUsed

		day := r.CreatedAt.Format("2006-01-02")
		dayGroups[day] = append(dayGroups[day], r)
	}

	successRate := 0.0
	if total > 0 {
		successRate = float64(successCount) / float64(total) * 100.0
	}

	b.WriteString("## Run History\n\n")
	b.WriteString("### Summary\n")
	fmt.Fprintf(&b, "- **Total Runs:** %d\n", total)
	fmt.Fprintf(&b, "- **Success Rate:** %.1f%%\n", successRate)
	fmt.Fprintf(&b, "- **Total Tokens:** %d\n\n", totalTokens)

	days := make([]string, 0, len(dayGroups))
	for day := range dayGroups {
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	for _, day := range days {
		fmt.Fprintf(&b, "### %s\n\n", day)

		for _, r := range dayGroups[day] {
			icon := "❌"
			if r.Outcome == "SUCCESS" {
				icon = "✅"
			}

			var confStr string
			if r.Confidence > 0 {
				confStr = fmt.Sprintf(" conf %.2f", r.Confidence)
			}

			var durStr string
			if r.Duration > 0 {
				durStr = fmt.Sprintf(" (%s)", formatDuration(r.Duration))
			}

			fmt.Fprintf(&b, "- %s **%s** %s [%s]%s%s, %d tokens\n",
				icon, r.CreatedAt.Format("15:04:05"), r.TicketKey, r.Outcome, confStr, durStr, r.TokensUsed)
		}

		b.WriteString("\n")
	}

	return b.String()
}

func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	minutes := int(seconds / 60)
	remSeconds := int(seconds) % 60
	return fmt.Sprintf("%dm%ds", minutes, remSeconds)
}
