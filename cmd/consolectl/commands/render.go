package commands

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/consentdesk/console/internal/console"
	"github.com/consentdesk/console/internal/dsar"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#3B6EA8")).
			Padding(0, 1).
			MarginBottom(1)

	colHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B6EA8")).
			Bold(true).
			MarginRight(1)

	cellStyle  = lipgloss.NewStyle().MarginRight(1)
	sepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginRight(1)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#D9534F")).Bold(true)

	urgencyColors = map[dsar.Urgency]lipgloss.Color{
		dsar.UrgencyHigh:   lipgloss.Color("#D9534F"), // red
		dsar.UrgencyMedium: lipgloss.Color("#F0AD4E"), // amber
		dsar.UrgencyLow:    lipgloss.Color("#5BC0DE"), // blue
	}
)

// column is one table column. Color may return "" for the default colour.
type column struct {
	title string
	width int
	color func(value string) lipgloss.Color
}

func renderTable(w io.Writer, title string, cols []column, rows [][]string) {
	fmt.Fprintln(w, headerStyle.Render(title))

	if len(rows) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  nothing to show"))
		fmt.Fprintln(w)
		return
	}

	headers := make([]string, len(cols))
	seps := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = colHeaderStyle.Width(c.width).Render(strings.ToUpper(c.title))
		seps[i] = sepStyle.Render(strings.Repeat("─", c.width))
	}
	fmt.Fprintf(w, "  %s\n", lipgloss.JoinHorizontal(lipgloss.Top, headers...))
	fmt.Fprintf(w, "  %s\n", lipgloss.JoinHorizontal(lipgloss.Top, seps...))

	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			style := cellStyle.Width(c.width)
			if c.color != nil {
				if fg := c.color(value); fg != "" {
					style = style.Foreground(fg)
				}
			}
			cells[i] = style.Render(truncate(value, c.width))
		}
		fmt.Fprintf(w, "  %s\n", lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}

	fmt.Fprintln(w)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

func urgencyColor(value string) lipgloss.Color {
	return urgencyColors[dsar.Urgency(value)]
}

func renderRequests(w io.Writer, entries []dsar.Entry) {
	cols := []column{
		{title: "id", width: 14},
		{title: "type", width: 14},
		{title: "status", width: 11},
		{title: "requester", width: 24},
		{title: "age", width: 5},
		{title: "urgency", width: 8, color: urgencyColor},
		{title: "recommendation", width: 44},
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		urgency, message := "-", ""
		if e.Recommendation != nil {
			urgency = string(e.Recommendation.Urgency)
			message = e.Recommendation.Message
		}
		rows = append(rows, []string{
			e.Request.ID,
			string(e.Request.Type),
			string(e.Request.Status),
			e.Request.Requester.Email,
			strconv.Itoa(e.AgeDays) + "d",
			urgency,
			message,
		})
	}

	renderTable(w, fmt.Sprintf("DSAR Requests (%d)", len(entries)), cols, rows)
}

func renderStats(w io.Writer, stats dsar.Stats) {
	fmt.Fprintln(w, headerStyle.Render("DSAR Summary"))
	fmt.Fprintf(w, "  Total:   %d\n", stats.Total)
	fmt.Fprintf(w, "  Overdue: %s\n", lipgloss.NewStyle().Foreground(urgencyColors[dsar.UrgencyHigh]).Render(strconv.Itoa(stats.Overdue)))

	printCounts(w, "By status", stringKeys(stats.ByStatus))
	printCounts(w, "By type", stringKeys(stats.ByType))
	printCounts(w, "By urgency", stringKeys(stats.ByUrgency))
	fmt.Fprintln(w)
}

func renderSummary(w io.Writer, kind string, summary console.Summary) {
	fmt.Fprintln(w, headerStyle.Render(kind+" summary"))
	fmt.Fprintf(w, "  Total: %d\n", summary.Total)
	printCounts(w, "By category", summary.ByCategory)
	fmt.Fprintln(w)
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	fmt.Fprintf(w, "\n  %s:\n", title)
	if len(counts) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("    none"))
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "    %-14s %d\n", k, counts[k])
	}
}

func stringKeys[K ~string](m map[K]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
