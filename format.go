package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tonimelisma/upload-go/internal/jobs"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Flags.Quiet, format, args...)
}

// Size unit constants for human-readable formatting.
const (
	sizeKB = 1024
	sizeMB = 1024 * 1024
	sizeGB = 1024 * 1024 * 1024
	sizeTB = 1024 * 1024 * 1024 * 1024
)

// formatSize returns a human-readable size string (e.g. "1.2 MB").
func formatSize(bytes int64) string {
	switch {
	case bytes >= sizeTB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/float64(sizeTB))
	case bytes >= sizeGB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(sizeGB))
	case bytes >= sizeMB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(sizeMB))
	case bytes >= sizeKB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(sizeKB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// progressBarWidth is the number of cells in an in-progress bar.
const progressBarWidth = 20

// formatStatus renders a job status for the table. In-progress jobs get a
// bar; failures carry their reason.
func formatStatus(s jobs.Status) string {
	switch s.State {
	case jobs.StateInProgress:
		filled := s.Percent * progressBarWidth / 100

		return fmt.Sprintf("[%s%s] %3d%%",
			strings.Repeat("#", filled), strings.Repeat(".", progressBarWidth-filled), s.Percent)
	case jobs.StateFailed:
		if s.Reason != nil {
			return "failed: " + s.Reason.Error()
		}

		return "failed"
	default:
		return s.State.String()
	}
}

// jobRow is the table row for one job.
func jobRow(j jobs.Job) []string {
	return []string{j.DisplayName, formatSize(j.Size), formatStatus(j.Status)}
}

// jobHeaders are the column titles matching jobRow.
var jobHeaders = []string{"NAME", "SIZE", "STATUS"}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := columnWidths(headers, rows)

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

func columnWidths(headers []string, rows [][]string) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	return widths
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}
