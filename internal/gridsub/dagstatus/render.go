package dagstatus

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// RenderOptions controls table output.
type RenderOptions struct {
	// SummaryOnly suppresses the per-node listing
	SummaryOnly bool
	// NoColor disables ANSI escapes
	NoColor bool
}

// Render writes the snapshot as a table: one row per node, then a one-row
// workflow summary. Column widths grow to fit the widest cell so long node
// names never truncate.
func Render(w io.Writer, filename string, snap *Snapshot, opts RenderOptions) {
	colorize := func(text, status string) string {
		if opts.NoColor {
			return text
		}
		// workflow status reads like "STATUS_SUBMITTED ()"; color on the
		// first word
		status, _, _ = strings.Cut(status, " ")
		color, reset := statusColor(status)
		if color == "" {
			return text
		}
		return color + text + reset
	}

	nodeHeaders := []string{"Node", "Status", "Retries", "Detail"}
	nodeRows := make([][]string, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		nodeRows = append(nodeRows, []string{
			n.Name, n.Status, strconv.Itoa(n.RetryCount), n.Detail,
		})
	}
	nodeWidths := columnWidths(nodeHeaders, nodeRows)
	nodeHeader := formatRow(nodeHeaders, nodeWidths, " | ")

	summaryHeaders := []string{
		"DAG Status", "Total", "Queued", "Idle", "Running", "Running %",
		"Failed", "Done", "Done %",
	}
	s := snap.Summary
	summaryRow := []string{
		s.Status,
		strconv.Itoa(s.NodesTotal),
		strconv.Itoa(s.NodesQueued),
		strconv.Itoa(s.JobProcsIdle),
		strconv.Itoa(snap.RunningProcs()),
		snap.RunningPercent(),
		strconv.Itoa(s.NodesFailed),
		strconv.Itoa(s.NodesDone),
		snap.DonePercent(),
	}
	summaryWidths := columnWidths(summaryHeaders, [][]string{summaryRow})
	summaryHeader := formatRow(summaryHeaders, summaryWidths, "  |  ")

	width := len(summaryHeader)
	if !opts.SummaryOnly && len(nodeHeader) > width {
		width = len(nodeHeader)
	}
	width++

	fmt.Fprintln(w, filename)

	if !opts.SummaryOnly {
		fmt.Fprintln(w, strings.Repeat("~", width))
		fmt.Fprintln(w, nodeHeader)
		fmt.Fprintln(w, strings.Repeat("-", width))
		for i, row := range nodeRows {
			fmt.Fprintln(w, colorize(formatRow(row, nodeWidths, " | "), snap.Nodes[i].Status))
		}
		fmt.Fprintln(w, strings.Repeat("-", width))
	}

	fmt.Fprintln(w, strings.Repeat("~", width))
	fmt.Fprintln(w, summaryHeader)
	fmt.Fprintln(w, strings.Repeat("-", width))
	fmt.Fprintln(w, colorize(formatRow(summaryRow, summaryWidths, "  |  "), s.Status))

	if !opts.SummaryOnly {
		fmt.Fprintln(w, strings.Repeat("-", width))
		fmt.Fprintln(w, "Status recorded at:", snap.End.EndTime)
		fmt.Fprintln(w, "Next update:       ", snap.End.NextUpdate)
	}
	fmt.Fprintln(w, strings.Repeat("~", width))
}

// columnWidths sizes each column to its widest cell, header included.
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

func formatRow(cells []string, widths []int, sep string) string {
	padded := make([]string, len(cells))
	for i, cell := range cells {
		padded[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}
	return strings.Join(padded, sep)
}
