// Package report renders judging results for people and files.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"olymp/internal/judge/sandbox/result"

	"github.com/fatih/color"
)

var (
	highlight = color.New(color.Bold).SprintFunc()

	verdictColors = map[result.Verdict]*color.Color{
		result.VerdictAC:       color.New(color.Bold, color.FgGreen),
		result.VerdictWA:       color.New(color.Bold, color.FgRed),
		result.VerdictPE:       color.New(color.Bold, color.FgRed),
		result.VerdictJE:       color.New(color.Bold, color.FgRed),
		result.VerdictRE:       color.New(color.Bold, color.FgYellow),
		result.VerdictTLE:      color.New(color.Bold, color.FgMagenta),
		result.VerdictMLE:      color.New(color.Bold, color.FgBlue),
		result.VerdictDeadlock: color.New(color.Bold, color.FgCyan),
		result.VerdictSkipped:  color.New(color.Bold, color.FgWhite),
	}
)

// ColoredVerdict paints text in the colour of v. Verdicts without a colour are returned as is.
func ColoredVerdict(v result.Verdict, text string) string {
	if c, ok := verdictColors[v]; ok {
		return c.Sprint(text)
	}
	return text
}

// ColoredVerdicts paints every letter of a verdict string on its own.
func ColoredVerdicts(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		b.WriteString(ColoredVerdict(result.Verdict(s[i]), s[i:i+1]))
	}
	return b.String()
}

// cell keeps the plain text next to its coloured rendering so widths can be measured.
type cell struct {
	plain   string
	colored string
}

func plainCell(s string) cell { return cell{plain: s, colored: s} }

// Row formats one solution the way the results table shows it.
func Row(res result.SolutionResult) []cell {
	s := res.Summary
	maxTime := fmt.Sprintf("%0.2f", s.MaxTime)
	maxMem := fmt.Sprintf("%0.1f", s.MaxMemoryMB)
	return []cell{
		{plain: res.Solution, colored: highlight(res.Solution)},
		{plain: s.Verdict.FullName(), colored: ColoredVerdict(s.Verdict, s.Verdict.FullName())},
		plainCell(strconv.Itoa(s.FailedTest)),
		{plain: s.Verdicts, colored: ColoredVerdicts(s.Verdicts)},
		{plain: maxTime + " s", colored: highlight(maxTime) + " s"},
		{plain: maxMem + " mb", colored: highlight(maxMem) + " mb"},
	}
}

// ProgressLine is printed after each solution finishes.
func ProgressLine(res result.SolutionResult) string {
	row := Row(res)
	return fmt.Sprintf("%s:   %s (%s)        %s", row[0].colored, row[1].colored, row[2].colored, row[3].colored)
}

// WriteTable draws the boxed results table.
func WriteTable(w io.Writer, results []result.SolutionResult) error {
	if len(results) == 0 {
		return nil
	}
	rows := make([][]cell, 0, len(results))
	for _, res := range results {
		rows = append(rows, Row(res))
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, c := range row {
			if n := len(c.plain) + 2; n > widths[i] {
				widths[i] = n
			}
		}
	}
	line := "+"
	for _, n := range widths {
		line += strings.Repeat("-", n) + "+"
	}

	var b strings.Builder
	b.WriteString(line + "\n")
	for _, row := range rows {
		b.WriteString("|")
		for i, c := range row {
			b.WriteString(" " + c.colored + strings.Repeat(" ", widths[i]-len(c.plain)-1) + "|")
		}
		b.WriteString("\n" + line + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
