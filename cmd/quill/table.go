package main

import (
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"quill/internal/schema"
	"quill/internal/session"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func renderMode(mode session.Mode, colorize bool) string {
	if !colorize {
		return string(mode)
	}
	switch mode {
	case session.ModeSubmitted:
		return ansiGreen + string(mode) + ansiReset
	case session.ModeSubmissionFailed:
		return ansiRed + string(mode) + ansiReset
	case session.ModeValidated, session.ModeSubmitting:
		return ansiYellow + string(mode) + ansiReset
	default:
		return string(mode)
	}
}

var titleCaser = cases.Title(language.Und)

// fieldLabel prefers the registry label and falls back to a title-cased
// rendering of the field ID for custom schemas without labels.
func fieldLabel(registry *schema.Registry, fieldID string) string {
	if f, ok := registry.Lookup(fieldID); ok && strings.TrimSpace(f.Label) != "" {
		return f.Label
	}
	return titleCaser.String(strings.ReplaceAll(fieldID, "_", " "))
}

func truncate(value string, max int) string {
	value = strings.ReplaceAll(value, "\n", " ")
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
