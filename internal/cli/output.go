package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type format string

const (
	formatText  format = "text"
	formatJSON  format = "json"
	formatYAML  format = "yaml"
	formatTable format = "table"
)

func parseFormat(s string) (format, error) {
	switch f := format(s); f {
	case formatText, formatJSON, formatYAML, formatTable:
		return f, nil
	case "":
		return formatText, nil
	default:
		return "", &usageError{fmt.Errorf("unknown output format %q (want text, json, yaml or table)", s)}
	}
}

func addOutputFlag(cmd *cobra.Command, out *string) {
	cmd.Flags().StringVarP(out, "output", "o", string(formatText), "Output format: text, json, yaml or table")
}

// view is one result rendered in any output format. data feeds json and
// yaml, headers and rows feed table, text prints the colored default.
type view struct {
	data    any
	headers []string
	rows    [][]string
	text    func(w io.Writer)
}

func (v view) render(w io.Writer, f format) error {
	switch f {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v.data)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v.data); err != nil {
			return err
		}
		return enc.Close()
	case formatTable:
		_, err := fmt.Fprintln(w, renderTable(v.headers, v.rows))
		return err
	default:
		v.text(w)
		return nil
	}
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return tableHeaderStyle.Padding(0, 1)
			}
			return tableCellStyle
		}).
		Render()
}
