package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/tra-portal/tra-portal/internal/services"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))
)

// print writes v in the selected output format. In table format headers and
// rows are rendered instead of v.
func (a *app) print(w io.Writer, v any, headers []string, rows [][]string) error {
	switch a.output {
	case OutputJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(w, renderTable(headers, rows))
		return err
	}
}

// printFields prints a single record as a two column table.
func (a *app) printFields(w io.Writer, v any, fields [][2]string) error {
	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, []string{f[0], f[1]})
	}
	return a.print(w, v, []string{"Field", "Value"}, rows)
}

// notice prints a status message. It is suppressed for machine-readable output.
func (a *app) notice(w io.Writer, format string, args ...any) {
	if a.output != OutputTable {
		return
	}
	fmt.Fprintln(w, noticeStyle.Render(fmt.Sprintf(format, args...)))
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		Render()
}

func money(a services.Amount) string {
	return strconv.FormatFloat(float64(a), 'f', 2, 64)
}

func number(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateTime)
}
