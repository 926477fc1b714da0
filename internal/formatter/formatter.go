// package formatter renders transfer results, playlists and history for the terminal and for export (CSV, Markdown, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/escofresco/transfer/internal/models"
	"github.com/escofresco/transfer/internal/repositories"
	"github.com/escofresco/transfer/internal/shared"
)

// Output formats accepted by [WriteResults].
const (
	FormatTable    = "table"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Formats lists the supported output formats.
var Formats = []string{FormatTable, FormatCSV, FormatMarkdown, FormatJSON}

// ResultRow is the flattened, serializable view of a [models.TransferResult].
type ResultRow struct {
	Playlist      string `json:"playlist"`
	SourceID      string `json:"source_id"`
	DestinationID string `json:"destination_id,omitempty"`
	Status        string `json:"status"`
	Matched       int    `json:"matched"`
	Unmatched     int    `json:"unmatched"`
	Error         string `json:"error,omitempty"`
}

// Rows flattens results, keeping their order.
func Rows(results []models.TransferResult) []ResultRow {
	rows := make([]ResultRow, 0, len(results))
	for _, r := range results {
		row := ResultRow{
			Playlist:      r.SourceName,
			SourceID:      r.SourceID,
			DestinationID: r.DestinationID,
			Status:        string(r.Status()),
			Matched:       r.Matched,
			Unmatched:     r.Unmatched,
		}
		if r.Err != nil {
			row.Error = r.Err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

// Summary returns a one-line count of results by status.
func Summary(results []models.TransferResult) string {
	var success, partial, failed, matched, total int
	for _, r := range results {
		switch r.Status() {
		case models.StatusSuccess:
			success++
		case models.StatusPartial:
			partial++
		default:
			failed++
		}
		matched += r.Matched
		total += r.Total()
	}
	return fmt.Sprintf("%d playlists: %d succeeded, %d partial, %d failed (%d/%d tracks matched)",
		len(results), success, partial, failed, matched, total)
}

// ResultsTable renders results as a bordered terminal table.
func ResultsTable(results []models.TransferResult) string {
	rows := Rows(results)
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			r.Playlist,
			r.Status,
			strconv.Itoa(r.Matched),
			strconv.Itoa(r.Unmatched),
			r.DestinationID,
			r.Error,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Styles.Help).
		Headers("PLAYLIST", "STATUS", "MATCHED", "UNMATCHED", "DESTINATION", "ERROR").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return style.Bold(true)
			case col == 1 && row >= 0 && row < len(rows):
				switch rows[row].Status {
				case string(models.StatusSuccess):
					return style.Inherit(Styles.OK)
				case string(models.StatusPartial):
					return style.Inherit(Styles.Warn)
				default:
					return style.Inherit(Styles.Err)
				}
			}
			return style
		})
	return t.String()
}

// ResultsCSV converts results to CSV with columns: Playlist, Source ID, Destination ID, Status, Matched, Unmatched, Error
func ResultsCSV(results []models.TransferResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Playlist", "Source ID", "Destination ID", "Status", "Matched", "Unmatched", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range Rows(results) {
		record := []string{
			r.Playlist,
			r.SourceID,
			r.DestinationID,
			r.Status,
			strconv.Itoa(r.Matched),
			strconv.Itoa(r.Unmatched),
			r.Error,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ResultsMarkdown converts results to a Markdown report with a summary line and a table.
func ResultsMarkdown(results []models.TransferResult) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Transfer Results\n\n")
	buf.WriteString(Summary(results) + "\n\n")
	buf.WriteString("| Playlist | Status | Matched | Unmatched | Destination | Error |\n")
	buf.WriteString("| --- | --- | ---: | ---: | --- | --- |\n")
	for _, r := range Rows(results) {
		fmt.Fprintf(&buf, "| %s | %s | %d | %d | %s | %s |\n",
			escapeCell(r.Playlist), r.Status, r.Matched, r.Unmatched, r.DestinationID, escapeCell(r.Error))
	}
	return buf.Bytes()
}

// ResultsJSON encodes results as an indented JSON array.
func ResultsJSON(results []models.TransferResult) ([]byte, error) {
	data, err := json.MarshalIndent(Rows(results), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteResults writes results to w in the named format.
func WriteResults(w io.Writer, format string, results []models.TransferResult) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(format) {
	case "", FormatTable:
		data = []byte(ResultsTable(results) + "\n" + Summary(results) + "\n")
	case FormatCSV:
		data, err = ResultsCSV(results)
	case FormatMarkdown, "md":
		data = ResultsMarkdown(results)
	case FormatJSON:
		data, err = ResultsJSON(results)
	default:
		return fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

// PlaylistsTable renders playlists with their position, which the CLI accepts as a selector.
func PlaylistsTable(playlists []models.Playlist) string {
	data := make([][]string, 0, len(playlists))
	for i, p := range playlists {
		data = append(data, []string{strconv.Itoa(i + 1), p.Name, p.ID})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Styles.Help).
		Headers("#", "NAME", "ID").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Bold(true)
			}
			return style
		}).
		String()
}

// HistoryTable renders recorded transfer runs, newest first.
func HistoryTable(runs []repositories.RunSummary) string {
	data := make([][]string, 0, len(runs))
	for _, r := range runs {
		undone := ""
		if r.Undone() {
			undone = r.UndoneAt.Time.Local().Format(time.DateTime)
		}
		data = append(data, []string{
			shared.ShortID(r.ID, 8),
			r.CreatedAt.Local().Format(time.DateTime),
			r.Source + " → " + r.Destination,
			strconv.Itoa(r.Playlists),
			strconv.Itoa(r.Matched),
			strconv.Itoa(r.Failed),
			undone,
		})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Styles.Help).
		Headers("RUN", "CREATED", "SERVICES", "PLAYLISTS", "MATCHED", "FAILED", "UNDONE").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Bold(true)
			}
			return style
		}).
		String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
