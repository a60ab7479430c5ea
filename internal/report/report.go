// Package report renders the task table as a downloadable report.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/nadmax/radar/internal/repository"
	"github.com/nadmax/radar/internal/task"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
)

var ErrUnsupportedFormat = errors.New("unsupported report format")

var header = []string{"ID", "Name", "Status", "Accuracy (%)", "Created At", "Updated At"}

type Exporter struct {
	repo repository.TaskRepository
	now  func() time.Time
}

func NewExporter(repo repository.TaskRepository) *Exporter {
	return &Exporter{repo: repo, now: time.Now}
}

func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// Export renders every task in the requested format. An empty format means JSON.
func (e *Exporter) Export(ctx context.Context, format string) ([]byte, string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatJSON
	}

	switch format {
	case FormatJSON, FormatCSV, FormatPDF:
	default:
		return nil, "", fmt.Errorf("%w: %s (available: json, csv, pdf)", ErrUnsupportedFormat, format)
	}

	tasks, err := e.repo.ListTasks(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load tasks: %w", err)
	}

	var data []byte
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(tasks, "", "  ")
	case FormatCSV:
		data, err = writeCSV(rows(tasks))
	case FormatPDF:
		data, err = e.writePDF(rows(tasks))
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to render %s report: %w", format, err)
	}

	return data, ContentType(format), nil
}

func rows(tasks []task.Task) [][]string {
	data := [][]string{header}
	for _, t := range tasks {
		data = append(data, []string{
			strconv.FormatInt(t.ID, 10),
			t.Name,
			string(t.Status),
			strconv.FormatFloat(t.Accuracy, 'f', 2, 64),
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	return data
}

func writeCSV(data [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (e *Exporter) writePDF(data [][]string) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Task Report", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, "Task Report")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, "Generated "+e.now().UTC().Format(time.RFC1123))
	pdf.Ln(10)

	widths := []float64{15, 95, 25, 30, 55, 55}
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for i, row := range data {
		if i == 0 {
			pdf.SetFont("Arial", "B", 10)
			pdf.SetFillColor(230, 230, 230)
		} else {
			pdf.SetFont("Arial", "", 10)
		}

		for col, value := range row {
			if col == 1 {
				value = truncate(value, maxPDFNameRunes)
			}
			pdf.CellFormat(widths[col], 7, tr(value), "1", 0, "L", i == 0, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

const maxPDFNameRunes = 48

// truncate shortens s to at most limit runes, marking the cut with "...".
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit-3]) + "..."
}
