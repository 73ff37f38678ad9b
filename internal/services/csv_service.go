package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/leadvault/leadvault/pkg/errors"

	"github.com/leadvault/leadvault/internal/models"
)

// MaxImportRows caps the number of data rows accepted per import.
const MaxImportRows = 200

// importHeaders is the required header set, in canonical order. Export reuses
// it and appends the id and timestamp columns.
var importHeaders = []string{
	"fullName", "email", "phone", "city", "propertyType", "bhk", "purpose",
	"budgetMin", "budgetMax", "timeline", "source", "notes", "tags", "status",
}

// ImportRowError pinpoints a rejected cell. Row numbering counts the header
// as row 1, so the first data row reports as row 2.
type ImportRowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value"`
}

// ImportReport summarizes an import run. Valid rows land only when the whole
// batch commits; a single invalid row never blocks the others.
type ImportReport struct {
	TotalRows   int              `json:"totalRows"`
	ValidRows   int              `json:"validRows"`
	ErrorRows   int              `json:"errorRows"`
	Errors      []ImportRowError `json:"errors"`
	ImportedIDs []string         `json:"importedIds"`
}

// CSVService parses lead CSV uploads and renders filtered exports. All
// persistence goes through the buyer service so import shares the same
// validation and history semantics as the JSON API.
type CSVService struct {
	buyers *BuyerService
	now    func() time.Time
}

// NewCSVService constructs the CSV pipeline on top of the buyer service.
func NewCSVService(buyers *BuyerService) (*CSVService, error) {
	if buyers == nil {
		return nil, errors.New("csv service: buyer service is required")
	}
	return &CSVService{buyers: buyers, now: time.Now}, nil
}

// Import parses the upload, validates every data row, and inserts the valid
// rows in one transaction. Row-level failures are reported per cell; a
// database failure fails the whole import.
func (s *CSVService) Import(ctx context.Context, ownerID string, upload io.Reader) (*ImportReport, error) {
	reader := csv.NewReader(upload)
	reader.TrimLeadingSpace = true
	// Ragged rows are reported per cell instead of failing the parse.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, apperrors.NewBadRequest("CSV file is empty")
	}
	if err != nil {
		return nil, apperrors.NewBadRequest("CSV file is malformed")
	}

	columns, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewBadRequest("CSV file is malformed")
	}
	if len(rows) > MaxImportRows {
		return nil, apperrors.NewBadRequest(
			fmt.Sprintf("CSV imports are limited to %d rows, got %d", MaxImportRows, len(rows)))
	}

	// Both lists marshal as [] even when empty.
	report := &ImportReport{
		TotalRows:   len(rows),
		Errors:      []ImportRowError{},
		ImportedIDs: []string{},
	}
	var staged []*BuyerInput

	for i, row := range rows {
		rowNum := i + 2
		in, rowErrs := parseImportRow(columns, row, rowNum)
		if len(rowErrs) > 0 {
			report.ErrorRows++
			report.Errors = append(report.Errors, rowErrs...)
			continue
		}
		staged = append(staged, in)
	}

	if len(staged) > 0 {
		ids, err := s.buyers.ImportMany(ctx, ownerID, staged)
		if err != nil {
			return nil, err
		}
		report.ImportedIDs = ids
		report.ValidRows = len(ids)
	}

	return report, nil
}

// Export renders every lead matching the filters as CSV and returns the bytes
// together with the dated attachment filename. No matches is NotFound, not an
// empty file.
func (s *CSVService) Export(ctx context.Context, opts ListOptions) ([]byte, string, error) {
	buyers, err := s.buyers.ListAll(ctx, opts)
	if err != nil {
		return nil, "", err
	}
	if len(buyers) == 0 {
		return nil, "", apperrors.ErrNotFound.WithMessage("No leads matched the export filters")
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	columns := append([]string{"id"}, importHeaders...)
	columns = append(columns, "createdAt", "updatedAt")
	if err := writer.Write(columns); err != nil {
		return nil, "", apperrors.Wrap(err, "Failed to write export")
	}

	for _, buyer := range buyers {
		if err := writer.Write(exportRow(&buyer)); err != nil {
			return nil, "", apperrors.Wrap(err, "Failed to write export")
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", apperrors.Wrap(err, "Failed to write export")
	}

	filename := fmt.Sprintf("buyers-export-%s.csv", s.now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// headerIndex validates the header row and maps column names to positions.
func headerIndex(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, required := range importHeaders {
		if _, ok := columns[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewBadRequest(
			fmt.Sprintf("CSV is missing required columns: %s", strings.Join(missing, ", ")))
	}

	return columns, nil
}

func parseImportRow(columns map[string]int, row []string, rowNum int) (*BuyerInput, []ImportRowError) {
	cell := func(name string) string {
		idx := columns[name]
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var rowErrs []ImportRowError

	in := &BuyerInput{
		FullName:     cell("fullName"),
		Email:        cell("email"),
		Phone:        cell("phone"),
		City:         cell("city"),
		PropertyType: cell("propertyType"),
		BHK:          cell("bhk"),
		Purpose:      cell("purpose"),
		Timeline:     cell("timeline"),
		Source:       cell("source"),
		Notes:        cell("notes"),
		Status:       cell("status"),
	}
	if in.Status == "" {
		in.Status = models.StatusNew
	}

	for _, field := range []string{"budgetMin", "budgetMax"} {
		raw := cell(field)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			rowErrs = append(rowErrs, ImportRowError{
				Row:     rowNum,
				Field:   field,
				Message: fmt.Sprintf("%s must be an integer", field),
				Value:   raw,
			})
			continue
		}
		if field == "budgetMin" {
			in.BudgetMin = &value
		} else {
			in.BudgetMax = &value
		}
	}

	for _, tag := range strings.Split(cell("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			in.Tags = append(in.Tags, tag)
		}
	}

	for _, fe := range ValidateBuyerInput(in) {
		rowErrs = append(rowErrs, ImportRowError{
			Row:     rowNum,
			Field:   fe.Field,
			Message: fe.Message,
			Value:   cell(fe.Field),
		})
	}

	if len(rowErrs) > 0 {
		return nil, rowErrs
	}
	return in, nil
}

func exportRow(buyer *models.Buyer) []string {
	optStr := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	optInt := func(p *int64) string {
		if p == nil {
			return ""
		}
		return strconv.FormatInt(*p, 10)
	}

	return []string{
		buyer.ID,
		buyer.FullName,
		optStr(buyer.Email),
		buyer.Phone,
		buyer.City,
		buyer.PropertyType,
		optStr(buyer.BHK),
		buyer.Purpose,
		optInt(buyer.BudgetMin),
		optInt(buyer.BudgetMax),
		buyer.Timeline,
		buyer.Source,
		optStr(buyer.Notes),
		strings.Join(buyer.Tags, ","),
		buyer.Status,
		buyer.CreatedAt.UTC().Format(time.RFC3339),
		buyer.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
