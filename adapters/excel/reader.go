package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"gorla/domain/core"
	"gorla/domain/tally"
	"gorla/internal"
)

// DataReader handles reading vote tables from Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	config   ExcelConfig
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string, config ExcelConfig, logger *internal.Logger) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DataReader{filePath: filePath, fileType: fileType, config: config, logger: logger}
}

// ReadData reads the raw rows of the file
func (r *DataReader) ReadData() (*ExcelData, error) {
	r.logger.Debug("reading vote table", "type", r.fileType, "path", r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// ReadTable reads the file into a vote table
func (r *DataReader) ReadTable() (*tally.Table, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	return ToTable(filepath.Base(r.filePath), data)
}

// readExcelData reads the configured sheet, falling back to the first one
func (r *DataReader) readExcelData() (*ExcelData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.config.Sheet
	if idx, err := f.GetSheetIndex(sheet); sheet == "" || err != nil || idx == -1 {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	r.logger.Debug("sheet read", "sheet", sheet, "rows", len(rows), "elapsed", time.Since(startTime))

	return r.processRows(rows)
}

// readCSVData reads CSV data into structured format
func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	return r.readCSV(file)
}

func (r *DataReader) readCSV(src io.Reader) (*ExcelData, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	r.logger.Debug("csv read", "rows", len(rows), "elapsed", time.Since(readStart))

	return r.processRows(rows)
}

// processRows converts raw string rows into ExcelData format. A header row is
// required; a file with no data rows yields an empty table.
func (r *DataReader) processRows(rows [][]string) (*ExcelData, error) {
	if len(rows) < 1 {
		return nil, core.NewInvalidTableError(r.filePath, 1, "missing header row")
	}

	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
	}

	var dataRows []RawRowData
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		rowData := make(RawRowData)
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		rowData[lineKey] = strconv.Itoa(i + 1)
		dataRows = append(dataRows, rowData)
	}

	r.logger.Debug("file processed", "type", r.fileType, "columns", len(headers), "rows", len(dataRows))

	return &ExcelData{
		Headers: headers,
		Rows:    dataRows,
	}, nil
}

// lineKey carries the source line of a raw row; it never collides with a
// header because headers are trimmed.
const lineKey = " line"

// ToTable converts raw rows into a vote table. The party column is optional
// and a missing party is the empty string. Votes must be non-negative whole
// numbers; spreadsheet values such as "12.0" are accepted.
func ToTable(source string, data *ExcelData) (*tally.Table, error) {
	table := tally.NewTable(data.Headers)
	hasVotes := table.HasColumn(tally.ColumnVotes)

	for _, raw := range data.Rows {
		line, _ := strconv.Atoi(raw[lineKey])
		row := tally.Row{
			Table:     raw[tally.ColumnTable],
			Candidate: raw[tally.ColumnCandidate],
			Party:     raw[tally.ColumnParty],
		}
		if hasVotes {
			votes, err := parseVotes(raw[tally.ColumnVotes])
			if err != nil {
				return nil, core.NewInvalidTableError(source, line, err.Error())
			}
			row.Votes = votes
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func parseVotes(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty votes cell")
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v < 0 {
			return 0, fmt.Errorf("negative votes %d", v)
		}
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("votes %q is not a number", s)
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, fmt.Errorf("votes %q is not a whole non-negative number", s)
	}
	return int64(f), nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ReadDir reads every vote table file in dir, in file name order
func ReadDir(ctx context.Context, dir string, config ExcelConfig, logger *internal.Logger) ([]tally.NamedTable, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read recount directory: %w", err)
	}

	extensions := config.Extensions
	if len(extensions) == 0 {
		extensions = DefaultExcelConfig().Extensions
	}

	var out []tally.NamedTable
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || strings.HasPrefix(entry.Name(), "~$") {
			continue
		}
		if !slices.Contains(extensions, strings.ToLower(filepath.Ext(entry.Name()))) {
			continue
		}

		table, err := NewDataReader(filepath.Join(dir, entry.Name()), config, logger).ReadTable()
		if err != nil {
			return nil, err
		}
		out = append(out, tally.NamedTable{Name: entry.Name(), Table: table})
	}
	return out, nil
}

// Source loads preliminary and recount tables from the filesystem
type Source struct {
	config ExcelConfig
	logger *internal.Logger
}

// NewSource creates a table source
func NewSource(config ExcelConfig, logger *internal.Logger) *Source {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Source{config: config, logger: logger}
}

// LoadPreliminary reads the preliminary count file
func (s *Source) LoadPreliminary(ctx context.Context, path string) (*tally.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewDataReader(path, s.config, s.logger).ReadTable()
}

// LoadRecounts reads every recount file of dir, in file name order
func (s *Source) LoadRecounts(ctx context.Context, dir string) ([]tally.NamedTable, error) {
	tables, err := ReadDir(ctx, dir, s.config, s.logger)
	if err != nil {
		return nil, err
	}
	s.logger.Info("recount files loaded", "dir", dir, "files", len(tables))
	return tables, nil
}
