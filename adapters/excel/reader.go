package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"zerofield/domain/chain"
	"zerofield/domain/core"
	"zerofield/domain/cosmo"
	"zerofield/domain/dataset"
	"zerofield/internal"
)

// DataReader reads observational tables from Excel and CSV files
type DataReader struct {
	config ReaderConfig
	logger *internal.Logger
}

// NewDataReader creates a reader that handles both Excel and CSV files
func NewDataReader(config ReaderConfig, logger *internal.Logger) *DataReader {
	if config.Sheet == "" {
		config.Sheet = DefaultReaderConfig().Sheet
	}
	if config.Aliases == nil {
		config.Aliases = DefaultReaderConfig().Aliases
	}
	return &DataReader{config: config, logger: internal.OrDefault(logger)}
}

func fileType(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return "csv"
	}
	return "xlsx"
}

// ReadDataset loads one probe's (z, value, σ) records and validates them.
// Unparseable cells are reported with their file, row and column.
func (r *DataReader) ReadDataset(ctx context.Context, path string, probe dataset.Probe) (*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cols, ok := r.config.Aliases[probe]
	if !ok {
		return nil, fmt.Errorf("no column aliases configured for probe %s", probe)
	}
	table, err := r.ReadTable(path)
	if err != nil {
		return nil, err
	}

	zCol, err := resolveColumn(path, table.Headers, "z", cols.Z)
	if err != nil {
		return nil, err
	}
	valueCol, err := resolveColumn(path, table.Headers, "value", cols.Value)
	if err != nil {
		return nil, err
	}
	sigmaCol, err := resolveColumn(path, table.Headers, "sigma", cols.Sigma)
	if err != nil {
		return nil, err
	}

	ds := &dataset.Dataset{
		Name:         filepath.Base(path),
		Probe:        probe,
		Observations: make([]dataset.Observation, 0, len(table.Rows)),
	}
	for i, row := range table.Rows {
		var obs dataset.Observation
		if obs.Z, err = parseCell(path, i, zCol, row); err != nil {
			return nil, err
		}
		if obs.Value, err = parseCell(path, i, valueCol, row); err != nil {
			return nil, err
		}
		if obs.Sigma, err = parseCell(path, i, sigmaCol, row); err != nil {
			return nil, err
		}
		ds.Observations = append(ds.Observations, obs)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	r.logger.Debug("[DataReader] %s dataset %s: %d records (z=%s value=%s sigma=%s)",
		probe, ds.Name, ds.Len(), zCol, valueCol, sigmaCol)
	return ds, nil
}

// ReadTable reads a CSV file or the configured sheet of an Excel workbook.
func (r *DataReader) ReadTable(path string) (*Table, error) {
	kind := fileType(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(kind), path)
	}

	start := time.Now()
	var rows [][]string
	var err error
	switch kind {
	case "csv":
		rows, err = readCSVRows(path)
	default:
		rows, err = r.readExcelRows(path)
	}
	if err != nil {
		return nil, err
	}
	r.logger.Trace("[DataReader] %s read in %.2fms (%d rows)", path, float64(time.Since(start).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, core.NewDataIntegrityError(path, -1, "", "file must have a header row and at least one data row")
	}
	return processRows(rows), nil
}

func (r *DataReader) readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.config.Sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.config.Sheet, err)
	}
	return rows, nil
}

func readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comment = '#'
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// processRows converts raw string rows into a Table, skipping blank lines
func processRows(rows [][]string) *Table {
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	table := &Table{Headers: headers}
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		data := make(RawRowData, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				data[headers[j]] = strings.TrimSpace(cell)
			}
		}
		table.Rows = append(table.Rows, data)
	}
	return table
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// resolveColumn returns the first header matching an alias, case-insensitively.
func resolveColumn(path string, headers []string, field string, aliases []string) (string, error) {
	for _, alias := range aliases {
		for _, h := range headers {
			if strings.EqualFold(h, alias) {
				return h, nil
			}
		}
	}
	return "", core.NewDataIntegrityError(path, -1, field,
		fmt.Sprintf("no column matches any of %s (headers: %s)", strings.Join(aliases, ", "), strings.Join(headers, ", ")))
}

func parseCell(path string, index int, column string, row RawRowData) (float64, error) {
	text, ok := row[column]
	if !ok || text == "" {
		return 0, core.NewDataIntegrityError(path, index, column, "missing value")
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, core.NewDataIntegrityError(path, index, column, fmt.Sprintf("not a number: %q", text))
	}
	return v, nil
}

// ReadChain rebuilds a chain from a table written by Exporter.ExportChain.
func (r *DataReader) ReadChain(path string) (*chain.Chain, error) {
	table, err := r.ReadTable(path)
	if err != nil {
		return nil, err
	}

	var positions [][]cosmo.ParameterVector
	var logProbs [][]float64
	for i, row := range table.Rows {
		step, err := parseIndex(path, i, "step", row)
		if err != nil {
			return nil, err
		}
		walker, err := parseIndex(path, i, "walker", row)
		if err != nil {
			return nil, err
		}
		if step != len(positions) && step != len(positions)-1 {
			return nil, core.NewDataIntegrityError(path, i, "step", "rows must be step-major")
		}
		if step == len(positions) {
			positions = append(positions, nil)
			logProbs = append(logProbs, nil)
		}
		if walker != len(positions[step]) {
			return nil, core.NewDataIntegrityError(path, i, "walker", "walkers must be contiguous within a step")
		}

		var theta cosmo.ParameterVector
		for d, name := range cosmo.ParamNames {
			if theta[d], err = parseCell(path, i, name, row); err != nil {
				return nil, err
			}
		}
		lp, err := parseCell(path, i, "log_prob", row)
		if err != nil {
			return nil, err
		}
		positions[step] = append(positions[step], theta)
		logProbs[step] = append(logProbs[step], lp)
	}
	return chain.FromSteps(positions, logProbs)
}

func parseIndex(path string, index int, column string, row RawRowData) (int, error) {
	n, err := strconv.Atoi(row[column])
	if err != nil || n < 0 {
		return 0, core.NewDataIntegrityError(path, index, column, fmt.Sprintf("not a non-negative integer: %q", row[column]))
	}
	return n, nil
}
