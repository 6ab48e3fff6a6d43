package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"zerofield/domain/chain"
	"zerofield/domain/cosmo"
	"zerofield/domain/dataset"
	"zerofield/internal"
)

// ChainHeaders are the columns of an exported chain, step-major.
var ChainHeaders = append(append([]string{"step", "walker"}, cosmo.ParamNames[:]...), "log_prob")

// SummaryHeaders are the columns of an exported statistics table.
var SummaryHeaders = []string{"Parameter", "Mean", "Std", "Median", "P16", "P84", "Minus", "Plus", "CI_low", "CI_high"}

// Exporter writes chains and posterior summaries as CSV or XLSX, chosen by
// file extension.
type Exporter struct {
	sheet  string
	logger *internal.Logger
}

// NewExporter creates an exporter
func NewExporter(logger *internal.Logger) *Exporter {
	return &Exporter{sheet: DefaultReaderConfig().Sheet, logger: internal.OrDefault(logger)}
}

// ExportChain writes one row per sample: step, walker, H0, Omega_m, m_phi, log_prob.
func (e *Exporter) ExportChain(path string, c *chain.Chain) error {
	rows := make([][]interface{}, 0, c.Len())
	for t := 0; t < c.Steps(); t++ {
		for k := 0; k < c.Walkers(); k++ {
			theta := c.At(k, t)
			rows = append(rows, []interface{}{t, k, theta[0], theta[1], theta[2], c.LogProbAt(k, t)})
		}
	}
	if err := e.write(path, ChainHeaders, rows); err != nil {
		return fmt.Errorf("export chain: %w", err)
	}
	e.logger.Info("Exported %d samples to %s", c.Len(), path)
	return nil
}

// ExportSummary writes one row per parameter.
func (e *Exporter) ExportSummary(path string, s chain.PosteriorSummary) error {
	rows := make([][]interface{}, 0, len(s.Parameters))
	for _, p := range s.Parameters {
		rows = append(rows, []interface{}{p.Name, p.Mean, p.Std, p.Median, p.P16, p.P84, p.Minus, p.Plus, p.CILow, p.CIHigh})
	}
	if err := e.write(path, SummaryHeaders, rows); err != nil {
		return fmt.Errorf("export summary: %w", err)
	}
	e.logger.Info("Exported posterior summary to %s", path)
	return nil
}

// ExportDataset writes observations under the first header alias of the
// probe, so the file reads back through DataReader unchanged.
func (e *Exporter) ExportDataset(path string, ds *dataset.Dataset) error {
	cols, ok := DefaultReaderConfig().Aliases[ds.Probe]
	if !ok {
		return fmt.Errorf("export dataset: no columns for probe %q", ds.Probe)
	}
	headers := []string{cols.Z[0], cols.Value[0], cols.Sigma[0]}
	rows := make([][]interface{}, 0, ds.Len())
	for _, o := range ds.Observations {
		rows = append(rows, []interface{}{o.Z, o.Value, o.Sigma})
	}
	if err := e.write(path, headers, rows); err != nil {
		return fmt.Errorf("export dataset: %w", err)
	}
	e.logger.Info("Exported %d %s records to %s", ds.Len(), ds.Probe, path)
	return nil
}

func (e *Exporter) write(path string, headers []string, rows [][]interface{}) error {
	if fileType(path) == "csv" {
		return writeCSV(path, headers, rows)
	}
	return e.writeXLSX(path, headers, rows)
}

func writeCSV(path string, headers []string, rows [][]interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(headers); err != nil {
		return err
	}
	record := make([]string, len(headers))
	for _, row := range rows {
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Close()
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// writeXLSX streams rows so large production chains stay out of memory.
func (e *Exporter) writeXLSX(path string, headers []string, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(e.sheet)
	if err != nil {
		return err
	}
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}
