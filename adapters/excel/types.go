package excel

// RawRowData represents a row of raw sheet data as header → cell text
type RawRowData map[string]string

// Table represents a complete sheet or CSV file
type Table struct {
	Headers []string     // Column headers, trimmed
	Rows    []RawRowData // Data rows
}

// Columns names the header aliases accepted for one probe's three fields.
type Columns struct {
	Z     []string `json:"z" yaml:"z"`
	Value []string `json:"value" yaml:"value"`
	Sigma []string `json:"sigma" yaml:"sigma"`
}
