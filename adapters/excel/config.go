package excel

// ExcelConfig holds configuration for spreadsheet vote tables
type ExcelConfig struct {
	// Sheet is the XLSX sheet to read; empty selects the first sheet
	Sheet string `json:"sheet" yaml:"sheet"`
	// Extensions lists the file types picked up from a recount directory
	Extensions []string `json:"extensions" yaml:"extensions"`
}

// DefaultExcelConfig returns sensible defaults for vote table files
func DefaultExcelConfig() ExcelConfig {
	return ExcelConfig{
		Sheet:      "Sheet1",
		Extensions: []string{".csv", ".xlsx"},
	}
}
