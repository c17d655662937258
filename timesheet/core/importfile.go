package core

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"piecework.app/piecework/utils"
)

const DefaultImportMaxBytes = 10 << 20

var (
	ErrImportFileType   = fmt.Errorf("%w: only .xlsx and .csv files can be imported", ErrValidation)
	ErrImportFileSize   = fmt.Errorf("%w: import file is too large", ErrValidation)
	ErrImportNoData     = fmt.Errorf("%w: the file has no data rows below the header", ErrValidation)
	ErrImportRejected   = fmt.Errorf("%w: import rejected, fix the listed rows and upload again", ErrValidation)
	ErrImportUnreadable = fmt.Errorf("%w: the file could not be read as a spreadsheet", ErrValidation)
)

var allowedImportTypes = map[string][]string{
	".xlsx": {
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/zip",
		"application/octet-stream",
	},
	".csv": {
		"text/csv",
		"text/plain",
		"application/csv",
		"application/vnd.ms-excel",
		"application/octet-stream",
	},
}

// CheckImportFile validates the upload before it is read.
func CheckImportFile(name string, size int64, contentType string, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultImportMaxBytes
	}
	if size <= 0 {
		return ErrImportNoData
	}
	if size > maxBytes {
		return fmt.Errorf("%w: %d bytes, the limit is %d", ErrImportFileSize, size, maxBytes)
	}
	ext := strings.ToLower(filepath.Ext(name))
	allowed, ok := allowedImportTypes[ext]
	if !ok {
		return ErrImportFileType
	}
	if contentType == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("%w: bad content type %q", ErrImportFileType, contentType)
	}
	for _, t := range allowed {
		if mediaType == t {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not a %s file", ErrImportFileType, mediaType, ext)
}

type importColumn string

const (
	colCompany        importColumn = "company"
	colProductionLine importColumn = "production line"
	colCategory       importColumn = "work-time type"
	colProductName    importColumn = "product name"
	colProcessName    importColumn = "process name"
	colUnitPrice      importColumn = "unit price"
	colEffectiveMonth importColumn = "effective month"
	colUnit           importColumn = "unit"
)

var requiredColumns = []importColumn{
	colCompany, colProductionLine, colCategory, colProductName, colProcessName, colUnitPrice, colEffectiveMonth,
}

var headerAliases = map[string]importColumn{
	"company":         colCompany,
	"company name":    colCompany,
	"公司":              colCompany,
	"公司名称":            colCompany,
	"production line": colProductionLine,
	"line":            colProductionLine,
	"生产线":             colProductionLine,
	"产线":              colProductionLine,
	"work-time type":  colCategory,
	"work time type":  colCategory,
	"category":        colCategory,
	"工时类型":            colCategory,
	"product name":    colProductName,
	"product":         colProductName,
	"产品名称":            colProductName,
	"产品":              colProductName,
	"process name":    colProcessName,
	"process":         colProcessName,
	"工序名称":            colProcessName,
	"工序":              colProcessName,
	"unit price":      colUnitPrice,
	"price":           colUnitPrice,
	"单价":              colUnitPrice,
	"effective month": colEffectiveMonth,
	"month":           colEffectiveMonth,
	"生效月份":            colEffectiveMonth,
	"月份":              colEffectiveMonth,
	"unit":            colUnit,
	"单位":              colUnit,
}

// HeaderError lists required columns absent from the header row.
type HeaderError struct {
	Missing []string
}

func (e *HeaderError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

func (e *HeaderError) Unwrap() error {
	return ErrValidation
}

// ImportRow is one data row of a process sheet, as text.
type ImportRow struct {
	Row            int    `json:"row"`
	Company        string `json:"company"`
	ProductionLine string `json:"productionLine"`
	Category       string `json:"category"`
	ProductName    string `json:"productName"`
	ProcessName    string `json:"processName"`
	UnitPrice      string `json:"unitPrice"`
	EffectiveMonth string `json:"effectiveMonth"`
	Unit           string `json:"unit"`
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "_", " ")
	return strings.Join(strings.Fields(h), " ")
}

// ParseProcessSheet reads the first sheet of an .xlsx file, or a .csv file,
// into rows. Missing required headers fail before any row is looked at.
func ParseProcessSheet(name string, r io.Reader) ([]ImportRow, error) {
	var (
		cells [][]string
		err   error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		cells, err = readWorkbook(r)
	case ".csv":
		cells, err = utils.ParseCSV(r)
	default:
		return nil, ErrImportFileType
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportUnreadable, err)
	}
	return mapImportRows(cells)
}

func readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// raw values keep date cells as serial numbers for NormalizeMonth
	return f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
}

func mapImportRows(cells [][]string) ([]ImportRow, error) {
	if len(cells) == 0 {
		return nil, ErrImportNoData
	}

	index := map[importColumn]int{}
	for i, h := range cells[0] {
		if col, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, seen := index[col]; !seen {
				index[col] = i
			}
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, string(col))
		}
	}
	if len(missing) > 0 {
		return nil, &HeaderError{Missing: missing}
	}

	get := func(row []string, col importColumn) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var rows []ImportRow
	for i := 1; i < len(cells); i++ {
		row := cells[i]
		item := ImportRow{
			Row:            i + 1,
			Company:        get(row, colCompany),
			ProductionLine: get(row, colProductionLine),
			Category:       get(row, colCategory),
			ProductName:    get(row, colProductName),
			ProcessName:    get(row, colProcessName),
			UnitPrice:      get(row, colUnitPrice),
			EffectiveMonth: get(row, colEffectiveMonth),
			Unit:           get(row, colUnit),
		}
		if item == (ImportRow{Row: item.Row}) {
			continue
		}
		rows = append(rows, item)
	}
	if len(rows) == 0 {
		return nil, ErrImportNoData
	}
	return rows, nil
}
