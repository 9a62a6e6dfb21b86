package utils

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/kendall-kelly/stockmaster-web/models"
	"github.com/kendall-kelly/stockmaster-web/orders"
	"github.com/xuri/excelize/v2"
)

// SheetRow is one data row of an imported line sheet
type SheetRow struct {
	Row      int    `json:"row"` // 1-based row number in the sheet
	Product  string `json:"product"`
	Quantity string `json:"quantity"`
	UnitCost string `json:"unit_cost,omitempty"`
}

// Decompressed size limits for imported workbooks. A line sheet that fits
// the upload limit stays far below them.
var (
	maxUnzippedSize    int64 = 16 * MaxSpreadsheetSize
	maxUnzippedXMLSize int64 = 8 * MaxSpreadsheetSize
)

// ParseLineSheet reads product lines from the first sheet of an XLSX file.
// Columns are product (SKU or name), quantity and an optional unit cost. A
// leading header row is skipped; blank rows are ignored.
func ParseLineSheet(r io.Reader) ([]SheetRow, error) {
	file, err := excelize.OpenReader(r, excelize.Options{
		UnzipSizeLimit:    maxUnzippedSize,
		UnzipXMLSizeLimit: maxUnzippedXMLSize,
	})
	if err != nil {
		return nil, &FileUploadError{Code: "INVALID_SPREADSHEET", Message: "Spreadsheet could not be read"}
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("warning: failed to close spreadsheet: %v", closeErr)
		}
	}()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, &FileUploadError{Code: "EMPTY_SPREADSHEET", Message: "Spreadsheet has no sheets"}
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	var lines []SheetRow
	for i, row := range rows {
		product := cell(row, 0)
		if product == "" {
			continue
		}
		if i == 0 && isHeaderCell(product) {
			continue
		}
		lines = append(lines, SheetRow{
			Row:      i + 1,
			Product:  product,
			Quantity: cell(row, 1),
			UnitCost: cell(row, 2),
		})
	}

	if len(lines) == 0 {
		return nil, &FileUploadError{Code: "EMPTY_SPREADSHEET", Message: "Spreadsheet contains no product lines"}
	}
	return lines, nil
}

// MatchLines resolves sheet rows against the product catalog by SKU, then by
// name, ignoring case. Rows without a match are returned separately. Unit
// costs are only kept when withUnitCost is set.
func MatchLines(rows []SheetRow, products []models.Product, withUnitCost bool) ([]orders.Line, []SheetRow) {
	bySKU := make(map[string]string, len(products))
	byName := make(map[string]string, len(products))
	for _, p := range products {
		if p.SKU != "" {
			bySKU[strings.ToLower(p.SKU)] = p.ID
		}
		byName[strings.ToLower(strings.TrimSpace(p.Name))] = p.ID
	}

	var lines []orders.Line
	var unmatched []SheetRow
	for _, row := range rows {
		key := strings.ToLower(row.Product)
		id, ok := bySKU[key]
		if !ok {
			id, ok = byName[key]
		}
		if !ok {
			unmatched = append(unmatched, row)
			continue
		}

		line := orders.Line{ProductRef: id, Quantity: row.Quantity}
		if line.Quantity == "" {
			line.Quantity = orders.DefaultQuantity
		}
		if withUnitCost {
			line.UnitCost = row.UnitCost
		}
		lines = append(lines, line)
	}
	return lines, unmatched
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isHeaderCell(value string) bool {
	upper := strings.ToUpper(value)
	return upper == "SKU" || strings.Contains(upper, "PRODUCT")
}
