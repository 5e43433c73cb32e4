package handlers

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"calman.com/worklog/model"
	"calman.com/worklog/utils"
	"github.com/xuri/excelize/v2"
)

// Production plan layout. Indexes are zero based.
const (
	mainSheetIndex = 3
	nameSheetIndex = 2

	baseDateRow = 5 // L6 on the name sheet
	baseDateCol = 11
	headerRow   = 6  // product codes above the quantity columns
	startRow    = 7
	endRow      = 199

	colorCol       = 1 // B
	timeCol        = 2 // C
	productNameCol = 4 // E
	productCodeCol = 6 // G, fallback code list

	quantityStartCol = 8   // I
	quantityEndCol   = 191 // GJ

	codeListStartRow = 8
	codeListEndRow   = 188
)

var ErrMissingSheets = errors.New("Required sheets are missing from the workbook")

// PlanEntry is one work log found in the workbook.
type PlanEntry struct {
	Cell    string
	Request model.CreateRequest
}

// Plan is the result of reading a production plan workbook.
type Plan struct {
	BaseDate time.Time
	Entries  []PlanEntry
	Errors   []string
}

type grid [][]string

func (g grid) at(row, col int) string {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return ""
	}
	return strings.TrimSpace(g[row][col])
}

func cellName(row, col int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row+1)
	return name
}

func columnName(col int) string {
	name, _ := excelize.ColumnNumberToName(col + 1)
	return name
}

// ReadPlan parses a production plan. Rows are read from the main sheet until the
// first row without a start time or colour; every positive quantity becomes one
// entry. now supplies the base date when L6 is empty.
func ReadPlan(r io.Reader, carModel string, now time.Time) (*Plan, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) <= mainSheetIndex || len(sheets) <= nameSheetIndex {
		return nil, ErrMissingSheets
	}

	opts := excelize.Options{RawCellValue: true}
	mainRows, err := f.GetRows(sheets[mainSheetIndex], opts)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[mainSheetIndex], err)
	}
	nameRows, err := f.GetRows(sheets[nameSheetIndex], opts)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[nameSheetIndex], err)
	}
	sheet, names := grid(mainRows), grid(nameRows)

	plan := &Plan{BaseDate: baseDate(names, now)}
	codes := productCodes(sheet)

	for row := startRow; row <= endRow; row++ {
		timeValue, color := sheet.at(row, timeCol), sheet.at(row, colorCol)
		if timeValue == "" || color == "" {
			break
		}

		at, ok := combineDateTime(plan.BaseDate, timeValue)
		if !ok {
			plan.Errors = append(plan.Errors, fmt.Sprintf("Row %d: could not read the start time", row+1))
			continue
		}

		for col := quantityStartCol; col <= quantityEndCol; col++ {
			raw := sheet.at(row, col)
			if raw == "" {
				continue
			}
			quantity := parseQuantity(raw)
			if quantity <= 0 {
				continue
			}

			code := codes[col]
			if code == "" {
				plan.Errors = append(plan.Errors,
					fmt.Sprintf("Row %d, column %s: no product code for this column", row+1, columnName(col)))
				continue
			}

			plan.Entries = append(plan.Entries, PlanEntry{
				Cell: cellName(row, col),
				Request: model.CreateRequest{
					WorkDatetime: utils.FormatDisplay(at),
					CarModel:     carModel,
					ProductColor: color,
					ProductCode:  code,
					ProductName:  names.at(row, productNameCol),
					Quantity:     quantity,
				},
			})
		}
	}
	return plan, nil
}

func baseDate(names grid, now time.Time) time.Time {
	raw := names.at(baseDateRow, baseDateCol)
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(v, false); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
		}
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
}

// productCodes maps each quantity column to the code in the header row, falling
// back to the G column list at the same offset.
func productCodes(sheet grid) map[int]string {
	codes := map[int]string{}
	for col := quantityStartCol; col <= quantityEndCol; col++ {
		if code := sheet.at(headerRow, col); code != "" {
			codes[col] = code
			continue
		}
		row := codeListStartRow + (col - quantityStartCol)
		if row <= codeListEndRow {
			if code := sheet.at(row, productCodeCol); code != "" {
				codes[col] = code
			}
		}
	}
	return codes
}

// combineDateTime places a start time on the base date. Numeric values are Excel
// serials: the integer part adds days, the fraction is the time of day. Text may
// be "HH:MM", "HH:MM:SS" or a datetime whose time part follows a "T".
func combineDateTime(base time.Time, raw string) (time.Time, bool) {
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		days := math.Floor(v)
		hours := (v - days) * 24
		h := int(hours)
		m := int(math.Round((hours - float64(h)) * 60))
		if m == 60 {
			h++
			m = 0
		}
		return time.Date(base.Year(), base.Month(), base.Day()+int(days), h, m, 0, 0, base.Location()), true
	}

	if _, after, found := strings.Cut(raw, "T"); found {
		raw = after
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(base.Year(), base.Month(), base.Day(), t.Hour(), t.Minute(), 0, 0, base.Location()), true
		}
	}
	return time.Time{}, false
}

func parseQuantity(raw string) int {
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(v)
	}
	return 0
}
