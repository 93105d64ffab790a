package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/rotation/internal/domain"
)

// LoadCSV reads a wide price file:
//
//	date,510300,510880,...
//	2024-01-02,3.512,2.981,...
//
// The date column may also be named 日期 or left unnamed, as in a pandas
// index export. Dates may be YYYY-MM-DD or YYYYMMDD and must ascend. An
// empty cell (or "NaN") is a missing observation. The result is a
// validated PriceTable.
func LoadCSV(r io.Reader) (domain.PriceTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return domain.PriceTable{}, fmt.Errorf("%w: failed to read CSV header: %v", domain.ErrInvalidPriceTable, err)
	}
	if len(header) < 2 || !isDateColumn(header[0]) {
		return domain.PriceTable{}, fmt.Errorf("%w: CSV header must start with a date column", domain.ErrInvalidPriceTable)
	}
	ids := header[1:]

	var dates []time.Time
	columns := make([][]float64, len(ids))
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return domain.PriceTable{}, fmt.Errorf("%w: line %d: %v", domain.ErrInvalidPriceTable, line, err)
		}

		date, err := domain.ParseDate(record[0])
		if err != nil {
			return domain.PriceTable{}, fmt.Errorf("%w: line %d: bad date %q", domain.ErrInvalidPriceTable, line, record[0])
		}
		dates = append(dates, date)

		for i := range ids {
			cell := strings.TrimSpace(record[i+1])
			v := math.NaN()
			if cell != "" && !strings.EqualFold(cell, "nan") {
				if v, err = strconv.ParseFloat(cell, 64); err != nil {
					return domain.PriceTable{}, fmt.Errorf("%w: line %d: bad price %q for %s", domain.ErrInvalidPriceTable, line, cell, ids[i])
				}
			}
			columns[i] = append(columns[i], v)
		}
	}

	prices := make(map[string][]float64, len(ids))
	for i, id := range ids {
		id = strings.TrimSpace(id)
		if _, dup := prices[id]; dup {
			return domain.PriceTable{}, fmt.Errorf("%w: duplicate column %q", domain.ErrInvalidPriceTable, id)
		}
		prices[id] = columns[i]
	}
	return domain.NewPriceTable(dates, prices)
}

func isDateColumn(name string) bool {
	name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	return name == "" || name == "日期" || strings.EqualFold(name, "date")
}

// WriteCSV writes a table in the LoadCSV format. ids selects and orders the
// columns; nil writes every instrument in sorted order.
func WriteCSV(w io.Writer, table domain.PriceTable, ids []string) error {
	if ids == nil {
		ids = table.Instruments()
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(append([]string{"date"}, ids...)); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(ids)+1)
	for row, date := range table.Dates {
		record[0] = date.Format(domain.DateLayout)
		for i, id := range ids {
			record[i+1] = ""
			if p, ok := table.Price(id, row); ok {
				record[i+1] = strconv.FormatFloat(p, 'f', -1, 64)
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
