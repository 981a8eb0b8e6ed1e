package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/seenimoa/edgarkpi/pkg/models"
	"github.com/seenimoa/edgarkpi/pkg/utils"
)

// CSVHeader lists the fixed leading columns of a KPI export.
var CSVHeader = []string{"Period", "Period End", "Form", "Filed"}

// CSVFilename is the download name for a ticker's KPI export.
func CSVFilename(ticker string) string {
	return utils.NormalizeTicker(ticker) + "_kpis.csv"
}

// WriteCSV writes the panel as CSV: the fixed period columns followed by the
// panel columns in order. Empty cells are blank and numbers keep full
// precision.
func WriteCSV(w io.Writer, panel *models.KPIPanel) error {
	cw := csv.NewWriter(w)

	var columns []string
	if panel != nil {
		columns = panel.Columns
	}
	header := append(append([]string(nil), CSVHeader...), columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	if panel != nil {
		record := make([]string, len(header))
		for _, row := range panel.Rows {
			record[0] = row.PeriodLabel
			record[1] = utils.FormatDate(row.PeriodEnd)
			record[2] = row.FormType
			record[3] = utils.FormatDate(row.FiledDate)
			for i, col := range columns {
				record[len(CSVHeader)+i] = ""
				if v, ok := row.Value(col); ok {
					record[len(CSVHeader)+i] = strconv.FormatFloat(v, 'f', -1, 64)
				}
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("write csv row %s: %w", row.PeriodLabel, err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
