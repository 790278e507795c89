// Package export renders the ledger for hand-off: a plain code;qty list for
// stock systems and a priced report for people.
package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/inventory-count/internal/model"
)

// WriteText writes one "code;qty" row per line, separated by '\n' without a
// trailing newline.
func WriteText(w io.Writer, lines []model.Line) error {
	rows := make([]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, l.Code+";"+strconv.Itoa(l.Qty))
	}

	if _, err := io.WriteString(w, strings.Join(rows, "\n")); err != nil {
		return fmt.Errorf("write text export: %w", err)
	}
	return nil
}

type ReportRow struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Report struct {
	Rows       []ReportRow     `json:"rows"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// BuildReport prices every line in ledger order.
func BuildReport(lines []model.Line) Report {
	report := Report{
		Rows:       make([]ReportRow, 0, len(lines)),
		GrandTotal: decimal.Zero,
	}
	for _, l := range lines {
		total := l.Total()
		report.Rows = append(report.Rows, ReportRow{
			Code:      l.Code,
			Name:      l.Name,
			Qty:       l.Qty,
			UnitPrice: l.Price,
			LineTotal: total,
		})
		report.GrandTotal = report.GrandTotal.Add(total)
	}
	return report
}

// WriteReport renders report as an aligned table with a grand total footer.
// Amounts are printed with two decimals.
func WriteReport(w io.Writer, report Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "Code\tName\tQty\tUnit Price\tLine Total\t")
	for _, r := range report.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t\n",
			r.Code, r.Name, r.Qty, r.UnitPrice.StringFixed(2), r.LineTotal.StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\t\tTotal\t%s\t\n", report.GrandTotal.StringFixed(2))

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// FileName builds "prefix-YYYYMMDD-HHMM.ext" from the local time now.
func FileName(prefix, ext string, now time.Time) string {
	return EnsureExt(prefix+"-"+now.Format("20060102-1504"), ext)
}

// EnsureExt appends ext to name unless name already ends with it, ignoring
// case. ext may be given with or without the leading dot.
func EnsureExt(name, ext string) string {
	ext = "." + strings.TrimPrefix(ext, ".")
	if strings.EqualFold(filepath.Ext(name), ext) {
		return name
	}
	return name + ext
}
