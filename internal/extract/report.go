package extract

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/lenhanpham/gaussian-extractor/internal/gaussian"
	"github.com/lenhanpham/gaussian-extractor/internal/version"
)

// Output formats.
const (
	FormatText = "text"
	FormatCSV  = "csv"
)

// SortColumns lists the report columns results can be ordered by.
var SortColumns = []int{2, 3, 4, 5, 6, 7, 10}

// ValidSortColumn reports whether col is one of SortColumns.
func ValidSortColumn(col int) bool {
	return slices.Contains(SortColumns, col)
}

// Sort orders results ascending by report column. Unknown columns keep the
// input order.
func Sort(results []Result, column int) {
	key := sortKey(column)
	if key == nil {
		return
	}
	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(key(a), key(b))
	})
}

func sortKey(column int) func(Result) float64 {
	switch column {
	case 2:
		return func(r Result) float64 { return r.ETGKJ }
	case 3:
		return func(r Result) float64 { return r.LowFreq }
	case 4:
		return func(r Result) float64 { return r.Gibbs }
	case 5:
		return func(r Result) float64 { return r.Nuclear }
	case 6:
		return func(r Result) float64 { return r.SCF }
	case 7:
		return func(r Result) float64 { return r.ZPE }
	case 10:
		return func(r Result) float64 { return float64(r.Rounds) }
	default:
		return nil
	}
}

// HeaderInfo is the run metadata written above the result table.
type HeaderInfo struct {
	Temperature   float64
	UseInputTemp  bool
	Concentration float64 // mol/m3
	Threads       int
	Processed     int
	Total         int
	PeakMemory    string
	Warnings      []string
	Errors        []string
}

const rule = "-------------------------------------------------------------"

// Header renders the report preamble.
func Header(h HeaderInfo) string {
	var b strings.Builder
	b.WriteString(version.Banner())
	if h.UseInputTemp {
		fmt.Fprintf(&b, "Using specified temperature for all files: %.3f K\n", h.Temperature)
	} else {
		fmt.Fprintf(&b, "Default temperature for files without specified temp: %.3f K\n", h.Temperature)
	}
	fmt.Fprintf(&b, "The concentration for phase correction: %g M or %g mol/m3\n",
		h.Concentration/1000, h.Concentration)
	fmt.Fprintf(&b, "Representative Gibbs free correction for phase changing at %.3f K: %.6f au\n",
		h.Temperature, gaussian.PhaseCorrection(h.Temperature, h.Concentration))
	fmt.Fprintf(&b, "Using %d threads for processing.\n", h.Threads)
	fmt.Fprintf(&b, "Successfully processed %d/%d files.\n", h.Processed, h.Total)
	if h.PeakMemory != "" {
		fmt.Fprintf(&b, "Peak memory usage: %s\n", h.PeakMemory)
	}

	if len(h.Warnings) > 0 || len(h.Errors) > 0 {
		b.WriteString("\n" + rule + "\n")
		if len(h.Warnings) > 0 {
			b.WriteString("Warnings:\n")
			for _, w := range h.Warnings {
				fmt.Fprintf(&b, "- %s\n", w)
			}
		}
		if len(h.Errors) > 0 {
			b.WriteString("Errors:\n")
			for _, e := range h.Errors {
				fmt.Fprintf(&b, "- %s\n", e)
			}
		}
		b.WriteString(rule + "\n")
	}
	return b.String()
}

var textColumns = []struct {
	title string
	width int
}{
	{"Output name", NameWidth},
	{"ETG kJ/mol", 18},
	{"Low FC", 10},
	{"ETG a.u", 18},
	{"Nuclear E au", 18},
	{"SCFE", 18},
	{"ZPE ", 10},
	{"Status", 8},
	{"PCorr", 6},
	{"Round", 6},
}

// CSVHeader is the first line of the CSV table.
const CSVHeader = "Output name,ETG kJ/mol,Low FC,ETG a.u,Nuclear E au,SCFE,ZPE,Status,PCorr,Round"

// WriteText writes the fixed-width table. precision applies to every energy
// column; frequencies always use two decimals.
func WriteText(w io.Writer, results []Result, precision int) error {
	var b strings.Builder
	for i, c := range textColumns {
		if i == 0 {
			fmt.Fprintf(&b, "%-*s", c.width, c.title)
		} else {
			fmt.Fprintf(&b, "%*s", c.width, c.title)
		}
	}
	b.WriteString("\n")
	for i, c := range textColumns {
		if i == 0 {
			fmt.Fprintf(&b, "%-*s", c.width, strings.Repeat("-", c.width))
		} else {
			fmt.Fprintf(&b, "%*s", c.width, strings.Repeat("-", c.width))
		}
	}
	b.WriteString("\n")

	for _, r := range results {
		fmt.Fprintf(&b, "%-53s%18.*f%10.2f%18.*f%18.*f%18.*f%10.*f%8s%6s%6d\n",
			r.FileName,
			precision, r.ETGKJ,
			r.LowFreq,
			precision, r.Gibbs,
			precision, r.Nuclear,
			precision, r.SCF,
			precision, r.ZPE,
			r.Status, r.PhaseCorrLabel(), r.Rounds)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteCSV writes the table as CSV with the file name quoted.
func WriteCSV(w io.Writer, results []Result, precision int) error {
	var b strings.Builder
	b.WriteString(CSVHeader + "\n")
	for _, r := range results {
		fmt.Fprintf(&b, "\"%s\",%.*f,%.2f,%.*f,%.*f,%.*f,%.*f,%s,%s,%d\n",
			r.FileName,
			precision, r.ETGKJ,
			r.LowFreq,
			precision, r.Gibbs,
			precision, r.Nuclear,
			precision, r.SCF,
			precision, r.ZPE,
			r.Status, r.PhaseCorrLabel(), r.Rounds)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Render writes header and table in the requested format.
func Render(w io.Writer, format string, h HeaderInfo, results []Result, precision int) error {
	if _, err := io.WriteString(w, Header(h)); err != nil {
		return err
	}
	switch format {
	case FormatText:
		return WriteText(w, results, precision)
	case FormatCSV:
		return WriteCSV(w, results, precision)
	default:
		return fmt.Errorf("%w: %q (supported: text, csv)", ErrInvalidFormat, format)
	}
}
