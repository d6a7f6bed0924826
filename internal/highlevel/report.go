package highlevel

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/lenhanpham/gaussian-extractor/internal/gaussian"
	"github.com/lenhanpham/gaussian-extractor/internal/stringsutil"
	"github.com/lenhanpham/gaussian-extractor/internal/version"
)

// Mode selects the table layout.
type Mode string

const (
	// ModeKJ is the Gibbs energy table in kJ/mol, Hartree and eV.
	ModeKJ Mode = "kj"
	// ModeAU is the component breakdown in atomic units.
	ModeAU Mode = "au"
)

// Output formats.
const (
	FormatText = "text"
	FormatCSV  = "csv"
)

// maxNameWidth caps how much of a file name widens the first column.
const maxNameWidth = 70

type column struct {
	title    string
	minWidth int
	value    func(Result) string
	less     func(a, b Result) int
}

func fixed(prec int, get func(Result) float64) func(Result) string {
	return func(r Result) string { return fmt.Sprintf("%.*f", prec, get(r)) }
}

func byFloat(get func(Result) float64) func(a, b Result) int {
	return func(a, b Result) int { return cmp.Compare(get(a), get(b)) }
}

// phaseFirst orders YES before NO.
func phaseFirst(a, b Result) int {
	switch {
	case a.PhaseCorr == b.PhaseCorr:
		return 0
	case a.PhaseCorr:
		return -1
	default:
		return 1
	}
}

func byName(a, b Result) int { return cmp.Compare(a.FileName, b.FileName) }

var (
	gibbs     = func(r Result) float64 { return r.Gibbs }
	gibbsKJ   = func(r Result) float64 { return r.GibbsKJ }
	gibbsEV   = func(r Result) float64 { return r.GibbsEV }
	lowFreq   = func(r Result) float64 { return r.LowFreq }
	eHigh     = func(r Result) float64 { return r.EHigh }
	eLow      = func(r Result) float64 { return r.ELow }
	zpe       = func(r Result) float64 { return r.ZPE }
	tc        = func(r Result) float64 { return r.TC }
	ts        = func(r Result) float64 { return r.TS }
	enthalpy  = func(r Result) float64 { return r.Enthalpy }
	name      = func(r Result) string { return r.FileName }
	status    = func(r Result) string { return string(r.Status) }
	phaseCorr = func(r Result) string { return r.PhaseCorrLabel() }
)

var kjColumns = []column{
	{"Output name", 52, name, byName},
	{"G kJ/mol", 15, fixed(6, gibbsKJ), byFloat(gibbsKJ)},
	{"G a.u", 12, fixed(6, gibbs), byFloat(gibbs)},
	{"G eV", 12, fixed(6, gibbsEV), byFloat(gibbsEV)},
	{"LowFQ", 10, fixed(4, lowFreq), byFloat(lowFreq)},
	{"Status", 8, status, func(a, b Result) int { return cmp.Compare(a.Status, b.Status) }},
	{"PhCorr", 8, phaseCorr, phaseFirst},
}

var auColumns = []column{
	{"Output name", 52, name, byName},
	{"E high a.u", 15, fixed(6, eHigh), byFloat(eHigh)},
	{"E low a.u", 15, fixed(6, eLow), byFloat(eLow)},
	{"ZPE a.u", 10, fixed(6, zpe), byFloat(zpe)},
	{"TC a.u", 10, fixed(6, tc), byFloat(tc)},
	{"TS a.u", 10, fixed(6, ts), byFloat(ts)},
	{"H a.u", 15, fixed(6, enthalpy), byFloat(enthalpy)},
	{"G a.u", 15, fixed(6, gibbs), byFloat(gibbs)},
	{"LowFQ", 10, fixed(4, lowFreq), byFloat(lowFreq)},
	{"PhaseCorr", 11, phaseCorr, phaseFirst},
}

func columns(mode Mode) []column {
	if mode == ModeAU {
		return auColumns
	}
	return kjColumns
}

// defaultSortColumn is the Gibbs energy column of each layout.
func defaultSortColumn(mode Mode) int {
	if mode == ModeAU {
		return 8
	}
	return 2
}

// ValidSortColumn reports whether col (1-based) exists in the mode's table.
func ValidSortColumn(mode Mode, col int) bool {
	return col >= 1 && col <= len(columns(mode))
}

// Sort orders results by a 1-based table column; out-of-range columns fall
// back to the Gibbs energy.
func Sort(results []Result, mode Mode, col int) {
	cols := columns(mode)
	if !ValidSortColumn(mode, col) {
		col = defaultSortColumn(mode)
	}
	slices.SortStableFunc(results, cols[col-1].less)
}

// SummaryInfo is the run metadata written above the table.
type SummaryInfo struct {
	// Parent is the low-level file the temperature was read from.
	Parent        string
	Temperature   float64
	Concentration float64 // mol/m3
}

// Header renders the banner and the temperature and phase correction lines.
func Header(s SummaryInfo) string {
	var b strings.Builder
	b.WriteString(version.Banner())
	fmt.Fprintf(&b, "Temperature in %s: %.3f K. Make sure that temperature has been used in your input.\n",
		s.Parent, s.Temperature)
	fmt.Fprintf(&b, "The concentration for phase correction: %g M or %g mol/m3\n",
		s.Concentration/1000, s.Concentration)
	fmt.Fprintf(&b, "Last Gibbs free correction for phase changing from 1 atm to 1 M: %.6f au\n",
		gaussian.PhaseCorrection(s.Temperature, s.Concentration))
	return b.String()
}

// widths sizes each column to its widest cell plus three blanks.
func widths(cols []column, results []Result) []int {
	w := make([]int, len(cols))
	for i, c := range cols {
		w[i] = c.minWidth
	}
	for _, r := range results {
		w[0] = max(w[0], len(stringsutil.KeepLast(r.FileName, maxNameWidth))+3)
		for i := 1; i < len(cols); i++ {
			w[i] = max(w[i], len(cols[i].value(r))+3)
		}
	}
	return w
}

// WriteText writes the right-aligned table with widths fitted to the data.
func WriteText(w io.Writer, mode Mode, results []Result) error {
	cols := columns(mode)
	ws := widths(cols, results)

	var b strings.Builder
	for i, c := range cols {
		fmt.Fprintf(&b, "%*s", ws[i], c.title)
	}
	b.WriteString("\n")
	for i := range cols {
		fmt.Fprintf(&b, "%*s", ws[i], strings.Repeat("-", ws[i]-3))
	}
	b.WriteString("\n")
	for _, r := range results {
		fmt.Fprintf(&b, "%*s", ws[0], stringsutil.KeepLast(r.FileName, ws[0]-3))
		for i := 1; i < len(cols); i++ {
			fmt.Fprintf(&b, "%*s", ws[i], cols[i].value(r))
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteCSV writes the table as CSV; frequencies use two decimals.
func WriteCSV(w io.Writer, mode Mode, results []Result) error {
	cols := columns(mode)
	nameWidth := 52
	if mode == ModeAU {
		nameWidth = 53
	}

	var b strings.Builder
	titles := make([]string, len(cols))
	for i, c := range cols {
		titles[i] = c.title
	}
	b.WriteString(strings.Join(titles, ",") + "\n")
	for _, r := range results {
		fmt.Fprintf(&b, "\"%s\"", stringsutil.KeepLast(r.FileName, nameWidth))
		for i := 1; i < len(cols); i++ {
			cell := cols[i].value(r)
			if cols[i].title == "LowFQ" {
				cell = fmt.Sprintf("%.2f", r.LowFreq)
			}
			b.WriteString("," + cell)
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Render writes header and table in the requested format.
func Render(w io.Writer, mode Mode, format string, s SummaryInfo, results []Result) error {
	if _, err := io.WriteString(w, Header(s)); err != nil {
		return err
	}
	switch format {
	case FormatText:
		return WriteText(w, mode, results)
	case FormatCSV:
		return WriteCSV(w, mode, results)
	default:
		return fmt.Errorf("%w: %q (supported: text, csv)", ErrInvalidFormat, format)
	}
}
