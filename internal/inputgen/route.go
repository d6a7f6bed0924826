package inputgen

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lenhanpham/gaussian-extractor/internal/fsutil"
)

var (
	ErrMissingTail       = errors.New("tail section required")
	ErrMissingModre      = errors.New("freeze atoms or modre block required")
	ErrMissingCheckpoint = errors.New("transition state checkpoint not found")
	ErrNoCoordinates     = errors.New("no coordinates found")
)

const link1 = "--Link1--\n"

var titles = map[CalcType]string{
	CalcSP:            "Title: Normal single point calculation",
	CalcOptFreq:       "Title: Geometrical optimization and frequency calculation",
	CalcTSFreq:        "Title: transition state search and frequency calculation",
	calcTSFreqFromChk: "Title: transition state search and frequency calculation",
	CalcOSSCheckSP:    "Title: Stable Opt to check openshell singlet",
	CalcHighSP:        "Title: Single point calculation with higher level of theory (larger basis set)",
	CalcIRCForward:    "Title: IRC forward",
	CalcIRCReverse:    "Title: IRC reverse",
	CalcModreOpt:      "Title: Modredundant geometrical optimization",
}

func title(t CalcType) string {
	if s, ok := titles[t]; ok {
		return s
	}
	return "Title: Gaussian calculation"
}

// Input is one rendered Gaussian input file.
type Input struct {
	Name    string
	Content string
}

// Validate checks the parameter combinations that cannot produce a usable
// input.
func Validate(p Params) error {
	if _, err := ParseCalcType(string(p.CalcType)); err != nil {
		return err
	}
	for _, basis := range []string{p.Basis, p.LargeBasis} {
		if b := strings.ToLower(basis); (b == "gen" || b == "genecp") && strings.TrimSpace(p.Tail) == "" {
			return fmt.Errorf("%w: basis %s needs the basis definition in the tail", ErrMissingTail, basis)
		}
	}
	solvent := strings.ToLower(p.Solvent)
	if strings.Contains(solvent, "generic") && strings.Contains(solvent, "read") && strings.TrimSpace(p.Tail) == "" {
		return fmt.Errorf("%w: solvent %s needs the solvent parameters in the tail", ErrMissingTail, p.Solvent)
	}
	switch p.CalcType {
	case CalcModreOpt, CalcModreTSFreq, CalcOSSTSFreq:
		if len(p.FreezeAtoms) != 2 && strings.TrimSpace(p.Modre) == "" {
			return fmt.Errorf("%w for %s", ErrMissingModre, p.CalcType)
		}
	}
	return nil
}

// ReadCoordinates returns the atom lines of an XYZ file (line 3 onward).
func ReadCoordinates(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for n := 0; sc.Scan(); n++ {
		if n < 2 {
			continue
		}
		if line := strings.TrimRight(sc.Text(), " \t\r"); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoCoordinates, path)
	}
	return lines, nil
}

// Generate renders the inputs for one XYZ file. irc produces a forward and a
// reverse input, every other type a single file.
func Generate(p Params, xyzPath string) ([]Input, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	coords, err := ReadCoordinates(xyzPath)
	if err != nil {
		return nil, err
	}
	base := filepath.Base(xyzPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	ext := p.Extension
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	b := builder{p: p, stem: stem, coords: coords}
	switch p.CalcType {
	case CalcIRC:
		if err := b.requireTSCheckpoint(filepath.Dir(xyzPath)); err != nil {
			return nil, err
		}
		return []Input{
			{Name: stem + "F" + ext, Content: b.section(CalcIRCForward, "")},
			{Name: stem + "R" + ext, Content: b.section(CalcIRCReverse, "")},
		}, nil
	case CalcIRCForward, CalcIRCReverse:
		if err := b.requireTSCheckpoint(filepath.Dir(xyzPath)); err != nil {
			return nil, err
		}
		return []Input{{Name: stem + ext, Content: b.section(p.CalcType, "")}}, nil
	case CalcOSSTSFreq:
		content := b.section(CalcOSSCheckSP, "-StableOpt") +
			b.link(stem+"-StableOpt.chk") + b.section(CalcModreOpt, "-modre") +
			b.link(stem+"-modre.chk") + b.section(calcTSFreqFromChk, "")
		return []Input{{Name: stem + ext, Content: content}}, nil
	case CalcModreTSFreq:
		content := b.section(CalcModreOpt, "-modre") +
			b.link(stem+"-modre.chk") + b.section(calcTSFreqFromChk, "")
		return []Input{{Name: stem + ext, Content: content}}, nil
	default:
		return []Input{{Name: stem + ext, Content: b.section(p.CalcType, "")}}, nil
	}
}

type builder struct {
	p      Params
	stem   string
	coords []string
}

func (b builder) link(oldChk string) string {
	return link1 + "%OldChk=" + oldChk + "\n"
}

// tsCheckpoint is the checkpoint an irc or high_sp job starts from.
func (b builder) tsCheckpoint() string {
	dir := b.p.TSChkPath
	if dir == "" {
		dir = ".."
	}
	return filepath.Join(dir, b.stem+".chk")
}

func (b builder) requireTSCheckpoint(inputDir string) error {
	path := b.tsCheckpoint()
	if !filepath.IsAbs(path) {
		path = filepath.Join(inputDir, path)
	}
	if !fsutil.Exists(path) {
		return fmt.Errorf("%w: %s", ErrMissingCheckpoint, path)
	}
	return nil
}

func (b builder) pound() string {
	switch level := strings.ToUpper(strings.TrimSpace(b.p.PrintLevel)); level {
	case "":
		return "#"
	case "N", "P", "T":
		return "#" + level
	default:
		return "#" + strings.TrimSpace(b.p.PrintLevel)
	}
}

func (b builder) largeBasis() string {
	switch {
	case b.p.LargeBasis != "":
		return b.p.LargeBasis
	case strings.EqualFold(b.p.Basis, DefaultBasis):
		return DefaultLargeBasis
	default:
		return b.p.Basis
	}
}

func (b builder) ircMaxPoints() int {
	if b.p.IRCMaxPoints > 0 {
		return b.p.IRCMaxPoints
	}
	return DefaultIRCMaxPoints
}

// route renders the "#" line for one step.
func (b builder) route(t CalcType) string {
	p := b.p
	scf := fmt.Sprintf("scf(maxcycle=%d,xqc)", p.SCFMaxCycle)
	method := p.Functional + "/" + p.Basis
	const fromChk = "Guess(Read) Geom(AllCheck)"

	var r string
	switch t {
	case CalcOptFreq:
		r = fmt.Sprintf("opt(maxcycles=%d) freq %s %s", p.OptMaxCycles, scf, method)
	case CalcTSFreq:
		r = fmt.Sprintf("opt(maxcycles=%d,ts,noeigen,calcfc) freq %s %s", p.OptMaxCycles, scf, method)
	case calcTSFreqFromChk:
		r = fmt.Sprintf("opt(maxcycles=%d,ts,noeigen,calcfc,NoFreeze,MaxStep=5) freq %s %s %s",
			p.OptMaxCycles, scf, method, fromChk)
	case CalcOSSCheckSP:
		r = fmt.Sprintf("Stable=Opt %s %s", scf, method)
	case CalcModreOpt:
		r = fmt.Sprintf("opt(maxcycles=%d,modredundant) %s %s", p.OptMaxCycles, scf, method)
	case CalcHighSP:
		r = fmt.Sprintf("%s %s/%s %s", scf, p.Functional, b.largeBasis(), fromChk)
	case CalcIRCForward, CalcIRCReverse:
		direction := "Forward"
		if t == CalcIRCReverse {
			direction = "Reverse"
		}
		r = fmt.Sprintf("irc=(%s,RCFC,MaxPoints=%d,Recalc=%d,MaxCycle=%d,StepSize=%d,loose,LQA,nogradstop) %s %s",
			direction, b.ircMaxPoints(), p.IRCRecalc, p.IRCMaxCycle, p.IRCStepSize, method, fromChk)
	default:
		r = fmt.Sprintf("%s %s", scf, method)
	}

	line := b.pound() + " " + r
	if p.Solvent != "" {
		model := p.SolventModel
		if model == "" {
			model = DefaultSolventModel
		}
		line += fmt.Sprintf(" scrf(%s,solvent=%s)", model, p.Solvent)
	}
	if p.ExtraKeywords != "" {
		line += " " + p.ExtraKeywords
	}
	return line
}

// readsCheckpoint reports whether a step takes its geometry from %OldChk.
func readsCheckpoint(t CalcType) bool {
	switch t {
	case CalcHighSP, CalcIRCForward, CalcIRCReverse, calcTSFreqFromChk:
		return true
	}
	return false
}

// section renders one job step. chkSuffix distinguishes the checkpoints of
// a multi-step input.
func (b builder) section(t CalcType, chkSuffix string) string {
	var s strings.Builder
	switch t {
	case CalcHighSP:
		fmt.Fprintf(&s, "%%OldChk=%s\n%%chk=%s.chk\n", b.tsCheckpoint(), b.stem)
	case CalcIRCForward:
		fmt.Fprintf(&s, "%%OldChk=%s\n%%chk=%sF.chk\n", b.tsCheckpoint(), b.stem)
	case CalcIRCReverse:
		fmt.Fprintf(&s, "%%OldChk=%s\n%%chk=%sR.chk\n", b.tsCheckpoint(), b.stem)
	default:
		fmt.Fprintf(&s, "%%chk=%s%s.chk\n", b.stem, chkSuffix)
	}
	s.WriteString(b.route(t) + "\n\n")

	if !readsCheckpoint(t) {
		s.WriteString(title(t) + "\n\n")
		fmt.Fprintf(&s, "%d %d\n", b.p.Charge, b.p.Mult)
		for _, line := range b.coords {
			s.WriteString(line + "\n")
		}
		s.WriteString("\n")
		if t == CalcModreOpt {
			modre := strings.TrimSpace(b.p.Modre)
			if modre == "" {
				modre = fmt.Sprintf("B %d %d F", b.p.FreezeAtoms[0], b.p.FreezeAtoms[1])
			}
			s.WriteString(modre + "\n\n")
		}
	}
	if tail := strings.TrimSpace(b.p.Tail); tail != "" {
		s.WriteString(tail + "\n\n")
	}
	if extra := strings.TrimSpace(b.p.ExtraSection); extra != "" {
		s.WriteString(extra + "\n\n")
	}
	return s.String()
}
