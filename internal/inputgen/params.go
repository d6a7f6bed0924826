// Package inputgen writes Gaussian input files from XYZ geometries.
package inputgen

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lenhanpham/gaussian-extractor/internal/fsutil"
)

// CalcType names a calculation recipe.
type CalcType string

const (
	CalcSP          CalcType = "sp"
	CalcOptFreq     CalcType = "opt_freq"
	CalcTSFreq      CalcType = "ts_freq"
	CalcOSSTSFreq   CalcType = "oss_ts_freq"
	CalcOSSCheckSP  CalcType = "oss_check_sp"
	CalcHighSP      CalcType = "high_sp"
	CalcIRCForward  CalcType = "irc_forward"
	CalcIRCReverse  CalcType = "irc_reverse"
	CalcIRC         CalcType = "irc"
	CalcModreTSFreq CalcType = "modre_ts_freq"
	CalcModreOpt    CalcType = "modre_opt"

	// calcTSFreqFromChk is the last step of the multi-step TS recipes.
	calcTSFreqFromChk CalcType = "ts_freq_from_chk"
)

// Defaults used when neither a parameter file nor a flag sets a value.
const (
	DefaultFunctional   = "UWB97XD"
	DefaultBasis        = "Def2SVPP"
	DefaultLargeBasis   = "Def2TZVP"
	DefaultSolventModel = "smd"
	DefaultExtension    = ".gau"
	DefaultMaxCycle     = 300

	DefaultIRCMaxPoints = 50
	DefaultIRCRecalc    = 10
	DefaultIRCMaxCycle  = 350
	DefaultIRCStepSize  = 10
)

var (
	ErrUnknownCalcType    = errors.New("unknown calculation type")
	ErrInvalidFreezeAtoms = errors.New("freeze atoms need two atom numbers")
)

// CalcTypes lists the user-selectable calculation types.
func CalcTypes() []CalcType {
	return []CalcType{
		CalcSP, CalcOptFreq, CalcTSFreq, CalcOSSTSFreq, CalcOSSCheckSP, CalcHighSP,
		CalcIRCForward, CalcIRCReverse, CalcIRC, CalcModreTSFreq, CalcModreOpt,
	}
}

// ParseCalcType accepts a calc type name in any case.
func ParseCalcType(s string) (CalcType, error) {
	want := CalcType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range CalcTypes() {
		if t == want {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCalcType, s)
}

// FreezeAtoms is the atom pair frozen in modredundant optimizations. In a
// parameter file it is either a list or a "1,2" / "1 2" string.
type FreezeAtoms []int

func (f *FreezeAtoms) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		atoms, err := ParseFreezeAtoms(value.Value)
		if err != nil {
			return err
		}
		*f = atoms
		return nil
	}
	var atoms []int
	if err := value.Decode(&atoms); err != nil {
		return err
	}
	*f = atoms
	return nil
}

// ParseFreezeAtoms reads two atom numbers separated by commas or blanks.
func ParseFreezeAtoms(s string) (FreezeAtoms, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) == 0 {
		return nil, nil
	}
	if len(fields) != 2 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFreezeAtoms, s)
	}
	atoms := make(FreezeAtoms, 0, 2)
	for _, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFreezeAtoms, s)
		}
		atoms = append(atoms, n)
	}
	return atoms, nil
}

// ParseExtraKeywords collapses runs of blanks in extra route keywords.
func ParseExtraKeywords(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Params holds everything needed to render an input file.
type Params struct {
	CalcType      CalcType `yaml:"calc_type"`
	Functional    string   `yaml:"functional"`
	Basis         string   `yaml:"basis"`
	LargeBasis    string   `yaml:"large_basis"`
	Solvent       string   `yaml:"solvent"`
	SolventModel  string   `yaml:"solvent_model"`
	PrintLevel    string   `yaml:"print_level"`
	ExtraKeywords string   `yaml:"route_extra_keywords"`
	Charge        int      `yaml:"charge"`
	Mult          int      `yaml:"mult"`
	// Tail is appended after the molecule section, e.g. a gen basis.
	Tail  string `yaml:"tail"`
	Modre string `yaml:"modre"`
	// ExtraSection is appended after the tail.
	ExtraSection string      `yaml:"extra_options"`
	Extension    string      `yaml:"extension"`
	TSChkPath    string      `yaml:"tschk_path"`
	FreezeAtoms  FreezeAtoms `yaml:"freeze_atoms"`

	SCFMaxCycle  int `yaml:"scf_maxcycle"`
	OptMaxCycles int `yaml:"opt_maxcycles"`
	// IRCMaxPoints of 0 selects the per-type default.
	IRCMaxPoints int `yaml:"irc_maxpoints"`
	IRCRecalc    int `yaml:"irc_recalc"`
	IRCMaxCycle  int `yaml:"irc_maxcycle"`
	IRCStepSize  int `yaml:"irc_stepsize"`
}

// DefaultParams returns a single point setup with the default level of theory.
func DefaultParams() Params {
	return Params{
		CalcType:     CalcSP,
		Functional:   DefaultFunctional,
		Basis:        DefaultBasis,
		SolventModel: DefaultSolventModel,
		Mult:         1,
		Extension:    DefaultExtension,
		SCFMaxCycle:  DefaultMaxCycle,
		OptMaxCycles: DefaultMaxCycle,
		IRCRecalc:    DefaultIRCRecalc,
		IRCMaxCycle:  DefaultIRCMaxCycle,
		IRCStepSize:  DefaultIRCStepSize,
	}
}

// LoadParams reads a YAML parameter file over the defaults. Level of theory
// names are upper-cased.
func LoadParams(path string) (Params, error) {
	p := DefaultParams()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read parameter file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return p, fmt.Errorf("parse parameter file %s: %w", path, err)
	}
	t, err := ParseCalcType(string(p.CalcType))
	if err != nil {
		return p, fmt.Errorf("parameter file %s: %w", path, err)
	}
	p.CalcType = t
	p.Functional = strings.ToUpper(p.Functional)
	p.Basis = strings.ToUpper(p.Basis)
	p.LargeBasis = strings.ToUpper(p.LargeBasis)
	p.ExtraKeywords = ParseExtraKeywords(p.ExtraKeywords)
	return p, nil
}

var fieldComments = map[string]string{
	"calc_type":            "Calculation type: sp, opt_freq, ts_freq, oss_ts_freq, oss_check_sp, high_sp,\nirc_forward, irc_reverse, irc, modre_ts_freq, modre_opt",
	"functional":           "Level of theory",
	"large_basis":          "Basis for high_sp; empty selects Def2TZVP when basis is Def2SVPP",
	"solvent":              "Implicit solvation; leave solvent empty for gas phase",
	"print_level":          "Route print level: N, P or T",
	"route_extra_keywords": "Appended to the route line",
	"charge":               "Molecule",
	"tail":                 "Text after the molecule section, e.g. gen/genecp basis definitions",
	"modre":                "Modredundant block; replaces freeze_atoms when set",
	"extra_options":        "Text appended after the tail",
	"extension":            "Extension of generated input files",
	"tschk_path":           "Directory holding the TS checkpoint for irc and high_sp (default ..)",
	"freeze_atoms":         "Bond frozen in modredundant steps, e.g. [1, 2] or \"1,2\"",
	"scf_maxcycle":         "Cycle limits",
	"irc_maxpoints":        "IRC settings; irc_maxpoints 0 uses 50 (60 for irc)",
}

// templateParams is the starting point written for one calc type.
func templateParams(t CalcType) Params {
	p := DefaultParams()
	p.CalcType = t
	switch t {
	case CalcModreOpt, CalcModreTSFreq, CalcOSSTSFreq:
		p.FreezeAtoms = FreezeAtoms{1, 2}
	case CalcHighSP:
		p.LargeBasis = DefaultLargeBasis
	case CalcIRC, CalcIRCForward, CalcIRCReverse:
		p.IRCMaxPoints = DefaultIRCMaxPoints
	}
	return p
}

// Template renders a commented parameter file for t.
func Template(t CalcType) (string, error) {
	var node yaml.Node
	if err := node.Encode(templateParams(t)); err != nil {
		return "", fmt.Errorf("encode template: %w", err)
	}
	node.HeadComment = comment(fmt.Sprintf("Gaussian input parameters for %s calculations.\nCommand line flags override the values below.", t))
	for i := 0; i+1 < len(node.Content); i += 2 {
		if c, ok := fieldComments[node.Content[i].Value]; ok {
			node.Content[i].HeadComment = comment(c)
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return "", fmt.Errorf("encode template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func comment(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = "# " + l
	}
	return strings.Join(lines, "\n")
}

// TemplateName is the file name used for a calc type's template.
func TemplateName(t CalcType) string {
	return string(t) + ".yaml"
}

// WriteTemplate writes the template for t to path atomically.
func WriteTemplate(path string, t CalcType) error {
	content, err := Template(t)
	if err != nil {
		return err
	}
	return fsutil.WriteStringAtomic(path, content)
}

// WriteAllTemplates writes one template per calc type into dir and returns
// the written paths. Existing files are left alone.
func WriteAllTemplates(dir string) ([]string, error) {
	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, err
	}
	var paths []string
	for _, t := range CalcTypes() {
		path := filepath.Join(dir, TemplateName(t))
		if fsutil.Exists(path) {
			continue
		}
		if err := WriteTemplate(path, t); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
