package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lenhanpham/gaussian-extractor/internal/fsutil"
	"github.com/lenhanpham/gaussian-extractor/internal/inputgen"
	"github.com/lenhanpham/gaussian-extractor/internal/stringsutil"
	"github.com/lenhanpham/gaussian-extractor/internal/ui"
)

var (
	paramFile      string
	genParams      string
	genAllParams   string
	ciCalcType     string
	ciFunctional   string
	ciBasis        string
	ciLargeBasis   string
	ciSolvent      string
	ciSolventModel string
	ciCharge       int
	ciMult         int
	ciPrintLevel   string
	ciExtra        string
	ciTail         string
	ciModre        string
	ciExtraOptions string
	ciInputExt     string
	ciTSChkPath    string
	ciFreezeAtoms  string
	ciSCFMaxCycle  int
	ciOptMaxCycles int
	ciIRCMaxPoints int
	ciIRCRecalc    int
	ciIRCMaxCycle  int
	ciIRCStepSize  int

	ciCmd = &cobra.Command{
		Use:   "ci",
		Short: "Create Gaussian input files from XYZ files",
		Long: `Create one Gaussian input per XYZ file in the directory (irc creates a forward
and a reverse input). Existing inputs are never overwritten.

Settings come from --param-file when given; flags override file values.
--genci-params [type] and --genci-all-params [dir] write parameter templates.

Calculation types: sp, opt_freq, ts_freq, oss_ts_freq, oss_check_sp, high_sp,
irc_forward, irc_reverse, irc, modre_ts_freq, modre_opt.`,
		Args: cobra.NoArgs,
		RunE: runCI,
	}
)

func init() {
	f := ciCmd.Flags()
	f.StringVar(&fileList, "files", "", "Comma separated XYZ files instead of the whole directory")
	f.StringVar(&paramFile, "param-file", "", "YAML parameter file")
	f.StringVar(&genParams, "genci-params", "", "Write the parameter template for a calculation type and exit")
	f.Lookup("genci-params").NoOptDefVal = string(inputgen.CalcSP)
	f.StringVar(&genAllParams, "genci-all-params", "", "Write parameter templates for every calculation type into a directory and exit")
	f.Lookup("genci-all-params").NoOptDefVal = "."

	f.StringVar(&ciCalcType, "calc-type", "", "Calculation type (default sp)")
	f.StringVar(&ciFunctional, "functional", "", "Functional (default UWB97XD)")
	f.StringVar(&ciBasis, "basis", "", "Basis set (default Def2SVPP)")
	f.StringVar(&ciLargeBasis, "large-basis", "", "Basis set for high_sp")
	f.StringVar(&ciSolvent, "solvent", "", "Implicit solvent name")
	f.StringVar(&ciSolventModel, "solvent-model", "", "Solvation model (default smd)")
	f.IntVar(&ciCharge, "charge", 0, "Molecular charge")
	f.IntVar(&ciMult, "mult", 1, "Spin multiplicity")
	f.StringVar(&ciPrintLevel, "print-level", "", "Route print level: N, P or T")
	f.StringVar(&ciExtra, "extra-keywords", "", "Extra route keywords")
	f.StringVar(&ciTail, "tail", "", "Text after the molecule section (required for gen/genecp)")
	f.StringVar(&ciModre, "modre", "", "Modredundant block")
	f.StringVar(&ciExtraOptions, "extra-options", "", "Text appended after the tail")
	f.StringVar(&ciInputExt, "input-ext", "", "Extension of the created inputs (default .gau)")
	f.StringVar(&ciTSChkPath, "tschk-path", "", "Directory of the TS checkpoint for irc and high_sp (default ..)")
	f.StringVar(&ciFreezeAtoms, "freeze-atoms", "", "Two atoms frozen in modredundant steps, e.g. 1,2")
	f.IntVar(&ciSCFMaxCycle, "scf-maxcycle", 0, "SCF cycle limit (default 300)")
	f.IntVar(&ciOptMaxCycles, "opt-maxcycles", 0, "Optimization cycle limit (default 300)")
	f.IntVar(&ciIRCMaxPoints, "irc-maxpoints", 0, "IRC points per direction (default 50)")
	f.IntVar(&ciIRCRecalc, "irc-recalc", 0, "Recompute the Hessian every N IRC steps (default 10)")
	f.IntVar(&ciIRCMaxCycle, "irc-maxcycle", 0, "IRC cycle limit (default 350)")
	f.IntVar(&ciIRCStepSize, "irc-stepsize", 0, "IRC step size (default 10)")

	rootCmd.AddCommand(ciCmd)
}

func runCI(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("genci-all-params") {
		paths, err := inputgen.WriteAllTemplates(genAllParams)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(outWriter(), "Created %s\n", p)
		}
		return nil
	}
	if cmd.Flags().Changed("genci-params") {
		return writeTemplate(genParams)
	}

	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	params, err := ciParams(cmd)
	if err != nil {
		return err
	}
	if paramFile != "" && !s.quiet {
		fmt.Fprintf(outWriter(), "Parameters loaded from: %s\n", paramFile)
	}

	summary, err := inputgen.Run(cmd.Context(), inputgen.Options{
		Dir:         s.dir,
		Files:       stringsutil.SplitNonEmpty(fileList, ","),
		Params:      params,
		Threads:     s.threads,
		FileHandles: s.fileHandles,
		Resources:   s.resources,
		Quiet:       s.quiet,
		Out:         outWriter(),
	})
	if err != nil {
		return err
	}
	if s.quiet && summary.Failed > 0 {
		ui.PrintWarning(errWriter(), "%d inputs could not be created", summary.Failed)
	}
	return nil
}

func writeTemplate(name string) error {
	t, err := inputgen.ParseCalcType(name)
	if err != nil {
		return err
	}
	path := filepath.Join(workDir, inputgen.TemplateName(t))
	if fsutil.Exists(path) {
		return fmt.Errorf("%s exists and will not be overwritten", path)
	}
	if err := inputgen.WriteTemplate(path, t); err != nil {
		return err
	}
	fmt.Fprintf(outWriter(), "Created %s\n", path)
	return nil
}

// ciParams starts from the parameter file (or the defaults) and applies every
// flag the user set.
func ciParams(cmd *cobra.Command) (inputgen.Params, error) {
	p := inputgen.DefaultParams()
	if paramFile != "" {
		var err error
		if p, err = inputgen.LoadParams(paramFile); err != nil {
			return p, err
		}
	}
	changed := cmd.Flags().Changed

	if changed("calc-type") {
		t, err := inputgen.ParseCalcType(ciCalcType)
		if err != nil {
			return p, err
		}
		p.CalcType = t
	}
	if changed("freeze-atoms") {
		atoms, err := inputgen.ParseFreezeAtoms(ciFreezeAtoms)
		if err != nil {
			return p, err
		}
		p.FreezeAtoms = atoms
	}
	strs := []struct {
		flag string
		dst  *string
		val  string
	}{
		{"functional", &p.Functional, ciFunctional},
		{"basis", &p.Basis, ciBasis},
		{"large-basis", &p.LargeBasis, ciLargeBasis},
		{"solvent", &p.Solvent, ciSolvent},
		{"solvent-model", &p.SolventModel, ciSolventModel},
		{"print-level", &p.PrintLevel, ciPrintLevel},
		{"extra-keywords", &p.ExtraKeywords, inputgen.ParseExtraKeywords(ciExtra)},
		{"tail", &p.Tail, ciTail},
		{"modre", &p.Modre, ciModre},
		{"extra-options", &p.ExtraSection, ciExtraOptions},
		{"input-ext", &p.Extension, ciInputExt},
		{"tschk-path", &p.TSChkPath, ciTSChkPath},
	}
	for _, s := range strs {
		if changed(s.flag) {
			*s.dst = s.val
		}
	}
	ints := []struct {
		flag string
		dst  *int
		val  int
	}{
		{"charge", &p.Charge, ciCharge},
		{"mult", &p.Mult, ciMult},
		{"scf-maxcycle", &p.SCFMaxCycle, ciSCFMaxCycle},
		{"opt-maxcycles", &p.OptMaxCycles, ciOptMaxCycles},
		{"irc-maxpoints", &p.IRCMaxPoints, ciIRCMaxPoints},
		{"irc-recalc", &p.IRCRecalc, ciIRCRecalc},
		{"irc-maxcycle", &p.IRCMaxCycle, ciIRCMaxCycle},
		{"irc-stepsize", &p.IRCStepSize, ciIRCStepSize},
	}
	for _, i := range ints {
		if changed(i.flag) {
			*i.dst = i.val
		}
	}
	if p.Mult < 1 {
		return p, fmt.Errorf("multiplicity must be at least 1, got %d", p.Mult)
	}
	return p, inputgen.Validate(p)
}
