package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lenhanpham/gaussian-extractor/internal/highlevel"
	"github.com/lenhanpham/gaussian-extractor/internal/ui"
)

var (
	highKJCmd = newHighCmd(highlevel.ModeKJ, "high-kj",
		"High-level Gibbs energies in kJ/mol",
		`Combine the electronic energy of each high-level log in this directory with the
thermal corrections of the log of the same name one directory up, and list the
Gibbs free energies in kJ/mol, Hartree and eV. Sort columns: 1-7 (default 2).`)
	highAUCmd = newHighCmd(highlevel.ModeAU, "high-au",
		"High-level energy components in atomic units",
		`Like high-kj, but list every energy component in atomic units: E high, E low,
ZPE, TC, TS, H and G. Sort columns: 1-10 (default 8).`)
)

func newHighCmd(mode highlevel.Mode, use, short, long string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHigh(cmd, mode)
		},
	}
	addEnergyFlags(cmd)
	return cmd
}

func init() {
	rootCmd.AddCommand(highKJCmd, highAUCmd)
}

func runHigh(cmd *cobra.Command, mode highlevel.Mode) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	e, err := loadEnergySettings(cmd, s)
	if err != nil {
		return err
	}
	col := e.sortColumn
	if !cmd.Flags().Changed("col") {
		col = 0
	}
	if col != 0 && !highlevel.ValidSortColumn(mode, col) {
		ui.PrintWarning(errWriter(), "Sort column %d does not exist in the %s table; sorting by G", col, mode)
	}

	sp := ui.NewSpinnerTo(errWriter(), "Combining energies...")
	if s.quiet {
		sp.Start()
	}
	_, err = highlevel.Run(cmd.Context(), highlevel.Options{
		Dir:           s.dir,
		Extension:     s.extension,
		Mode:          mode,
		Temperature:   e.temperature,
		Concentration: e.concentration,
		SortColumn:    col,
		Format:        e.format,
		Threads:       s.threads,
		MaxFileSizeMB: s.maxFileSizeMB,
		MemoryLimitMB: e.memoryLimitMB,
		BatchSize:     batchSize,
		FileHandles:   s.fileHandles,
		Resources:     s.resources,
		Quiet:         s.quiet,
		Out:           outWriter(),
		ErrOut:        errWriter(),
	})
	sp.Stop()
	return err
}
