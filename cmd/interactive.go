package cmd

import (
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/lenhanpham/gaussian-extractor/internal/inputgen"
	"github.com/lenhanpham/gaussian-extractor/internal/ui"
)

// interactiveTasks are the commands offered by the interactive menu, in
// menu order.
var interactiveTasks = []string{
	"extract", "done", "errors", "pcm", "imode", "check", "high-kj", "high-au", "xyz", "ci",
}

// interactiveChoice is what the user picked in the menu.
type interactiveChoice struct {
	Task     string
	Dir      string
	Quiet    bool
	CalcType string
}

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"i"},
	Short:   "Choose and run a command from a menu",
	Long: `Pick a command and the directory to run it in from a menu, then run it
with the remaining settings taken from the configuration file.

Requires a terminal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !ui.IsTerminal(os.Stdin) || !ui.IsTerminal(os.Stdout) {
			return errors.New("interactive mode needs a terminal")
		}
		choice, err := promptChoice()
		if err != nil {
			return err
		}
		return runChoice(cmd, choice)
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func promptChoice() (interactiveChoice, error) {
	choice := interactiveChoice{Dir: workDir}

	tasks := make([]huh.Option[string], 0, len(interactiveTasks))
	for _, name := range interactiveTasks {
		sub, _, err := rootCmd.Find([]string{name})
		if err != nil {
			return choice, err
		}
		tasks = append(tasks, huh.NewOption(name+" - "+sub.Short, name))
	}
	if err := huh.NewSelect[string]().Title("Select Command").Options(tasks...).Value(&choice.Task).Run(); err != nil {
		return choice, err
	}

	if choice.Task == "ci" {
		types := make([]huh.Option[string], 0, len(inputgen.CalcTypes()))
		for _, t := range inputgen.CalcTypes() {
			types = append(types, huh.NewOption(string(t), string(t)))
		}
		if err := huh.NewSelect[string]().Title("Calculation Type").Options(types...).Value(&choice.CalcType).Run(); err != nil {
			return choice, err
		}
	}

	if err := huh.NewInput().Title("Directory").Value(&choice.Dir).Run(); err != nil {
		return choice, err
	}
	if err := huh.NewConfirm().Title("Quiet output?").Value(&choice.Quiet).Run(); err != nil {
		return choice, err
	}
	return choice, nil
}

// interactiveArgs turns a menu choice into command line arguments.
func interactiveArgs(c interactiveChoice) []string {
	args := []string{c.Task}
	if c.Dir != "" {
		args = append(args, "--dir", c.Dir)
	}
	if c.Quiet {
		args = append(args, "--quiet")
	}
	if c.Task == "ci" && c.CalcType != "" {
		args = append(args, "--calc-type", c.CalcType)
	}
	return args
}

// runChoice runs the chosen command as if it had been typed.
func runChoice(parent *cobra.Command, c interactiveChoice) error {
	sub, rest, err := rootCmd.Find(interactiveArgs(c))
	if err != nil {
		return err
	}
	if sub == rootCmd || sub.RunE == nil {
		return errors.New("unknown command " + c.Task)
	}
	if err := sub.ParseFlags(rest); err != nil {
		return err
	}
	sub.SetContext(parent.Context())
	return sub.RunE(sub, sub.Flags().Args())
}
