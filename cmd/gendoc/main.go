//go:build ignore

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra/doc"

	"github.com/lenhanpham/gaussian-extractor/cmd"
	"github.com/lenhanpham/gaussian-extractor/internal/version"
)

func main() {
	dir := "./docs"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	manDir := filepath.Join(dir, "man")
	mdDir := filepath.Join(dir, "commands")

	for _, d := range []string{manDir, mdDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
			os.Exit(1)
		}
	}

	header := &doc.GenManHeader{
		Title:   version.ManPage,
		Section: "1",
		Source:  version.Project + " " + version.Current().String(),
		Manual:  version.ManTitle,
	}

	rootCmd := cmd.RootCmd()
	rootCmd.DisableAutoGenTag = true
	if err := doc.GenManTree(rootCmd, header, manDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating man pages: %v\n", err)
		os.Exit(1)
	}
	if err := doc.GenMarkdownTree(rootCmd, mdDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating markdown: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Documentation generated in %s\n", dir)
}
