// validate-sets checks a Photo Hunt dataset file and its images before deployment
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize/english"

	"github.com/MJE43/photohunt/internal/dataset"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 when no errors were found, 1 when the
// dataset has errors and 2 for usage problems.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate-sets", flag.ContinueOnError)
	fs.SetOutput(stderr)
	setsPath := fs.String("sets", "data/sets.json", "dataset file")
	root := fs.String("root", "", "directory image paths are relative to (default: the dataset's directory)")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *root == "" {
		*root = filepath.Dir(*setsPath)
	}

	raw, err := os.ReadFile(*setsPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s not found: %v\n", *setsPath, err)
		return 1
	}

	coll, report, err := dataset.Parse(raw)
	if report == nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if coll != nil {
		report.CheckFiles(coll, *root)
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	} else {
		printReport(stdout, *setsPath, coll, report)
	}

	if len(report.Filter(dataset.SeverityError)) > 0 || (err != nil && !errors.Is(err, dataset.ErrMalformed)) {
		return 1
	}
	return 0
}

func printReport(w io.Writer, path string, coll *dataset.Collection, report *dataset.Report) {
	rule := strings.Repeat("=", 60)
	sets := 0
	if coll != nil {
		sets = len(coll.Sets)
	}
	fmt.Fprintf(w, "%s\nPhoto Hunt - Set Validator\n%s\n\n", rule, rule)
	fmt.Fprintf(w, "Loaded %s: %s\n", path, english.Plural(sets, "valid set", ""))

	if len(report.Issues) == 0 {
		fmt.Fprintf(w, "\nAll validation checks passed!\n")
		return
	}

	errs := report.Filter(dataset.SeverityError)
	warns := report.Filter(dataset.SeverityWarning)
	infos := report.Filter(dataset.SeverityInfo)

	fmt.Fprintf(w, "\n%s\nVALIDATION REPORT\n%s\n\n", rule, rule)
	fmt.Fprintf(w, "Total: %s\n", english.Plural(len(report.Issues), "issue", ""))
	fmt.Fprintf(w, "  Errors:   %d\n  Warnings: %d\n  Info:     %d\n", len(errs), len(warns), len(infos))

	section(w, rule, "ERRORS (must be fixed)", errs)
	section(w, rule, "WARNINGS (should be reviewed)", warns)
	section(w, rule, "INFORMATION", infos)
	fmt.Fprintf(w, "\n%s\n", rule)
}

func section(w io.Writer, rule, title string, issues []dataset.Issue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n%s\n%s\n", rule, title, rule)
	for _, i := range issues {
		fmt.Fprintf(w, "  %s\n", i)
	}
}
