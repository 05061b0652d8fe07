package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// Severity ranks a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one finding of the validator.
type Issue struct {
	Severity Severity `json:"severity"`
	SetID    string   `json:"setId"`
	Kind     string   `json:"kind"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("set %s: %s", i.SetID, i.Message)
}

// Report collects validation issues in discovery order.
type Report struct {
	Issues []Issue `json:"issues"`
}

func (r *Report) add(sev Severity, setID, kind, msg string) {
	r.Issues = append(r.Issues, Issue{Severity: sev, SetID: setID, Kind: kind, Message: msg})
}

// Filter returns the issues of one severity.
func (r *Report) Filter(sev Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

// Err combines every error-severity issue, or returns nil.
func (r *Report) Err() error {
	if r == nil {
		return nil
	}
	var err error
	for _, i := range r.Filter(SeverityError) {
		err = multierr.Append(err, errors.New(i.String()))
	}
	return err
}

// CheckFiles verifies that every referenced image exists below root and flags
// set folders under root/images that the collection does not mention.
func (r *Report) CheckFiles(c *Collection, root string) {
	known := make(map[int]bool, len(c.Sets))
	for _, s := range c.Sets {
		known[s.ID] = true
		id := strconv.Itoa(s.ID)
		for n, ref := range []string{s.Image1, s.Image2} {
			if ref == "" || isRemote(ref) {
				continue
			}
			if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(ref))); err != nil {
				r.add(SeverityError, id, "missing_file", fmt.Sprintf("image %d not found: %s", n+1, ref))
			}
		}
	}

	entries, err := os.ReadDir(filepath.Join(root, "images"))
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "set") {
			continue
		}
		num, err := strconv.Atoi(strings.TrimPrefix(e.Name(), "set"))
		if err != nil || known[num] {
			continue
		}
		dir := filepath.Join(root, "images", e.Name())
		if exists(filepath.Join(dir, "image1.png")) && exists(filepath.Join(dir, "image2.png")) {
			r.add(SeverityWarning, strconv.Itoa(num), "orphaned_folder", "folder exists but is not in the dataset")
		}
	}
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
