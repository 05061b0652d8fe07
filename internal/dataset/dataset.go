// Package dataset loads and validates the catalogue of image-pair sets.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a payload cannot be decoded, holds no sets,
// or fails validation with error-severity issues.
var ErrMalformed = errors.New("dataset: malformed payload")

// Difficulty is a set's advertised difficulty.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case Easy, Medium, Hard:
		return true
	}
	return false
}

// Difference is a differing rectangle in source-image pixels.
type Difference struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Set is one playable image pair.
type Set struct {
	ID          int          `json:"id"`
	Image1      string       `json:"image1"`
	Image2      string       `json:"image2"`
	Tags        []string     `json:"tags"`
	Difficulty  Difficulty   `json:"difficulty"`
	Differences []Difference `json:"differences"`
}

// Clone returns a deep copy so a game can never mutate the loaded catalogue.
func (s Set) Clone() Set {
	out := s
	out.Tags = append([]string(nil), s.Tags...)
	out.Differences = append([]Difference(nil), s.Differences...)
	return out
}

// Collection is the decoded dataset.
type Collection struct {
	Sets []Set `json:"sets"`
}

// Order returns a random permutation of set positions.
func (c *Collection) Order(rng *rand.Rand) []int {
	order := make([]int, len(c.Sets))
	for i := range order {
		order[i] = i
	}
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

type rawDifference struct {
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

type rawSet struct {
	ID          json.RawMessage `json:"id"`
	Image1      string          `json:"image1"`
	Image2      string          `json:"image2"`
	Tags        []string        `json:"tags"`
	Difficulty  string          `json:"difficulty"`
	Differences []rawDifference `json:"differences"`
}

type rawCollection struct {
	Sets []rawSet `json:"sets"`
}

// Parse decodes and validates a dataset payload. The report is returned even
// when err is non-nil so callers can show every issue at once.
func Parse(data []byte) (*Collection, *Report, error) {
	var raw rawCollection
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	report := &Report{}
	coll := &Collection{Sets: make([]Set, 0, len(raw.Sets))}
	seen := make(map[string]bool, len(raw.Sets))

	for _, rs := range raw.Sets {
		idText := strings.TrimSpace(string(rs.ID))
		label := idText
		if label == "" || label == "null" {
			label = "?"
		}
		v := &setValidator{report: report, setID: label}

		id, ok := v.id(idText, seen)
		v.images(rs)
		diffs := v.differences(rs.Differences)
		v.metadata(rs)

		if !ok {
			continue
		}
		coll.Sets = append(coll.Sets, Set{
			ID:          id,
			Image1:      rs.Image1,
			Image2:      rs.Image2,
			Tags:        rs.Tags,
			Difficulty:  Difficulty(rs.Difficulty),
			Differences: diffs,
		})
	}

	if len(raw.Sets) == 0 {
		report.add(SeverityError, "-", "no_sets", "dataset contains no sets")
	}
	if err := report.Err(); err != nil {
		return coll, report, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return coll, report, nil
}

type setValidator struct {
	report *Report
	setID  string
}

func (v *setValidator) add(sev Severity, kind, format string, args ...any) {
	v.report.add(sev, v.setID, kind, fmt.Sprintf(format, args...))
}

func (v *setValidator) id(text string, seen map[string]bool) (int, bool) {
	if text == "" || text == "null" {
		v.add(SeverityError, "missing_id", "set missing id field")
		return 0, false
	}
	ok := true
	if seen[text] {
		v.add(SeverityError, "duplicate_id", "duplicate set id: %s", text)
		ok = false
	}
	seen[text] = true

	id, err := strconv.Atoi(text)
	if err != nil || id < 1 {
		v.add(SeverityError, "invalid_id", "invalid set id: %s (should be positive integer)", text)
		return 0, false
	}
	return id, ok
}

func (v *setValidator) images(rs rawSet) {
	if rs.Image1 == "" {
		v.add(SeverityError, "missing_image", "image1 not specified")
	}
	if rs.Image2 == "" {
		v.add(SeverityError, "missing_image", "image2 not specified")
	}
}

func (v *setValidator) differences(raw []rawDifference) []Difference {
	if len(raw) == 0 {
		v.add(SeverityError, "no_differences", "no differences defined")
		return nil
	}
	switch {
	case len(raw) < 2:
		v.add(SeverityWarning, "few_differences", "only %d difference(s), may be too easy", len(raw))
	case len(raw) > 10:
		v.add(SeverityWarning, "many_differences", "%d differences, may be too hard", len(raw))
	}

	out := make([]Difference, 0, len(raw))
	for i, rd := range raw {
		n := i + 1
		var missing []string
		for _, f := range []struct {
			name string
			val  *float64
		}{{"x", rd.X}, {"y", rd.Y}, {"width", rd.Width}, {"height", rd.Height}} {
			if f.val == nil {
				missing = append(missing, f.name)
			}
		}
		if len(missing) > 0 {
			v.add(SeverityError, "invalid_difference", "difference %d missing fields: %s", n, strings.Join(missing, ", "))
		}
		d := Difference{X: deref(rd.X), Y: deref(rd.Y), Width: deref(rd.Width), Height: deref(rd.Height)}
		if d.X < 0 || d.Y < 0 {
			v.add(SeverityError, "invalid_coords", "difference %d has negative coordinates", n)
		}
		if d.Width <= 0 || d.Height <= 0 {
			v.add(SeverityError, "invalid_size", "difference %d has invalid size (width/height <= 0)", n)
		}
		out = append(out, d)
	}
	return out
}

func (v *setValidator) metadata(rs rawSet) {
	switch {
	case rs.Difficulty == "":
		v.add(SeverityWarning, "missing_difficulty", "no difficulty specified")
	case !Difficulty(rs.Difficulty).Valid():
		v.add(SeverityWarning, "invalid_difficulty", "invalid difficulty %q (should be: easy/medium/hard)", rs.Difficulty)
	}
	if len(rs.Tags) == 0 {
		v.add(SeverityInfo, "no_tags", "no tags specified")
	}
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
