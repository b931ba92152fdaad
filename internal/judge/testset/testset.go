// Package testset enumerates and filters the tests of a problem directory.
package testset

import (
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	appErr "olymp/pkg/errors"
)

const (
	inputExt  = ".in"
	outputExt = ".out"
)

// Test is one input file of the test set.
type Test struct {
	// Name is the base name without extension, e.g. "7" or "min2".
	Name  string
	Input string
}

// Output returns the expected answer path for the test.
func (t Test) Output() string {
	return OutputFor(t.Input)
}

// Index returns the numeric name of the test, if it has one.
func (t Test) Index() (int, bool) {
	n, err := strconv.Atoi(t.Name)
	return n, err == nil
}

// OutputFor maps tests/7.in to tests/7.out.
func OutputFor(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + outputExt
}

// Discover lists dir/*.in. Numerically named tests come first in numeric
// order, the rest follow sorted by name.
func Discover(dir string) ([]Test, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+inputExt))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ConfigInvalid, "list tests in %s failed", dir)
	}
	tests := make([]Test, 0, len(matches))
	for _, m := range matches {
		tests = append(tests, Test{Name: nameOf(m), Input: m})
	}
	sort.SliceStable(tests, func(i, j int) bool {
		a, aNum := tests[i].Index()
		b, bNum := tests[j].Index()
		switch {
		case aNum && bNum:
			if a != b {
				return a < b
			}
			return tests[i].Name < tests[j].Name
		case aNum != bNum:
			return aNum
		}
		return tests[i].Name < tests[j].Name
	})
	return tests, nil
}

func nameOf(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var rangeToken = regexp.MustCompile(`^([0-9]+)-([0-9]+)$`)

// Filter selects tests by comma or space separated tokens: an exact name
// ("min2"), a glob ("bad*") or an inclusive numeric range ("3-7").
// The zero Filter selects everything.
type Filter struct {
	tokens []string
}

// ParseFilter splits a filter expression. An empty expression selects all tests.
func ParseFilter(expr string) Filter {
	fields := strings.FieldsFunc(expr, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	return Filter{tokens: fields}
}

// Empty reports whether the filter selects everything.
func (f Filter) Empty() bool {
	return len(f.tokens) == 0
}

// String returns the normalized filter expression.
func (f Filter) String() string {
	return strings.Join(f.tokens, ",")
}

// Match reports whether the test passes the filter.
func (f Filter) Match(t Test) bool {
	if f.Empty() {
		return true
	}
	for _, tok := range f.tokens {
		if tok == t.Name {
			return true
		}
		if ok, err := path.Match(tok, t.Name); err == nil && ok {
			return true
		}
		m := rangeToken.FindStringSubmatch(tok)
		if m == nil {
			continue
		}
		idx, numeric := t.Index()
		lo, err1 := strconv.Atoi(m[1])
		hi, err2 := strconv.Atoi(m[2])
		if numeric && err1 == nil && err2 == nil && idx >= lo && idx <= hi {
			return true
		}
	}
	return false
}
