// Package version provides semantic version validation and the registry's version filter grammar.
//
// The listing endpoint accepts four filter forms, all checked client-side before a request:
//
//	1.2.3          exact
//	1.2.3-2.1.0    inclusive range
//	~1.2.0         >=1.2.0 <1.3.0
//	^1.2.0         >=1.2.0 <2.0.0 (^0.2.3 => >=0.2.3 <0.3.0)
package version

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// FilterKind identifies which form of version filter was given.
type FilterKind string

const (
	KindExact FilterKind = "exact"
	KindRange FilterKind = "range"
	KindTilde FilterKind = "tilde"
	KindCaret FilterKind = "caret"
)

// String constants for operations (used in ErrVersionParseFailed)
const (
	OpParseFilter     = "parse_filter"
	OpParseRangeLow   = "parse_range_low"
	OpParseRangeHigh  = "parse_range_high"
	OpValidateVersion = "validate_version"
	OpParseVersion1   = "parse_version1"
	OpParseVersion2   = "parse_version2"
)

// Sentinel errors
var (
	ErrEmptyFilter   = errors.New("version filter cannot be empty")
	ErrInvertedRange = errors.New("range lower bound is greater than upper bound")
)

// ErrVersionParseFailed represents a version parsing error
type ErrVersionParseFailed struct {
	Version string
	Op      string
	Cause   error
}

func (e ErrVersionParseFailed) Error() string {
	return fmt.Sprintf("failed to parse version %s in operation %s: %v", e.Version, e.Op, e.Cause)
}

func (e ErrVersionParseFailed) Unwrap() error {
	return e.Cause
}

func (e ErrVersionParseFailed) Is(target error) bool {
	var parseErr ErrVersionParseFailed
	return errors.As(target, &parseErr)
}

// Filter is a parsed version filter.
type Filter struct {
	Raw        string
	Kind       FilterKind
	constraint *semver.Constraints
}

// ParseFilter parses one of the four filter forms into a Filter.
func ParseFilter(raw string) (Filter, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Filter{}, ErrEmptyFilter
	}

	var (
		kind FilterKind
		expr string
	)

	switch {
	case strings.HasPrefix(s, "~"):
		v, err := semver.NewVersion(strings.TrimPrefix(s, "~"))
		if err != nil {
			return Filter{}, ErrVersionParseFailed{Version: s, Op: OpParseFilter, Cause: err}
		}
		kind = KindTilde
		expr = fmt.Sprintf(">= %s, < %d.%d.0", v, v.Major(), v.Minor()+1)
	case strings.HasPrefix(s, "^"):
		v, err := semver.NewVersion(strings.TrimPrefix(s, "^"))
		if err != nil {
			return Filter{}, ErrVersionParseFailed{Version: s, Op: OpParseFilter, Cause: err}
		}
		kind = KindCaret
		if v.Major() > 0 {
			expr = fmt.Sprintf(">= %s, < %d.0.0", v, v.Major()+1)
		} else {
			expr = fmt.Sprintf(">= %s, < 0.%d.0", v, v.Minor()+1)
		}
	case strings.Contains(s, "-"):
		lo, hi, _ := strings.Cut(s, "-")
		loV, err := semver.NewVersion(strings.TrimSpace(lo))
		if err != nil {
			return Filter{}, ErrVersionParseFailed{Version: lo, Op: OpParseRangeLow, Cause: err}
		}
		hiV, err := semver.NewVersion(strings.TrimSpace(hi))
		if err != nil {
			return Filter{}, ErrVersionParseFailed{Version: hi, Op: OpParseRangeHigh, Cause: err}
		}
		if loV.GreaterThan(hiV) {
			return Filter{}, fmt.Errorf("%w: %s", ErrInvertedRange, s)
		}
		kind = KindRange
		expr = fmt.Sprintf(">= %s, <= %s", loV, hiV)
	default:
		v, err := semver.NewVersion(s)
		if err != nil {
			return Filter{}, ErrVersionParseFailed{Version: s, Op: OpParseFilter, Cause: err}
		}
		kind = KindExact
		expr = fmt.Sprintf("= %s", v)
	}

	c, err := semver.NewConstraint(expr)
	if err != nil {
		return Filter{}, ErrVersionParseFailed{Version: s, Op: OpParseFilter, Cause: err}
	}

	return Filter{Raw: s, Kind: kind, constraint: c}, nil
}

// Matches reports whether version satisfies the filter. Unparseable versions never match.
func (f Filter) Matches(version string) bool {
	if f.constraint == nil {
		return false
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return f.constraint.Check(v)
}

// String returns the filter in the form the registry expects on the wire.
func (f Filter) String() string {
	return f.Raw
}

// ValidateVersion validates that a version string is valid semver
func ValidateVersion(version string) error {
	if _, err := semver.NewVersion(version); err != nil {
		return ErrVersionParseFailed{
			Version: version,
			Op:      OpValidateVersion,
			Cause:   err,
		}
	}
	return nil
}

// CompareVersions compares two versions (-1 if v1 < v2, 0 if equal, 1 if v1 > v2)
func CompareVersions(v1, v2 string) (int, error) {
	ver1, err := semver.NewVersion(v1)
	if err != nil {
		return 0, ErrVersionParseFailed{Version: v1, Op: OpParseVersion1, Cause: err}
	}
	ver2, err := semver.NewVersion(v2)
	if err != nil {
		return 0, ErrVersionParseFailed{Version: v2, Op: OpParseVersion2, Cause: err}
	}
	return ver1.Compare(ver2), nil
}

// Less orders two version strings by semver precedence. Invalid versions sort after valid
// ones and compare lexically among themselves.
func Less(a, b string) bool {
	av, aErr := semver.NewVersion(a)
	bv, bErr := semver.NewVersion(b)
	switch {
	case aErr == nil && bErr == nil:
		return av.LessThan(bv)
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return a < b
	}
}

// SortVersions returns a copy of versions sorted in ascending order using Less.
func SortVersions(versions []string) []string {
	out := make([]string, len(versions))
	copy(out, versions)
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}
