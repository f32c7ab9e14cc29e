package obsfile

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// RawMarker is the RINEX 2 type letter of Hatanaka-compressed observations.
	RawMarker = 'd'
	// DecompressedMarker is the RINEX 2 type letter of observation files.
	DecompressedMarker = 'o'
)

var (
	rawPattern          = regexp.MustCompile(`(?i)^(.+)\.(\d{2})d$`)
	decompressedPattern = regexp.MustCompile(`(?i)^(.+)\.(\d{2})o$`)
	shortNamePattern    = regexp.MustCompile(`^([A-Za-z0-9]{4})(\d{3})([A-Za-z0-9])$`)
)

// Name is the parsed form of an observation file name.
type Name struct {
	// Base is the full file name without directory.
	Base string
	// Stem is everything before the final dot.
	Stem string
	// Year is the two-digit year infix, empty for the bare ".d"/".o" forms.
	Year string
	// Marker is the lower-cased RINEX type letter.
	Marker byte

	// Station, DayOfYear and Session are populated when Stem follows the
	// RINEX 2 short naming convention (ssssdddf).
	Station   string
	DayOfYear int
	Session   string
}

// IsRaw reports whether name is a Hatanaka-compressed observation file: it
// either ends in the literal ".d" marker or matches "<anything>.<yy>d",
// case-insensitively.
func IsRaw(name string) bool {
	n, ok := Parse(name)
	return ok && n.Marker == RawMarker
}

// IsDecompressed reports whether name is a RINEX 2 observation file
// ("<anything>.<yy>o" or the literal ".o" form), case-insensitively.
func IsDecompressed(name string) bool {
	n, ok := Parse(name)
	return ok && n.Marker == DecompressedMarker
}

// IsArchive reports whether name looks like a zip archive.
func IsArchive(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".zip")
}

// Parse splits an observation file name into its components. Paths are
// accepted; only the base name is inspected.
func Parse(name string) (Name, bool) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return Name{}, false
	}

	var n Name
	switch {
	case rawPattern.MatchString(base):
		m := rawPattern.FindStringSubmatch(base)
		n = Name{Base: base, Stem: m[1], Year: m[2], Marker: RawMarker}
	case decompressedPattern.MatchString(base):
		m := decompressedPattern.FindStringSubmatch(base)
		n = Name{Base: base, Stem: m[1], Year: m[2], Marker: DecompressedMarker}
	default:
		ext := strings.ToLower(filepath.Ext(base))
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		if stem == "" {
			return Name{}, false
		}
		switch ext {
		case ".d":
			n = Name{Base: base, Stem: stem, Marker: RawMarker}
		case ".o":
			n = Name{Base: base, Stem: stem, Marker: DecompressedMarker}
		default:
			return Name{}, false
		}
	}

	if m := shortNamePattern.FindStringSubmatch(n.Stem); m != nil {
		doy, _ := strconv.Atoi(m[2])
		if doy >= 1 && doy <= 366 {
			n.Station = strings.ToUpper(m[1])
			n.DayOfYear = doy
			n.Session = m[3]
		}
	}
	return n, true
}

// DecompressedName derives the name CRX2RNX writes for a raw observation
// file: the type marker changes to "o" and the two-digit year is preserved,
// so "ABC01220.22d" becomes "ABC01220.22o". The case of the marker follows
// the case of the input marker.
func DecompressedName(raw string) (string, error) {
	n, ok := Parse(raw)
	if !ok || n.Marker != RawMarker {
		return "", fmt.Errorf("%q is not a raw observation file", filepath.Base(raw))
	}
	marker := "o"
	if last := n.Base[len(n.Base)-1]; last == 'D' {
		marker = "O"
	}
	return n.Stem + "." + n.Year + marker, nil
}

// SubsetName returns the file name used for a constellation view of a
// decompressed observation file.
func SubsetName(view, decompressed string) string {
	return view + "_" + filepath.Base(decompressed)
}

// FullYear expands the two-digit year using the RINEX 2 convention
// (80-99 → 19xx, 00-79 → 20xx).
func (n Name) FullYear() (int, bool) {
	if len(n.Year) != 2 {
		return 0, false
	}
	yy, err := strconv.Atoi(n.Year)
	if err != nil {
		return 0, false
	}
	if yy >= 80 {
		return 1900 + yy, true
	}
	return 2000 + yy, true
}

// Date returns the UTC calendar date of the session when both the year and
// the day of year are known.
func (n Name) Date() (time.Time, bool) {
	year, ok := n.FullYear()
	if !ok || n.DayOfYear == 0 {
		return time.Time{}, false
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	date := start.AddDate(0, 0, n.DayOfYear-1)
	if date.Year() != year {
		return time.Time{}, false
	}
	return date, true
}
