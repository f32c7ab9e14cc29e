package textutil

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// ErrEmptyLabel is returned when a label has no usable characters.
var ErrEmptyLabel = errors.New("label is empty")

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// NormalizeLabel turns a free-form run label such as "nov_22" into the
// directory name used under the output root ("NOV_22"). Surrounding quotes
// are dropped, unsafe characters are replaced and the result is upper-cased.
func NormalizeLabel(label string) (string, error) {
	label = strings.Trim(strings.TrimSpace(label), `"'`)
	label = SanitizeFileName(label)
	label = strings.Trim(label, ".")
	if label == "" {
		return "", ErrEmptyLabel
	}
	return cases.Upper(language.Und).String(label), nil
}
