package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSource marks a source that is neither an archive nor a
	// directory containing archives. Fatal to the run.
	ErrInvalidSource = errors.New("invalid source")

	// ErrArchiveCorrupt marks a nested archive that could not be read. The
	// archive is skipped and the run continues.
	ErrArchiveCorrupt = errors.New("archive corrupt")

	// ErrNoEligibleFiles marks a stage that found nothing to do.
	ErrNoEligibleFiles = errors.New("no eligible files")

	// ErrPartialSplit marks a split task where at least one constellation
	// view failed.
	ErrPartialSplit = errors.New("partial split failure")

	ErrExternalTool  = errors.New("external tool error")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether err should abort the whole run rather than being
// recorded against a single file.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrInvalidSource) || errors.Is(err, ErrConfiguration)
}

// Kind returns a short classification label for err, used in reports.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidSource):
		return "invalid_source"
	case errors.Is(err, ErrArchiveCorrupt):
		return "archive_corrupt"
	case errors.Is(err, ErrNoEligibleFiles):
		return "no_eligible_files"
	case errors.Is(err, ErrPartialSplit):
		return "partial_split"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "error"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
