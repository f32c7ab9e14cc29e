package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"gnssprep/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "convert", "crx2rnx", "exit status 1", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"convert", "crx2rnx", "exit status 1"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err)
	}
}

func TestIsFatal(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{services.Wrap(services.ErrInvalidSource, "unpack", "", "not an archive", nil), true},
		{fmt.Errorf("load: %w", services.ErrConfiguration), true},
		{services.Wrap(services.ErrArchiveCorrupt, "unpack", "extract", "bad.zip", nil), false},
		{services.Wrap(services.ErrExternalTool, "split", "teqc", "", nil), false},
	}
	for _, tc := range cases {
		if got := services.IsFatal(tc.err); got != tc.want {
			t.Errorf("IsFatal(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestKind(t *testing.T) {
	cases := map[string]error{
		"":                  nil,
		"invalid_source":    services.ErrInvalidSource,
		"archive_corrupt":   services.Wrap(services.ErrArchiveCorrupt, "unpack", "", "", nil),
		"no_eligible_files": services.ErrNoEligibleFiles,
		"partial_split":     services.Wrap(services.ErrPartialSplit, "split", "", "", services.ErrExternalTool),
		"timeout":           services.Wrap(services.ErrExternalTool, "convert", "", "", services.ErrTimeout),
		"external_tool":     services.ErrExternalTool,
		"error":             errors.New("plain"),
	}
	for want, err := range cases {
		if got := services.Kind(err); got != want {
			t.Errorf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
}
