package workflow

import (
	"path/filepath"
	"strings"

	"gnssprep/internal/services"
	"gnssprep/internal/textutil"
)

const (
	// RawDirName holds the unpacked raw and decompressed observation files.
	RawDirName = "1 - raw observation files"
	// SplitDirName holds one subdirectory per constellation view.
	SplitDirName = "2 - split by constellation"
)

// Layout is the directory tree one labelled run writes into.
type Layout struct {
	Root     string
	Label    string
	Base     string
	RawDir   string
	SplitDir string
}

// NewLayout resolves the tree for label under root. The label is normalized
// with textutil.NormalizeLabel.
func NewLayout(root, label string) (Layout, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return Layout{}, services.Wrap(services.ErrConfiguration, "run", "layout", "output root required", nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, services.Wrap(services.ErrConfiguration, "run", "layout", root, err)
	}
	normalized, err := textutil.NormalizeLabel(label)
	if err != nil {
		return Layout{}, services.Wrap(services.ErrConfiguration, "run", "layout", "invalid label", err)
	}
	base := filepath.Join(abs, normalized)
	return Layout{
		Root:     abs,
		Label:    normalized,
		Base:     base,
		RawDir:   filepath.Join(base, RawDirName),
		SplitDir: filepath.Join(base, SplitDirName),
	}, nil
}
