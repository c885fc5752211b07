// Package convert turns located DOCX and downloaded HTML full texts into
// Markdown artifacts, tracking every conversion in the store.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Converter produces a Markdown file from a DOCX. Implementations wrap
// an external binary; extractImages toggles media extraction alongside
// the output.
type Converter interface {
	Convert(ctx context.Context, docxPath, outDir string, extractImages bool) (markdownPath string, err error)
}

// PandocConverter shells out to pandoc (or a compatible binary).
type PandocConverter struct {
	binary string
}

// NewPandocConverter wraps the given converter binary; an empty name
// defaults to "pandoc".
func NewPandocConverter(binary string) *PandocConverter {
	if binary == "" {
		binary = "pandoc"
	}
	return &PandocConverter{binary: binary}
}

// Convert renders docxPath into outDir. With extractImages the media
// lands in a sibling directory named after the output file.
func (p *PandocConverter) Convert(ctx context.Context, docxPath, outDir string, extractImages bool) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}

	stem := strings.TrimSuffix(filepath.Base(docxPath), filepath.Ext(docxPath))
	// The two variants must not clobber each other.
	outName := stem + ".md"
	if extractImages {
		outName = stem + "_images.md"
	}
	outPath := filepath.Join(outDir, outName)

	args := []string{"-f", "docx", "-t", "gfm", "--wrap=none", "-o", outPath}
	if extractImages {
		args = append(args, "--extract-media", filepath.Join(outDir, stem+"_media"))
	}
	args = append(args, docxPath)

	cmd := exec.CommandContext(ctx, p.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%s: %s", p.binary, msg)
	}
	return outPath, nil
}
