// Package report writes captured images to disk and bundles them into a PDF.
package report

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// ErrNoImages is returned by BundlePDF when there is nothing to bundle.
var ErrNoImages = errors.New("report: no images to bundle")

// SaveImage decodes a base64 screenshot and writes it to path, creating
// parent directories as needed.
func SaveImage(path, data string) error {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("failed to decode image data: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

// BundlePDF writes a PDF to out with one page per image, in order. An
// existing file at out is replaced.
func BundlePDF(images []string, out string) error {
	if len(images) == 0 {
		return ErrNoImages
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	// pdfcpu appends to an existing file
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to replace %s: %w", out, err)
	}

	imp := pdfcpu.DefaultImportConfig()
	if err := api.ImportImagesFile(images, out, imp, nil); err != nil {
		return fmt.Errorf("failed to bundle %d images into %s: %w", len(images), out, err)
	}
	return nil
}

// PageCount returns the number of pages in a PDF file.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return n, nil
}
