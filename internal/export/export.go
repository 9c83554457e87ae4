// Package export bundles a finished document and its screenshots into
// a downloadable zip archive. Image entries keep the same relative
// paths the Markdown references, so the archive renders correctly after
// local extraction.
package export

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrContentNotReady is returned when the project has not completed
// processing or no document exists yet.
var ErrContentNotReady = errors.New("content not ready for export")

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Packager builds export archives from the shared static-asset area.
type Packager struct {
	StaticDir string
}

// Build produces the archive bytes and its download filename. status is
// the owning project's current status; markdown is the rendered
// document; imagePaths are the document's image references relative to
// the static root.
func (p Packager) Build(status, title, markdown string, imagePaths []string) ([]byte, string, error) {
	if status != "completed" || strings.TrimSpace(markdown) == "" {
		return nil, "", ErrContentNotReady
	}

	base := SafeName(title)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	mdEntry, err := zw.Create(base + ".md")
	if err != nil {
		return nil, "", fmt.Errorf("create markdown entry: %w", err)
	}
	if _, err := mdEntry.Write([]byte(markdown)); err != nil {
		return nil, "", fmt.Errorf("write markdown entry: %w", err)
	}

	for _, rel := range imagePaths {
		if err := p.addImage(zw, rel); err != nil {
			return nil, "", err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize archive: %w", err)
	}

	return buf.Bytes(), base + ".zip", nil
}

func (p Packager) addImage(zw *zip.Writer, rel string) error {
	// entry path mirrors the Markdown reference exactly
	entry, err := zw.Create(filepath.ToSlash(rel))
	if err != nil {
		return fmt.Errorf("create image entry %s: %w", rel, err)
	}

	file, err := os.Open(filepath.Join(p.StaticDir, filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("open image %s: %w", rel, err)
	}
	defer file.Close()

	if _, err := io.Copy(entry, file); err != nil {
		return fmt.Errorf("write image entry %s: %w", rel, err)
	}
	return nil
}

// SafeName restricts a title to ASCII so Content-Disposition headers
// need no escaping.
func SafeName(title string) string {
	clean := strings.Trim(unsafeNameChars.ReplaceAllString(title, "_"), "_")
	if clean == "" {
		return "export"
	}
	return clean
}
