// Package demo handles the built-in demo document: downloading the PDF the
// demo session is seeded around, inspecting it, and opening it in the OS
// viewer.
package demo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/ledongthuc/pdf"
)

const demoFileName = "compliance-auditing-guidelines.pdf"

// Fetcher is the single backend call this package needs.
type Fetcher interface {
	DemoDocument(ctx context.Context) ([]byte, error)
}

// Info describes a downloaded demo document.
type Info struct {
	Path  string
	Pages int
	Size  int64
}

// Fetch downloads the demo PDF, stores it under dataDir, and reports its
// page count.
func Fetch(ctx context.Context, f Fetcher, dataDir string) (Info, error) {
	data, err := f.DemoDocument(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("downloading demo document: %w", err)
	}

	dir := filepath.Join(dataDir, "demo")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Info{}, fmt.Errorf("creating demo directory: %w", err)
	}
	path := filepath.Join(dir, demoFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Info{}, fmt.Errorf("saving demo document: %w", err)
	}

	pages, err := pageCount(data)
	if err != nil {
		// The document is still usable by the backend even if we can't parse
		// it locally; report zero pages rather than failing the download.
		pages = 0
	}
	return Info{Path: path, Pages: pages, Size: int64(len(data))}, nil
}

func pageCount(data []byte) (int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing pdf: %w", err)
	}
	return r.NumPage(), nil
}

// OpenInViewer opens the document with the platform's default viewer.
func OpenInViewer(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	return nil
}
