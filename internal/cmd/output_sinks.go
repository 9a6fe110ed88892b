package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/riftlens/riftlens/internal/output"
)

type outputSink struct {
	writer io.Writer
	close  func() error
	path   string
}

// openSink opens path for writing; empty or "-" is stdout.
func openSink(path string) (*outputSink, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "-" {
		return &outputSink{writer: os.Stdout, close: func() error { return nil }, path: "-"}, nil
	}

	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(trimmed)
	if err != nil {
		return nil, err
	}
	return &outputSink{writer: file, close: file.Close, path: trimmed}, nil
}

// sinkFor resolves the --out / --out-dir pair. With --out-dir the file is
// named <base>.<txt|json> inside that directory.
func sinkFor(format output.Format, out, outDir, base string) (*outputSink, error) {
	out, outDir = strings.TrimSpace(out), strings.TrimSpace(outDir)
	if out != "" && outDir != "" {
		return nil, fmt.Errorf("--out and --out-dir are mutually exclusive")
	}
	if outDir == "" {
		return openSink(out)
	}

	ext := "txt"
	if format == output.FormatJSON {
		ext = "json"
	}
	return openSink(filepath.Join(outDir, base+"."+ext))
}
