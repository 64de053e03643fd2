package compiler

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// previewName is the file name used inside each scratch directory.
const previewName = "preview.tex"

// assetExts are copied from AssetDir so previews resolve the same classes,
// fonts and images as the main document.
var assetExts = map[string]bool{
	".cls": true, ".sty": true, ".bst": true, ".bib": true,
	".png": true, ".jpg": true, ".jpeg": true, ".eps": true,
	".ttf": true, ".otf": true,
}

// Preview is the outcome of a scratch compile.
type Preview struct {
	PDF    []byte
	Result *Result
}

// CompileSource typesets latex in a fresh scratch directory named by a random
// UUID so concurrent previews never share build files. The directory is
// removed before returning.
func (c *Compiler) CompileSource(ctx context.Context, latex string) (*Preview, error) {
	base := c.opts.ScratchDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "preview-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create preview directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			c.logger.Warn("failed to remove preview directory", "dir", dir, "error", err)
		}
	}()

	if err := copyAssets(c.opts.AssetDir, dir); err != nil {
		return nil, err
	}

	texPath := filepath.Join(dir, previewName)
	if err := os.WriteFile(texPath, []byte(latex), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write preview source: %w", err)
	}

	result, err := c.Compile(ctx, texPath)
	if err != nil {
		return nil, err
	}

	pdf, err := os.ReadFile(result.ArtifactPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read preview artifact: %w", err)
	}
	return &Preview{PDF: pdf, Result: result}, nil
}

func copyAssets(src, dst string) error {
	if src == "" {
		return nil
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("failed to read asset directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !assetExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return fmt.Errorf("failed to copy asset %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
