package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/dgallion1/clearpath/internal/document"
	"golang.org/x/sync/errgroup"
)

// LoadDir parses every supported document in dir and extracts paragraph
// blocks. Files are read concurrently (at most workers at a time) but blocks
// are returned in file-name order. A document that fails to parse is logged
// and skipped. A missing directory yields no blocks.
func LoadDir(ctx context.Context, dir string, opts Options, workers int, log *slog.Logger) ([]document.Block, error) {
	files, err := ListDocuments(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("document directory not found", "dir", dir)
			return nil, nil
		}
		return nil, err
	}
	if len(files) == 0 {
		log.Warn("no supported documents found", "dir", dir)
		return nil, nil
	}

	type parsed struct {
		pages []document.Page
		err   error
	}
	results := make([]parsed, len(files))

	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			log.Info("parsing document", "file", name)
			pages, err := parseFile(filepath.Join(dir, name), name, opts)
			results[i] = parsed{pages: pages, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var blocks []document.Block
	for i, name := range files {
		r := results[i]
		if r.err != nil {
			log.Error("failed to parse document", "file", name, "error", r.err)
			continue
		}
		fileBlocks, err := ExtractBlocks(r.pages)
		if err != nil {
			log.Error("failed to extract paragraphs", "file", name, "error", err)
			continue
		}
		blocks = append(blocks, fileBlocks...)
	}

	log.Info("extraction complete", "blocks", len(blocks), "documents", len(files))
	return blocks, nil
}

// ListDocuments returns the names of the supported documents directly inside
// dir, sorted.
func ListDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read document dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsSupportedExtension(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

func parseFile(path, name string, opts Options) ([]document.Page, error) {
	p, err := ForFile(name, opts)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.Parse(f, name)
}
