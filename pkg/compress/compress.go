// Package compress writes precompressed siblings of build output files.
package compress

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"
)

// Algorithms.
const (
	Gzip   = "gzip"
	Brotli = "brotli"
)

// Options select which files are compressed.
type Options struct {
	Algorithm string
	// Test is a regular expression over the slash-separated relative path.
	Test string
	// Threshold is the minimum original size in bytes.
	Threshold int64
	// MinRatio bounds the compressed/original ratio: a sibling is kept only
	// when its ratio is strictly below MinRatio. Zero keeps every sibling.
	MinRatio float64
}

// File is one written sibling.
type File struct {
	Source         string
	Path           string
	OriginalSize   int64
	CompressedSize int64
}

// Ratio is the compressed/original size ratio.
func (f File) Ratio() float64 {
	if f.OriginalSize == 0 {
		return 0
	}
	return float64(f.CompressedSize) / float64(f.OriginalSize)
}

// Run compresses every matching file under dir and returns the siblings it
// wrote, sorted by source path.
func Run(ctx context.Context, dir string, opts Options) ([]File, error) {
	ext, encode, err := encoder(opts.Algorithm)
	if err != nil {
		return nil, err
	}
	test, err := regexp.Compile(opts.Test)
	if err != nil {
		return nil, fmt.Errorf("compress test: %w", err)
	}

	var candidates []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if test.MatchString(filepath.ToSlash(rel)) {
			candidates = append(candidates, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	var (
		mu    sync.Mutex
		files []File
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, path := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, ok, err := compressFile(path, ext, encode, opts)
			if err != nil || !ok {
				return err
			}
			f.Source, _ = filepath.Rel(dir, path)
			f.Source = filepath.ToSlash(f.Source)
			mu.Lock()
			files = append(files, f)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Source < files[j].Source })
	return files, nil
}

type encodeFunc func(w io.Writer, data []byte) error

func encoder(algorithm string) (string, encodeFunc, error) {
	switch algorithm {
	case Gzip, "":
		return ".gz", func(w io.Writer, data []byte) error {
			zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
			if err != nil {
				return err
			}
			if _, err := zw.Write(data); err != nil {
				return err
			}
			return zw.Close()
		}, nil
	case Brotli:
		return ".br", func(w io.Writer, data []byte) error {
			bw := brotli.NewWriterLevel(w, brotli.BestCompression)
			if _, err := bw.Write(data); err != nil {
				return err
			}
			return bw.Close()
		}, nil
	default:
		return "", nil, fmt.Errorf("unsupported compression algorithm %q", algorithm)
	}
}

func keep(f File, minRatio float64) bool {
	return minRatio <= 0 || f.Ratio() < minRatio
}

func compressFile(path, ext string, encode encodeFunc, opts Options) (File, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, false, err
	}
	if int64(len(data)) < opts.Threshold || len(data) == 0 {
		return File{}, false, nil
	}

	var buf bytes.Buffer
	if err := encode(&buf, data); err != nil {
		return File{}, false, fmt.Errorf("compress %s: %w", path, err)
	}

	f := File{
		Path:           path + ext,
		OriginalSize:   int64(len(data)),
		CompressedSize: int64(buf.Len()),
	}
	if !keep(f, opts.MinRatio) {
		return File{}, false, nil
	}
	if err := os.WriteFile(f.Path, buf.Bytes(), 0o644); err != nil {
		return File{}, false, err
	}
	return f, true, nil
}
