package compress

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOptions = Options{
	Algorithm: Gzip,
	Test:      `\.(js|css|html|svg)$`,
	Threshold: 10240,
	MinRatio:  0.8,
}

func write(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestRun_CompressesMatchingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	text := bytes.Repeat([]byte("export const value = 42;\n"), 1000)
	noise := make([]byte, 20000)
	_, err := rand.Read(noise)
	require.NoError(t, err)

	write(t, dir, "main.js", text)
	write(t, dir, "small.js", []byte("x"))
	write(t, dir, "logo.png", text)
	write(t, dir, "random.js", noise)

	files, err := Run(context.Background(), dir, testOptions)
	require.NoError(t, err)
	require.Len(t, files, 1)

	f := files[0]
	assert.Equal(t, "main.js", f.Source)
	assert.Equal(t, filepath.Join(dir, "main.js.gz"), f.Path)
	assert.Less(t, f.Ratio(), 0.8)

	for _, name := range []string{"small.js.gz", "logo.png.gz", "random.js.gz"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(err), name)
	}

	raw, err := os.ReadFile(f.Path)
	require.NoError(t, err)
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	got, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestRun_Brotli(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	text := bytes.Repeat([]byte("body { color: red; }\n"), 1000)
	write(t, dir, "app.css", text)

	opts := testOptions
	opts.Algorithm = Brotli
	files, err := Run(context.Background(), dir, opts)
	require.NoError(t, err)
	require.Len(t, files, 1)

	raw, err := os.ReadFile(filepath.Join(dir, "app.css.br"))
	require.NoError(t, err)
	got, err := io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestKeep_RequiresRatioBelowMinimum(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		compressed int64
		minRatio   float64
		want       bool
	}{
		{name: "below the minimum", compressed: 79, minRatio: 0.8, want: true},
		{name: "exactly the minimum", compressed: 80, minRatio: 0.8, want: false},
		{name: "above the minimum", compressed: 81, minRatio: 0.8, want: false},
		{name: "no minimum", compressed: 120, minRatio: 0, want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := File{OriginalSize: 100, CompressedSize: tc.compressed}
			assert.Equal(t, tc.want, keep(f, tc.minRatio))
		})
	}
}

func TestRun_RejectsBadOptions(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), t.TempDir(), Options{Algorithm: "zstd"})
	assert.Error(t, err)

	_, err = Run(context.Background(), t.TempDir(), Options{Test: "("})
	assert.Error(t, err)
}
