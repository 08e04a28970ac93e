package vision

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractor_ResizesBeforeExtract(t *testing.T) {
	img := noisyImage(40, 5)
	prepared, err := Prepare(img, TargetSize)
	require.NoError(t, err)
	want, err := Extract(prepared)
	require.NoError(t, err)

	got, err := NewExtractor().Extract(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, Backend, NewExtractor().Backend())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewExtractor().Extract(ctx, img)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFiles_RawAndEncode(t *testing.T) {
	files := NewFiles()
	path := filepath.Join(t.TempDir(), "well.tif")
	require.NoError(t, os.WriteFile(path, []byte("raw"), 0o644))

	data, mimeType, err := files.Raw(path)
	require.NoError(t, err)
	require.Equal(t, "raw", string(data))
	require.Equal(t, "image/tiff", mimeType)

	_, _, err = files.Raw(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)

	data, mimeType, err = files.Encode(noisyImage(16, 1))
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", mimeType)
	require.Equal(t, []byte{0xff, 0xd8}, data[:2])
}
