package format

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

var compressionSuffixes = []string{".gz", ".bz2", ".zst", ".xz"}

func compressionSuffix(name string) string {
	for _, s := range compressionSuffixes {
		if strings.HasSuffix(name, s) {
			return s
		}
	}
	return ""
}

// openText opens a text source, decompressing it when it carries a
// compression suffix, and wraps it with Wrap. Closing logs the bytes read.
func openText(src Source, opts Options) (io.Reader, func() error, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, nil, err
	}

	r, closeDecoder, err := decompress(f, src.Compression)
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	cr := Wrap(r)
	closeAll := func() error {
		if closeDecoder != nil {
			closeDecoder()
		}
		opts.logger().Debug("text source read",
			"path", src.Path,
			"compression", src.Compression,
			"bytes", cr.BytesRead,
		)
		return f.Close()
	}
	return cr, closeAll, nil
}

func decompress(r io.Reader, suffix string) (io.Reader, func(), error) {
	switch suffix {
	case "":
		return r, nil, nil
	case ".gz":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, func() { gz.Close() }, nil
	case ".bz2":
		return bzip2.NewReader(r), nil, nil
	case ".xz":
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xr, nil, nil
	case ".zst":
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return dec, dec.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown compression %q", suffix)
	}
}

// readAllText reads a whole text source through openText.
func readAllText(src Source, opts Options) ([]byte, error) {
	r, closeFn, err := openText(src, opts)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return io.ReadAll(r)
}
