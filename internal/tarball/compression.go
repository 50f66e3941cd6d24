package tarball

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is the stream wrapped around a tar archive.
type Compression string

const (
	None  Compression = "none"
	Gzip  Compression = "gzip"
	Bzip2 Compression = "bzip2"
	Zstd  Compression = "zstd"
	LZ4   Compression = "lz4"
)

var suffixes = []struct {
	suffix string
	mode   Compression
}{
	{".tar.gz", Gzip},
	{".tgz", Gzip},
	{".tar.bz2", Bzip2},
	{".tbz2", Bzip2},
	{".bz2", Bzip2},
	{".tar.zst", Zstd},
	{".tzst", Zstd},
	{".tar.lz4", LZ4},
	{".tar", None},
}

// CompressionForName picks the compression implied by an archive file name.
func CompressionForName(name string) (Compression, error) {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.mode, nil
		}
	}
	return "", fmt.Errorf("unknown archive type: %s", name)
}

var magics = []struct {
	magic []byte
	mode  Compression
}{
	{[]byte{0x1f, 0x8b}, Gzip},
	{[]byte("BZh"), Bzip2},
	{[]byte{0x28, 0xb5, 0x2f, 0xfd}, Zstd},
	{[]byte{0x04, 0x22, 0x4d, 0x18}, LZ4},
}

// Sniff identifies the compression from the first bytes of a stream. Data
// with no known magic is taken to be a plain tar.
func Sniff(header []byte) Compression {
	for _, m := range magics {
		if bytes.HasPrefix(header, m.magic) {
			return m.mode
		}
	}
	return None
}

func newDecompressor(r io.Reader, mode Compression) (io.ReadCloser, error) {
	switch mode {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		return gzip.NewReader(r)
	case Bzip2:
		return bzip2.NewReader(r, nil)
	case Zstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", mode)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func newCompressor(w io.Writer, mode Compression) (io.WriteCloser, error) {
	switch mode {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Bzip2:
		return bzip2.NewWriter(w, nil)
	case Zstd:
		return zstd.NewWriter(w)
	case LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", mode)
	}
}
