package extractor

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type codec struct {
	name  string
	magic []byte
	open  func(r io.Reader) (io.Reader, func(), error)
}

var codecs = []codec{
	{
		name:  "zstd",
		magic: []byte{0x28, 0xb5, 0x2f, 0xfd},
		open: func(r io.Reader) (io.Reader, func(), error) {
			zr, err := zstd.NewReader(r)
			if err != nil {
				return nil, nil, err
			}
			return zr, zr.Close, nil
		},
	},
	{
		name:  "gzip",
		magic: []byte{0x1f, 0x8b},
		open: func(r io.Reader) (io.Reader, func(), error) {
			gz, err := gzip.NewReader(r)
			if err != nil {
				return nil, nil, err
			}
			return gz, func() { gz.Close() }, nil
		},
	},
	{
		name:  "xz",
		magic: []byte{0xfd, '7', 'z', 'X', 'Z', 0x00},
		open: func(r io.Reader) (io.Reader, func(), error) {
			xr, err := xz.NewReader(r)
			if err != nil {
				return nil, nil, err
			}
			return xr, func() {}, nil
		},
	},
	{
		name:  "bzip2",
		magic: []byte("BZh"),
		open: func(r io.Reader) (io.Reader, func(), error) {
			return bzip2.NewReader(r), func() {}, nil
		},
	},
}

// decompress sniffs r's magic bytes and wraps it in the matching
// decoder. An unrecognized stream comes back as is, with compressed
// set to false. closeFn is never nil.
func decompress(r io.Reader) (out io.Reader, closeFn func(), compressed bool, err error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(6)

	for _, c := range codecs {
		if !bytes.HasPrefix(head, c.magic) {
			continue
		}
		dr, closeFn, err := c.open(br)
		if err != nil {
			return nil, nil, false, fmt.Errorf("%s: %w", c.name, err)
		}
		return dr, closeFn, true, nil
	}
	return br, func() {}, false, nil
}
