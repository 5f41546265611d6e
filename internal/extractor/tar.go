package extractor

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type TARExtractor struct{}

func NewTAR() *TARExtractor {
	return &TARExtractor{}
}

// Extract unpacks a plain or compressed tar stream into dst. Devices,
// fifos and other special entries are skipped.
func (te *TARExtractor) Extract(src, dst string) error {
	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	r, closeFn, _, err := decompress(file)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(src), err)
	}
	defer closeFn()

	t, err := openTree(dst)
	if err != nil {
		return err
	}
	defer t.Close()

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", filepath.Base(src), err)
		}

		if err := extractTarEntry(t, tr, hdr); err != nil {
			return fmt.Errorf("%s: %w", hdr.Name, err)
		}
	}
}

func extractTarEntry(t *tree, tr *tar.Reader, hdr *tar.Header) error {
	name, err := localName(hdr.Name)
	if err != nil {
		return err
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return t.mkdir(name)
	case tar.TypeReg:
		return t.write(name, tr, hdr.FileInfo().Mode())
	case tar.TypeSymlink:
		return t.symlink(name, hdr.Linkname)
	case tar.TypeLink:
		from, err := localName(hdr.Linkname)
		if err != nil {
			return err
		}
		return t.copy(from, name)
	default:
		return nil
	}
}
