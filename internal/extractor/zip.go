package extractor

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
)

// maxLinkTarget bounds how much of a zip symlink entry is read as its
// target path.
const maxLinkTarget = 4096

type ZIPExtractor struct{}

func NewZIP() *ZIPExtractor {
	return &ZIPExtractor{}
}

func (ze *ZIPExtractor) Extract(src, dst string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("zip: %w", err)
	}
	defer r.Close()

	t, err := openTree(dst)
	if err != nil {
		return err
	}
	defer t.Close()

	for _, f := range r.File {
		if err := extractZipEntry(t, f); err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	return nil
}

func extractZipEntry(t *tree, f *zip.File) error {
	name, err := localName(f.Name)
	if err != nil {
		return err
	}

	mode := f.Mode()
	if mode.IsDir() {
		return t.mkdir(name)
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	// Unix zips store a symlink as an entry whose body is the target.
	if mode&os.ModeSymlink != 0 {
		link, err := io.ReadAll(io.LimitReader(rc, maxLinkTarget))
		if err != nil {
			return err
		}
		return t.symlink(name, string(link))
	}

	return t.write(name, rc, mode)
}
