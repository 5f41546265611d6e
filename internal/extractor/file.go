package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileExtractor decompresses a single compressed executable, such as
// tool-linux-amd64.gz, into dst under its name without the extension.
type FileExtractor struct{}

func NewFile() *FileExtractor {
	return &FileExtractor{}
}

func (fe *FileExtractor) Extract(src, dst string) error {
	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	r, closeFn, compressed, err := decompress(file)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(src), err)
	}
	defer closeFn()
	if !compressed {
		return fmt.Errorf("%s is not compressed", src)
	}

	name := filepath.Base(src)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	t, err := openTree(dst)
	if err != nil {
		return err
	}
	defer t.Close()
	return t.write(name, r, 0755)
}
