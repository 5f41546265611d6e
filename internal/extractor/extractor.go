package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var tarExts = []string{".tar.gz", ".tar.zst", ".tar.xz", ".tar.bz2", ".tgz", ".txz", ".tzst", ".tbz2", ".tbz", ".tar"}

// compressedExts wrap a single file rather than an archive.
var compressedExts = []string{".gz", ".zst", ".xz", ".bz2"}

var zipMagic = []byte("PK\x03\x04")

type Extractor struct {
	tar  *TARExtractor
	zip  *ZIPExtractor
	file *FileExtractor
}

func New() *Extractor {
	return &Extractor{
		tar:  NewTAR(),
		zip:  NewZIP(),
		file: NewFile(),
	}
}

// IsArchive reports whether Extract knows how to unpack name. Anything
// else is treated as a raw executable by the caller.
func IsArchive(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".zip") || isTarArchive(lower) || isCompressedFile(lower)
}

func (e *Extractor) Supports(name string) bool {
	return IsArchive(name)
}

// Extract unpacks src into dst. A zip signature wins over the file
// name, so a zip published as .tar.gz still unpacks. Otherwise the name
// picks tar or single file, and the compression inside is sniffed.
func (e *Extractor) Extract(src, dst string) error {
	lower := strings.ToLower(src)

	switch {
	case strings.HasSuffix(lower, ".zip") || hasZipMagic(src):
		return e.zip.Extract(src, dst)
	case isTarArchive(lower):
		return e.tar.Extract(src, dst)
	case isCompressedFile(lower):
		return e.file.Extract(src, dst)
	default:
		return fmt.Errorf("unsupported archive format: %s", src)
	}
}

func hasZipMagic(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, zipMagic)
}

func isTarArchive(name string) bool {
	for _, ext := range tarExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func isCompressedFile(name string) bool {
	for _, ext := range compressedExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

var errUnsafePath = errors.New("path escapes the destination")

// tree is an extraction destination. Every write goes through an os.Root,
// so the kernel refuses paths that resolve outside of dir even when they
// traverse symlinks planted by earlier entries.
type tree struct {
	dir      string
	resolved string
	root     *os.Root
	links    []string
}

func openTree(dst string) (*tree, error) {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(dst)
	if err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(dst)
	if err != nil {
		return nil, err
	}
	return &tree{dir: dst, resolved: resolved, root: root}, nil
}

func (t *tree) Close() error {
	return t.root.Close()
}

// localName cleans an archive entry name into a path relative to the
// tree, rejecting absolute names and names that climb out of it.
func localName(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: %s", errUnsafePath, name)
	}
	return clean, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (t *tree) mkdir(name string) error {
	if name == "." {
		return nil
	}
	return t.root.MkdirAll(name, 0755)
}

// clear removes a file or symlink at name so it can be replaced.
// Directories are left alone.
func (t *tree) clear(name string) error {
	info, err := t.root.Lstat(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return nil
	}
	return t.root.Remove(name)
}

// write stores r at name with the entry's permission bits. The owner
// can always write, so a later entry or an upgrade can replace it.
func (t *tree) write(name string, r io.Reader, mode os.FileMode) error {
	if err := t.mkdir(filepath.Dir(name)); err != nil {
		return err
	}
	if err := t.clear(name); err != nil {
		return err
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = 0644
	}

	out, err := t.root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// symlink creates name pointing at linkname. Absolute links are refused,
// and so is any link that, once created, makes some link in the tree
// resolve outside of it. Links are rechecked together because a chain
// like b -> . and a -> b/.. only escapes once both exist.
func (t *tree) symlink(name, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("%w: absolute link %s", errUnsafePath, linkname)
	}
	if !filepath.IsLocal(filepath.Join(filepath.Dir(name), linkname)) {
		return fmt.Errorf("%w: link %s", errUnsafePath, linkname)
	}

	if err := t.mkdir(filepath.Dir(name)); err != nil {
		return err
	}
	if err := t.clear(name); err != nil {
		return err
	}
	if err := t.root.Symlink(linkname, name); err != nil {
		return err
	}
	t.links = append(t.links, name)

	for _, l := range t.links {
		dest, err := filepath.EvalSymlinks(filepath.Join(t.dir, l))
		if err != nil {
			// dangling for now
			continue
		}
		if !within(t.resolved, dest) {
			t.root.Remove(name)
			return fmt.Errorf("%w: link %s resolves to %s", errUnsafePath, l, dest)
		}
	}
	return nil
}

// copy materializes a hard link entry as a copy of an already extracted
// file.
func (t *tree) copy(from, name string) error {
	in, err := t.root.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	return t.write(name, in, info.Mode())
}
