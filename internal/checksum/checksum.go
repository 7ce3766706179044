// Package checksum writes per-volume checksum listings so the burned media
// can be spot-checked with standard tools.
package checksum

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListingName is the file each volume directory receives. The format is
// md5sum-compatible: "<hex digest>  <name>" per line.
const ListingName = "MD5SUM"

// Writer generates a checksum listing over a directory.
type Writer interface {
	WriteListing(dir string) error
}

// MD5Writer implements Writer with MD5 digests computed in-process.
type MD5Writer struct{}

func NewMD5Writer() MD5Writer { return MD5Writer{} }

func (MD5Writer) WriteListing(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && entry.Name() != ListingName {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var listing strings.Builder
	for _, name := range names {
		digest, err := fileMD5(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		fmt.Fprintf(&listing, "%s  %s\n", digest, name)
	}

	return os.WriteFile(filepath.Join(dir, ListingName), []byte(listing.String()), 0o644)
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
