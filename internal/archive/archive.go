// Package archive stages input files into the working directory, either
// compressed (and optionally encrypted) through 7z or via a plain copy.
package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
)

// Archiver compresses a single input file into a single output file. A
// non-empty password additionally encrypts the archive.
type Archiver interface {
	Compress(ctx context.Context, infile, outfile, password string) error
}

// Copy duplicates src to dst, showing a byte progress bar unless quiet.
func Copy(src, dst string, quiet bool) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	var reader io.Reader = in
	if !quiet {
		bar := progressbar.DefaultBytes(info.Size(), "copying "+filepath.Base(src))
		pbReader := progressbar.NewReader(in, bar)
		reader = &pbReader
	}

	if _, err := io.Copy(out, reader); err != nil {
		return err
	}
	return out.Close()
}

// Move renames src to dst, falling back to copy-and-remove when the two
// paths are on different filesystems.
func Move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := Copy(src, dst, true); err != nil {
		return err
	}
	return os.Remove(src)
}
