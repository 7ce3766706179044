package archive

import (
	"context"

	"github.com/zzenonn/volpack/internal/run"
)

// SevenZip drives the external 7z binary. Each input file becomes one
// compressed (and, with a password, AES-encrypted) .7z archive.
type SevenZip struct {
	// WorkDir is passed to 7z as its working directory for temporary files.
	WorkDir string
}

func NewSevenZip(workDir string) *SevenZip {
	return &SevenZip{WorkDir: workDir}
}

func (z *SevenZip) Compress(ctx context.Context, infile, outfile, password string) error {
	args := []string{"a"}
	if password != "" {
		args = append(args, "-p"+password)
	}
	if z.WorkDir != "" {
		args = append(args, "-w"+z.WorkDir)
	}
	args = append(args, "--", outfile, infile)
	return run.Command(ctx, "", "7z", args...)
}

// Suffix is appended to each input file name when it is compressed.
const Suffix = ".7z"
