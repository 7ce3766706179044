package parity

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/zzenonn/volpack/internal/run"
)

// Par2 drives the external par2 binary.
type Par2 struct{}

func NewPar2() Par2 { return Par2{} }

func (Par2) MetadataName(base string) string { return base + ".par2" }

func (Par2) IsParityFile(name string) bool { return strings.HasSuffix(name, ".par2") }

func (p Par2) Create(ctx context.Context, dir string, params CreateParams) error {
	if err := params.validate(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	return run.Command(ctx, dir, "par2", buildCreateArgs(params, names)...)
}

func (Par2) Verify(ctx context.Context, dir, metadataName string) (VerifyResult, error) {
	code, err := run.ExitCode(ctx, dir, "par2", "verify", metadataName)
	if err != nil {
		return VerifyFailed, err
	}
	switch code {
	case 0:
		return VerifyOKNoRepair, nil
	case 1:
		return VerifyOKRepairable, nil
	default:
		return VerifyFailed, nil
	}
}

func buildCreateArgs(params CreateParams, names []string) []string {
	args := []string{"create"}
	if params.BlockSize > 0 {
		args = append(args, fmt.Sprintf("-s%d", params.BlockSize))
	}
	if params.NumBlocks > 0 {
		args = append(args, fmt.Sprintf("-b%d", params.NumBlocks))
	}
	args = append(args, fmt.Sprintf("-c%d", params.RecoveryBlocks))
	if params.MemoryMB > 0 {
		args = append(args, fmt.Sprintf("-m%d", params.MemoryMB))
	}
	args = append(args, "--", params.MetadataName)
	return append(args, names...)
}
