package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	errs "github.com/zzenonn/volpack/internal/errors"
	"github.com/zzenonn/volpack/internal/parity"
	"github.com/zzenonn/volpack/internal/service"
)

// mockArchiver is a mock implementation of the 7z collaborator for testing.
type mockArchiver struct {
	compressFunc func(ctx context.Context, infile, outfile, password string) error
	calls        []string
}

func (m *mockArchiver) Compress(ctx context.Context, infile, outfile, password string) error {
	m.calls = append(m.calls, outfile)
	if m.compressFunc != nil {
		return m.compressFunc(ctx, infile, outfile, password)
	}
	data, err := os.ReadFile(infile)
	if err != nil {
		return err
	}
	return os.WriteFile(outfile, data, 0o644)
}

// mockEngine is a mock parity engine. Create writes a metadata file and two
// recovery part files; Verify returns a configurable result.
type mockEngine struct {
	createFunc   func(ctx context.Context, dir string, p parity.CreateParams) error
	verifyResult parity.VerifyResult
	createCalls  []parity.CreateParams
	verifyCalls  []string
}

func newMockEngine() *mockEngine {
	return &mockEngine{verifyResult: parity.VerifyOKRepairable}
}

func (m *mockEngine) MetadataName(base string) string { return base + ".par2" }

func (m *mockEngine) IsParityFile(name string) bool { return strings.HasSuffix(name, ".par2") }

func (m *mockEngine) Create(ctx context.Context, dir string, p parity.CreateParams) error {
	m.createCalls = append(m.createCalls, p)
	if m.createFunc != nil {
		return m.createFunc(ctx, dir, p)
	}
	base := strings.TrimSuffix(p.MetadataName, ".par2")
	if err := os.WriteFile(filepath.Join(dir, p.MetadataName), []byte("index"), 0o644); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		name := fmt.Sprintf("%s.vol%03d+01.par2", base, i)
		if err := os.WriteFile(filepath.Join(dir, name), bytes.Repeat([]byte{0xEE}, 500), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockEngine) Verify(ctx context.Context, dir, metadataName string) (parity.VerifyResult, error) {
	m.verifyCalls = append(m.verifyCalls, dir)
	return m.verifyResult, nil
}

// mockChecksums counts listing writes.
type mockChecksums struct {
	dirs []string
}

func (m *mockChecksums) WriteListing(dir string) error {
	m.dirs = append(m.dirs, dir)
	return nil
}

func writeInputFiles(t *testing.T, dir string, sizes map[string]int64) {
	t.Helper()
	for name, size := range sizes {
		if err := os.WriteFile(filepath.Join(dir, name), bytes.Repeat([]byte{'x'}, int(size)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func defaultOptions(inDir, outDir string) service.Options {
	return service.Options{
		InDir:      inDir,
		OutDir:     outDir,
		Prefix:     "vol",
		NumVolumes: 3,
		Redundancy: big.NewRat(11, 10),
		Quiet:      true,
	}
}

func TestAssemblerRunEndToEnd(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	sizes := make(map[string]int64)
	for i := 0; i < 9; i++ {
		sizes[fmt.Sprintf("file_%d.dat", i)] = 1000
	}
	writeInputFiles(t, inDir, sizes)

	engine := newMockEngine()
	checksums := &mockChecksums{}
	assembler := service.NewAssembler(&mockArchiver{}, engine, checksums)

	layout, err := assembler.Run(context.Background(), defaultOptions(inDir, outDir))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(layout.Dirs) != 3 {
		t.Fatalf("layout has %d volumes, want 3", len(layout.Dirs))
	}

	// The heuristic must have picked the uniform 1000-byte block size and
	// derived the recovery blocks from the 1.1/3 fraction.
	if len(engine.createCalls) != 1 {
		t.Fatalf("engine.Create called %d times, want 1", len(engine.createCalls))
	}
	created := engine.createCalls[0]
	if created.BlockSize != 1000 {
		t.Errorf("block size = %d, want 1000", created.BlockSize)
	}
	if created.RecoveryBlocks != 6 { // ceil(9 * (11/30) / (19/30))
		t.Errorf("recovery blocks = %d, want 6", created.RecoveryBlocks)
	}

	// Every input file lands in exactly one volume; the metadata file lands
	// in all of them.
	placed := make(map[string]int)
	for i, dir := range layout.Dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("volume dir %d: %v", i+1, err)
		}
		foundMetadata := false
		for _, entry := range entries {
			if entry.Name() == layout.MetadataFile {
				foundMetadata = true
				continue
			}
			placed[entry.Name()]++
		}
		if !foundMetadata {
			t.Errorf("volume %d is missing the parity metadata file", i+1)
		}
	}
	for name := range sizes {
		if placed[name] != 1 {
			t.Errorf("file %s placed %d times, want exactly once", name, placed[name])
		}
	}

	if len(checksums.dirs) != 3 {
		t.Errorf("checksums written for %d volumes, want 3", len(checksums.dirs))
	}
	if len(engine.verifyCalls) != 3 {
		t.Errorf("verification sweep ran %d times, want 3", len(engine.verifyCalls))
	}

	// Scratch directories (staging and verification) are gone.
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		var names []string
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		t.Errorf("output dir contains %v, want only the 3 volume dirs", names)
	}

	if layout.ParitySizes[0]+layout.ParitySizes[1]+layout.ParitySizes[2] == 0 {
		t.Error("no parity bytes recorded in layout")
	}
}

func TestAssemblerRunCompresses(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	writeInputFiles(t, inDir, map[string]int64{"a.dat": 500, "b.dat": 500, "c.dat": 500})

	archiver := &mockArchiver{}
	opts := defaultOptions(inDir, outDir)
	opts.Compress = true
	opts.Password = "secret"

	assembler := service.NewAssembler(archiver, newMockEngine(), &mockChecksums{})
	if _, err := assembler.Run(context.Background(), opts); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(archiver.calls) != 3 {
		t.Fatalf("archiver called %d times, want 3", len(archiver.calls))
	}
	for _, outfile := range archiver.calls {
		if !strings.HasSuffix(outfile, ".7z") {
			t.Errorf("archive output %q does not end in .7z", outfile)
		}
	}
}

func TestAssemblerRunValidation(t *testing.T) {
	tests := []struct {
		name    string
		sizes   map[string]int64
		mutate  func(*service.Options)
		wantErr error
	}{
		{
			name:    "empty input directory",
			sizes:   map[string]int64{},
			wantErr: errs.ErrNoInputFiles,
		},
		{
			name:  "uneven sizes rejected",
			sizes: map[string]int64{"big": 1000, "s1": 1, "s2": 1},
			mutate: func(o *service.Options) {
				o.Redundancy = big.NewRat(1, 10)
			},
			wantErr: errs.ErrUnevenVolumes,
		},
		{
			name:  "redundancy above capacity",
			sizes: map[string]int64{"a": 10, "b": 10, "c": 10},
			mutate: func(o *service.Options) {
				o.Redundancy = big.NewRat(5, 2)
			},
			wantErr: errs.ErrRedundancyTooHigh,
		},
		{
			name:  "block geometry conflict",
			sizes: map[string]int64{"a": 10, "b": 10, "c": 10},
			mutate: func(o *service.Options) {
				o.BlockSize = 4096
				o.NumBlocks = 100
			},
			wantErr: errs.ErrBlockParamConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inDir := t.TempDir()
			outDir := t.TempDir()
			writeInputFiles(t, inDir, tt.sizes)

			opts := defaultOptions(inDir, outDir)
			if tt.mutate != nil {
				tt.mutate(&opts)
			}

			assembler := service.NewAssembler(&mockArchiver{}, newMockEngine(), &mockChecksums{})
			_, err := assembler.Run(context.Background(), opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAssemblerRunForceOverridesUnevenness(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	writeInputFiles(t, inDir, map[string]int64{"big": 1000, "s1": 1, "s2": 1})

	opts := defaultOptions(inDir, outDir)
	opts.Redundancy = big.NewRat(1, 10)
	opts.Force = true

	assembler := service.NewAssembler(&mockArchiver{}, newMockEngine(), &mockChecksums{})
	if _, err := assembler.Run(context.Background(), opts); err != nil {
		t.Fatalf("Run() with force error = %v", err)
	}
}

func TestAssemblerRunRejectsExistingParityFiles(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	writeInputFiles(t, inDir, map[string]int64{"a.dat": 10, "b.dat": 10, "old.par2": 10})

	assembler := service.NewAssembler(&mockArchiver{}, newMockEngine(), &mockChecksums{})
	_, err := assembler.Run(context.Background(), defaultOptions(inDir, outDir))
	if err == nil || !strings.Contains(err.Error(), "parity file") {
		t.Errorf("Run() error = %v, want existing-parity rejection", err)
	}
}

func TestAssemblerVerifyFailureAborts(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	sizes := make(map[string]int64)
	for i := 0; i < 6; i++ {
		sizes[fmt.Sprintf("f%d", i)] = 100
	}
	writeInputFiles(t, inDir, sizes)

	engine := newMockEngine()
	engine.verifyResult = parity.VerifyFailed

	assembler := service.NewAssembler(&mockArchiver{}, engine, &mockChecksums{})
	_, err := assembler.Run(context.Background(), defaultOptions(inDir, outDir))
	if !errors.Is(err, errs.ErrVerifyFailed) {
		t.Fatalf("Run() error = %v, want %v", err, errs.ErrVerifyFailed)
	}

	// The failed sweep's scratch directory must still be removed.
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "verify_") {
			t.Errorf("scratch directory %s left behind", entry.Name())
		}
	}
}
