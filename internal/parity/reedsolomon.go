package parity

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/crc64"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/reedsolomon"
	log "github.com/sirupsen/logrus"
)

const (
	metaSuffix     = ".rsmeta"
	recoverySuffix = ".rsrec"

	// recovery blocks are grouped into part files so the packer can spread
	// them across volumes like any other file
	blocksPerRecoveryFile = 200
)

// ReedSolomon is the embedded parity engine. It cuts the protected files
// into fixed-size blocks, encodes recovery blocks in-process and records a
// CRC64 digest per block in the metadata file. The whole data set is held in
// memory during Create, so the par2 engine is the better choice for sets
// that approach the size of RAM.
type ReedSolomon struct{}

func NewReedSolomon() ReedSolomon { return ReedSolomon{} }

func (ReedSolomon) MetadataName(base string) string { return base + metaSuffix }

func (ReedSolomon) IsParityFile(name string) bool {
	return strings.HasSuffix(name, metaSuffix) || strings.HasSuffix(name, recoverySuffix)
}

type rsFileEntry struct {
	Name        string   `json:"name"`
	Size        int64    `json:"size"`
	BlockHashes []string `json:"block_hashes"`
}

type rsMetadata struct {
	BlockSize      int64         `json:"block_size"`
	ShardSize      int           `json:"shard_size"`
	RecoveryBlocks int           `json:"recovery_blocks"`
	Files          []rsFileEntry `json:"files"`
	RecoveryFiles  []rsFileEntry `json:"recovery_files"`
}

var crcTable = crc64.MakeTable(crc64.ISO)

func blockHash(b []byte) string {
	return fmt.Sprintf("%016x", crc64.Checksum(b, crcTable))
}

func (e ReedSolomon) Create(ctx context.Context, dir string, params CreateParams) error {
	if err := params.validate(); err != nil {
		return err
	}

	names, totalSize, err := e.dataFiles(dir)
	if err != nil {
		return err
	}

	blockSize := params.BlockSize
	if blockSize == 0 {
		if params.NumBlocks <= 0 {
			return fmt.Errorf("either a block size or a block count is required")
		}
		blockSize = (totalSize + int64(params.NumBlocks) - 1) / int64(params.NumBlocks)
		if rem := blockSize % 4; rem != 0 {
			blockSize += 4 - rem
		}
	}

	// The GF16 backend used beyond 256 shards needs 64-byte aligned shards.
	shardSize := int((blockSize + 63) / 64 * 64)

	meta := rsMetadata{
		BlockSize:      blockSize,
		ShardSize:      shardSize,
		RecoveryBlocks: params.RecoveryBlocks,
	}

	var shards [][]byte
	for _, name := range names {
		entry, fileShards, err := splitFile(filepath.Join(dir, name), blockSize, shardSize)
		if err != nil {
			return err
		}
		entry.Name = name
		meta.Files = append(meta.Files, entry)
		shards = append(shards, fileShards...)
	}

	dataBlocks := len(shards)
	enc, err := reedsolomon.New(dataBlocks, params.RecoveryBlocks)
	if err != nil {
		return fmt.Errorf("reed-solomon encoder for %d+%d blocks: %w", dataBlocks, params.RecoveryBlocks, err)
	}
	for i := 0; i < params.RecoveryBlocks; i++ {
		shards = append(shards, make([]byte, shardSize))
	}
	if err := enc.Encode(shards); err != nil {
		return fmt.Errorf("encoding recovery blocks: %w", err)
	}

	log.Debugf("encoded %d recovery blocks over %d data blocks (block size %d)",
		params.RecoveryBlocks, dataBlocks, blockSize)

	base := strings.TrimSuffix(params.MetadataName, metaSuffix)
	recovery := shards[dataBlocks:]
	for part := 0; len(recovery) > 0; part++ {
		n := blocksPerRecoveryFile
		if n > len(recovery) {
			n = len(recovery)
		}
		entry, err := writeRecoveryFile(dir, fmt.Sprintf("%s.vol%03d%s", base, part, recoverySuffix), recovery[:n])
		if err != nil {
			return err
		}
		meta.RecoveryFiles = append(meta.RecoveryFiles, entry)
		recovery = recovery[n:]
	}

	encoded, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, params.MetadataName), encoded, 0o644)
}

func (e ReedSolomon) Verify(ctx context.Context, dir, metadataName string) (VerifyResult, error) {
	raw, err := os.ReadFile(filepath.Join(dir, metadataName))
	if err != nil {
		return VerifyFailed, fmt.Errorf("reading parity metadata: %w", err)
	}
	var meta rsMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return VerifyFailed, fmt.Errorf("parsing parity metadata: %w", err)
	}

	damaged := 0
	for _, entry := range meta.Files {
		bad, err := countDamagedBlocks(filepath.Join(dir, entry.Name), entry, meta.BlockSize)
		if err != nil {
			return VerifyFailed, err
		}
		if bad > 0 {
			log.Debugf("%s: %d of %d blocks damaged or missing", entry.Name, bad, len(entry.BlockHashes))
		}
		damaged += bad
	}

	intactRecovery := 0
	for _, entry := range meta.RecoveryFiles {
		bad, err := countDamagedBlocks(filepath.Join(dir, entry.Name), entry, int64(meta.ShardSize))
		if err != nil {
			return VerifyFailed, err
		}
		intactRecovery += len(entry.BlockHashes) - bad
	}

	switch {
	case damaged == 0:
		return VerifyOKNoRepair, nil
	case damaged <= intactRecovery:
		return VerifyOKRepairable, nil
	default:
		return VerifyFailed, nil
	}
}

// dataFiles lists the regular files to protect, excluding any previous
// recovery set, together with their total size.
func (e ReedSolomon) dataFiles(dir string) ([]string, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}

	var names []string
	var total int64
	for _, entry := range entries {
		if !entry.Type().IsRegular() || e.IsParityFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, 0, err
		}
		names = append(names, entry.Name())
		total += info.Size()
	}
	sort.Strings(names)
	return names, total, nil
}

// splitFile reads path as blockSize-sized blocks, hashing the raw bytes of
// each and returning shardSize-padded copies for encoding.
func splitFile(path string, blockSize int64, shardSize int) (rsFileEntry, [][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return rsFileEntry{}, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return rsFileEntry{}, nil, err
	}
	entry := rsFileEntry{Size: info.Size()}

	var shards [][]byte
	buf := make([]byte, blockSize)
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			entry.BlockHashes = append(entry.BlockHashes, blockHash(buf[:n]))
			shard := make([]byte, shardSize)
			copy(shard, buf[:n])
			shards = append(shards, shard)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return rsFileEntry{}, nil, err
		}
	}
	return entry, shards, nil
}

func writeRecoveryFile(dir, name string, blocks [][]byte) (rsFileEntry, error) {
	entry := rsFileEntry{Name: name}

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return entry, err
	}
	defer f.Close()

	for _, block := range blocks {
		entry.BlockHashes = append(entry.BlockHashes, blockHash(block))
		if _, err := f.Write(block); err != nil {
			return entry, err
		}
		entry.Size += int64(len(block))
	}
	return entry, f.Close()
}

// countDamagedBlocks re-reads a file in blockSize steps and counts blocks
// whose digest no longer matches the recorded one. A missing file counts as
// fully damaged.
func countDamagedBlocks(path string, entry rsFileEntry, blockSize int64) (int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return len(entry.BlockHashes), nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	bad := 0
	buf := make([]byte, blockSize)
	for _, want := range entry.BlockHashes {
		n, err := io.ReadFull(f, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, err
		}
		if n == 0 || blockHash(buf[:n]) != want {
			bad++
		}
	}
	return bad, nil
}
