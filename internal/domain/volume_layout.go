package domain

// Item - one input file queued for distribution; measured once, never mutated
type Item struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// VolumeLayout - the produced set of volume directories
type VolumeLayout struct {
	Dirs         []string `json:"dirs"`
	VolumeSizes  []int64  `json:"volume_sizes"`  // Total bytes per volume directory
	ParitySizes  []int64  `json:"parity_sizes"`  // Bytes of recovery data per volume
	MetadataFile string   `json:"metadata_file"` // Name of the shared parity metadata file
}
