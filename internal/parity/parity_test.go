package parity

import (
	"reflect"
	"testing"
)

func TestBuildCreateArgs(t *testing.T) {
	tests := []struct {
		name   string
		params CreateParams
		files  []string
		want   []string
	}{
		{
			name: "block size with memory limit",
			params: CreateParams{
				MetadataName:   "backup.par2",
				BlockSize:      4096,
				RecoveryBlocks: 12,
				MemoryMB:       256,
			},
			files: []string{"a.7z", "b.7z"},
			want:  []string{"create", "-s4096", "-c12", "-m256", "--", "backup.par2", "a.7z", "b.7z"},
		},
		{
			name: "explicit block count",
			params: CreateParams{
				MetadataName:   "backup.par2",
				NumBlocks:      2000,
				RecoveryBlocks: 5,
			},
			files: []string{"x"},
			want:  []string{"create", "-b2000", "-c5", "--", "backup.par2", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildCreateArgs(tt.params, tt.files)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildCreateArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreateParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  CreateParams
		wantErr bool
	}{
		{name: "valid", params: CreateParams{BlockSize: 100, RecoveryBlocks: 1}, wantErr: false},
		{name: "both geometries set", params: CreateParams{BlockSize: 100, NumBlocks: 10, RecoveryBlocks: 1}, wantErr: true},
		{name: "zero recovery blocks", params: CreateParams{BlockSize: 100}, wantErr: true},
		{name: "recovery blocks at cap", params: CreateParams{BlockSize: 100, RecoveryBlocks: 20000}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.params.validate(); (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngineNames(t *testing.T) {
	par2 := NewPar2()
	if got := par2.MetadataName("backup"); got != "backup.par2" {
		t.Errorf("Par2 metadata name = %q", got)
	}
	if !par2.IsParityFile("backup.vol000+01.par2") || par2.IsParityFile("photo.jpg") {
		t.Error("Par2.IsParityFile misclassifies")
	}

	rs := NewReedSolomon()
	if got := rs.MetadataName("backup"); got != "backup.rsmeta" {
		t.Errorf("ReedSolomon metadata name = %q", got)
	}
	if !rs.IsParityFile("backup.vol003.rsrec") || !rs.IsParityFile("backup.rsmeta") || rs.IsParityFile("photo.jpg") {
		t.Error("ReedSolomon.IsParityFile misclassifies")
	}
}
