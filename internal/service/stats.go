package service

import (
	"fmt"
	"os"
	"strings"

	"github.com/zzenonn/volpack/internal/domain"
	"github.com/zzenonn/volpack/internal/parity"
)

// collectSizes fills in the per-volume total and parity byte counts by
// scanning the finished volume directories.
func collectSizes(layout *domain.VolumeLayout, engine parity.Engine) error {
	layout.VolumeSizes = make([]int64, len(layout.Dirs))
	layout.ParitySizes = make([]int64, len(layout.Dirs))

	for i, dir := range layout.Dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil {
				return err
			}
			layout.VolumeSizes[i] += info.Size()
			if engine.IsParityFile(entry.Name()) {
				layout.ParitySizes[i] += info.Size()
			}
		}
	}
	return nil
}

// BarChart renders one '#'-bar line per value, scaled to width characters,
// with the raw value appended.
func BarChart(values []int64, width int) []string {
	var max int64
	for _, v := range values {
		if v > max {
			max = v
		}
	}

	lines := make([]string, len(values))
	for i, v := range values {
		filled := 0
		if max > 0 {
			filled = int(float64(v)*float64(width)/float64(max) + 0.5)
		}
		lines[i] = fmt.Sprintf("%s%s %d", strings.Repeat("#", filled), strings.Repeat(" ", width-filled), v)
	}
	return lines
}
