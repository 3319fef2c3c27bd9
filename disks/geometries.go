// Package disks holds named disk geometry presets -- (total blocks, block
// size, inode count) triples -- for the hosted tool's `format` command and
// for tests that want a named size class instead of three raw numbers.
//
// Grounded on dargueta-disko's disks package (GetPredefinedDiskGeometry),
// adapted from historical floppy-disk geometries to AIOS image presets and
// given a real embedded CSV so the lookup table is actually populated.
package disks

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/b3p3k0/AIOS/layout"
)

// Geometry is one named (total blocks, block size, inode count) preset.
type Geometry struct {
	Slug        string `csv:"slug"`
	Name        string `csv:"name"`
	TotalBlocks uint32 `csv:"total_blocks"`
	BlockSize   uint32 `csv:"block_size"`
	InodeCount  uint32 `csv:"inode_count"`
	Notes       string `csv:"notes"`
}

// TotalSizeBytes gives the minimum image file size for this geometry.
func (g Geometry) TotalSizeBytes() int64 {
	return int64(g.TotalBlocks) * int64(g.BlockSize)
}

//go:embed geometries.csv
var rawGeometriesCSV string

var presets map[string]Geometry

// Get looks up a preset geometry by slug (e.g. "default", "small", "large").
func Get(slug string) (Geometry, error) {
	geometry, ok := presets[slug]
	if !ok {
		return Geometry{}, fmt.Errorf("no predefined disk geometry exists with slug %q", slug)
	}
	return geometry, nil
}

// Slugs returns every known preset slug, for help text and flag validation.
func Slugs() []string {
	slugs := make([]string, 0, len(presets))
	for slug := range presets {
		slugs = append(slugs, slug)
	}
	return slugs
}

func init() {
	presets = make(map[string]Geometry)
	reader := strings.NewReader(rawGeometriesCSV)
	err := gocsv.UnmarshalToCallback(reader, func(row Geometry) error {
		if _, exists := presets[row.Slug]; exists {
			return fmt.Errorf("duplicate definition for disk geometry %q", row.Slug)
		}
		presets[row.Slug] = row
		return nil
	})
	if err != nil && err != io.EOF {
		panic(err)
	}
}

// Default is the geometry the spec's own worked examples use: 1024 blocks
// of 4096 bytes with 256 inodes.
var Default = Geometry{
	Slug:        "default",
	Name:        "Default AIOS image",
	TotalBlocks: 1024,
	BlockSize:   layout.DefaultBlockSize,
	InodeCount:  256,
}
