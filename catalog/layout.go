package catalog

import (
	"fmt"
	"io/fs"
	"path"
)

// Flash offsets of the ESP-AT v4 images for ESP32-C6.
const (
	BootloaderAddress           = 0x0
	PartitionTableAddress       = 0x8000
	OTADataInitialAddress       = 0xd000
	ATCustomizeAddress          = 0x1e000
	CustomizedPartitionsAddress = 0x1f000
	ESPATAddress                = 0x60000
)

// Slot describes where one image comes from and where it goes.
type Slot struct {
	// Name is used in status output
	Name string

	// File is the image path relative to the layout directory
	File string

	// Address is the flash offset
	Address uint32
}

// Layout is the declarative image table of one variant.
type Layout struct {
	// Dir is the directory holding the variant's images, relative to the catalog root
	Dir string

	// Slots lists the images in flash order; empty for reserved variants
	Slots []Slot
}

// DefaultLayouts returns the compiled-in image table.
func DefaultLayouts() map[Variant]Layout {
	return map[Variant]Layout{
		VariantESP32C6: {
			Dir: "esp32c6",
			Slots: []Slot{
				{Name: "bootloader", File: "bootloader/bootloader.bin", Address: BootloaderAddress},
				{Name: "partition table", File: "partition_table/partition-table.bin", Address: PartitionTableAddress},
				{Name: "initial OTA data", File: "ota_data_initial.bin", Address: OTADataInitialAddress},
				{Name: "AT custom data", File: "at_customize.bin", Address: ATCustomizeAddress},
				{Name: "manufacturer non volatile data", File: "customized_partitions/mfg_nvs.bin", Address: CustomizedPartitionsAddress},
				{Name: "esp-at stack", File: "esp-at.bin", Address: ESPATAddress},
			},
		},
		VariantESP32C2: {Dir: "esp32c2"},
		VariantESP32C3: {Dir: "esp32c3"},
	}
}

// Load reads every image named by layouts from fsys and builds a catalog.
// Files are read once; the catalog holds the bytes for the process lifetime.
func Load(fsys fs.FS, layouts map[Variant]Layout) (*Catalog, error) {
	sets := make(map[Variant]ImageSet, len(layouts))
	for v, layout := range layouts {
		set := make(ImageSet, 0, len(layout.Slots))
		for _, slot := range layout.Slots {
			name := path.Join(layout.Dir, slot.File)
			data, err := fs.ReadFile(fsys, name)
			if err != nil {
				return nil, fmt.Errorf("variant %s: read %s: %w", v, name, err)
			}
			set = append(set, NewRecord(slot.Name, slot.Address, data))
		}
		sets[v] = set
	}
	return New(sets)
}
