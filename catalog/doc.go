// Package catalog maps target variants to the ordered set of firmware images
// that provisioning writes to them.
//
// # Data Model
//
// A Record is one image: a display name, the flash offset it belongs at and
// its bytes. An ImageSet is the ordered list of records for one Variant. The
// order matches the flash layout and drives the order of status output.
//
// Two invariants are checked whenever a Catalog is built:
//   - Length equals len(Data) for every record
//   - the [Address, Address+Length) ranges of one set are pairwise disjoint
//
// # Layouts
//
// Where the images live on disk is described declaratively by a Layout per
// variant. DefaultLayouts returns the compiled-in table: the six ESP-AT
// images for ESP32-C6, and reserved, empty slots for ESP32-C2 and ESP32-C3.
// Adding a variant is a data change:
//
//	layouts := catalog.DefaultLayouts()
//	layouts[catalog.VariantESP32C3] = catalog.Layout{Dir: "esp32c3", Slots: slots}
//	cat, err := catalog.Load(os.DirFS("./firmware"), layouts)
//
// # Manifests
//
// A layout can also be read from an ESP-IDF style flash_args file:
//
//	--flash_mode dio --flash_freq 80m --flash_size 4MB
//	0x0 bootloader/bootloader.bin
//	0x8000 partition_table/partition-table.bin
//	0x60000 esp-at.bin esp-at stack
//
// Use ParseManifest or ParseManifestFile to turn it into slots.
package catalog
