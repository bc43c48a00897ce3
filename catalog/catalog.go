package catalog

import (
	"fmt"
	"sort"
)

// Variant names a target chip family.
type Variant string

// Known variants. Only ESP32-C6 carries images in the default layouts.
const (
	VariantESP32C2 Variant = "ESP32-C2"
	VariantESP32C3 Variant = "ESP32-C3"
	VariantESP32C6 Variant = "ESP32-C6"
)

// Record is one firmware image and its destination in flash.
type Record struct {
	// Name is used in status output, e.g. "bootloader"
	Name string

	// Address is the flash offset the image is written to
	Address uint32

	// Data is the image content
	Data []byte

	// Length is the image size in bytes and must equal len(Data)
	Length uint32
}

// NewRecord builds a record with Length taken from data.
func NewRecord(name string, address uint32, data []byte) Record {
	return Record{
		Name:    name,
		Address: address,
		Data:    data,
		Length:  uint32(len(data)),
	}
}

// End returns the first address past the image.
func (r Record) End() uint64 {
	return uint64(r.Address) + uint64(r.Length)
}

func (r Record) String() string {
	return fmt.Sprintf("%s@0x%X (%d bytes)", r.Name, r.Address, r.Length)
}

// ImageSet is the ordered list of images for one variant.
type ImageSet []Record

// TotalSize returns the sum of all image lengths.
func (s ImageSet) TotalSize() int {
	total := 0
	for _, r := range s {
		total += int(r.Length)
	}
	return total
}

// Validate checks record lengths and that no two images overlap.
func (s ImageSet) Validate() error {
	for _, r := range s {
		if int(r.Length) != len(r.Data) {
			return &LengthMismatchError{Name: r.Name, Length: r.Length, Actual: len(r.Data)}
		}
	}

	sorted := make(ImageSet, len(s))
	copy(sorted, s)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Address < sorted[j].Address })
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if uint64(cur.Address) < prev.End() {
			return &OverlapError{First: prev, Second: cur}
		}
	}
	return nil
}

// Catalog is a read-only mapping from variant to image set.
// It is safe for concurrent use.
type Catalog struct {
	sets map[Variant]ImageSet
}

// New builds a catalog after validating every image set. Variants mapped to
// an empty set are kept as reserved slots.
func New(sets map[Variant]ImageSet) (*Catalog, error) {
	c := &Catalog{sets: make(map[Variant]ImageSet, len(sets))}
	for v, set := range sets {
		if err := set.Validate(); err != nil {
			return nil, fmt.Errorf("variant %s: %w", v, err)
		}
		cp := make(ImageSet, len(set))
		copy(cp, set)
		c.sets[v] = cp
	}
	return c, nil
}

// Lookup returns the images for v in flash order. Unknown and reserved
// variants yield an empty set, which callers treat as nothing to flash.
func (c *Catalog) Lookup(v Variant) ImageSet {
	set := c.sets[v]
	if len(set) == 0 {
		return ImageSet{}
	}
	cp := make(ImageSet, len(set))
	copy(cp, set)
	return cp
}

// Has reports whether v has a slot in the catalog, populated or reserved.
func (c *Catalog) Has(v Variant) bool {
	_, ok := c.sets[v]
	return ok
}

// Variants returns every variant with a slot, sorted by name.
func (c *Catalog) Variants() []Variant {
	out := make([]Variant, 0, len(c.sets))
	for v := range c.sets {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
