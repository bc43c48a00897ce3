package catalog

import (
	"bytes"
	"errors"
	"testing"
	"testing/fstest"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		sets    map[Variant]ImageSet
		wantErr interface{}
	}{
		{
			name: "disjoint images",
			sets: map[Variant]ImageSet{
				VariantESP32C6: {
					NewRecord("bootloader", 0x0, make([]byte, 0x100)),
					NewRecord("partition table", 0x8000, make([]byte, 0xC00)),
				},
			},
		},
		{
			name: "adjacent images",
			sets: map[Variant]ImageSet{
				VariantESP32C6: {
					NewRecord("a", 0x1000, make([]byte, 0x1000)),
					NewRecord("b", 0x2000, make([]byte, 0x10)),
				},
			},
		},
		{
			name: "reserved variant",
			sets: map[Variant]ImageSet{
				VariantESP32C3: nil,
			},
		},
		{
			name: "overlapping images",
			sets: map[Variant]ImageSet{
				VariantESP32C6: {
					NewRecord("nvs", 0x1f000, make([]byte, 0x2000)),
					NewRecord("custom", 0x1e000, make([]byte, 0x1001)),
				},
			},
			wantErr: &OverlapError{},
		},
		{
			name: "length mismatch",
			sets: map[Variant]ImageSet{
				VariantESP32C6: {
					{Name: "bootloader", Address: 0, Data: []byte{1, 2, 3}, Length: 4},
				},
			},
			wantErr: &LengthMismatchError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.sets)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			switch tt.wantErr.(type) {
			case *OverlapError:
				var oe *OverlapError
				if !errors.As(err, &oe) {
					t.Errorf("error type = %T, want *OverlapError", err)
				}
			case *LengthMismatchError:
				var le *LengthMismatchError
				if !errors.As(err, &le) {
					t.Errorf("error type = %T, want *LengthMismatchError", err)
				}
			}
		})
	}
}

func TestLookup(t *testing.T) {
	set := ImageSet{
		NewRecord("bootloader", 0x0, []byte{0x01}),
		NewRecord("esp-at stack", 0x60000, []byte{0x02, 0x03}),
	}
	cat, err := New(map[Variant]ImageSet{
		VariantESP32C6: set,
		VariantESP32C3: {},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("populated variant keeps order", func(t *testing.T) {
		got := cat.Lookup(VariantESP32C6)
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].Name != "bootloader" || got[1].Name != "esp-at stack" {
			t.Errorf("order = %v", got)
		}
	})

	t.Run("reserved variant is empty", func(t *testing.T) {
		if got := cat.Lookup(VariantESP32C3); len(got) != 0 {
			t.Errorf("len = %d, want 0", len(got))
		}
		if !cat.Has(VariantESP32C3) {
			t.Error("Has(ESP32-C3) = false, want true")
		}
	})

	t.Run("unknown variant is empty", func(t *testing.T) {
		if got := cat.Lookup("ESP32-P4"); got == nil || len(got) != 0 {
			t.Errorf("Lookup() = %v, want empty non-nil set", got)
		}
		if cat.Has("ESP32-P4") {
			t.Error("Has(ESP32-P4) = true, want false")
		}
	})

	t.Run("lookup returns a copy", func(t *testing.T) {
		got := cat.Lookup(VariantESP32C6)
		got[0].Name = "changed"
		if cat.Lookup(VariantESP32C6)[0].Name != "bootloader" {
			t.Error("catalog mutated through Lookup result")
		}
	})

	t.Run("variants sorted", func(t *testing.T) {
		vs := cat.Variants()
		if len(vs) != 2 || vs[0] != VariantESP32C3 || vs[1] != VariantESP32C6 {
			t.Errorf("Variants() = %v", vs)
		}
	})
}

func TestDefaultLayoutsDisjoint(t *testing.T) {
	// Size each image up to the next slot so any overlap in the table shows.
	fsys := fstest.MapFS{}
	layouts := DefaultLayouts()
	for _, layout := range layouts {
		for i, slot := range layout.Slots {
			size := 0x1000
			if i+1 < len(layout.Slots) {
				size = int(layout.Slots[i+1].Address - slot.Address)
			}
			fsys[layout.Dir+"/"+slot.File] = &fstest.MapFile{Data: bytes.Repeat([]byte{0xA5}, size)}
		}
	}

	cat, err := Load(fsys, layouts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	set := cat.Lookup(VariantESP32C6)
	if len(set) != 6 {
		t.Fatalf("ESP32-C6 images = %d, want 6", len(set))
	}
	wantAddrs := []uint32{0x0, 0x8000, 0xd000, 0x1e000, 0x1f000, 0x60000}
	for i, r := range set {
		if r.Address != wantAddrs[i] {
			t.Errorf("image %d address = 0x%X, want 0x%X", i, r.Address, wantAddrs[i])
		}
		if int(r.Length) != len(r.Data) {
			t.Errorf("image %d length = %d, data = %d", i, r.Length, len(r.Data))
		}
	}
	for i := range set {
		for j := i + 1; j < len(set); j++ {
			a, b := set[i], set[j]
			if uint64(a.Address) < b.End() && uint64(b.Address) < a.End() {
				t.Errorf("%s overlaps %s", a, b)
			}
		}
	}

	if got := cat.Lookup(VariantESP32C2); len(got) != 0 {
		t.Errorf("ESP32-C2 images = %d, want 0", len(got))
	}
}

func TestLoadMissingFile(t *testing.T) {
	layouts := map[Variant]Layout{
		VariantESP32C6: {Dir: "esp32c6", Slots: []Slot{{Name: "bootloader", File: "bootloader.bin"}}},
	}
	if _, err := Load(fstest.MapFS{}, layouts); err == nil {
		t.Fatal("expected error, got nil")
	}
}
