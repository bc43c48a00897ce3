package catalog

import (
	"reflect"
	"strings"
	"testing"
	"testing/fstest"
)

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Slot
		wantErr bool
		errMsg  string
	}{
		{
			name: "esp-idf flash_args",
			input: "--flash_mode dio --flash_freq 80m --flash_size 4MB\n" +
				"0x0 bootloader/bootloader.bin\n" +
				"0x8000 partition_table/partition-table.bin\n" +
				"0x60000 esp-at.bin\n",
			want: []Slot{
				{Name: "bootloader", File: "bootloader/bootloader.bin", Address: 0x0},
				{Name: "partition-table", File: "partition_table/partition-table.bin", Address: 0x8000},
				{Name: "esp-at", File: "esp-at.bin", Address: 0x60000},
			},
		},
		{
			name: "display names and comments",
			input: "# ESP-AT v4\n" +
				"\n" +
				"0xd000 ota_data_initial.bin initial OTA data\n" +
				"4096 nvs.bin\n",
			want: []Slot{
				{Name: "initial OTA data", File: "ota_data_initial.bin", Address: 0xd000},
				{Name: "nvs", File: "nvs.bin", Address: 4096},
			},
		},
		{
			name:    "missing file",
			input:   "0x8000\n",
			wantErr: true,
			errMsg:  "line 1",
		},
		{
			name:    "bad offset",
			input:   "0x0 a.bin\nzz b.bin\n",
			wantErr: true,
			errMsg:  "line 2",
		},
		{
			name:    "duplicate offset",
			input:   "0x8000 a.bin\n0x8000 b.bin\n",
			wantErr: true,
			errMsg:  "already used on line 1",
		},
		{
			name:    "offset too large",
			input:   "0x100000000 a.bin\n",
			wantErr: true,
			errMsg:  "invalid offset",
		},
		{
			name:    "no images",
			input:   "--flash_mode dio\n# nothing\n",
			wantErr: true,
			errMsg:  "no images",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseManifest(strings.NewReader(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errMsg)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error = %v, want substring %q", err, tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseManifest() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseManifestFile(t *testing.T) {
	fsys := fstest.MapFS{
		"esp32c6/flash_args": &fstest.MapFile{Data: []byte("0x0 bootloader.bin\n")},
	}

	slots, err := ParseManifestFile(fsys, "esp32c6/flash_args")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 1 || slots[0].File != "bootloader.bin" {
		t.Errorf("slots = %+v", slots)
	}

	if _, err := ParseManifestFile(fsys, "missing"); err == nil {
		t.Error("expected error for missing manifest")
	}
}
