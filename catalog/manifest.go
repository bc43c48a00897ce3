package catalog

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"
)

// ParseManifestFile parses a flash_args style manifest from fsys.
func ParseManifestFile(fsys fs.FS, name string) ([]Slot, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseManifest(f)
}

// ParseManifest parses a flash_args style manifest.
//
// Each image line is
//
//	<offset> <file> [display name]
//
// where offset is decimal or 0x-prefixed hex. Blank lines, lines starting
// with '#' and option lines starting with "--" are skipped. Without a display
// name the file's base name minus extension is used.
//
// Example:
//
//	slots, err := catalog.ParseManifest(strings.NewReader("0x8000 partition-table.bin"))
func ParseManifest(r io.Reader) ([]Slot, error) {
	scanner := bufio.NewScanner(r)

	var slots []Slot
	seen := make(map[uint32]int)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "--") {
			continue
		}

		slot, err := parseSlot(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if prev, ok := seen[slot.Address]; ok {
			return nil, fmt.Errorf("line %d: offset 0x%X already used on line %d", lineNum, slot.Address, prev)
		}
		seen[slot.Address] = lineNum
		slots = append(slots, slot)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	if len(slots) == 0 {
		return nil, fmt.Errorf("no images found in manifest")
	}

	return slots, nil
}

// parseSlot parses one "<offset> <file> [name]" line.
func parseSlot(line string) (Slot, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Slot{}, fmt.Errorf("expected \"<offset> <file>\", got %q", line)
	}

	addr, err := strconv.ParseUint(fields[0], 0, 32)
	if err != nil {
		return Slot{}, fmt.Errorf("invalid offset %q: %w", fields[0], err)
	}

	file := fields[1]
	name := strings.Join(fields[2:], " ")
	if name == "" {
		base := path.Base(file)
		name = strings.TrimSuffix(base, path.Ext(base))
	}

	return Slot{
		Name:    name,
		File:    file,
		Address: uint32(addr),
	}, nil
}
