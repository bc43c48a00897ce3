package catalog

import "fmt"

// OverlapError indicates that two images of one set share flash addresses.
type OverlapError struct {
	First  Record
	Second Record
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("image %q [0x%X, 0x%X) overlaps image %q at 0x%X",
		e.First.Name, e.First.Address, e.First.End(), e.Second.Name, e.Second.Address)
}

// LengthMismatchError indicates a record whose Length disagrees with its data.
type LengthMismatchError struct {
	Name   string
	Length uint32
	Actual int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("image %q: length %d does not match data size %d", e.Name, e.Length, e.Actual)
}
