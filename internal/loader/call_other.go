//go:build !(linux && 386)

package loader

import "fmt"

// callEntry has no portable implementation; Run already fails before ever
// reaching this on unsupported platforms.
func callEntry(addr uintptr) (int32, error) {
	return 0, fmt.Errorf("callEntry: unsupported on this platform")
}
