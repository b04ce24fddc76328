package util

import "fmt"

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatSize returns a size in bytes as a human-readable string with two
// decimals, e.g. "1.50 KB". Units are powers of 1024 and stop at GB.
func FormatSize(size int64) string {
	f := float64(size)
	unit := 0
	for f >= 1024 && unit < len(sizeUnits)-1 {
		f /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", f, sizeUnits[unit])
}
