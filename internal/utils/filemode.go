package utils

import (
	"fmt"
	"regexp"
	"strconv"
)

var octalMode = regexp.MustCompile(`^[0-7]{3,4}$`)

// ParseFileMode converts an octal mode string such as "755" or "0644" into
// its permission bits. Only the low nine bits are kept.
func ParseFileMode(mode string) (uint16, error) {
	if !octalMode.MatchString(mode) {
		return 0, fmt.Errorf("invalid mode: '%s' (must be 3 or 4 octal digits)", mode)
	}
	v, err := strconv.ParseUint(mode, 8, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid mode: '%s': %w", mode, err)
	}
	return uint16(v) & 0o777, nil
}
