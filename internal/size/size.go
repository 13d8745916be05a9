// Package size converts between byte counts and the human-readable sizes used by
// every size-related option and every formatted output field.
//
// All units are binary (1024-based) and spelled B, KB, MB, GB, TB, PB and EB.
package size

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
)

// ErrInvalid is returned when a size string cannot be parsed.
var ErrInvalid = errors.New("invalid size")

// iecUnits maps accepted unit spellings to the IEC names understood by humanize.
//
//nolint:gochecknoglobals // Lookup table
var iecUnits = map[string]string{
	"":    "B",
	"B":   "B",
	"K":   "KiB",
	"KB":  "KiB",
	"KIB": "KiB",
	"M":   "MiB",
	"MB":  "MiB",
	"MIB": "MiB",
	"G":   "GiB",
	"GB":  "GiB",
	"GIB": "GiB",
	"T":   "TiB",
	"TB":  "TiB",
	"TIB": "TiB",
	"P":   "PiB",
	"PB":  "PiB",
	"PIB": "PiB",
	"E":   "EiB",
	"EB":  "EiB",
	"EIB": "EiB",
}

// Format renders a byte count such as 1536 as "1.5 KB".
func Format(bytes int64) string {
	if bytes < 0 {
		// Negate in unsigned arithmetic: -math.MinInt64 does not fit an int64.
		return "-" + formatUnsigned(uint64(-(bytes+1))+1)
	}

	return formatUnsigned(uint64(bytes))
}

func formatUnsigned(bytes uint64) string {
	return strings.Replace(humanize.IBytes(bytes), "iB", "B", 1)
}

// Parse converts strings like "10MB", "1.5GB" or "4096" into a byte count.
// A bare number is taken as bytes. Units are case-insensitive and always binary.
func Parse(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.HasPrefix(trimmed, "-") {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}

	number, unit := trimmed, ""
	if i := strings.IndexFunc(trimmed, unicode.IsLetter); i >= 0 {
		number, unit = strings.TrimSpace(trimmed[:i]), strings.ToUpper(strings.TrimSpace(trimmed[i:]))
	}

	iec, ok := iecUnits[unit]
	if !ok || number == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}

	bytes, err := humanize.ParseBytes(number + " " + iec)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalid, s, err)
	}

	if bytes > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalid, s)
	}

	return int64(bytes), nil
}
