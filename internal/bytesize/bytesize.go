// Package bytesize implements human-friendly byte quantities for
// configuration values.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ByteSize is a byte count that reads naturally in config files. It
// accepts decimal units (KB, MB, GB, TB), binary units (KiB, MiB, GiB,
// TiB), single-letter shorthands of either family, or a bare number of
// bytes.
type ByteSize uint64

// Decimal (SI) units.
const (
	B  ByteSize = 1
	KB          = 1000 * B
	MB          = 1000 * KB
	GB          = 1000 * MB
	TB          = 1000 * GB
)

// Binary (IEC) units.
const (
	KiB = 1024 * B
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

// ParseByteSize converts strings like "512", "100MB", "1.5GiB" or
// "2 Gi" into a ByteSize. Unit suffixes are case-insensitive and
// whitespace around the number and the suffix is ignored.
func ParseByteSize(s string) (ByteSize, error) {
	trimmed := strings.TrimSpace(s)

	// Split the numeric prefix from the unit suffix.
	i := 0
	for i < len(trimmed) && (trimmed[i] == '.' || (trimmed[i] >= '0' && trimmed[i] <= '9')) {
		i++
	}
	num := trimmed[:i]
	unit := strings.TrimSpace(trimmed[i:])

	if num == "" {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}

	factor, ok := unitFactor(unit)
	if !ok {
		return 0, fmt.Errorf("unknown unit %q in byte size %q", unit, s)
	}

	// Integers multiply exactly. Only fractional values go through
	// float64, which cannot hold counts above 8PiB without rounding.
	if n, err := strconv.ParseUint(num, 10, 64); err == nil {
		return ByteSize(n) * factor, nil
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}
	return ByteSize(f * float64(factor)), nil
}

func unitFactor(unit string) (ByteSize, bool) {
	switch strings.ToLower(unit) {
	case "", "b":
		return B, true
	case "k", "kb":
		return KB, true
	case "m", "mb":
		return MB, true
	case "g", "gb":
		return GB, true
	case "t", "tb":
		return TB, true
	case "ki", "kib":
		return KiB, true
	case "mi", "mib":
		return MiB, true
	case "gi", "gib":
		return GiB, true
	case "ti", "tib":
		return TiB, true
	}
	return 0, false
}

// UnmarshalText lets ByteSize fields decode from flags and
// environment variables.
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// UnmarshalYAML accepts any spelling ParseByteSize understands.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseByteSize(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*b = parsed
	return nil
}

// MarshalYAML writes round numbers with their unit ("1GB", "512MiB")
// and everything else as a plain byte count, so generated config
// files stay readable.
func (b ByteSize) MarshalYAML() (any, error) {
	if b == 0 {
		return uint64(0), nil
	}
	for _, u := range yamlUnits {
		if b >= u.size && b%u.size == 0 {
			return fmt.Sprintf("%d%s", b/u.size, u.name), nil
		}
	}
	return uint64(b), nil
}

// String renders the size with the largest binary unit it fills,
// e.g. "1.50GiB" or "512B".
func (b ByteSize) String() string {
	for _, u := range displayUnits {
		if b >= u.size {
			return fmt.Sprintf("%.2f%s", float64(b)/float64(u.size), u.name)
		}
	}
	return fmt.Sprintf("%dB", b)
}

// Uint64 returns the size as a plain byte count.
func (b ByteSize) Uint64() uint64 {
	return uint64(b)
}

// Int64 returns the size for APIs that take signed byte counts.
func (b ByteSize) Int64() int64 {
	return int64(b)
}

var displayUnits = []struct {
	size ByteSize
	name string
}{
	{TiB, "TiB"},
	{GiB, "GiB"},
	{MiB, "MiB"},
	{KiB, "KiB"},
}

// yamlUnits interleaves both families largest-first so MarshalYAML
// picks the biggest unit that divides the value evenly.
var yamlUnits = []struct {
	size ByteSize
	name string
}{
	{TiB, "TiB"},
	{TB, "TB"},
	{GiB, "GiB"},
	{GB, "GB"},
	{MiB, "MiB"},
	{MB, "MB"},
	{KiB, "KiB"},
	{KB, "KB"},
}
