// Package workload - Matrix-multiplication workload descriptors and their numeric precisions.
package workload

import (
	"strconv"
	"strings"
)

// Precision represents the numeric kind of the A and B operands.
type Precision int

// Precision constants are the supported operand precisions. The integer value is the
// selector accepted on the command line.
const (
	PrecisionINT8 Precision = iota
	PrecisionFP16
	PrecisionINT4
)

// DefaultPrecision is used whenever a selector cannot be parsed.
const DefaultPrecision = PrecisionINT8

type precisionInfo struct {
	name        string
	output      string
	elementBits int
	outputBytes int
	alignment   int
	peakGOPS    float64
}

var precisions = [...]precisionInfo{
	PrecisionINT8: {name: "INT8", output: "INT32", elementBits: 8, outputBytes: 4, alignment: 32, peakGOPS: 1000},
	PrecisionFP16: {name: "FP16", output: "FP32", elementBits: 16, outputBytes: 4, alignment: 16, peakGOPS: 500},
	PrecisionINT4: {name: "INT4", output: "INT16", elementBits: 4, outputBytes: 2, alignment: 64, peakGOPS: 2000},
}

// Precisions lists every supported precision in selector order.
func Precisions() []Precision {
	return []Precision{PrecisionINT8, PrecisionFP16, PrecisionINT4}
}

// Valid reports whether p is one of the supported precisions.
func (p Precision) Valid() bool {
	return p >= 0 && int(p) < len(precisions)
}

func (p Precision) info() precisionInfo {
	if !p.Valid() {
		return precisions[DefaultPrecision]
	}
	return precisions[p]
}

// String returns the precision name, e.g. "INT8".
func (p Precision) String() string {
	if !p.Valid() {
		return "Precision(" + strconv.Itoa(int(p)) + ")"
	}
	return precisions[p].name
}

// OutputType returns the name of the accumulator type written to the C operand.
func (p Precision) OutputType() string { return p.info().output }

// ElementBits returns the storage width of one A/B element.
func (p Precision) ElementBits() int { return p.info().elementBits }

// OutputBytes returns the storage width of one C element.
func (p Precision) OutputBytes() int { return p.info().outputBytes }

// Alignment returns the byte alignment the device requires of operand buffers.
func (p Precision) Alignment() int { return p.info().alignment }

// PeakGOPS returns the theoretical peak throughput of a single core.
func (p Precision) PeakGOPS() float64 { return p.info().peakGOPS }

// ParsePrecision resolves a selector ("0", "1", "2") or a case-insensitive name ("int8",
// "FP16", ...) to a Precision.
//
// Arguments:
//   - s: The selector or name.
//
// Returns:
//   - Precision: The resolved precision, or DefaultPrecision when s is not recognised.
//   - bool: Whether s was recognised.
func ParsePrecision(s string) (Precision, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		p := Precision(n)
		if p.Valid() {
			return p, true
		}
		return DefaultPrecision, false
	}
	for _, p := range Precisions() {
		if strings.EqualFold(s, p.String()) {
			return p, true
		}
	}
	return DefaultPrecision, false
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown values decode to
// DefaultPrecision.
func (p *Precision) UnmarshalText(text []byte) error {
	*p, _ = ParsePrecision(string(text))
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Precision) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
