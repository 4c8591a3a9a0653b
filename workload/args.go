package workload

import (
	"fmt"
	"strconv"
)

// ParseArgs builds a descriptor from the positional arguments [M K N precision].
//
// Every argument is optional and falls back to its default independently when it is
// missing, not a positive integer, or (for precision) not a known selector. Arguments
// beyond the fourth are ignored.
//
// Arguments:
//   - args: The positional command-line arguments.
//
// Returns:
//   - Descriptor: The parsed descriptor with DefaultLayout.
//   - []string: One warning per fallback or ignored argument.
func ParseArgs(args []string) (Descriptor, []string) {
	return ParseArgsOnto(DefaultDescriptor(), args)
}

// ParseArgsOnto is ParseArgs with base supplying the value of every argument that is
// missing or invalid, so a partially given workload keeps the rest of base.
func ParseArgsOnto(base Descriptor, args []string) (Descriptor, []string) {
	desc := base
	var warnings []string

	dims := []struct {
		name string
		dst  *int
	}{
		{"M", &desc.M},
		{"K", &desc.K},
		{"N", &desc.N},
	}
	for i, dim := range dims {
		if i >= len(args) {
			break
		}
		v, err := strconv.Atoi(args[i])
		if err != nil || v <= 0 {
			warnings = append(warnings, fmt.Sprintf("invalid %s %q, using %d", dim.name, args[i], *dim.dst))
			continue
		}
		*dim.dst = v
	}

	if len(args) > 3 {
		if p, ok := ParsePrecision(args[3]); ok {
			desc.Precision = p
		} else {
			warnings = append(warnings, fmt.Sprintf("unknown precision %q, using %s", args[3], desc.Precision))
		}
	}

	if len(args) > 4 {
		warnings = append(warnings, fmt.Sprintf("ignoring %d extra argument(s): %v", len(args)-4, args[4:]))
	}

	return desc, warnings
}
