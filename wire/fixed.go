package wire

import (
	"fmt"
	"math"
)

// Fixed is a signed 24.8 fixed-point number, the only non-integer
// numeric type in the wire format.
type Fixed int32

// FixedInt converts an integer to its fixed-point representation.
func FixedInt(v int) Fixed {
	return Fixed(v << 8)
}

// FixedFloat converts a float to the nearest representable
// fixed-point value.
func FixedFloat(v float64) Fixed {
	return Fixed(math.Round(v * 256))
}

// Int truncates f toward zero, matching wl_fixed_to_int.
func (f Fixed) Int() int {
	return int(f / 256)
}

func (f Fixed) Float() float64 {
	return float64(f) / 256
}

func (f Fixed) String() string {
	return fmt.Sprintf("%g", f.Float())
}
