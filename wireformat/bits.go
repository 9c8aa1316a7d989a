package wireformat

import "math"

func doubleBits(f float64) uint64 { return math.Float64bits(f) }
func floatBits(f float32) uint32  { return math.Float32bits(f) }
func bitsToDouble(v uint64) float64 { return math.Float64frombits(v) }
func bitsToFloat(v uint32) float32  { return math.Float32frombits(v) }
