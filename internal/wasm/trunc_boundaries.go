package wasm

// TruncBoundaryF32 (and TruncBoundaryF64) holds the exclusive (lower, upper) bounds of the source
// floating-point range for which a trunc instruction produces a defined
// (non-trapping) result. The theoretical bounds are (intMin-1, intMax+1);
// these are adjusted to the nearest representable float/double where the
// theoretical value itself isn't exactly representable, matching the
// bounds a correct trunc implementation must compare against rather than
// the (less precise) bounds you'd get by converting intMin/intMax to float
// and naively subtracting/adding one.
type TruncBoundaryF32 struct {
	Lower, Upper float32
}

type TruncBoundaryF64 struct {
	Lower, Upper float64
}

var (
	TruncF32ToI32 = TruncBoundaryF32{Lower: -2147483904.0, Upper: 2147483648.0}
	TruncF32ToU32 = TruncBoundaryF32{Lower: -1.0, Upper: 4294967296.0}
	TruncF64ToI32 = TruncBoundaryF64{Lower: -2147483649.0, Upper: 2147483648.0}
	TruncF64ToU32 = TruncBoundaryF64{Lower: -1.0, Upper: 4294967296.0}

	TruncF32ToI64 = TruncBoundaryF32{Lower: -9223373136366403584.0, Upper: 9223372036854775808.0}
	TruncF32ToU64 = TruncBoundaryF32{Lower: -1.0, Upper: 18446744073709551616.0}
	TruncF64ToI64 = TruncBoundaryF64{Lower: -9223372036854777856.0, Upper: 9223372036854775808.0}
	TruncF64ToU64 = TruncBoundaryF64{Lower: -1.0, Upper: 18446744073709551616.0}
)
