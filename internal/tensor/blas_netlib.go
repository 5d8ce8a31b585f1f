//go:build netlib && cgo

package tensor

// Builds tagged netlib route float32 BLAS through the system library
// (Accelerate on macOS, OpenBLAS on Linux).

import (
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/netlib/blas/netlib"
)

func init() {
	blas32.Use(netlib.Implementation{})
	backend = "netlib"
}
