package tensor

var backend = "gonum"

// Backend names the BLAS implementation Linear dispatches to.
func Backend() string {
	return backend
}
