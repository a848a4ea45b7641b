package util

// IgnoreError runs f and discards its error. Handy for deferring close
// functions whose errors we cannot act on.
func IgnoreError(f func() error) {
	_ = f()
}
