package utils

func Ptr[T any](v T) *T {
	return &v
}

// Deref returns the value behind ptr, or the zero value when ptr is nil.
func Deref[T any](ptr *T) T {
	var zero T
	if ptr == nil {
		return zero
	}
	return *ptr
}
