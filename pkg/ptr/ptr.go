package ptr

// Ptr returns a pointer to the given value.
func Ptr[T any](v T) *T {
	return &v
}

func Float32(v float32) *float32 {
	return &v
}

func Int(v int) *int {
	return &v
}

// Deref returns the pointed-to value or def when p is nil.
func Deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
