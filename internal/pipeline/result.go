package pipeline

// result is the outcome of one stage: a value or a fault, never both.
type result[T any] struct {
	val   T
	fault *Error
}

func ok[T any](v T) result[T] {
	return result[T]{val: v}
}

func fail[T any](kind Kind, stage string, err error) result[T] {
	return result[T]{fault: &Error{Kind: kind, Stage: stage, Err: err}}
}

func (r result[T]) failed() bool { return r.fault != nil }
