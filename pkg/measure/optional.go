package measure

// Optional is a value that may be absent, e.g. a statistic on a plane that
// was never resolved or a geometry field the shape variant does not define.
type Optional[T any] struct {
	Value T
	Valid bool
}

// Some wraps a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Valid: true}
}
