package local

// Skipped records an item left out of a best-effort result and the reason.
type Skipped struct {
	Name string
	Err  error
}

// Result holds the items that succeeded plus the ones that were skipped.
type Result[T any] struct {
	Items   []T
	Skipped []Skipped
}

// Collect runs fn over inputs and keeps going past failures.
func Collect[In, Out any](inputs []In, name func(In) string, fn func(In) (Out, error)) Result[Out] {
	res := Result[Out]{Items: make([]Out, 0, len(inputs))}
	for _, in := range inputs {
		out, err := fn(in)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Name: name(in), Err: err})
			continue
		}
		res.Items = append(res.Items, out)
	}
	return res
}
