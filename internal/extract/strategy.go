package extract

import "log/slog"

// strategy is one way of obtaining a field value. Strategies never fail
// loudly: they report "not found" and the runner moves on to the next one.
type strategy[T any] struct {
	name string
	fn   func() (T, bool)
}

// firstSuccess tries strategies in order and returns the first hit. This is
// the single combinator behind every field extractor; adding or reordering a
// strategy never touches the others.
func firstSuccess[T any](logger *slog.Logger, field string, strategies []strategy[T]) (T, bool) {
	for _, s := range strategies {
		if v, ok := s.fn(); ok {
			logger.Debug("strategy succeeded", "field", field, "strategy", s.name)
			return v, true
		}
		logger.Debug("strategy missed", "field", field, "strategy", s.name)
	}
	var zero T
	return zero, false
}
