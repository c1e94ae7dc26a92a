package parser

import (
	"fmt"
	"log/slog"

	"github.com/IshaanNene/dealscout/internal/dom"
)

// Strategy is one prioritized attempt at recovering a field from a card.
type Strategy[T any] struct {
	Name string
	Fn   func(dom.Node) (T, bool)
}

// FirstOf evaluates strategies in order and returns the first value
// recovered. A strategy that panics counts as a miss.
func FirstOf[T any](n dom.Node, strategies []Strategy[T], logger *slog.Logger) (T, bool) {
	for _, s := range strategies {
		v, ok, err := attempt(n, s)
		if err != nil {
			logger.Debug("strategy failed", "strategy", s.Name, "error", err)
			continue
		}
		if ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func attempt[T any](n dom.Node, s Strategy[T]) (v T, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			ok = false
		}
	}()
	v, ok = s.Fn(n)
	return v, ok, nil
}
