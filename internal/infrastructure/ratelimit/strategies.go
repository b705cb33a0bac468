package ratelimit

import (
	"github.com/turtacn/limitgate/internal/domain/service"
	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/logger"
)

// NewStrategyTable builds the full strategy set over a single shared store.
// Rules reference strategies by algorithm type; an algorithm missing from the
// table is a configuration error surfaced at rule validation time, not here.
func NewStrategyTable(store service.CounterStore, log logger.Logger) map[constants.AlgorithmType]service.Strategy {
	return map[constants.AlgorithmType]service.Strategy{
		constants.AlgorithmTokenBucket:   NewTokenBucketStrategy(store, log),
		constants.AlgorithmFixedWindow:   NewFixedWindowStrategy(store, log),
		constants.AlgorithmSlidingWindow: NewSlidingWindowStrategy(store, log),
	}
}
