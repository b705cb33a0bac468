package ratelimit

import (
	"encoding/json"
	"fmt"
)

// bucketState is the token bucket counter state held in the shared store. It
// is owned and mutated exclusively through store atomic operations.
type bucketState struct {
	// Tokens currently in the bucket, fractional between refills.
	Tokens float64 `json:"tokens"`

	// LastRefillMS is the wall-clock instant of the last refill in Unix
	// milliseconds.
	LastRefillMS int64 `json:"last_refill_ms"`
}

// windowState is the bucketed sliding window counter state: the current
// sub-window count plus the whole previous sub-window count.
type windowState struct {
	// BucketStartMS is the aligned start of the current sub-window in Unix
	// milliseconds.
	BucketStartMS int64 `json:"bucket_start_ms"`

	CurrentCount  int64 `json:"current"`
	PreviousCount int64 `json:"previous"`
}

func encodeBucketState(s bucketState) []byte {
	raw, _ := json.Marshal(s)
	return raw
}

func decodeBucketState(raw []byte) (bucketState, error) {
	var s bucketState
	if err := json.Unmarshal(raw, &s); err != nil {
		return bucketState{}, fmt.Errorf("decode bucket state: %w", err)
	}
	if s.Tokens < 0 || s.LastRefillMS < 0 {
		return bucketState{}, fmt.Errorf("bucket state out of range: tokens=%f last_refill_ms=%d", s.Tokens, s.LastRefillMS)
	}
	return s, nil
}

func encodeWindowState(s windowState) []byte {
	raw, _ := json.Marshal(s)
	return raw
}

func decodeWindowState(raw []byte) (windowState, error) {
	var s windowState
	if err := json.Unmarshal(raw, &s); err != nil {
		return windowState{}, fmt.Errorf("decode window state: %w", err)
	}
	if s.BucketStartMS < 0 || s.CurrentCount < 0 || s.PreviousCount < 0 {
		return windowState{}, fmt.Errorf("window state out of range: start_ms=%d current=%d previous=%d",
			s.BucketStartMS, s.CurrentCount, s.PreviousCount)
	}
	return s, nil
}
