package common

import "errors"

// ErrPoolPaused is returned by Guard when the targeted pool has mutations
// suspended.
var ErrPoolPaused = errors.New("pool paused")

// PauseView reports whether a pool currently rejects mutating operations.
type PauseView interface {
	IsPaused(poolID string) bool
}

// Guard rejects the operation when the pool identified by poolID is paused.
// A nil view or empty identifier is treated as unpaused.
func Guard(p PauseView, poolID string) error {
	if p == nil || poolID == "" {
		return nil
	}
	if p.IsPaused(poolID) {
		return ErrPoolPaused
	}
	return nil
}
