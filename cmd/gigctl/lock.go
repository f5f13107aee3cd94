package main

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

var errSweepRunning = errors.New("другой проход sweeper уже выполняется")

// withSweepLock выполняет fn, удерживая файловую блокировку.
// Два ручных прохода на одной машине не пересекаются.
func withSweepLock(path string, fn func() error) error {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("gigctl: не удалось взять блокировку %s: %w", path, err)
	}
	if !ok {
		return errSweepRunning
	}
	defer func() {
		_ = lock.Unlock()
	}()
	return fn()
}
