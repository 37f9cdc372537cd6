package queue

import (
	"errors"
	"fmt"
)

var ErrJobNotFound = errors.New("job not found in failed queue")

// ErrPermanent marks a job error that retrying cannot fix. FailJob moves
// such jobs straight to the failed list.
var ErrPermanent = errors.New("permanent job failure")

// Permanent wraps err so that IsPermanent reports true for it.
func Permanent(err error) error {
	if err == nil || errors.Is(err, ErrPermanent) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
