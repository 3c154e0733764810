package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/weezy20/zv/internal/errs"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"
)

const lockDeadline = 10 * time.Second

// Lock takes the store-wide advisory lock that serializes mutating commands
// across processes. Contenders retry with exponential backoff and give up
// with LockBusy after the deadline. Read-only paths never call this.
func (s *Store) Lock(ctx context.Context) (unlock func(), err error) {
	fl := flock.New(filepath.Join(s.dir, ".lock"))

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = lockDeadline

	err = backoff.Retry(func() error {
		ok, err := fl.TryLock()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errs.ErrLockBusy
		}
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrLockBusy, fl.Path())
	}

	return func() { _ = fl.Unlock() }, nil
}
