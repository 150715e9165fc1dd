package referral

import "context"

// LocalLocker is an in-process Locker for single-instance deployments.
type LocalLocker struct {
	sem chan struct{}
}

// NewLocalLocker creates an unlocked LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sem: make(chan struct{}, 1)}
}

// Acquire implements Locker.
func (l *LocalLocker) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
