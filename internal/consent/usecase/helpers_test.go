package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// fakeTxManager runs the unit of work directly, counts invocations and reports
// whether a unit of work is running.
type fakeTxManager struct {
	calls  int
	active bool
}

func (f *fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	f.active = true
	defer func() { f.active = false }()
	return fn(ctx)
}

// inTx matches any context while a unit of work is running.
func (f *fakeTxManager) inTx() interface{} {
	return mock.MatchedBy(func(context.Context) bool { return f.active })
}
