package repokit

import (
	"context"
	"errors"
	"testing"

	"landpulse/internal/platform/store"

	"github.com/stretchr/testify/assert"
)

type fakeTx struct {
	store.RowQuerier
	ran bool
}

func (f *fakeTx) Tx(_ context.Context, fn func(q store.RowQuerier) error) error {
	f.ran = true
	return fn(f)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type guard struct{ err error }

func (g guard) Guard(context.Context) error { return g.err }

func TestBindFuncAndMustBind(t *testing.T) {
	b := BindFunc[string](func(q Queryer) string { return "bound" })
	assert.Equal(t, "bound", MustBind[string](b, &fakeTx{}))
	assert.Panics(t, func() { MustBind[string](b, nil) })
}

func TestWithTx(t *testing.T) {
	tx := &fakeTx{}
	boom := errors.New("boom")
	err := WithTx(context.Background(), tx, func(Queryer) error { return boom })
	assert.True(t, tx.ran)
	assert.ErrorIs(t, err, boom)
}

func TestMustPingAndGuard(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() { MustPing(ctx, "pg", pinger{}) })
	assert.Panics(t, func() { MustPing(ctx, "pg", pinger{err: errors.New("down")}) })
	assert.Panics(t, func() { MustPing(ctx, "pg", nil) })

	assert.NotPanics(t, func() { MustGuard(ctx, guard{}) })
	assert.Panics(t, func() { MustGuard(ctx, guard{err: errors.New("ch down")}) })
}
