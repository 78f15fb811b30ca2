package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/opgate/pkg/errors"
)

func TestManager_PoolPerKey(t *testing.T) {
	f := &fixture{}
	f.alive.Store(true)
	m := NewManager(zaptest.NewLogger(t))
	ctx := context.Background()

	a, err := m.Pool(ctx, "crm", f.factory, testConfig(1))
	require.NoError(t, err)
	again, err := m.Pool(ctx, "crm", f.factory, testConfig(1))
	require.NoError(t, err)
	b, err := m.Pool(ctx, "hr", f.factory, testConfig(1))
	require.NoError(t, err)

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)
	assert.Len(t, m.Stats(), 2)

	m.Dispose()

	_, err = a.Borrow(ctx)
	assert.True(t, errors.IsPoolUnavailable(err))
	_, err = m.Pool(ctx, "crm", f.factory, testConfig(1))
	assert.True(t, errors.IsPoolUnavailable(err))
}
