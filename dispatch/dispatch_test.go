package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimo-project/registry/catalog"
	"github.com/nimo-project/registry/value"
)

func newTestRegistry(t *testing.T) (*Registry, *catalog.Store) {
	t.Helper()
	store := catalog.NewStore()
	pub, err := newTestPublisher(t)
	require.NoError(t, err)
	r := NewRegistry()
	RegisterAll(r, store, pub)
	return r, store
}

func TestDispatchUnknownOpcode(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Dispatch(context.Background(), "bogus", nil)
	require.Error(t, err)
	var unk *ErrUnknownOpcode
	assert.ErrorAs(t, err, &unk)
}

func TestDispatchArityError(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Dispatch(context.Background(), "addM", []value.Value{value.String("alpha")})
	require.Error(t, err)
	var arity *ErrArity
	assert.ErrorAs(t, err, &arity)
}

func TestEndToEndScenario(t *testing.T) {
	r, store := newTestRegistry(t)
	ctx := context.Background()

	result, err := r.Dispatch(ctx, "addM", []value.Value{value.String("alpha"), value.String("192.168.1.11")})
	require.NoError(t, err)
	assert.True(t, result.AsLogical())

	count, err := r.Dispatch(ctx, "cntM", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count.AsInteger())

	present, err := r.Dispatch(ctx, "isM?", []value.Value{value.String("alpha")})
	require.NoError(t, err)
	assert.True(t, present.AsLogical())

	absent, err := r.Dispatch(ctx, "isM?", []value.Value{value.String("beta")})
	require.NoError(t, err)
	assert.False(t, absent.AsLogical())

	_, err = r.Dispatch(ctx, "addN", []value.Value{
		value.String("n1"), value.String("alpha"), value.String("/x"), value.String("/"),
		value.String("n1"), value.String("Filter"), value.String("192.168.1.11"), value.Integer(40001),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.CountNodes())

	info, err := r.Dispatch(ctx, "infN", []value.Value{value.String("n1")})
	require.NoError(t, err)
	fields := info.AsMap()
	var serviceType string
	for _, e := range fields {
		if e.Key.AsString() == "serviceType" {
			serviceType = e.Value.AsString()
		}
	}
	assert.Equal(t, "Filter", serviceType)

	_, err = r.Dispatch(ctx, "addC", []value.Value{value.String("n1"), value.String("/out"), value.String("Output"), value.String("int32"), value.Integer(1)})
	require.NoError(t, err)
	_, err = r.Dispatch(ctx, "addC", []value.Value{value.String("n1"), value.String("/in"), value.String("Input"), value.String("int32"), value.Integer(1)})
	require.NoError(t, err)

	_, err = r.Dispatch(ctx, "addX", []value.Value{value.String("n1"), value.String("/out"), value.String("n1"), value.String("/in"), value.String("int32"), value.Integer(1)})
	require.NoError(t, err)

	ch, err := store.GetInformationForChannel("n1", "/out")
	require.NoError(t, err)
	assert.True(t, ch.InUse)

	_, err = r.Dispatch(ctx, "rmN", []value.Value{value.String("n1")})
	require.NoError(t, err)
	assert.Equal(t, 0, store.CountNodes())
	assert.Equal(t, 1, store.CountMachines())
}
