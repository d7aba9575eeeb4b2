package builtin

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/reglet-dev/classrunner/internal/domain/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closingUnit struct {
	closed *int
}

func (c *closingUnit) RunContext(w io.Writer, _ units.Context) error {
	_, err := io.WriteString(w, "hi")
	return err
}

func (c *closingUnit) Close() error {
	*c.closed++
	return nil
}

func TestRegistry_RegisterAndLoad(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register("a.B", func() any { return &echo{} }))
	assert.Error(t, r.Register("a.B", func() any { return &echo{} }), "duplicate name")
	assert.Error(t, r.Register("", func() any { return &echo{} }))
	assert.Error(t, r.Register("a.C", nil))

	u, err := r.Load(context.Background(), "a.B")
	require.NoError(t, err)
	assert.Equal(t, "a.B", u.Name())
	assert.True(t, u.Binding().Has(units.ShapeWriterContext))
	assert.True(t, u.Binding().Has(units.ShapeWriterArgsContext))
	assert.False(t, u.Binding().HasSetter())

	again, err := r.Load(context.Background(), "a.B")
	require.NoError(t, err)
	assert.Same(t, u, again, "binding computed once")

	_, err = r.Load(context.Background(), "a.Missing")
	assert.True(t, errors.Is(err, units.ErrUnitNotFound))

	assert.Equal(t, []string{"a.B"}, r.Names())
}

func TestRegistry_BindingOf(t *testing.T) {
	b := bindingOf(&profile{})
	assert.True(t, b.Has(units.ShapeWriter))
	assert.True(t, b.Has(units.ShapeWriterContext))
	assert.True(t, b.Has(units.ShapeSetterContext))
	assert.True(t, b.Has(units.ShapeParserGetter))
	assert.False(t, b.Has(units.ShapeSetterArgsContext))
	assert.False(t, b.Has(units.ShapeWriterArgsContext))

	assert.Equal(t, "none", bindingOf(struct{}{}).String())
}

func TestInstance_Dispatch(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	require.NoError(t, RegisterDefaults(r, "clpkg"))

	t.Run("setter then writer", func(t *testing.T) {
		u, err := r.Load(ctx, ProfileUnit)
		require.NoError(t, err)
		inst, err := u.NewInstance(ctx)
		require.NoError(t, err)

		require.NoError(t, inst.SetContext(ctx, units.Context{"clpkg": "Alice"}))
		parser, err := inst.Parser(ctx)
		require.NoError(t, err)
		assert.Equal(t, "plain/1.0", parser)

		var buf bytes.Buffer
		require.NoError(t, inst.Run(ctx, &buf))
		assert.Equal(t, "Alice", buf.String())

		assert.ErrorIs(t, inst.SetArgsContext(ctx, nil, nil), units.ErrShapeUnsupported)
		assert.ErrorIs(t, inst.RunArgsContext(ctx, &buf, nil, nil), units.ErrShapeUnsupported)
	})

	t.Run("fresh instance per call", func(t *testing.T) {
		u, err := r.Load(ctx, ProfileUnit)
		require.NoError(t, err)
		first, err := u.NewInstance(ctx)
		require.NoError(t, err)
		require.NoError(t, first.SetContext(ctx, units.Context{"clpkg": "Alice"}))

		second, err := u.NewInstance(ctx)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, second.Run(ctx, &buf))
		assert.Empty(t, buf.String(), "state must not leak between instances")
	})

	t.Run("echo args", func(t *testing.T) {
		u, err := r.Load(ctx, EchoUnit)
		require.NoError(t, err)
		inst, err := u.NewInstance(ctx)
		require.NoError(t, err)

		args := units.Args{}
		args.Add("b", "2")
		args.Add("a", "1")
		args.Add("a", "3")
		var buf bytes.Buffer
		require.NoError(t, inst.RunArgsContext(ctx, &buf, args, units.Context{}))
		assert.Equal(t, "a=[1 3]\nb=2\n", buf.String())
		assert.ErrorIs(t, inst.Run(ctx, &buf), units.ErrShapeUnsupported)
	})

	t.Run("context dump", func(t *testing.T) {
		u, err := r.Load(ctx, ContextUnit)
		require.NoError(t, err)
		inst, err := u.NewInstance(ctx)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, inst.RunContext(ctx, &buf, units.Context{"clpkg": "Dev"}))
		assert.JSONEq(t, `{"clpkg":"Dev"}`, buf.String())
	})

	t.Run("closer is closed", func(t *testing.T) {
		closed := 0
		require.NoError(t, r.Register("t.Closing", func() any { return &closingUnit{closed: &closed} }))
		u, err := r.Load(ctx, "t.Closing")
		require.NoError(t, err)
		inst, err := u.NewInstance(ctx)
		require.NoError(t, err)
		require.NoError(t, inst.Close(ctx))
		assert.Equal(t, 1, closed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := r.Load(cctx, EchoUnit)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
