package watch

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/wdir/internal/logger"
)

func newTestBus() (*Bus, *bytes.Buffer) {
	var buf bytes.Buffer
	log := logger.New(logger.Settings{Level: logger.Verbose, Console: &buf})
	return NewBus(log), &buf
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("rename")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestBus_OrderIsolatedFromPanics(t *testing.T) {
	bus, out := newTestBus()
	var calls []string

	_, err := bus.On(Change, func(p string) error { calls = append(calls, "first:"+p); return nil })
	require.NoError(t, err)
	_, err = bus.On(Change, func(p string) error { calls = append(calls, "second"); panic("boom") })
	require.NoError(t, err)
	_, err = bus.On(Change, func(p string) error { calls = append(calls, "third"); return nil })
	require.NoError(t, err)

	failed := bus.Trigger(Change, "a.txt")

	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"first:a.txt", "second", "third"}, calls)
	assert.Contains(t, out.String(), "boom")

	stats := bus.Stats()
	assert.Equal(t, uint64(1), stats.Triggered)
	assert.Equal(t, uint64(2), stats.Delivered)
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(1), stats.Panicked)
}

func TestBus_ReturnedErrorIsLogged(t *testing.T) {
	bus, out := newTestBus()
	ran := false
	_, _ = bus.On(Add, func(string) error { return errors.New("nope") })
	_, _ = bus.On(Add, func(string) error { ran = true; return nil })

	assert.Equal(t, 1, bus.Trigger(Add, "x"))
	assert.True(t, ran)
	assert.Contains(t, out.String(), "nope")
}

func TestBus_KindsAreSeparate(t *testing.T) {
	bus, _ := newTestBus()
	var got []Kind
	for _, k := range Kinds {
		kind := k
		_, _ = bus.On(kind, func(string) error { got = append(got, kind); return nil })
	}

	bus.Trigger(Unlink, "gone")
	assert.Equal(t, []Kind{Unlink}, got)
	assert.Equal(t, 0, bus.Trigger(Change, "nobody"))
}

func TestBus_OnRejectsBadInput(t *testing.T) {
	bus, _ := newTestBus()
	_, err := bus.On("rename", func(string) error { return nil })
	assert.ErrorIs(t, err, ErrUnknownKind)
	_, err = bus.On(Add, nil)
	assert.ErrorIs(t, err, ErrNilCallback)
}

func TestBus_Off(t *testing.T) {
	bus, _ := newTestBus()
	var calls int
	id, err := bus.On(Add, func(string) error { calls++; return nil })
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, bus.Count(Add))

	assert.True(t, bus.Off(id))
	assert.False(t, bus.Off(id))
	bus.Trigger(Add, "x")
	assert.Zero(t, calls)
	assert.Zero(t, bus.Count(Add))
}
