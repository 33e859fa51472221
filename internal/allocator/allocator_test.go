package allocator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func noneTaken(int64) (bool, error) { return false, nil }

func TestDerive_Deterministic(t *testing.T) {
	a := New(DefaultCodeLength)
	first := a.Derive("room1@conference.example.com", 0)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, a.Derive("room1@conference.example.com", 0), "derivation must be stable across calls")
	}
}

func TestDerive_OffsetShiftsCandidate(t *testing.T) {
	a := New(DefaultCodeLength)
	base := a.Derive("room1@conference.example.com", 0)
	next := a.Derive("room1@conference.example.com", 1)
	require.Equal(t, (base+1)%100000, next, "offset 1 should yield the next candidate in the space")
}

func TestDerive_WithinCodeSpace(t *testing.T) {
	a := New(DefaultCodeLength)
	inputs := []string{"", "a", "room1@example.com", "Üñïçödé room", "a very long conference identifier string with spaces"}
	for _, in := range inputs {
		code := a.Derive(in, 0)
		require.GreaterOrEqual(t, code, int64(0), "input %q", in)
		require.Less(t, code, int64(100000), "input %q", in)
	}
}

func TestAllocate_FirstFreeCandidate(t *testing.T) {
	a := New(DefaultCodeLength)
	code, err := a.Allocate("room1@conference.example.com", noneTaken)
	require.NoError(t, err)
	require.Equal(t, a.Derive("room1@conference.example.com", 0), code)
	require.Positive(t, code)
}

func TestAllocate_ResolvesCollision(t *testing.T) {
	a := New(DefaultCodeLength)
	occupied := a.Derive("room1@conference.example.com", 0)

	code, err := a.Allocate("room1@conference.example.com", func(c int64) (bool, error) {
		return c == occupied, nil
	})
	require.NoError(t, err)
	require.Equal(t, a.Derive("room1@conference.example.com", 1), code, "must fall through to offset 1")
	require.NotEqual(t, occupied, code)
}

func TestAllocate_SkipsZero(t *testing.T) {
	// With a one-digit space the candidate sequence wraps over 0; the
	// allocator must never hand out 0 even when it is nominally free.
	a := New(1)
	for offset := uint64(0); offset < 10; offset++ {
		conference := fmt.Sprintf("conf-%d", offset)
		code, err := a.Allocate(conference, noneTaken)
		require.NoError(t, err)
		require.Positive(t, code)
	}
}

func TestAllocate_Exhausted(t *testing.T) {
	a := New(1)
	_, err := a.Allocate("room1@conference.example.com", func(int64) (bool, error) {
		return true, nil
	})
	require.ErrorIs(t, err, ErrSpaceExhausted)
}

func TestAllocate_PropagatesProbeError(t *testing.T) {
	a := New(DefaultCodeLength)
	probeErr := errors.New("backing store unavailable")
	_, err := a.Allocate("room1@conference.example.com", func(int64) (bool, error) {
		return false, probeErr
	})
	require.ErrorIs(t, err, probeErr)
}

func TestNew_DefaultsCodeLength(t *testing.T) {
	require.Equal(t, DefaultCodeLength, New(0).CodeLength())
	require.Equal(t, DefaultCodeLength, New(-3).CodeLength())
	require.Equal(t, 7, New(7).CodeLength())
}
