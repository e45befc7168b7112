package replay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcceptsMonotonicIncreasing(t *testing.T) {
	w := New()
	for i := uint64(0); i < 10; i++ {
		require.NoError(t, w.CheckAndSet(i))
	}
}

func TestRejectsDuplicate(t *testing.T) {
	w := New()
	require.NoError(t, w.CheckAndSet(5))
	require.ErrorIs(t, w.CheckAndSet(5), ErrReplay)
}

func TestAcceptsOutOfOrderWithinWindow(t *testing.T) {
	w := New()
	require.NoError(t, w.CheckAndSet(100))
	require.NoError(t, w.CheckAndSet(90))
	require.ErrorIs(t, w.CheckAndSet(90), ErrReplay)
}

func TestRejectsTooOld(t *testing.T) {
	w := New()
	require.NoError(t, w.CheckAndSet(WindowBits+100))
	require.ErrorIs(t, w.CheckAndSet(50), ErrReplay)
}

func TestDecryptTwiceRejectsSecondCall(t *testing.T) {
	w := New()
	seq := uint64(42)
	require.NoError(t, w.CheckAndSet(seq))
	require.ErrorIs(t, w.CheckAndSet(seq), ErrReplay)
}

func TestWindowSlidesForward(t *testing.T) {
	w := New()
	require.NoError(t, w.CheckAndSet(0))
	require.NoError(t, w.CheckAndSet(WindowBits))
	// 0 is now outside the window.
	require.ErrorIs(t, w.CheckAndSet(0), ErrReplay)
}
