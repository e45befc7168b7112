package mux

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAckThenIsAcked(t *testing.T) {
	b := NewAckBitmap()
	b.Ack(10)
	require.True(t, b.IsAcked(10))
}

func TestAckWraparound(t *testing.T) {
	b := NewAckBitmap()
	b.Ack(math.MaxUint64)
	b.Ack(0)
	require.True(t, b.IsAcked(math.MaxUint64))
	require.True(t, b.IsAcked(0))
}

func TestAckOutOfWindowIsNotAcked(t *testing.T) {
	b := NewAckBitmap()
	b.Ack(1000)
	require.False(t, b.IsAcked(1000-40))
}

func TestAckBackwardWithinWindowSetsBitWithoutShifting(t *testing.T) {
	b := NewAckBitmap()
	b.Ack(100)
	b.Ack(95)
	require.True(t, b.IsAcked(100))
	require.True(t, b.IsAcked(95))
	require.False(t, b.IsAcked(96))
}

func TestAckForwardShiftsWindow(t *testing.T) {
	b := NewAckBitmap()
	b.Ack(5)
	b.Ack(6)
	head, bitmap := b.Head()
	require.Equal(t, uint64(6), head)
	require.Equal(t, uint32(0b11), bitmap)
}
