package alu_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mregsim/internal/alu"
)

func TestAddWrapsPositiveOverflow(t *testing.T) {
	a := &alu.ALU{}
	a.Configure(alu.Max, 1)
	require.NoError(t, a.Execute(alu.Add))
	require.Equal(t, alu.Min, a.Result)
	require.True(t, a.Flags.W)
	require.True(t, a.Flags.N)
	require.False(t, a.Flags.Z)
}

func TestAddWrapsNegativeOverflow(t *testing.T) {
	a := &alu.ALU{}
	a.Configure(alu.Min, -1)
	require.NoError(t, a.Execute(alu.Add))
	require.Equal(t, alu.Max, a.Result)
	require.True(t, a.Flags.W)
}

func TestSubNoOverflowLeavesWUntouched(t *testing.T) {
	a := &alu.ALU{}
	a.Configure(alu.Max, 1)
	require.NoError(t, a.Execute(alu.Add))
	require.True(t, a.Flags.W)

	a.Configure(5, 2)
	require.NoError(t, a.Execute(alu.Sub))
	require.Equal(t, int64(3), a.Result)
	require.True(t, a.Flags.W, "W is sticky until the next wrapping op overwrites it")
}

func TestDivFloorsTowardNegativeInfinity(t *testing.T) {
	a := &alu.ALU{}
	a.Configure(-7, 2)
	require.NoError(t, a.Execute(alu.Div))
	require.Equal(t, int64(-4), a.Result)
}

func TestModMatchesFloorDivision(t *testing.T) {
	a := &alu.ALU{}
	a.Configure(-7, 2)
	require.NoError(t, a.Execute(alu.Mod))
	require.Equal(t, int64(1), a.Result)
}

func TestDivByZeroErrors(t *testing.T) {
	a := &alu.ALU{}
	a.Configure(1, 0)
	require.Error(t, a.Execute(alu.Div))
}

func TestModByZeroErrors(t *testing.T) {
	a := &alu.ALU{}
	a.Configure(1, 0)
	require.Error(t, a.Execute(alu.Mod))
}

func TestSkipDoesNotTouchFlags(t *testing.T) {
	a := &alu.ALU{}
	a.Configure(alu.Max, 1)
	require.NoError(t, a.Execute(alu.Add))

	a.Configure(0, 0)
	a.Flags.N = true
	require.NoError(t, a.Execute(alu.SkipLeft))
	require.Equal(t, int64(0), a.Result)
	require.True(t, a.Flags.N, "skip must not recompute flags")
}

func TestIncWrapsPositiveOverflow(t *testing.T) {
	a := &alu.ALU{}
	a.Configure(alu.Max, 0)
	require.NoError(t, a.Execute(alu.IncLeft))
	require.Equal(t, alu.Min, a.Result, "inc_left wraps like add, per the §8 boundary scenario")
	require.True(t, a.Flags.W)
	require.True(t, a.Flags.N)
}

func TestDecWrapsNegativeOverflow(t *testing.T) {
	a := &alu.ALU{}
	a.Configure(alu.Min, 0)
	require.NoError(t, a.Execute(alu.DecLeft))
	require.Equal(t, alu.Max, a.Result)
	require.True(t, a.Flags.W)
}
