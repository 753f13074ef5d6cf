package datapath_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mregsim/internal/alu"
	"mregsim/internal/datapath"
	"mregsim/internal/isa"
)

func TestResetState(t *testing.T) {
	dp := datapath.New()
	require.True(t, dp.PS.IA)
	require.False(t, dp.PS.I)
	require.Equal(t, uint32(0), dp.SP)
}

func TestPushWrapsAtZero(t *testing.T) {
	dp := datapath.New()
	dp.SP = 0
	dp.Push("5")
	require.Equal(t, uint32(isa.DataSize-1), dp.SP)
	require.Equal(t, int32(5), dp.Data[isa.DataSize-1])
}

func TestPopWrapsAtTop(t *testing.T) {
	dp := datapath.New()
	dp.SP = isa.DataSize - 1
	dp.Data[isa.DataSize-1] = 7
	require.NoError(t, dp.Pop("r0"))
	require.Equal(t, uint32(0), dp.SP)
	require.Equal(t, int32(7), dp.Reg[0])
}

func TestPushPopRoundTrip(t *testing.T) {
	dp := datapath.New()
	dp.Reg[1] = 42
	dp.Push("r1")
	require.NoError(t, dp.Pop("r2"))
	require.Equal(t, int32(42), dp.Reg[2])
	require.Equal(t, uint32(0), dp.SP) // SP returns to the starting index
}

func TestStackOverwriteOnWrapAround(t *testing.T) {
	dp := datapath.New()
	for i := 0; i < isa.DataSize+1; i++ {
		dp.Reg[0] = int32(i)
		dp.Push("r0")
	}
	// The last push wraps all the way around and overwrites the first cell.
	require.Equal(t, int32(isa.DataSize), dp.Data[isa.DataSize-1])
}

func TestLatchRegisterRejectsUnwiredRegister(t *testing.T) {
	dp := datapath.New()
	dp.ALU.Result = 9
	err := dp.LatchRegister("r9")
	require.Error(t, err)
	var wr *datapath.WrongRegister
	require.ErrorAs(t, err, &wr)
}

func TestExecuteALUAndLatchPS(t *testing.T) {
	dp := datapath.New()
	dp.Reg[0] = int32(alu.Max)
	require.NoError(t, dp.ExecuteALU(alu.Add, "r0", "1"))
	dp.LatchPS()
	require.True(t, dp.PS.W)
	require.True(t, dp.PS.N)
}

func TestInputSetsEOnNul(t *testing.T) {
	dp := datapath.New()
	dp.InPorts[1] = []datapath.InputEvent{{Tick: 0, Char: 0}}
	require.NoError(t, dp.Input(1))
	require.True(t, dp.PS.E)
	require.Equal(t, int32(0), dp.DR)
}

func TestInputEmptyPortErrors(t *testing.T) {
	dp := datapath.New()
	require.Error(t, dp.Input(1))
}

func TestOutputSkipsNul(t *testing.T) {
	dp := datapath.New()
	dp.DR = 0
	dp.Output(0)
	require.Empty(t, dp.OutPorts[0])
	dp.DR = 'a'
	dp.Output(0)
	require.Equal(t, []byte("a"), dp.OutPorts[0])
}

func TestPrintStringifiesSignedDecimal(t *testing.T) {
	dp := datapath.New()
	dp.Reg[0] = -17
	require.NoError(t, dp.Print("r0"))
	require.Equal(t, []byte("-17"), dp.OutPorts[0])
}

func TestPSPackUnpackRoundTrip(t *testing.T) {
	ps := datapath.PS{Z: true, N: false, W: true, I: true, IA: false, E: true}
	got := datapath.Unpack(ps.Pack())
	require.Equal(t, ps, got)
}
