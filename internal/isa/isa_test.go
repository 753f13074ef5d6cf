package isa_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mregsim/internal/isa"
)

func TestAddressedRoundTrip(t *testing.T) {
	cases := []isa.AddressedFields{
		{RegBase: false, Indirect: false, Reg: 2, Second: 0x400},
		{RegBase: true, Indirect: false, Reg: 1, Second: 3},
		{RegBase: true, Indirect: true, Reg: 0, Second: 2},
	}
	for _, f := range cases {
		word := isa.EncodeAddressed(isa.LD, f)
		require.Equal(t, isa.LD, isa.DecodeOpcode(word))
		got := isa.DecodeAddressed(word)
		require.Equal(t, f, got)
	}
}

func TestNonAddressedRoundTrip(t *testing.T) {
	f := isa.NonAddressedFields{
		IsReg: [3]bool{true, true, true},
		Arg:   [3]uint32{0, 1, 2},
	}
	word := isa.EncodeNonAddressed(isa.ADD, f)
	require.Equal(t, isa.ADD, isa.DecodeOpcode(word))
	require.Equal(t, f, isa.DecodeNonAddressed(word))
}

func TestNonAddressedImmediateArgsNotFlaggedAsRegisters(t *testing.T) {
	f := isa.NonAddressedFields{
		IsReg: [3]bool{true, false, false},
		Arg:   [3]uint32{1, 42, 0},
	}
	word := isa.EncodeNonAddressed(isa.MOV, f)
	got := isa.DecodeNonAddressed(word)
	require.True(t, got.IsReg[0])
	require.False(t, got.IsReg[1])
	require.Equal(t, uint32(42), got.Arg[1])
}

func TestVecRoundTrip(t *testing.T) {
	word := isa.EncodeVec(0x55)
	require.Equal(t, uint32(0x55), isa.DecodeVec(word))
}

func TestOpcodeNumericValuesAreFixed(t *testing.T) {
	require.Equal(t, isa.Opcode(0), isa.VEC)
	require.Equal(t, isa.Opcode(2), isa.MOV)
	require.Equal(t, isa.Opcode(3), isa.ADD)
	require.Equal(t, isa.Opcode(4), isa.INC)
	require.Equal(t, isa.Opcode(5), isa.DEC)
	require.Equal(t, isa.Opcode(6), isa.BEQ)
	require.Equal(t, isa.Opcode(7), isa.BNE)
	require.Equal(t, isa.Opcode(8), isa.JMP)
	require.Equal(t, isa.Opcode(9), isa.OUT)
	require.Equal(t, isa.Opcode(10), isa.IN)
	require.Equal(t, isa.Opcode(11), isa.HLT)
	require.Equal(t, isa.Opcode(12), isa.CMP)
	require.Equal(t, isa.Opcode(13), isa.PUSH)
	require.Equal(t, isa.Opcode(14), isa.POP)
	require.Equal(t, isa.Opcode(15), isa.INT)
	require.Equal(t, isa.Opcode(16), isa.LD)
	require.Equal(t, isa.Opcode(17), isa.IRET)
	require.Equal(t, isa.Opcode(18), isa.MOD)
	require.Equal(t, isa.Opcode(19), isa.DIV)
	require.Equal(t, isa.Opcode(20), isa.PRINTI)
	require.Equal(t, isa.Opcode(21), isa.CALL)
	require.Equal(t, isa.Opcode(22), isa.RET)
	require.Equal(t, isa.Opcode(23), isa.JNE)
	require.Equal(t, isa.Opcode(24), isa.NOP)
	require.Equal(t, isa.Opcode(32), isa.ST)
}

func TestLookupByMnemonicAndOpcode(t *testing.T) {
	tpl, ok := isa.Lookup("add")
	require.True(t, ok)
	require.Equal(t, isa.ADD, tpl.Opcode)
	require.Equal(t, 3, tpl.ArgCount)

	tpl2, ok := isa.LookupOpcode(isa.ST)
	require.True(t, ok)
	require.Equal(t, "st", tpl2.Mnemonic)
}

func TestLogFormat(t *testing.T) {
	tpl, _ := isa.Lookup("add")
	line := tpl.LogFormat(4, 0, []string{"r0", "r1", "r2"})
	require.Equal(t, "0x4   --   00000000   --   add: r0 <- r1 + r2", line)
}
