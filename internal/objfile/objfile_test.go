package objfile_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"mregsim/internal/isa"
	"mregsim/internal/objfile"
)

func TestWriteReadRoundTrip(t *testing.T) {
	data := []int32{1, 2, 3}
	code := []uint32{isa.EncodeVec(5), isa.EncodeAddressed(isa.LD, isa.AddressedFields{Reg: 0, Second: 0})}

	var buf bytes.Buffer
	require.NoError(t, objfile.Write(&buf, data, code, 1))

	img, err := objfile.Read(&buf)
	require.NoError(t, err)
	require.Equal(t, int32(1), img.Data[0])
	require.Equal(t, int32(2), img.Data[1])
	require.Equal(t, int32(3), img.Data[2])
	require.Equal(t, int32(0), img.Data[3], "unused words zero-filled")
	require.Equal(t, code[0], img.Code[0])
	require.Equal(t, code[1], img.Code[1])
	require.Equal(t, uint32(0), img.Code[2], "unused words zero-filled")
	require.Equal(t, uint32(1), img.EntryPoint)
}

func TestWriteRejectsOversizedImages(t *testing.T) {
	var buf bytes.Buffer
	oversized := make([]int32, isa.DataSize+1)
	require.Error(t, objfile.Write(&buf, oversized, nil, 0))
}

func TestBigEndianLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, objfile.Write(&buf, []int32{0x01020304}, nil, 0))
	b := buf.Bytes()
	// data_size=1, code_size=0, then the one data word big-endian.
	require.Equal(t, []byte{0, 0, 0, 1}, b[0:4])
	require.Equal(t, []byte{0, 0, 0, 0}, b[4:8])
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, b[8:12])
}
