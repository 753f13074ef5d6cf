// Package objfile reads and writes the big-endian object file format the
// assembler produces and the simulator loads: a pair of size-prefixed word
// arrays followed by the entry point.
package objfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"mregsim/internal/isa"
)

// Image is a decoded object file: the used portion of data and code memory
// plus the resolved entry point. Data and Code are always exactly
// isa.DataSize and isa.CodeSize long, zero-filled past the file's recorded
// sizes.
type Image struct {
	Data       [isa.DataSize]int32
	Code       [isa.CodeSize]uint32
	EntryPoint uint32
}

// Write serializes an assembled image to w: data_size, code_size, data
// words, code words, entry_point, all big-endian u32. data_size and
// code_size are len(data) and len(code) (the assembler's own idea of how
// much of each memory the program actually occupies — unlike a
// simulator-side Image, an assembler-side image does not necessarily fill
// every word); a slice longer than its memory is an error.
func Write(w io.Writer, data []int32, code []uint32, entryPoint uint32) error {
	if len(data) > isa.DataSize {
		return fmt.Errorf("objfile: data image too large (%d words > %d)", len(data), isa.DataSize)
	}
	if len(code) > isa.CodeSize {
		return fmt.Errorf("objfile: code image too large (%d words > %d)", len(code), isa.CodeSize)
	}
	if err := writeU32(w, uint32(len(data))); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(code))); err != nil {
		return err
	}
	for _, v := range data {
		if err := writeU32(w, uint32(v)); err != nil {
			return err
		}
	}
	for _, v := range code {
		if err := writeU32(w, v); err != nil {
			return err
		}
	}
	return writeU32(w, entryPoint)
}

// WriteFile writes the object file to path.
func WriteFile(path string, data []int32, code []uint32, entryPoint uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("objfile: %w", err)
	}
	defer f.Close()
	return Write(f, data, code, entryPoint)
}

// Read decodes an object file from r into a full-size Image, zero-filling
// any words past the recorded data_size/code_size.
func Read(r io.Reader) (*Image, error) {
	dataSize, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("objfile: reading data_size: %w", err)
	}
	codeSize, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("objfile: reading code_size: %w", err)
	}
	if dataSize > isa.DataSize {
		return nil, fmt.Errorf("objfile: data_size %d exceeds memory of %d words", dataSize, isa.DataSize)
	}
	if codeSize > isa.CodeSize {
		return nil, fmt.Errorf("objfile: code_size %d exceeds memory of %d words", codeSize, isa.CodeSize)
	}

	img := &Image{}
	for i := uint32(0); i < dataSize; i++ {
		v, err := readU32(r)
		if err != nil {
			return nil, fmt.Errorf("objfile: reading data word %d: %w", i, err)
		}
		img.Data[i] = int32(v)
	}
	for i := uint32(0); i < codeSize; i++ {
		v, err := readU32(r)
		if err != nil {
			return nil, fmt.Errorf("objfile: reading code word %d: %w", i, err)
		}
		img.Code[i] = v
	}
	entry, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("objfile: reading entry_point: %w", err)
	}
	img.EntryPoint = entry
	return img, nil
}

// ReadFile reads and decodes the object file at path.
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("objfile: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}
