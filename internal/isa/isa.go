// Package isa is the shared binary contract between the assembler and the
// simulator: opcode numbering, instruction-word bit layout, and the per-opcode
// argument templates used for both assembly-time type checking and
// disassembly-log formatting.
//
// Keeping this in one package, rather than duplicating opcode tables in the
// assembler and the control unit the way a hand-rolled toolchain often does,
// is the one structural departure this module takes from its ancestry: the
// encoding is the hard contract both halves must agree on bit-for-bit, so it
// gets a single source of truth.
package isa

import "fmt"

// Opcode identifies one of the machine's instructions. Numeric values are
// part of the on-disk ABI and must never be renumbered.
type Opcode uint8

const (
	VEC    Opcode = 0
	MOV    Opcode = 2
	ADD    Opcode = 3
	INC    Opcode = 4
	DEC    Opcode = 5
	BEQ    Opcode = 6
	BNE    Opcode = 7
	JMP    Opcode = 8
	OUT    Opcode = 9
	IN     Opcode = 10
	HLT    Opcode = 11
	CMP    Opcode = 12
	PUSH   Opcode = 13
	POP    Opcode = 14
	INT    Opcode = 15
	LD     Opcode = 16
	IRET   Opcode = 17
	MOD    Opcode = 18
	DIV    Opcode = 19
	PRINTI Opcode = 20
	CALL   Opcode = 21
	RET    Opcode = 22
	JNE    Opcode = 23
	NOP    Opcode = 24
	ST     Opcode = 32
)

func (op Opcode) String() string {
	if t, ok := byOpcode[op]; ok {
		return t.Mnemonic
	}
	return fmt.Sprintf("opcode(%d)", uint8(op))
}

// Sizing, fixed as part of the ISA.
const (
	DataSize         = 2048 // words
	CodeSize         = 128  // words
	RegisterBits     = 5    // field width reserves 32 register indices
	NumRegisters     = 4    // only r0..r3 are wired into the datapath
	MaxRegisterIndex = 31   // r0..r31 are valid assembler syntax (1<<RegisterBits - 1)
)

// Form classifies how an opcode's operand bits are packed into the word.
type Form int

const (
	FormZeroArg Form = iota
	FormAddressed
	FormBranch
	FormUnary
	FormBinary
	FormIO
	FormVec
)

// ArgType is a bitmask of the argument kinds an operand may satisfy. An
// assembler operand can match more than one kind (e.g. a bare integer is
// both Constant and, numerically, a valid Data/CodeAddress); stage-2 type
// checking intersects an operand's candidate set against a template's
// allowed set for that position.
type ArgType uint8

const (
	Register ArgType = 1 << iota
	CodeAddress
	DataAddress
	CodeLabel
	DataLabel
	Constant
)

func (t ArgType) Has(other ArgType) bool { return t&other != 0 }

// Template describes one mnemonic's shape: opcode, form, argument count, and
// per-position allowed argument types. LogFormat renders the disassembly-log
// line for one decoded instruction (addr is the code address, word the raw
// encoded instruction, args the already-resolved operand strings in source
// order).
type Template struct {
	Mnemonic  string
	Opcode    Opcode
	Form      Form
	ArgCount  int
	ArgTypes  [3]ArgType
	LogFormat func(addr uint32, word uint32, args []string) string
}

func hx(addr uint32) string { return fmt.Sprintf("%#x", addr) }
func wd(word uint32) string { return fmt.Sprintf("%08b", word) }

var templates = []Template{
	{Mnemonic: "vec", Opcode: VEC, Form: FormVec, ArgCount: 1,
		ArgTypes: [3]ArgType{CodeAddress | CodeLabel},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   int_vector: handle_addr = %s", hx(addr), wd(word), a[0])
		}},
	{Mnemonic: "ld", Opcode: LD, Form: FormAddressed, ArgCount: 2,
		ArgTypes: [3]ArgType{Register, DataAddress | DataLabel | Register},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   ld:  %s <- %s", hx(addr), wd(word), a[0], a[1])
		}},
	{Mnemonic: "st", Opcode: ST, Form: FormAddressed, ArgCount: 2,
		ArgTypes: [3]ArgType{Register, DataAddress | DataLabel | Register},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   st:  %s -> %s", hx(addr), wd(word), a[0], a[1])
		}},
	{Mnemonic: "add", Opcode: ADD, Form: FormBinary, ArgCount: 3,
		ArgTypes: [3]ArgType{Register, Register, Register},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   add: %s <- %s + %s", hx(addr), wd(word), a[0], a[1], a[2])
		}},
	{Mnemonic: "mod", Opcode: MOD, Form: FormBinary, ArgCount: 3,
		ArgTypes: [3]ArgType{Register, Register | Constant, Register | Constant},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   mod: %s <- %s %% %s", hx(addr), wd(word), a[0], a[1], a[2])
		}},
	{Mnemonic: "div", Opcode: DIV, Form: FormBinary, ArgCount: 3,
		ArgTypes: [3]ArgType{Register, Register | Constant, Register | Constant},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   div: %s <- %s // %s", hx(addr), wd(word), a[0], a[1], a[2])
		}},
	{Mnemonic: "inc", Opcode: INC, Form: FormUnary, ArgCount: 1,
		ArgTypes: [3]ArgType{Register},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   inc: %s <- %s + 1", hx(addr), wd(word), a[0], a[0])
		}},
	{Mnemonic: "dec", Opcode: DEC, Form: FormUnary, ArgCount: 1,
		ArgTypes: [3]ArgType{Register},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   dec: %s <- %s - 1", hx(addr), wd(word), a[0], a[0])
		}},
	{Mnemonic: "beq", Opcode: BEQ, Form: FormBranch, ArgCount: 1,
		ArgTypes: [3]ArgType{CodeAddress | CodeLabel},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   beq: if Z ip <- %s", hx(addr), wd(word), a[0])
		}},
	{Mnemonic: "bne", Opcode: BNE, Form: FormBranch, ArgCount: 1,
		ArgTypes: [3]ArgType{CodeAddress | CodeLabel},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   bne: if !Z ip <- %s", hx(addr), wd(word), a[0])
		}},
	{Mnemonic: "out", Opcode: OUT, Form: FormIO, ArgCount: 2,
		ArgTypes: [3]ArgType{Register, Constant},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   out: %s output %s", hx(addr), wd(word), a[0], a[1])
		}},
	{Mnemonic: "in", Opcode: IN, Form: FormIO, ArgCount: 2,
		ArgTypes: [3]ArgType{Register, Constant},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   in:  %s input %s", hx(addr), wd(word), a[0], a[1])
		}},
	{Mnemonic: "printi", Opcode: PRINTI, Form: FormUnary, ArgCount: 1,
		ArgTypes: [3]ArgType{Register},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   print int %s", hx(addr), wd(word), a[0])
		}},
	{Mnemonic: "hlt", Opcode: HLT, Form: FormZeroArg, ArgCount: 0,
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   hlt", hx(addr), wd(word))
		}},
	{Mnemonic: "mov", Opcode: MOV, Form: FormBinary, ArgCount: 2,
		ArgTypes: [3]ArgType{Register, Register | Constant | DataLabel | CodeLabel},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   mov: %s <- %s", hx(addr), wd(word), a[0], a[1])
		}},
	{Mnemonic: "cmp", Opcode: CMP, Form: FormBinary, ArgCount: 2,
		ArgTypes: [3]ArgType{Register | Constant, Register | Constant},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   cmp: ps <- %s - %s", hx(addr), wd(word), a[0], a[1])
		}},
	{Mnemonic: "jmp", Opcode: JMP, Form: FormBranch, ArgCount: 1,
		ArgTypes: [3]ArgType{CodeAddress | CodeLabel},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   jmp: ip <- %s", hx(addr), wd(word), a[0])
		}},
	{Mnemonic: "jne", Opcode: JNE, Form: FormBranch, ArgCount: 1,
		ArgTypes: [3]ArgType{CodeAddress | CodeLabel},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   je: if !E ip <- %s", hx(addr), wd(word), a[0])
		}},
	{Mnemonic: "push", Opcode: PUSH, Form: FormUnary, ArgCount: 1,
		ArgTypes: [3]ArgType{Register | Constant},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   push: stack <- %s", hx(addr), wd(word), a[0])
		}},
	{Mnemonic: "pop", Opcode: POP, Form: FormUnary, ArgCount: 1,
		ArgTypes: [3]ArgType{Register | Constant},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   push: %s <- stack", hx(addr), wd(word), a[0])
		}},
	{Mnemonic: "int", Opcode: INT, Form: FormZeroArg, ArgCount: 0,
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   int", hx(addr), wd(word))
		}},
	{Mnemonic: "iret", Opcode: IRET, Form: FormZeroArg, ArgCount: 0,
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   iret", hx(addr), wd(word))
		}},
	{Mnemonic: "call", Opcode: CALL, Form: FormBranch, ArgCount: 1,
		ArgTypes: [3]ArgType{CodeAddress | CodeLabel},
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   call %s", hx(addr), wd(word), a[0])
		}},
	{Mnemonic: "ret", Opcode: RET, Form: FormZeroArg, ArgCount: 0,
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   ret", hx(addr), wd(word))
		}},
	{Mnemonic: "nop", Opcode: NOP, Form: FormZeroArg, ArgCount: 0,
		LogFormat: func(addr, word uint32, a []string) string {
			return fmt.Sprintf("%s   --   %s   --   nop", hx(addr), wd(word))
		}},
}

var (
	byMnemonic = map[string]*Template{}
	byOpcode   = map[Opcode]*Template{}
)

func init() {
	for i := range templates {
		t := &templates[i]
		byMnemonic[t.Mnemonic] = t
		byOpcode[t.Opcode] = t
	}
}

// Lookup returns the template for a mnemonic (case-sensitive, lowercase as
// written in source), and whether it was found.
func Lookup(mnemonic string) (*Template, bool) {
	t, ok := byMnemonic[mnemonic]
	return t, ok
}

// LookupOpcode returns the template for a decoded opcode value.
func LookupOpcode(op Opcode) (*Template, bool) {
	t, ok := byOpcode[op]
	return t, ok
}

// field reads a bit-width-`width` field starting at MSB-numbered bit
// position `start` (bit 0 is the most significant bit of the 32-bit word,
// matching the wire-format numbering used throughout the encoding).
func field(word uint32, start, width int) uint32 {
	shift := 32 - start - width
	mask := uint32(1)<<uint(width) - 1
	return (word >> uint(shift)) & mask
}

func setField(word uint32, start, width int, value uint32) uint32 {
	shift := 32 - start - width
	mask := uint32(1)<<uint(width) - 1
	return (word &^ (mask << uint(shift))) | ((value & mask) << uint(shift))
}

// DecodeOpcode extracts bits [0..7] from an encoded instruction word.
func DecodeOpcode(word uint32) Opcode { return Opcode(field(word, 0, 8)) }

// AddressedFields are the decoded operand bits of an LD/ST instruction word.
type AddressedFields struct {
	RegBase  bool   // bit 8
	Indirect bool   // bit 9
	Reg      uint32 // bits [10..20], 11 bits (register index in low 5)
	Second   uint32 // bits [21..31], 11 bits (register index or immediate)
}

// EncodeAddressed packs an LD/ST instruction word.
func EncodeAddressed(op Opcode, f AddressedFields) uint32 {
	word := setField(0, 0, 8, uint32(op))
	if f.RegBase {
		word = setField(word, 8, 1, 1)
	}
	if f.Indirect {
		word = setField(word, 9, 1, 1)
	}
	word = setField(word, 10, 11, f.Reg)
	word = setField(word, 21, 11, f.Second)
	return word
}

// DecodeAddressed unpacks an LD/ST instruction word (opcode bits ignored by
// the caller; use DecodeOpcode first).
func DecodeAddressed(word uint32) AddressedFields {
	return AddressedFields{
		RegBase:  field(word, 8, 1) == 1,
		Indirect: field(word, 9, 1) == 1,
		Reg:      field(word, 10, 11),
		Second:   field(word, 21, 11),
	}
}

// NonAddressedFields are the decoded operand bits of any non-addressed
// instruction word (everything except LD/ST and the VEC pseudo-instruction).
type NonAddressedFields struct {
	IsReg [3]bool   // bits 8,9,10 — arg1, arg2, arg3 is-register flags
	Arg   [3]uint32 // bits [11..17], [18..24], [25..31] — 7 bits each
}

// EncodeNonAddressed packs a three-argument instruction word. Unused
// trailing arguments should be zero.
func EncodeNonAddressed(op Opcode, f NonAddressedFields) uint32 {
	word := setField(0, 0, 8, uint32(op))
	for i, isReg := range f.IsReg {
		if isReg {
			word = setField(word, 8+i, 1, 1)
		}
	}
	word = setField(word, 11, 7, f.Arg[0])
	word = setField(word, 18, 7, f.Arg[1])
	word = setField(word, 25, 7, f.Arg[2])
	return word
}

// DecodeNonAddressed unpacks a three-argument instruction word.
func DecodeNonAddressed(word uint32) NonAddressedFields {
	return NonAddressedFields{
		IsReg: [3]bool{field(word, 8, 1) == 1, field(word, 9, 1) == 1, field(word, 10, 1) == 1},
		Arg:   [3]uint32{field(word, 11, 7), field(word, 18, 7), field(word, 25, 7)},
	}
}

// EncodeVec packs the interrupt-vector pseudo-instruction: the entire word
// is the handler's code address, with no opcode byte.
func EncodeVec(handlerAddr uint32) uint32 { return handlerAddr }

// DecodeVec reads the interrupt-vector word back out.
func DecodeVec(word uint32) uint32 { return word }
