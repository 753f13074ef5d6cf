// Package assembler implements the three-stage translator: classify source
// lines and collect labels, type-check and resolve operands, then encode
// the object file bytes and a human-readable disassembly log.
package assembler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mregsim/internal/isa"
)

// Error is a fatal translator error: an unknown line shape, unknown
// opcode, arity mismatch, undefined label, operand-type mismatch, or
// duplicate label. All are fatal; there is no partial-translation recovery.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("assembler: line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("assembler: %s", e.Msg)
}

func errAt(line int, format string, args ...any) *Error {
	return &Error{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Result is the output of a successful assembly.
type Result struct {
	Data       []int32
	Code       []uint32
	EntryPoint uint32
	Log        string
}

var (
	sectionRe  = regexp.MustCompile(`(?i)^section\s+\.(data|text)$`)
	labelOnlyRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*):(.*)$`)
	registerRe = regexp.MustCompile(`^[rR](\d+)$`)
	quotedRe   = regexp.MustCompile(`'([^']*)'`)
	directiveRe = regexp.MustCompile(`(?i)^(db|dd|qword)\s+(.*)$`)
)

type section int

const (
	sectionNone section = iota
	sectionData
	sectionText
)

type rawCommand struct {
	mnemonic string
	args     []string
	addr     uint32
	line     int
}

// Assemble translates source text into an object-file image plus its
// disassembly log.
func Assemble(source string) (*Result, error) {
	dataWords, dataLabels, commands, codeLabels, err := scan(source)
	if err != nil {
		return nil, err
	}

	entryAddr, ok := codeLabels["_start"]
	if !ok {
		return nil, errAt(0, "undefined entry point: no _start label")
	}

	var code []uint32
	var logLines []string
	for _, cmd := range commands {
		word, logArgs, err := encode(cmd, codeLabels, dataLabels)
		if err != nil {
			return nil, err
		}
		code = append(code, word)

		if cmd.mnemonic == "vec" {
			tpl, _ := isa.Lookup("vec")
			logLines = append(logLines, tpl.LogFormat(cmd.addr, word, logArgs))
			continue
		}
		tpl, _ := isa.Lookup(cmd.mnemonic)
		logLines = append(logLines, tpl.LogFormat(cmd.addr, word, logArgs))
	}

	return &Result{
		Data:       dataWords,
		Code:       code,
		EntryPoint: entryAddr,
		Log:        strings.Join(logLines, "\n") + "\n",
	}, nil
}

// scan runs stage 1: classify lines, collect labels, build the data image
// and the list of not-yet-encoded commands.
func scan(source string) ([]int32, map[string]uint32, []rawCommand, map[string]uint32, error) {
	var dataWords []int32
	dataLabels := map[string]uint32{}
	codeLabels := map[string]uint32{}
	var commands []rawCommand

	sec := sectionNone
	var codeAddr uint32
	lines := strings.Split(source, "\n")

	for i, raw := range lines {
		lineNo := i + 1
		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := sectionRe.FindStringSubmatch(line); m != nil {
			switch strings.ToLower(m[1]) {
			case "data":
				sec = sectionData
			case "text":
				sec = sectionText
			}
			continue
		}

		rest := line
		if m := labelOnlyRe.FindStringSubmatch(line); m != nil {
			label, tail := m[1], strings.TrimSpace(m[2])
			switch sec {
			case sectionData:
				if _, exists := dataLabels[label]; exists {
					return nil, nil, nil, nil, errAt(lineNo, "duplicate label %q", label)
				}
				dataLabels[label] = uint32(len(dataWords))
			case sectionText:
				if _, exists := codeLabels[label]; exists {
					return nil, nil, nil, nil, errAt(lineNo, "duplicate label %q", label)
				}
				codeLabels[label] = codeAddr
			default:
				return nil, nil, nil, nil, errAt(lineNo, "label %q outside any section", label)
			}
			if tail == "" {
				continue
			}
			rest = tail
		}

		switch sec {
		case sectionData:
			words, err := parseDataLine(rest, lineNo)
			if err != nil {
				return nil, nil, nil, nil, err
			}
			dataWords = append(dataWords, words...)
		case sectionText:
			mnemonic, args, err := parseCommandLine(rest, lineNo)
			if err != nil {
				return nil, nil, nil, nil, err
			}
			commands = append(commands, rawCommand{mnemonic: mnemonic, args: args, addr: codeAddr, line: lineNo})
			codeAddr++
		default:
			return nil, nil, nil, nil, errAt(lineNo, "unknown line shape: %q", raw)
		}
	}

	return dataWords, dataLabels, commands, codeLabels, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		return line[:i]
	}
	return line
}

// parseDataLine handles one db/dd/qword directive. The three directive
// names are synonyms: each accepts a comma-separated mix of decimal
// literals and single-quoted strings (with a literal "\n" escape),
// appended to the data image in source order.
func parseDataLine(rest string, lineNo int) ([]int32, error) {
	m := directiveRe.FindStringSubmatch(rest)
	if m == nil {
		return nil, errAt(lineNo, "unknown line shape: %q", rest)
	}
	operands := m[2]

	var words []int32
	for _, tok := range splitTopLevelComma(operands) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if sm := quotedRe.FindStringSubmatch(tok); sm != nil {
			s := strings.ReplaceAll(sm[1], `\n`, "\n")
			for _, ch := range []byte(s) {
				words = append(words, int32(ch))
			}
			continue
		}
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, errAt(lineNo, "bad data literal %q", tok)
		}
		words = append(words, int32(n))
	}
	return words, nil
}

func splitTopLevelComma(s string) []string {
	var out []string
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// parseCommandLine splits a .text line into its mnemonic and comma-separated
// operand list.
func parseCommandLine(rest string, lineNo int) (string, []string, error) {
	fields := strings.SplitN(strings.TrimSpace(rest), " ", 2)
	mnemonic := strings.ToLower(strings.TrimSpace(fields[0]))
	if mnemonic == "" {
		return "", nil, errAt(lineNo, "unknown line shape: %q", rest)
	}
	if len(fields) == 1 || strings.TrimSpace(fields[1]) == "" {
		return mnemonic, nil, nil
	}
	var args []string
	for _, a := range splitTopLevelComma(fields[1]) {
		args = append(args, strings.TrimSpace(a))
	}
	return mnemonic, args, nil
}

// classified is a fully-resolved operand, the result of stage 2's type
// check against one argument position's allowed set.
type classified struct {
	isRegister bool
	reg        uint32
	value      uint32
	display    string // what the disassembly log should show for this operand
}

// classify resolves one operand string against the template's allowed
// ArgType set for its position, consulting the label tables for label
// operands. Indirect addressing's brackets are stripped by the caller
// before classify ever sees the inner text.
func classify(raw string, allowed isa.ArgType, codeLabels, dataLabels map[string]uint32, lineNo int, mnemonic string) (classified, error) {
	if m := registerRe.FindStringSubmatch(raw); m != nil {
		if !allowed.Has(isa.Register) {
			return classified{}, errAt(lineNo, "wrong argument %q for %s", raw, mnemonic)
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n > isa.MaxRegisterIndex {
			return classified{}, errAt(lineNo, "wrong argument %q for %s", raw, mnemonic)
		}
		return classified{isRegister: true, reg: uint32(n), display: raw}, nil
	}
	if addr, ok := codeLabels[raw]; ok {
		if !allowed.Has(isa.CodeLabel) && !allowed.Has(isa.CodeAddress) {
			return classified{}, errAt(lineNo, "wrong argument %q for %s", raw, mnemonic)
		}
		return classified{value: addr, display: fmt.Sprintf("%#x", addr)}, nil
	}
	if addr, ok := dataLabels[raw]; ok {
		if !allowed.Has(isa.DataLabel) && !allowed.Has(isa.DataAddress) {
			return classified{}, errAt(lineNo, "wrong argument %q for %s", raw, mnemonic)
		}
		return classified{value: addr, display: fmt.Sprintf("%#x", addr)}, nil
	}
	if n, err := strconv.ParseUint(raw, 10, 32); err == nil {
		if !allowed.Has(isa.Constant) && !allowed.Has(isa.CodeAddress) && !allowed.Has(isa.DataAddress) {
			return classified{}, errAt(lineNo, "wrong argument %q for %s", raw, mnemonic)
		}
		return classified{value: uint32(n), display: fmt.Sprintf("%#x", n)}, nil
	}
	return classified{}, errAt(lineNo, "undefined label or bad operand %q", raw)
}

// operandText splits a possibly-bracketed ("[expr]") operand into its
// indirect flag and the bare expression inside.
func operandText(raw string) (text string, indirect bool) {
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		return strings.TrimSpace(raw[1 : len(raw)-1]), true
	}
	return raw, false
}

// encode runs stage 2 (type-check/resolve) and stage 3 (pack to a word) for
// one command, returning the encoded word and the display strings for the
// disassembly log line.
func encode(cmd rawCommand, codeLabels, dataLabels map[string]uint32) (uint32, []string, error) {
	if cmd.mnemonic == "vec" {
		if len(cmd.args) != 1 {
			return 0, nil, errAt(cmd.line, "vec takes exactly 1 argument")
		}
		c, err := classify(cmd.args[0], isa.CodeAddress|isa.CodeLabel, codeLabels, dataLabels, cmd.line, "vec")
		if err != nil {
			return 0, nil, err
		}
		return isa.EncodeVec(c.value), []string{c.display}, nil
	}

	tpl, ok := isa.Lookup(cmd.mnemonic)
	if !ok {
		return 0, nil, errAt(cmd.line, "unknown opcode %q", cmd.mnemonic)
	}
	if len(cmd.args) != tpl.ArgCount {
		return 0, nil, errAt(cmd.line, "%s expects %d argument(s), got %d", cmd.mnemonic, tpl.ArgCount, len(cmd.args))
	}

	cls := make([]classified, tpl.ArgCount)
	indirect := make([]bool, tpl.ArgCount)
	for i, raw := range cmd.args {
		text, ind := operandText(raw)
		indirect[i] = ind
		c, err := classify(text, tpl.ArgTypes[i], codeLabels, dataLabels, cmd.line, cmd.mnemonic)
		if err != nil {
			return 0, nil, err
		}
		cls[i] = c
	}

	display := make([]string, len(cls))
	for i, c := range cls {
		display[i] = c.display
	}

	switch tpl.Form {
	case isa.FormAddressed:
		f := isa.AddressedFields{
			Indirect: indirect[1],
			Reg:      cls[0].reg,
		}
		if cls[1].isRegister {
			f.RegBase = true
			f.Second = cls[1].reg
		} else {
			f.Second = cls[1].value
		}
		return isa.EncodeAddressed(tpl.Opcode, f), display, nil
	default:
		var f isa.NonAddressedFields
		for i, c := range cls {
			f.IsReg[i] = c.isRegister
			if c.isRegister {
				f.Arg[i] = c.reg
			} else {
				f.Arg[i] = c.value
			}
		}
		return isa.EncodeNonAddressed(tpl.Opcode, f), display, nil
	}
}
