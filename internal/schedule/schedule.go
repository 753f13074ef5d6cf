// Package schedule reads the simulator's input-schedule file: one
// (tick, character) event per line, driving the single wired input port.
package schedule

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"mregsim/internal/datapath"
)

var quotedChar = regexp.MustCompile(`'(.)'`)

// Port is the only input port the machine wires up.
const Port = 1

// Read parses an input-schedule file into the events for Port, appending
// the sentinel (last_tick+1000, '\0') event the simulator relies on to end
// a cat-style read loop via PS.E. An empty schedule gets a sentinel at
// tick 1001, matching the source's "1 if len(events) == 0" fallback.
func Read(r io.Reader) ([]datapath.InputEvent, error) {
	var events []datapath.InputEvent
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		ev, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("schedule: line %d: %w", lineNo, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}

	lastTick := 1
	if len(events) > 0 {
		lastTick = events[len(events)-1].Tick
	}
	events = append(events, datapath.InputEvent{Tick: lastTick + 1000, Char: 0})
	return events, nil
}

// ReadFile reads and parses the input-schedule file at path.
func ReadFile(path string) ([]datapath.InputEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func parseLine(line string) (datapath.InputEvent, error) {
	line = strings.ReplaceAll(line, "(", "")
	line = strings.ReplaceAll(line, ")", "")
	m := quotedChar.FindStringSubmatch(line)
	if m == nil {
		return datapath.InputEvent{}, fmt.Errorf("no quoted character found in %q", line)
	}
	char := m[1][0]

	stripped := strings.Join(strings.Fields(line), "")
	stripped = strings.ReplaceAll(stripped, " ", "")
	parts := strings.SplitN(stripped, ",", 2)
	tick, err := strconv.Atoi(parts[0])
	if err != nil {
		return datapath.InputEvent{}, fmt.Errorf("bad tick in %q: %w", line, err)
	}
	return datapath.InputEvent{Tick: tick, Char: char}, nil
}
