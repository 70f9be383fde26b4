// Package trace reads and writes allocation trace files in the classic
// malloc-lab driver format:
//
//	<suggested heap size>
//	<number of ids>
//	<number of ops>
//	<weight>
//	a <id> <bytes>    allocate
//	r <id> <bytes>    reallocate
//	f <id>            free
//
// Ids name blocks; an id is live between its "a" and its "f". Blank lines
// and lines starting with '#' are ignored.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// OpKind is the type of a trace operation.
type OpKind uint8

const (
	OpAlloc OpKind = iota + 1
	OpRealloc
	OpFree
)

func (k OpKind) String() string {
	switch k {
	case OpAlloc:
		return "a"
	case OpRealloc:
		return "r"
	case OpFree:
		return "f"
	}
	return fmt.Sprintf("OpKind(%d)", uint8(k))
}

// Op is one trace line.
type Op struct {
	Kind OpKind
	ID   int
	Size int // Unused for OpFree
	Line int // 1-based source line, 0 for synthesized ops
}

func (o Op) String() string {
	if o.Kind == OpFree {
		return fmt.Sprintf("f %d", o.ID)
	}
	return fmt.Sprintf("%s %d %d", o.Kind, o.ID, o.Size)
}

// Trace is a parsed trace file.
type Trace struct {
	Name          string
	SuggestedHeap int
	NumIDs        int
	Weight        int
	Ops           []Op
}

var (
	// ErrSyntax indicates a malformed line.
	ErrSyntax = errors.New("trace: syntax error")

	// ErrHeader indicates a missing or invalid header field.
	ErrHeader = errors.New("trace: bad header")

	// ErrBadID indicates an id outside [0, NumIDs).
	ErrBadID = errors.New("trace: id out of range")

	// ErrSequence indicates an op on an id in the wrong state, such as
	// freeing an id that is not live.
	ErrSequence = errors.New("trace: bad op sequence")
)

// ParseFile parses the trace at path. The trace is named after the file.
func ParseFile(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.Name = filepath.Base(path)
	return t, nil
}

// Parse reads a trace and validates it.
func Parse(r io.Reader) (*Trace, error) {
	sc := bufio.NewScanner(r)
	line := 0
	next := func() (string, bool) {
		for sc.Scan() {
			line++
			s := strings.TrimSpace(sc.Text())
			if s == "" || strings.HasPrefix(s, "#") {
				continue
			}
			return s, true
		}
		return "", false
	}

	var header [4]int
	names := [4]string{"heap size", "id count", "op count", "weight"}
	for i := range header {
		s, ok := next()
		if !ok {
			if err := sc.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: missing %s", ErrHeader, names[i])
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: line %d: %s %q", ErrHeader, line, names[i], s)
		}
		header[i] = n
	}

	t := &Trace{
		SuggestedHeap: header[0],
		NumIDs:        header[1],
		Weight:        header[3],
		Ops:           make([]Op, 0, header[2]),
	}

	for {
		s, ok := next()
		if !ok {
			break
		}
		op, err := parseOp(s)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		op.Line = line
		t.Ops = append(t.Ops, op)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if len(t.Ops) != header[2] {
		return nil, fmt.Errorf("%w: header declares %d ops, found %d", ErrHeader, header[2], len(t.Ops))
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func parseOp(s string) (Op, error) {
	f := strings.Fields(s)
	var op Op
	want := 3
	switch f[0] {
	case "a":
		op.Kind = OpAlloc
	case "r":
		op.Kind = OpRealloc
	case "f":
		op.Kind, want = OpFree, 2
	default:
		return op, fmt.Errorf("%w: unknown op %q", ErrSyntax, f[0])
	}
	if len(f) != want {
		return op, fmt.Errorf("%w: %q takes %d fields", ErrSyntax, f[0], want)
	}

	var err error
	if op.ID, err = strconv.Atoi(f[1]); err != nil || op.ID < 0 {
		return op, fmt.Errorf("%w: bad id %q", ErrSyntax, f[1])
	}
	if want == 3 {
		if op.Size, err = strconv.Atoi(f[2]); err != nil || op.Size < 0 {
			return op, fmt.Errorf("%w: bad size %q", ErrSyntax, f[2])
		}
	}
	return op, nil
}

// Validate checks ids are in range and every realloc or free names a live
// id while every alloc names a dead one.
func (t *Trace) Validate() error {
	live := make([]bool, t.NumIDs)
	for i, op := range t.Ops {
		if op.ID >= t.NumIDs {
			return fmt.Errorf("%w: op %d (%v): %d ids declared", ErrBadID, i, op, t.NumIDs)
		}
		switch op.Kind {
		case OpAlloc:
			if live[op.ID] {
				return fmt.Errorf("%w: op %d (%v): id already live", ErrSequence, i, op)
			}
			live[op.ID] = true
		case OpRealloc, OpFree:
			if !live[op.ID] {
				return fmt.Errorf("%w: op %d (%v): id not live", ErrSequence, i, op)
			}
			if op.Kind == OpFree {
				live[op.ID] = false
			}
		}
	}
	return nil
}

// Write serializes t in trace format.
func Write(w io.Writer, t *Trace) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n%d\n%d\n%d\n", t.SuggestedHeap, t.NumIDs, len(t.Ops), t.Weight)
	for _, op := range t.Ops {
		fmt.Fprintln(bw, op)
	}
	return bw.Flush()
}
