package dagstatus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gridsub/gridsub/pkg/errors"
)

// entry is one parsed "key = value; /* comment */" line.
type entry struct {
	value   string
	comment string
}

// block is one bracketed record's raw key set.
type block struct {
	entries map[string]entry
}

func newBlock() *block {
	return &block{entries: make(map[string]entry)}
}

func (b *block) set(key string, e entry) {
	b.entries[key] = e
}

// value returns the stripped value for key, failing on absence so record
// construction surfaces truncated snapshots instead of zero-filling them.
func (b *block) value(key string) (string, error) {
	e, ok := b.entries[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", errors.ErrMissingField, key)
	}
	return e.value, nil
}

func (b *block) comment(key string) (string, error) {
	e, ok := b.entries[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", errors.ErrMissingField, key)
	}
	return e.comment, nil
}

func (b *block) intValue(key string) (int, error) {
	v, err := b.value(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return n, nil
}

// ParseFile reads and parses a status snapshot from disk.
func ParseFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapParseError(path, 0, err)
	}
	defer f.Close()

	snap, err := Parse(f)
	if err != nil {
		if pe, ok := err.(*errors.ParseError); ok {
			pe.File = path
			return nil, pe
		}
		return nil, errors.WrapParseError(path, 0, err)
	}
	return snap, nil
}

// Parse reads a status snapshot. A valid snapshot carries exactly one
// DagStatus block, any number of NodeStatus blocks, and one StatusEnd
// block; anything else fails and no partial snapshot is returned.
func Parse(r io.Reader) (*Snapshot, error) {
	var (
		summary *Summary
		nodes   []NodeStatus
		end     *End
	)

	scanner := bufio.NewScanner(r)
	var current *block
	var inBraces bool
	var lineNo, blockStart int

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, "["):
			current = newBlock()
			blockStart = lineNo
		case strings.HasPrefix(line, "]"):
			if current == nil {
				continue
			}
			if err := dispatch(current, &summary, &nodes, &end); err != nil {
				return nil, errors.WrapParseError("", blockStart, err)
			}
			current = nil
		case strings.Contains(line, "{"):
			inBraces = true
		case strings.Contains(line, "}"):
			inBraces = false
		case line == "" || inBraces:
			// nested attribute lists carry nothing the report needs
		case current != nil:
			key, e, ok := parseLine(line)
			if !ok {
				return nil, errors.WrapParseError("", lineNo, fmt.Errorf("malformed line %q", line))
			}
			current.set(key, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapParseError("", lineNo, err)
	}

	if summary == nil {
		return nil, errors.WrapParseError("", 0, fmt.Errorf("%w: DagStatus block", errors.ErrMissingField))
	}
	if end == nil {
		return nil, errors.WrapParseError("", 0, fmt.Errorf("%w: StatusEnd block", errors.ErrMissingField))
	}

	return &Snapshot{Summary: *summary, Nodes: nodes, End: *end}, nil
}

func dispatch(b *block, summary **Summary, nodes *[]NodeStatus, end **End) error {
	typ, err := b.value("Type")
	if err != nil {
		return err
	}

	switch typ {
	case "DagStatus":
		if *summary != nil {
			return fmt.Errorf("duplicate DagStatus block")
		}
		s, err := buildSummary(b)
		if err != nil {
			return err
		}
		*summary = s
	case "NodeStatus":
		n, err := buildNodeStatus(b)
		if err != nil {
			return err
		}
		*nodes = append(*nodes, *n)
	case "StatusEnd":
		if *end != nil {
			return fmt.Errorf("duplicate StatusEnd block")
		}
		e, err := buildEnd(b)
		if err != nil {
			return err
		}
		*end = e
	default:
		return fmt.Errorf("%w: %q", errors.ErrUnknownBlockType, typ)
	}
	return nil
}

// parseLine splits `key = value; /* comment */` into its parts, stripping
// quotes from both value and comment.
func parseLine(line string) (string, entry, bool) {
	key, rest, found := strings.Cut(line, "=")
	if !found {
		return "", entry{}, false
	}
	key = strings.TrimSpace(key)

	value, comment, _ := strings.Cut(rest, ";")
	value = stripQuotes(strings.TrimSpace(value))
	comment = strings.ReplaceAll(comment, "/*", "")
	comment = strings.ReplaceAll(comment, "*/", "")
	comment = stripQuotes(strings.TrimSpace(comment))

	return key, entry{value: value, comment: comment}, true
}

func stripQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}

func buildSummary(b *block) (*Summary, error) {
	s := &Summary{}
	var err error
	if s.Timestamp, err = b.comment("Timestamp"); err != nil {
		return nil, err
	}
	if s.Status, err = b.comment("DagStatus"); err != nil {
		return nil, err
	}

	for _, f := range []struct {
		key  string
		dest *int
	}{
		{"NodesTotal", &s.NodesTotal},
		{"NodesDone", &s.NodesDone},
		{"NodesPre", &s.NodesPre},
		{"NodesQueued", &s.NodesQueued},
		{"NodesPost", &s.NodesPost},
		{"NodesReady", &s.NodesReady},
		{"NodesUnready", &s.NodesUnready},
		{"NodesFailed", &s.NodesFailed},
		{"JobProcsHeld", &s.JobProcsHeld},
		{"JobProcsIdle", &s.JobProcsIdle},
	} {
		if *f.dest, err = b.intValue(f.key); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func buildNodeStatus(b *block) (*NodeStatus, error) {
	n := &NodeStatus{}
	var err error
	if n.Name, err = b.value("Node"); err != nil {
		return nil, err
	}
	if n.Status, err = b.comment("NodeStatus"); err != nil {
		return nil, err
	}
	if n.Detail, err = b.value("StatusDetails"); err != nil {
		return nil, err
	}
	if n.RetryCount, err = b.intValue("RetryCount"); err != nil {
		return nil, err
	}
	if n.ProcsQueued, err = b.intValue("JobProcsQueued"); err != nil {
		return nil, err
	}
	if n.ProcsHeld, err = b.intValue("JobProcsHeld"); err != nil {
		return nil, err
	}
	return n, nil
}

func buildEnd(b *block) (*End, error) {
	e := &End{}
	var err error
	if e.EndTime, err = b.comment("EndTime"); err != nil {
		return nil, err
	}
	if e.NextUpdate, err = b.comment("NextUpdate"); err != nil {
		return nil, err
	}
	return e, nil
}
