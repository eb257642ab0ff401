// Package trace decodes trace files into simulator commands.
package trace

import (
	"bufio"
	"io"
	"strings"

	"github.com/sarchlab/memsym/memsym"
)

// CommentPrefix starts a line that is not a command.
const CommentPrefix = "%"

const maxLineLength = 1 << 20

// A Reader reads commands from a trace, one per line. Blank lines and comment
// lines are skipped. Tokens are separated by white space.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader that reads from r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)

	return &Reader{scanner: scanner}
}

// Next returns the next command. It returns io.EOF at the end of the trace.
func (r *Reader) Next() (memsym.Command, error) {
	for r.scanner.Scan() {
		r.line++

		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, CommentPrefix) {
			continue
		}

		tokens := strings.Fields(text)

		return memsym.Command{
			Name: tokens[0],
			Args: tokens[1:],
			Line: r.line,
		}, nil
	}

	if err := r.scanner.Err(); err != nil {
		return memsym.Command{}, err
	}

	return memsym.Command{}, io.EOF
}

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int {
	return r.line
}

// ReadAll returns all the remaining commands of the trace.
func ReadAll(r io.Reader) ([]memsym.Command, error) {
	reader := NewReader(r)

	var commands []memsym.Command

	for {
		cmd, err := reader.Next()
		if err == io.EOF {
			return commands, nil
		}

		if err != nil {
			return commands, err
		}

		commands = append(commands, cmd)
	}
}
