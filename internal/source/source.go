// Package source supplies raw fleet record lines to the agency loader.
package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Line is one record line and its 1-based position in the input it came
// from, counting blank and comment lines.
type Line struct {
	No   int
	Text string
}

// LineSource yields the record lines of a fleet, in order.
type LineSource interface {
	Lines() ([]Line, error)
}

// Texts returns the text of each line.
func Texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

// Static is a LineSource over an in-memory slice.
type Static []string

// Lines returns the non-blank, non-comment lines.
func (s Static) Lines() ([]Line, error) {
	out := make([]Line, 0, len(s))
	for i, l := range s {
		if keep(l) {
			out = append(out, Line{No: i + 1, Text: l})
		}
	}
	return out, nil
}

type readerSource struct {
	r io.Reader
}

// FromReader reads lines from r on the first call to Lines.
func FromReader(r io.Reader) LineSource {
	return &readerSource{r: r}
}

func (s *readerSource) Lines() ([]Line, error) {
	var out []Line
	scanner := bufio.NewScanner(s.r)
	for no := 1; scanner.Scan(); no++ {
		if l := scanner.Text(); keep(l) {
			out = append(out, Line{No: no, Text: l})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read fleet lines: %w", err)
	}
	return out, nil
}

type fileSource struct {
	path string
}

// FromFile reads lines from the file at path.
func FromFile(path string) LineSource {
	return &fileSource{path: path}
}

func (s *fileSource) Lines() ([]Line, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open fleet file: %w", err)
	}
	defer f.Close()
	return FromReader(f).Lines()
}

// blank lines and # comments carry no records
func keep(line string) bool {
	t := strings.TrimSpace(line)
	return t != "" && !strings.HasPrefix(t, "#")
}
