// Package heattrap reads tank and collector temperatures from a Heat Trap
// solar hot water controller's serial console.
package heattrap

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/nergy-se/solardivert/pkg/fault"
)

// THx, f1, f2, f3, f4, f5, f6, f7, f8
var lineRegexp = regexp.MustCompile(`^THx,\s*(\S+),\s*(\S+),\s*(\S+),\s*(\S+),\s*(\S+),\s*(\S+),\s*(\S+),\s*(\S+)`)

// Field positions (1-indexed after the tag) kept from a line.
const (
	fieldCollector = 2
	fieldTank      = 3
	fieldAmbient   = 8
)

// Reading holds the retained sensor slots of one line, in degrees.
type Reading struct {
	Collector int `json:"collector"`
	Tank      int `json:"tank"`
	Ambient   int `json:"ambient"`
}

// ParseLine parses one line without its terminator.
func ParseLine(line []byte) (*Reading, error) {
	if !utf8.Valid(line) {
		return nil, fmt.Errorf("invalid utf-8 in %q: %w", line, fault.ErrMalformedLine)
	}
	m := lineRegexp.FindSubmatch(line)
	if m == nil {
		return nil, fmt.Errorf("no match for %q: %w", line, fault.ErrMalformedLine)
	}

	values := make([]int, 0, 3)
	for _, field := range []int{fieldCollector, fieldTank, fieldAmbient} {
		v, err := strconv.Atoi(string(m[field]))
		if err != nil {
			return nil, fmt.Errorf("field %d of %q: %v: %w", field, line, err, fault.ErrMalformedLine)
		}
		values = append(values, v)
	}

	return &Reading{
		Collector: values[0],
		Tank:      values[1],
		Ambient:   values[2],
	}, nil
}

// MaxLineLen bounds a line. Longer input, such as noise at the wrong baud
// rate, is reported once and skipped up to the next terminator.
const MaxLineLen = 256

// Decoder splits a byte stream on CR or LF and parses each line.
type Decoder struct {
	line     []byte
	overflow bool
}

// Feed consumes one byte. It returns a reading when c terminates a valid line
// and fault.ErrMalformedLine when it terminates an invalid one or the line
// grows past MaxLineLen. Empty lines are skipped.
func (d *Decoder) Feed(c byte) (*Reading, error) {
	if c != '\r' && c != '\n' {
		if d.overflow {
			return nil, nil
		}
		if len(d.line) == MaxLineLen {
			d.overflow = true
			d.line = d.line[:0]
			return nil, fmt.Errorf("line longer than %d bytes: %w", MaxLineLen, fault.ErrMalformedLine)
		}
		d.line = append(d.line, c)
		return nil, nil
	}
	if d.overflow {
		d.overflow = false
		return nil, nil
	}
	if len(d.line) == 0 {
		return nil, nil
	}
	line := d.line
	d.line = d.line[:0]
	return ParseLine(line)
}
