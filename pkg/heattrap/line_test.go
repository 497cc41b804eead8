package heattrap

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nergy-se/solardivert/pkg/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	var tests = []struct {
		name     string
		given    string
		expected *Reading
	}{
		{
			name:     "retained slots",
			given:    "THx, 1, 2, 3, 4, 5, 6, 7, 99",
			expected: &Reading{Collector: 2, Tank: 3, Ambient: 99},
		},
		{
			name:     "no spaces",
			given:    "THx,10,61,56,4,5,6,7,18",
			expected: &Reading{Collector: 61, Tank: 56, Ambient: 18},
		},
		{
			name:     "negative values",
			given:    "THx, 0, -4, 12, 0, 0, 0, 0, -11",
			expected: &Reading{Collector: -4, Tank: 12, Ambient: -11},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseLine([]byte(tt.given))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, r)
		})
	}
}

func TestParseLineMalformed(t *testing.T) {
	var tests = []string{
		"",
		"hello",
		"THy, 1, 2, 3, 4, 5, 6, 7, 8",
		"THx, 1, 2, 3, 4, 5, 6, 7",
		"THx, 1, x2, 3, 4, 5, 6, 7, 8",
		"THx, 1, 2, 3, 4, 5, 6, 7, 8.5",
		"THx, 1, 2, \xff, 4, 5, 6, 7, 8",
	}
	for _, given := range tests {
		given := given
		t.Run(given, func(t *testing.T) {
			r, err := ParseLine([]byte(given))
			assert.Nil(t, r)
			assert.ErrorIs(t, err, fault.ErrMalformedLine)
		})
	}
}

func TestDecoderFeed(t *testing.T) {
	stream := "garbage\r\nTHx, 1, 2, 3, 4, 5, 6, 7, 8\r\n\nTHx, 1, 60, 61, 4, 5, 6, 7, 9\n"
	dec := &Decoder{}

	var readings []Reading
	malformed := 0
	for _, c := range []byte(stream) {
		r, err := dec.Feed(c)
		if err != nil {
			malformed++
			continue
		}
		if r != nil {
			readings = append(readings, *r)
		}
	}

	assert.Equal(t, 1, malformed)
	assert.Equal(t, []Reading{
		{Collector: 2, Tank: 3, Ambient: 8},
		{Collector: 60, Tank: 61, Ambient: 9},
	}, readings)
}

func TestDecoderPartialLine(t *testing.T) {
	dec := &Decoder{}
	for _, c := range []byte("THx, 1, 2, 3, 4, 5, 6, 7, 8") {
		r, err := dec.Feed(c)
		assert.NoError(t, err)
		assert.Nil(t, r)
	}
	r, err := dec.Feed('\r')
	require.NoError(t, err)
	assert.Equal(t, 3, r.Tank)
}

func TestDecoderOverlongLine(t *testing.T) {
	dec := &Decoder{}
	noise := bytes.Repeat([]byte{0xfe}, 4*MaxLineLen)
	stream := append(noise, []byte("\r\nTHx, 1, 70, 56, 4, 5, 6, 7, 19\r\n")...)

	var readings []Reading
	var errs []error
	for _, c := range stream {
		r, err := dec.Feed(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if r != nil {
			readings = append(readings, *r)
		}
		assert.LessOrEqual(t, len(dec.line), MaxLineLen)
	}

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], fault.ErrMalformedLine)
	assert.Equal(t, []Reading{{Collector: 70, Tank: 56, Ambient: 19}}, readings)
}

func TestDecoderLineAtLimit(t *testing.T) {
	line := "THx, 1, 2, 3, 4, 5, 6, 7, 8"
	line += strings.Repeat(" ", MaxLineLen-len(line))
	dec := &Decoder{}
	for _, c := range []byte(line) {
		_, err := dec.Feed(c)
		require.NoError(t, err)
	}
	r, err := dec.Feed('\n')
	require.NoError(t, err)
	assert.Equal(t, 3, r.Tank)
}
