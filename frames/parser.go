// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package frames

import (
	"bytes"
	"errors"
	"fmt"
)

// Parser decodes frames from a stream of transport messages. A transport message
// may carry part of a frame, one frame, or several frames and heartbeats; the
// parser buffers partial input until a whole frame is available.
//
// A single end-of-line directly after a frame's null is padding, which many
// brokers append to every frame, and is not reported as a heartbeat.
type Parser struct {
	buf          []byte
	version      Version
	maxFrameSize int
	need         int    // buffer length required before a partial frame is decoded again
	scan         int    // offset in buf from which to look for delim
	delim        string // bytes which must arrive before a partial frame is decoded again
	padding      bool   // a frame was just consumed
}

// NewParser returns a parser decoding with the given version. A maxFrameSize
// of 0 places no limit on frame size.
func NewParser(v Version, maxFrameSize int) *Parser {
	return &Parser{
		version:      v,
		maxFrameSize: maxFrameSize,
	}
}

// SetVersion changes the version used to decode subsequent frames.
func (p *Parser) SetVersion(v Version) {
	p.version = v
}

// Feed appends transport bytes to the parse buffer.
func (p *Parser) Feed(b []byte) {
	p.buf = append(p.buf, b...)
}

// Buffered returns the number of bytes waiting to be parsed.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Reset discards any buffered bytes.
func (p *Parser) Reset() {
	p.buf = nil
	p.need, p.scan, p.delim = 0, 0, ""
	p.padding = false
}

// Next returns the next frame or heartbeat marker in arrival order. It returns
// false if the buffer does not yet contain a whole frame. After an error the
// stream is unrecoverable and the parser should be discarded.
func (p *Parser) Next() (Frame, bool, error) {
	if p.padding {
		switch {
		case len(p.buf) == 1 && p.buf[0] == '\r':
			return Frame{}, false, nil
		case len(p.buf) > 0 && p.buf[0] == '\n':
			p.consume(1)
		case len(p.buf) > 1 && p.buf[0] == '\r' && p.buf[1] == '\n':
			p.consume(2)
		}
		p.padding = false
	}

	if len(p.buf) == 0 {
		return Frame{}, false, nil
	}

	switch p.buf[0] {
	case '\n':
		p.consume(1)
		return Frame{Command: Heartbeat}, true, nil
	case '\r':
		if len(p.buf) == 1 {
			return Frame{}, false, nil
		}
		if p.buf[1] != '\n' {
			return Frame{}, false, fmt.Errorf("%w: stray carriage return", ErrMalformedFrame)
		}
		p.consume(2)
		return Frame{Command: Heartbeat}, true, nil
	}

	// a partial frame is only decoded again once it could have completed.
	if len(p.buf) < p.need {
		return p.incomplete()
	}

	if p.delim != "" {
		if bytes.IndexAny(p.buf[p.scan:], p.delim) == -1 {
			p.scan = len(p.buf)
			return p.incomplete()
		}
	}

	f, n, err := decodeFrame(p.buf, p.version)
	var pe partialError
	if errors.As(err, &pe) {
		p.need, p.delim, p.scan = pe.need, pe.delim, len(p.buf)
		return p.incomplete()
	}

	if err != nil {
		return Frame{}, false, err
	}

	if p.maxFrameSize > 0 && n > p.maxFrameSize {
		return Frame{}, false, ErrFrameTooLarge
	}

	p.consume(n)
	p.padding = true
	return f, true, nil
}

// incomplete reports that the buffered frame is not yet whole, failing if it
// already exceeds the maximum frame size.
func (p *Parser) incomplete() (Frame, bool, error) {
	if p.maxFrameSize > 0 && (len(p.buf) > p.maxFrameSize || p.need > p.maxFrameSize) {
		return Frame{}, false, ErrFrameTooLarge
	}

	return Frame{}, false, nil
}

// consume drops n bytes from the front of the buffer.
func (p *Parser) consume(n int) {
	p.need, p.scan, p.delim = 0, 0, ""
	if n >= len(p.buf) {
		p.buf = p.buf[:0]
		return
	}

	p.buf = append(p.buf[:0], p.buf[n:]...)
}
