// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package frames

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// errIncomplete indicates that more bytes are needed before a frame can be decoded.
var errIncomplete = errors.New("incomplete frame")

// partialError is returned by decodeFrame for a frame which is not yet complete.
// It tells a streaming parser when decoding is worth retrying.
type partialError struct {
	need  int    // the buffer length required before the frame can complete
	delim string // bytes which must arrive before the frame can complete, if any
}

func (e partialError) Error() string {
	return errIncomplete.Error()
}

func (e partialError) Is(target error) bool {
	return target == errIncomplete
}

var (
	encoder   = strings.NewReplacer("\\", "\\\\", "\n", "\\n", ":", "\\c")
	encoder12 = strings.NewReplacer("\\", "\\\\", "\r", "\\r", "\n", "\\n", ":", "\\c")
)

// escaped reports whether header values of a command are escaped under a version.
// CONNECT and CONNECTED frames are never escaped, for compatibility with 1.0 peers.
func escaped(cmd Command, v Version) bool {
	if cmd == Connect || cmd == Stomp || cmd == Connected {
		return false
	}

	return v.escapes()
}

func escapeValue(s string, v Version) string {
	if v == V12 {
		return encoder12.Replace(s)
	}

	return encoder.Replace(s)
}

func unescapeValue(s string, v Version) (string, error) {
	if strings.IndexByte(s, '\\') == -1 {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}

		i++
		if i == len(s) {
			return "", fmt.Errorf("%w: %w", ErrHeaderParse, ErrInvalidEscape)
		}

		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 'c':
			b.WriteByte(':')
		case 'r':
			if v != V12 {
				return "", fmt.Errorf("%w: %w", ErrHeaderParse, ErrInvalidEscape)
			}
			b.WriteByte('\r')
		default:
			return "", fmt.Errorf("%w: %w", ErrHeaderParse, ErrInvalidEscape)
		}
	}

	return b.String(), nil
}

// Encode writes the wire form of the frame to buf. A heartbeat is written as a
// single end-of-line.
func (f *Frame) Encode(buf *bytes.Buffer, v Version) error {
	if f.Command == Heartbeat {
		buf.WriteByte('\n')
		return nil
	}

	name, ok := CommandNames[f.Command]
	if !ok {
		return ErrUnknownCommand
	}

	esc := escaped(f.Command, v)
	buf.WriteString(name)
	buf.WriteByte('\n')
	for _, h := range f.Header.Fields {
		if esc {
			buf.WriteString(escapeValue(h.Key, v))
			buf.WriteByte(':')
			buf.WriteString(escapeValue(h.Value, v))
		} else {
			buf.WriteString(h.Key)
			buf.WriteByte(':')
			buf.WriteString(h.Value)
		}
		buf.WriteByte('\n')
	}

	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)

	return nil
}

// Decode decodes a single complete frame. Input consisting only of end-of-line
// bytes decodes to the heartbeat marker. Any bytes after the terminating null
// other than end-of-line bytes are rejected.
func Decode(b []byte, v Version) (Frame, error) {
	start := skipEOL(b)
	if start == len(b) {
		if len(b) == 0 {
			return Frame{}, ErrMalformedFrame
		}
		return Frame{Command: Heartbeat}, nil
	}

	f, n, err := decodeFrame(b[start:], v)
	if errors.Is(err, errIncomplete) {
		return Frame{}, fmt.Errorf("%w: incomplete frame", ErrMalformedFrame)
	}
	if err != nil {
		return Frame{}, err
	}

	if skipEOL(b[start+n:]) != len(b)-start-n {
		return Frame{}, fmt.Errorf("%w: trailing data after null", ErrMalformedFrame)
	}

	return f, nil
}

// skipEOL returns the number of leading end-of-line bytes in b.
func skipEOL(b []byte) int {
	i := 0
	for i < len(b) && (b[i] == '\n' || b[i] == '\r') {
		i++
	}
	return i
}

// nextLine returns the line starting at offset with any carriage return
// trimmed, and the offset after its end-of-line.
func nextLine(b []byte, offset int) ([]byte, int, error) {
	i := bytes.IndexByte(b[offset:], '\n')
	if i == -1 {
		return nil, 0, errIncomplete
	}

	line := b[offset : offset+i]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	return line, offset + i + 1, nil
}

// decodeFrame decodes the frame at the start of b and returns the number of bytes
// consumed, or a partialError if b does not yet hold the whole frame.
func decodeFrame(b []byte, v Version) (Frame, int, error) {
	line, offset, err := nextLine(b, 0)
	if err != nil {
		if bytes.IndexByte(b, 0) != -1 {
			return Frame{}, 0, ErrMalformedFrame
		}
		return Frame{}, 0, partialError{need: len(b) + 1, delim: "\n\x00"}
	}

	if len(line) == 0 || bytes.IndexByte(line, 0) != -1 {
		return Frame{}, 0, ErrMalformedFrame
	}

	cmd, ok := ParseCommand(string(line))
	if !ok {
		return Frame{}, 0, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
	}

	f := Frame{Command: cmd}
	esc := escaped(cmd, v)
	for {
		next := offset
		line, offset, err = nextLine(b, next)
		if err != nil {
			if bytes.IndexByte(b[next:], 0) != -1 {
				return Frame{}, 0, fmt.Errorf("%w: null before end of headers", ErrMalformedFrame)
			}
			return Frame{}, 0, partialError{need: len(b) + 1, delim: "\n\x00"}
		}

		if len(line) == 0 {
			break
		}

		i := bytes.IndexByte(line, ':')
		if i == -1 {
			return Frame{}, 0, fmt.Errorf("%w: missing separator in %q", ErrHeaderParse, line)
		}

		key, value := string(line[:i]), string(line[i+1:])
		if esc {
			if key, err = unescapeValue(key, v); err != nil {
				return Frame{}, 0, err
			}
			if value, err = unescapeValue(value, v); err != nil {
				return Frame{}, 0, err
			}
		}

		f.Header.Add(key, value)
	}

	if cl, ok := f.Header.Contains(HeaderContentLength); ok {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || n < 0 {
			return Frame{}, 0, fmt.Errorf("%w: %q", ErrInvalidContentLength, cl)
		}

		if len(b) < offset+n+1 {
			return Frame{}, 0, partialError{need: offset + n + 1}
		}

		if b[offset+n] != 0 {
			return Frame{}, 0, ErrMissingNull
		}

		if n > 0 {
			f.Body = append([]byte{}, b[offset:offset+n]...)
		}
		return f, offset + n + 1, nil
	}

	end := bytes.IndexByte(b[offset:], 0)
	if end == -1 {
		return Frame{}, 0, partialError{need: len(b) + 1, delim: "\x00"}
	}

	if end > 0 {
		f.Body = append([]byte{}, b[offset:offset+end]...)
	}
	return f, offset + end + 1, nil
}
