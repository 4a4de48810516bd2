// Package resp implements an incremental RESP (REdis Serialization
// Protocol) decoder and a reply encoder. The decoder is a pushdown state
// machine: it can be fed arbitrarily small chunks of a request stream and
// still emit whole argument vectors atomically, tolerating a chunk boundary
// anywhere — mid-header, mid-length-digit, mid-payload, even between the
// CR and the LF of a terminator.
package resp

import (
	"bytes"
	"fmt"
	"strconv"
)

type decoderState int

const (
	stateType decoderState = iota
	stateArrLen
	stateBulkLen
	stateBulkData
)

// Decoder incrementally parses RESP request frames (arrays of bulk
// strings) out of a byte stream. The zero value is ready to use.
//
// Decoder is not safe for concurrent use; each connection owns exactly one.
type Decoder struct {
	buf          []byte
	pos          int
	state        decoderState
	args         [][]byte
	expectedArgs int
	bulkLen      int
}

// NewDecoder creates a ready-to-use Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends data to the decoder's internal buffer and parses as many
// complete commands out of it as possible, returning them in the order
// they completed. Partial input is never an error: Feed returns a nil
// slice and preserves all parser state for the next call. A non-nil error
// is always fatal — the decoder's state is no longer trustworthy and the
// caller must close the connection.
func (d *Decoder) Feed(data []byte) ([][][]byte, error) {
	d.buf = append(d.buf, data...)

	var commands [][][]byte

feedLoop:
	for {
		switch d.state {
		case stateType:
			if d.pos >= len(d.buf) {
				break feedLoop
			}
			b := d.buf[d.pos]
			d.pos++
			switch b {
			case '*':
				d.state = stateArrLen
			case '$':
				d.state = stateBulkLen
			default:
				return commands, fmt.Errorf("resp: unexpected type byte %q", b)
			}

		case stateArrLen:
			line, ok := d.readLine()
			if !ok {
				break feedLoop
			}
			n, err := parseLen(line)
			if err != nil {
				return commands, fmt.Errorf("resp: bad array length: %w", err)
			}
			switch {
			case n < 0:
				// Negative array length: an absent command, ignored by
				// the dispatcher layer rather than emitted.
				d.resetCommand()
				d.state = stateType
			case n == 0:
				commands = append(commands, [][]byte{})
				d.resetCommand()
				d.state = stateType
			default:
				d.expectedArgs = n
				d.args = make([][]byte, 0, n)
				d.state = stateType
			}

		case stateBulkLen:
			line, ok := d.readLine()
			if !ok {
				break feedLoop
			}
			n, err := parseLen(line)
			if err != nil {
				return commands, fmt.Errorf("resp: bad bulk length: %w", err)
			}
			if n == -1 {
				d.args = append(d.args, nil)
				d.state = stateType
				if cmd, done := d.maybeComplete(); done {
					commands = append(commands, cmd)
				}
				continue
			}
			if n < 0 {
				return commands, fmt.Errorf("resp: invalid bulk length %d", n)
			}
			d.bulkLen = n
			d.state = stateBulkData

		case stateBulkData:
			need := d.bulkLen + 2
			if len(d.buf)-d.pos < need {
				break feedLoop
			}
			payload := d.buf[d.pos : d.pos+d.bulkLen]
			if d.buf[d.pos+d.bulkLen] != '\r' || d.buf[d.pos+d.bulkLen+1] != '\n' {
				return commands, fmt.Errorf("resp: missing CRLF terminator after bulk payload")
			}
			arg := make([]byte, d.bulkLen)
			copy(arg, payload)
			d.pos += need
			d.args = append(d.args, arg)
			d.state = stateType
			if cmd, done := d.maybeComplete(); done {
				commands = append(commands, cmd)
			}
		}
	}

	if d.pos == len(d.buf) {
		d.buf = d.buf[:0]
		d.pos = 0
	}

	return commands, nil
}

// maybeComplete returns the accumulated argument vector and resets command
// state once args has reached expectedArgs.
func (d *Decoder) maybeComplete() ([][]byte, bool) {
	if len(d.args) != d.expectedArgs {
		return nil, false
	}
	cmd := d.args
	d.resetCommand()
	return cmd, true
}

func (d *Decoder) resetCommand() {
	d.args = nil
	d.expectedArgs = 0
}

// readLine scans for the next CRLF starting at pos, returning the bytes
// before it (exclusive) and advancing pos past the terminator. It reports
// false without consuming anything if no CRLF is present yet.
func (d *Decoder) readLine() (string, bool) {
	idx := bytes.Index(d.buf[d.pos:], []byte("\r\n"))
	if idx < 0 {
		return "", false
	}
	line := string(d.buf[d.pos : d.pos+idx])
	d.pos += idx + 2
	return line, true
}

func parseLen(s string) (int, error) {
	return strconv.Atoi(s)
}
