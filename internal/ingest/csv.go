// Package ingest implements the CSV wire format spec.md §6 documents for
// the core's external collaborator: a parser that turns one input file
// into the immutable []book.Message vector the replay driver consumes.
// spec.md scopes CSV/MBO parsing itself out of the core ("external:
// produces the immutable message vector"); this package exists so the
// module is runnable end to end, translated from original_source/'s
// mmap'd Parser into a buffered bufio.Scanner over an io.Reader with the
// same abort-on-malformed-line behavior.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sabinquant/hftbt/internal/apperrors"
	"github.com/sabinquant/hftbt/internal/book"
)

// malformedInput builds the fatal, typed error a malformed line produces,
// tagged with the apperrors vocabulary §7's error table names for a
// parse failure. The parser aborts on the first one: spec.md §6 calls
// malformed lines fatal, not a per-line skip.
func malformedInput(line int, raw, message string) *apperrors.BacktesterError {
	return apperrors.Newf(apperrors.ErrMalformedInput, "ingest: line %d: %s: %q", line, message, raw).
		WithDetail("line", line).
		WithDetail("raw", raw)
}

// scanBufferSize is generous headroom for one CSV record; MBO lines are
// short but a malformed file with no newlines shouldn't force a resize
// loop before the first abort.
const scanBufferSize = 1 << 16

// ParseCSV reads the documented wire format: header line skipped, then
// one record per line with columns
// ts_event,action,side,price,size,order_id (additional columns ignored).
// The returned slice is in file order; spec.md's replay driver assumes
// non-decreasing timestamps and does not re-sort, so ParseCSV does not
// either.
func ParseCSV(r io.Reader) ([]book.Message, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, scanBufferSize), scanBufferSize)

	lineNo := 0
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, malformedInput(0, err.Error(), "failed to read header")
		}
		return nil, malformedInput(0, "", "missing header line")
	}
	lineNo++

	var messages []book.Message
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		msg, err := parseLine(line, lineNo)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, malformedInput(lineNo, err.Error(), "scan failed")
	}
	return messages, nil
}

func parseLine(line string, lineNo int) (book.Message, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 6 {
		return book.Message{}, malformedInput(lineNo, line, "expected at least 6 columns")
	}

	tsEvent, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return book.Message{}, malformedInput(lineNo, line, "invalid ts_event")
	}

	action, err := parseAction(fields[1])
	if err != nil {
		return book.Message{}, malformedInput(lineNo, line, err.Error())
	}

	side, err := parseSide(fields[2])
	if err != nil {
		return book.Message{}, malformedInput(lineNo, line, err.Error())
	}

	price, err := strconv.ParseInt(fields[3], 10, 32)
	if err != nil {
		return book.Message{}, malformedInput(lineNo, line, "invalid price")
	}

	size, err := strconv.ParseUint(fields[4], 10, 32)
	if err != nil {
		return book.Message{}, malformedInput(lineNo, line, "invalid size")
	}

	orderID, err := strconv.ParseUint(fields[5], 10, 64)
	if err != nil {
		return book.Message{}, malformedInput(lineNo, line, "invalid order_id")
	}

	return book.Message{
		TimestampNS: tsEvent,
		Action:      action,
		Side:        side,
		Price:       int32(price),
		Size:        uint32(size),
		OrderID:     orderID,
	}, nil
}

func parseAction(s string) (book.Action, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("invalid action %q", s)
	}
	switch s[0] {
	case 'A':
		return book.Add, nil
	case 'C':
		return book.Cancel, nil
	case 'M':
		return book.Modify, nil
	case 'T':
		return book.Trade, nil
	default:
		return 0, fmt.Errorf("invalid action %q", s)
	}
}

func parseSide(s string) (book.Side, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("invalid side %q", s)
	}
	switch s[0] {
	case 'B':
		return book.Bid, nil
	case 'A':
		return book.Ask, nil
	default:
		return 0, fmt.Errorf("invalid side %q", s)
	}
}
