package provider

import (
	"bufio"
	"io"
	"strings"
)

const (
	scanBufferSize    = 64 * 1024
	maxScanTokenSize  = 1024 * 1024
	ssePrefixEvent    = "event:"
	ssePrefixData     = "data:"
	ssePrefixComment  = ":"
	sseFieldSeparator = "\n"
)

// Event is one server-sent event. Multi-line data fields are joined with
// newlines per the SSE wire format.
type Event struct {
	Name string
	Data string
}

// ScanSSE reads server-sent events from r and calls handle for each one.
// It returns when the stream ends or handle returns an error.
func ScanSSE(r io.Reader, handle func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, scanBufferSize), maxScanTokenSize)

	var (
		name string
		data []string
	)

	dispatch := func() error {
		if len(data) == 0 {
			name = ""
			return nil
		}
		event := Event{Name: name, Data: strings.Join(data, sseFieldSeparator)}
		name = ""
		data = nil
		return handle(event)
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ssePrefixEvent):
			name = strings.TrimSpace(strings.TrimPrefix(line, ssePrefixEvent))
		case strings.HasPrefix(line, ssePrefixData):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, ssePrefixData)))
		case strings.HasPrefix(line, ssePrefixComment):
			// Keep-alive comment.
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	// Flush a final event that was not followed by a blank line.
	return dispatch()
}

// ScanLines reads newline-delimited JSON from r and calls handle for each
// non-empty line. It returns when the stream ends or handle returns an
// error.
func ScanLines(r io.Reader, handle func(line string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, scanBufferSize), maxScanTokenSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := handle(line); err != nil {
			return err
		}
	}

	return scanner.Err()
}
