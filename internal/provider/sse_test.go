package provider_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/hearth/internal/provider"
)

func collectEvents(t *testing.T, raw string) []provider.Event {
	t.Helper()

	var events []provider.Event
	err := provider.ScanSSE(strings.NewReader(raw), func(ev provider.Event) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	return events
}

func TestScanSSE_SingleEvent(t *testing.T) {
	events := collectEvents(t, "data: {\"text\":\"hello\"}\n\n")

	require.Len(t, events, 1)
	require.Equal(t, "", events[0].Name)
	require.Equal(t, `{"text":"hello"}`, events[0].Data)
}

func TestScanSSE_NamedEvents(t *testing.T) {
	raw := "event: message_start\n" +
		"data: {\"a\":1}\n" +
		"\n" +
		"event: message_stop\n" +
		"data: {\"b\":2}\n" +
		"\n"

	events := collectEvents(t, raw)

	require.Len(t, events, 2)
	require.Equal(t, "message_start", events[0].Name)
	require.Equal(t, `{"a":1}`, events[0].Data)
	require.Equal(t, "message_stop", events[1].Name)
	require.Equal(t, `{"b":2}`, events[1].Data)
}

func TestScanSSE_MultiLineData(t *testing.T) {
	raw := "data: first\n" +
		"data: second\n" +
		"\n"

	events := collectEvents(t, raw)

	require.Len(t, events, 1)
	require.Equal(t, "first\nsecond", events[0].Data)
}

func TestScanSSE_SkipsComments(t *testing.T) {
	raw := ": keep-alive\n" +
		"data: payload\n" +
		": another comment\n" +
		"\n"

	events := collectEvents(t, raw)

	require.Len(t, events, 1)
	require.Equal(t, "payload", events[0].Data)
}

func TestScanSSE_FlushesFinalEventWithoutBlankLine(t *testing.T) {
	events := collectEvents(t, "data: tail")

	require.Len(t, events, 1)
	require.Equal(t, "tail", events[0].Data)
}

func TestScanSSE_NameWithoutDataIsDropped(t *testing.T) {
	raw := "event: ping\n" +
		"\n" +
		"data: real\n" +
		"\n"

	events := collectEvents(t, raw)

	require.Len(t, events, 1)
	require.Equal(t, "", events[0].Name)
	require.Equal(t, "real", events[0].Data)
}

func TestScanSSE_HandlerErrorStopsScan(t *testing.T) {
	raw := "data: one\n\ndata: two\n\n"
	boom := errors.New("stop here")

	var seen int
	err := provider.ScanSSE(strings.NewReader(raw), func(provider.Event) error {
		seen++
		return boom
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, seen)
}

func TestScanLines(t *testing.T) {
	raw := "{\"a\":1}\n" +
		"\n" +
		"  \n" +
		"{\"b\":2}\n"

	var lines []string
	err := provider.ScanLines(strings.NewReader(raw), func(line string) error {
		lines = append(lines, line)
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, []string{`{"a":1}`, `{"b":2}`}, lines)
}

func TestScanLines_HandlerErrorStopsScan(t *testing.T) {
	boom := errors.New("halt")

	var seen int
	err := provider.ScanLines(strings.NewReader("one\ntwo\n"), func(string) error {
		seen++
		return boom
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, seen)
}
