package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloStream = "data: {\"type\":\"chunk\",\"content\":\"He\"}\n\n" +
	"data: {\"type\":\"chunk\",\"content\":\"llo\"}\n\n" +
	"data: {\"type\":\"done\"}\n\n"

var helloEvents = []Event{
	{Kind: KindChunk, Content: "He"},
	{Kind: KindChunk, Content: "llo"},
	{Kind: KindDone},
}

func decodeChunks(chunks ...string) []Event {
	d := NewDecoder()
	var out []Event
	for _, c := range chunks {
		out = append(out, d.Feed([]byte(c))...)
	}
	d.Close()
	return out
}

func TestFeed_SingleChunk(t *testing.T) {
	assert.Equal(t, helloEvents, decodeChunks(helloStream))
}

func TestFeed_EverySingleSplitPoint(t *testing.T) {
	for i := 0; i <= len(helloStream); i++ {
		got := decodeChunks(helloStream[:i], helloStream[i:])
		require.Equal(t, helloEvents, got, "split at %d", i)
	}
}

func TestFeed_EveryDoubleSplitPoint(t *testing.T) {
	for i := 0; i <= len(helloStream); i++ {
		for j := i; j <= len(helloStream); j++ {
			got := decodeChunks(helloStream[:i], helloStream[i:j], helloStream[j:])
			require.Equal(t, helloEvents, got, "split at %d,%d", i, j)
		}
	}
}

func TestFeed_ByteByByte(t *testing.T) {
	var chunks []string
	for i := 0; i < len(helloStream); i++ {
		chunks = append(chunks, helloStream[i:i+1])
	}
	assert.Equal(t, helloEvents, decodeChunks(chunks...))
}

func TestFeed_SkipsMalformedLines(t *testing.T) {
	stream := "data: {\"type\":\"chunk\",\"content\":\"a\"}\n" +
		"data: {not json\n" +
		"data: {\"type\":\"chunk\",\"content\":\"b\"}\n" +
		"data: \n" +
		": keep-alive comment\n" +
		"event: message\n" +
		"data: {\"type\":\"chunk\",\"content\":\"c\"}\n" +
		"data: [DONE\n" +
		"data: {\"type\":\"done\"}\n"

	want := []Event{
		{Kind: KindChunk, Content: "a"},
		{Kind: KindChunk, Content: "b"},
		{Kind: KindChunk, Content: "c"},
		{Kind: KindDone},
	}
	assert.Equal(t, want, decodeChunks(stream))

	for i := 0; i <= len(stream); i++ {
		require.Equal(t, want, decodeChunks(stream[:i], stream[i:]), "split at %d", i)
	}
}

func TestFeed_CRLFLineEndings(t *testing.T) {
	stream := strings.ReplaceAll(helloStream, "\n", "\r\n")
	assert.Equal(t, helloEvents, decodeChunks(stream))
}

func TestFeed_PrefixWithoutSpace(t *testing.T) {
	got := decodeChunks("data:{\"type\":\"chunk\",\"content\":\"x\"}\n")
	assert.Equal(t, []Event{{Kind: KindChunk, Content: "x"}}, got)
}

func TestFeed_StartAndEndFrames(t *testing.T) {
	stream := "data: {\"type\":\"start\",\"content\":\"\"}\n\n" +
		"data: {\"type\":\"chunk\",\"content\":\"hi\"}\n\n" +
		"data: {\"type\":\"end\",\"content\":\"\"}\n\n"
	want := []Event{{Kind: KindChunk, Content: "hi"}, {Kind: KindDone}}
	assert.Equal(t, want, decodeChunks(stream))
}

func TestFeed_ErrorFrame(t *testing.T) {
	got := decodeChunks(
		"data: {\"type\":\"error\",\"message\":\"model overloaded\"}\n",
		"data: {\"type\":\"error\",\"content\":\"quota\"}\n",
		"data: {\"type\":\"error\"}\n",
	)
	require.Len(t, got, 3)
	assert.Equal(t, Event{Kind: KindError, Reason: "model overloaded"}, got[0])
	assert.Equal(t, "quota", got[1].Reason)
	assert.Equal(t, "generation failed", got[2].Reason)
}

func TestFeed_UnknownTypeDropped(t *testing.T) {
	got := decodeChunks("data: {\"type\":\"usage\",\"content\":\"12\"}\n")
	assert.Empty(t, got)
}

func TestClose_DiscardsPartialLine(t *testing.T) {
	d := NewDecoder()
	events := d.Feed([]byte("data: {\"type\":\"chunk\",\"content\":\"a\"}\ndata: {\"type\":\"chu"))
	assert.Len(t, events, 1)
	assert.Equal(t, len("data: {\"type\":\"chu"), d.Pending())
	assert.Equal(t, len("data: {\"type\":\"chu"), d.Close())
	assert.Zero(t, d.Pending())
}

func TestFeed_OversizedLineDiscarded(t *testing.T) {
	d := NewDecoder()
	d.Feed(bytes.Repeat([]byte("x"), MaxLineSize+1))
	assert.Zero(t, d.Pending())

	got := d.Feed([]byte("\ndata: {\"type\":\"done\"}\n"))
	assert.Equal(t, []Event{{Kind: KindDone}}, got)
}

func TestFeed_OversizedLineDroppedAtEverySplit(t *testing.T) {
	big := "data: {\"type\":\"chunk\",\"content\":\"" + strings.Repeat("x", MaxLineSize) + "\"}\n"
	stream := big + "data: {\"type\":\"done\"}\n"
	want := []Event{{Kind: KindDone}}

	assert.Equal(t, want, decodeChunks(stream))
	for _, at := range []int{1, 100, MaxLineSize / 2, MaxLineSize, MaxLineSize + 5, len(big) - 1, len(big)} {
		assert.Equal(t, want, decodeChunks(stream[:at], stream[at:]), "split at %d", at)
	}
	assert.Equal(t, want, decodeChunks(stream[:10], stream[10:MaxLineSize+20], stream[MaxLineSize+20:]))
}

func TestFeed_LineAtSizeLimitKept(t *testing.T) {
	prefix := "data: {\"type\":\"chunk\",\"content\":\""
	suffix := "\"}"
	content := strings.Repeat("y", MaxLineSize-len(prefix)-len(suffix))
	stream := prefix + content + suffix + "\n"
	want := []Event{{Kind: KindChunk, Content: content}}

	assert.Equal(t, want, decodeChunks(stream))
	assert.Equal(t, want, decodeChunks(stream[:MaxLineSize/3], stream[MaxLineSize/3:]))
}

func collect(t *testing.T, r io.Reader) ([]Event, error) {
	t.Helper()
	var out []Event
	for ev, err := range Events(r) {
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func TestEvents_Reader(t *testing.T) {
	got, err := collect(t, strings.NewReader(helloStream))
	require.NoError(t, err)
	assert.Equal(t, helloEvents, got)
}

func TestEvents_OneByteReader(t *testing.T) {
	got, err := collect(t, iotest.OneByteReader(strings.NewReader(helloStream)))
	require.NoError(t, err)
	assert.Equal(t, helloEvents, got)
}

func TestEvents_PartialLineAtEOFNotEmitted(t *testing.T) {
	got, err := collect(t, strings.NewReader("data: {\"type\":\"chunk\",\"content\":\"a\"}\ndata: {\"type\":\"chunk\",\"content\":\"b\"}"))
	require.NoError(t, err)
	assert.Equal(t, []Event{{Kind: KindChunk, Content: "a"}}, got)
}

func TestEvents_ReadErrorYieldedLast(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(
		strings.NewReader("data: {\"type\":\"chunk\",\"content\":\"a\"}\n"),
		iotest.ErrReader(boom),
	)
	got, err := collect(t, r)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []Event{{Kind: KindChunk, Content: "a"}}, got)
}

func TestEvents_StopsWhenConsumerBreaks(t *testing.T) {
	n := 0
	for range Events(strings.NewReader(helloStream)) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}
