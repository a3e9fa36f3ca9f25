package strace_test

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stagehand-audio/stagehand/internal/strace"
	"github.com/stagehand-audio/stagehand/sproto"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNopTracerProvider(t *testing.T) {
	t.Parallel()

	_, span := strace.NopTracerProvider().Tracer(strace.TracerName).Start(context.Background(), "x")
	require.False(t, span.IsRecording())
	span.End()
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))

	buf := []byte{0xd2, 0x00, 0xff}

	_, span := tp.Tracer(strace.TracerName).Start(
		context.Background(),
		"frame",
		strace.WithAttributes(
			strace.HexAttr("frame", buf),
			strace.KindAttr(sproto.BeatDataKind),
			strace.SizeAttr(len(buf)),
			strace.PeerAttr(netip.MustParseAddrPort("10.0.0.5:10120")),
		),
	)
	clear(buf)
	strace.SpanError(span, errors.New("bad frame"))
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)

	s := spans[0]
	require.Equal(t, "frame", s.Name)
	require.Equal(t, codes.Error, s.Status.Code)
	require.Equal(t, "bad frame", s.Status.Description)
	require.Contains(t, s.Attributes, attribute.String("frame", "d200ff"))
	require.Contains(t, s.Attributes, attribute.String("stagehand.kind", "BeatData"))
	require.Contains(t, s.Attributes, attribute.Int("stagehand.size", 3))
	require.Contains(t, s.Attributes, attribute.String("net.peer", "10.0.0.5:10120"))

	// RecordError adds an exception event.
	require.Len(t, s.Events, 1)
}

func TestErrorAttr(t *testing.T) {
	t.Parallel()

	kv := strace.ErrorAttr(errors.New("boom"))
	require.Equal(t, attribute.Key("err"), kv.Key)
	require.Equal(t, "boom", kv.Value.AsString())
}
