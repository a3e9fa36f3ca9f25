// Package strace wraps the OpenTelemetry tracing API
// so the rest of the module references a single package.
package strace

import (
	"fmt"
	"net/netip"

	otelattr "go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	otpnoop "go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope for every tracer in this module.
const TracerName = "github.com/stagehand-audio/stagehand"

type TracerProvider = oteltrace.TracerProvider

type Tracer = oteltrace.Tracer

type Span = oteltrace.Span

type KeyValueAttr = otelattr.KeyValue

// NopTracerProvider returns the otel no-op tracer provider.
// This is intended to use as a fallback when a nil tracer provider is given.
func NopTracerProvider() TracerProvider {
	return otpnoop.NewTracerProvider()
}

// WithAttributes is an alias to [oteltrace.WithAttributes]
// to allow consumers to only reference the strace package.
func WithAttributes(attrs ...KeyValueAttr) oteltrace.SpanStartEventOption {
	return oteltrace.WithAttributes(attrs...)
}

// WithSpanKind is an alias to [oteltrace.WithSpanKind].
func WithSpanKind(k oteltrace.SpanKind) oteltrace.SpanStartOption {
	return oteltrace.WithSpanKind(k)
}

const (
	SpanKindClient   = oteltrace.SpanKindClient
	SpanKindConsumer = oteltrace.SpanKindConsumer
)

// HexAttr returns an attribute holding the hex encoding of b.
// The encoding happens immediately, so b may be reused afterwards.
func HexAttr(key string, b []byte) KeyValueAttr {
	return otelattr.String(key, fmt.Sprintf("%x", b))
}

// StringerAttr returns an attribute from the given Stringer.
func StringerAttr(key string, val fmt.Stringer) KeyValueAttr {
	return otelattr.Stringer(key, val)
}

// KindAttr labels a span with a message or request kind.
func KindAttr(k fmt.Stringer) KeyValueAttr {
	return otelattr.Stringer("stagehand.kind", k)
}

// SizeAttr records a datagram size in bytes.
func SizeAttr(n int) KeyValueAttr {
	return otelattr.Int("stagehand.size", n)
}

// PeerAttr records the remote UDP endpoint.
func PeerAttr(ap netip.AddrPort) KeyValueAttr {
	return otelattr.String("net.peer", ap.String())
}

// SpanError sets the given span to error status,
// with detail from err.Error().
func SpanError(span oteltrace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
}

// ErrorAttr returns an attribute with the key "err"
// and the value of err's Error() method.
func ErrorAttr(err error) KeyValueAttr {
	return otelattr.Stringer("err", errStringer{err: err})
}

type errStringer struct {
	err error
}

func (e errStringer) String() string {
	return e.err.Error()
}
