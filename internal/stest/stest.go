// Package stest contains small helpers shared by tests across the module.
package stest

import (
	"log/slog"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
)

// ScaleDuration is the base timeout for the "soon" helpers.
// Loopback UDP delivery is normally sub-millisecond,
// so this only needs headroom for a loaded CI machine.
const ScaleDuration = 2 * time.Second

// NewLogger returns a logger that writes through t.Log,
// so output is attributed to the test that produced it.
func NewLogger(t testing.TB) *slog.Logger {
	return slogt.New(t)
}

// ReceiveSoon receives a value from ch,
// failing the test if nothing arrives within ScaleDuration.
func ReceiveSoon[T any](t testing.TB, ch <-chan T) T {
	t.Helper()

	timer := time.NewTimer(ScaleDuration)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v
	case <-timer.C:
		t.Fatalf("no value received within %s", ScaleDuration)
	}

	panic("unreachable")
}

// SendSoon sends v on ch,
// failing the test if the send does not complete within ScaleDuration.
func SendSoon[T any](t testing.TB, ch chan<- T, v T) {
	t.Helper()

	timer := time.NewTimer(ScaleDuration)
	defer timer.Stop()

	select {
	case ch <- v:
	case <-timer.C:
		t.Fatalf("value not sent within %s", ScaleDuration)
	}
}

// IsSending asserts that ch is immediately readable.
func IsSending[T any](t testing.TB, ch <-chan T) {
	t.Helper()

	select {
	case <-ch:
	default:
		t.Fatal("channel should have been sending")
	}
}

// NotSending asserts that ch is not immediately readable.
func NotSending[T any](t testing.TB, ch <-chan T) {
	t.Helper()

	select {
	case <-ch:
		t.Fatal("channel should not have been sending")
	default:
	}
}
