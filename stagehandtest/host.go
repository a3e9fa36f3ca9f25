// Package stagehandtest contains test fixtures for code built on a stagehand Transport.
package stagehandtest

import (
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"testing"

	"github.com/stagehand-audio/stagehand/internal/stest"
	"github.com/stagehand-audio/stagehand/saddr"
	"github.com/stagehand-audio/stagehand/sframe"
	"github.com/stagehand-audio/stagehand/sproto"
	"github.com/stretchr/testify/require"
)

// Request is a request received by a [FakeHost].
type Request struct {
	Req  sproto.Request
	From netip.AddrPort
	Size int
}

// FakeHost is a loopback UDP host that records decoded requests
// and sends frames on demand.
type FakeHost struct {
	Log *slog.Logger

	UDP *net.UDPConn

	// Every request that decoded successfully, in arrival order.
	Requests chan Request

	mu     sync.Mutex
	client netip.AddrPort

	done chan struct{}
}

// NewFakeHost returns a FakeHost listening on 127.0.0.1.
// The host is closed during t.Cleanup.
func NewFakeHost(t *testing.T) *FakeHost {
	t.Helper()

	uc, err := net.ListenUDP("udp4", &net.UDPAddr{
		IP:   net.IPv4(127, 0, 0, 1),
		Port: 0,
	})
	require.NoError(t, err)

	h := &FakeHost{
		Log: stest.NewLogger(t).With("sys", "fake_host"),

		UDP: uc,

		// Arbitrarily sized, large enough that tests never block the reader.
		Requests: make(chan Request, 256),

		done: make(chan struct{}),
	}

	go h.run()

	t.Cleanup(func() {
		if err := uc.Close(); err != nil {
			t.Logf("Error closing fake host UDP listener: %v", err)
		}
		<-h.done
	})

	return h
}

func (h *FakeHost) run() {
	defer close(h.done)

	buf := make([]byte, 2048)
	for {
		n, src, err := h.UDP.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			h.Log.Warn("Failed to read", "err", err)
			continue
		}

		req, err := sproto.DecodeRequest(buf[:n])
		if err != nil {
			h.Log.Warn("Dropping undecodable request", "err", err, "size", n)
			continue
		}

		h.mu.Lock()
		h.client = src
		h.mu.Unlock()

		select {
		case h.Requests <- Request{Req: req, From: src, Size: n}:
		default:
			h.Log.Warn("Dropping request; Requests channel full", "kind", req.Kind())
		}
	}
}

// Addr returns the host's listening address.
func (h *FakeHost) Addr() saddr.IPAddress {
	a, err := saddr.FromNetAddr(h.UDP.LocalAddr())
	if err != nil {
		panic(err)
	}
	return a
}

// Client returns the source of the most recent request.
func (h *FakeHost) Client() netip.AddrPort {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.client
}

// NextRequest returns the next received request,
// failing the test if none arrives soon.
func (h *FakeHost) NextRequest(t *testing.T) Request {
	t.Helper()
	return stest.ReceiveSoon(t, h.Requests)
}

// NoRequest asserts that no request is waiting.
func (h *FakeHost) NoRequest(t *testing.T) {
	t.Helper()
	stest.NotSending(t, h.Requests)
}

// Send frames msg and sends it to the most recent client.
// It returns the number of bytes sent.
func (h *FakeHost) Send(t *testing.T, msg sproto.Message) int {
	t.Helper()

	b, err := sframe.AppendFrame(nil, msg)
	require.NoError(t, err)

	h.SendRaw(t, b)
	return len(b)
}

// SendRaw sends b unmodified to the most recent client.
func (h *FakeHost) SendRaw(t *testing.T, b []byte) {
	t.Helper()

	to := h.Client()
	require.True(t, to.IsValid(), "fake host has not heard from a client yet")

	_, err := h.UDP.WriteToUDPAddrPort(b, to)
	require.NoError(t, err)
}
