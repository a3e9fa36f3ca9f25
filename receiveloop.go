package stagehand

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/stagehand-audio/stagehand/internal/strace"
	"github.com/stagehand-audio/stagehand/sframe"
	"github.com/stagehand-audio/stagehand/sproto"
)

// maxDatagramSize is the largest UDP payload.
const maxDatagramSize = 64 * 1024

// recvLoop is the single goroutine that reads the transport's socket.
// It is the only producer on the transport's queue
// and the only writer of the receive tally.
type recvLoop struct {
	log *slog.Logger
	t   *Transport

	conn *net.UDPConn
	done chan struct{}

	// Anonymous requests (pings) use their own encoder,
	// so the loop never contends with consumer sends.
	enc sframe.RequestEncoder

	lastRecv time.Time
	lastPing time.Time

	// Set once a shutdown has been synthesized for the current silence,
	// and cleared by the next datagram from the host.
	timedOut bool
}

func (l *recvLoop) Run(ctx context.Context) {
	defer l.t.loopStopped(l.done)

	buf := make([]byte, maxDatagramSize)

	now := l.t.cfg.NowFn()
	l.lastRecv = now
	l.lastPing = now

	for {
		if ctx.Err() != nil {
			l.log.Info("Stopping due to context cancellation", "cause", context.Cause(ctx))
			return
		}

		now := l.t.cfg.NowFn()
		if now.Sub(l.lastPing) > l.t.cfg.PingInterval {
			l.ping()
			l.lastPing = now
		}

		if !l.timedOut && now.Sub(l.lastRecv) > l.t.cfg.LivenessTimeout {
			l.timedOut = true
			l.t.active.Store(false)
			l.t.q.Push(Delivery{Msg: sproto.ShutdownOccurred{}, Size: 1})
			l.log.Info(
				"Host silent past liveness timeout",
				"silent_for", now.Sub(l.lastRecv),
			)
			_, span := l.t.tracer.Start(ctx, "stagehand.liveness_timeout")
			span.End()
		}

		clear(buf)
		if err := l.conn.SetReadDeadline(time.Now().Add(l.t.cfg.PollInterval)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				l.log.Info("Stopping due to closed socket")
				return
			}
			l.log.Warn("Failed to set read deadline", "err", err)
		}

		n, src, err := l.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				l.log.Info("Stopping due to closed socket")
				return
			}

			l.log.Warn("Failed to receive datagram", "err", err)
			continue
		}

		l.accept(src, buf[:n])
	}
}

// accept filters, records, and queues one datagram.
// It holds the transport's recvMu throughout,
// so a concurrent Disconnect sees either all of it or none of it.
func (l *recvLoop) accept(src netip.AddrPort, b []byte) {
	l.t.recvMu.Lock()
	defer l.t.recvMu.Unlock()

	if !l.fromPeer(src) {
		l.log.Debug("Dropping datagram from unexpected source", "src", src, "size", len(b))
		return
	}

	l.lastRecv = l.t.cfg.NowFn()
	l.timedOut = false

	l.handleDatagram(b)
}

// fromPeer reports whether src is the connected host.
// Before the first Connect on a socket, any source is accepted.
// After a Disconnect, nothing is accepted until the next Connect.
// The caller must hold recvMu.
func (l *recvLoop) fromPeer(src netip.AddrPort) bool {
	peer := l.t.peer.Load()
	if peer == nil {
		return !l.t.refuseAny
	}
	return src.Addr().Unmap() == peer.Addr().Unmap() && src.Port() == peer.Port()
}

func (l *recvLoop) handleDatagram(b []byte) {
	msg, err := sframe.Decode(b)
	if err != nil {
		var ute sframe.UnknownTagError
		if errors.As(err, &ute) || errors.Is(err, sframe.ErrEmpty) {
			// Still counts as proof of life, but carries nothing for us.
			return
		}

		l.log.Error(
			"Dropping malformed frame",
			"size", len(b),
			"err", err,
			"hex", hex.EncodeToString(b),
		)

		_, span := l.t.tracer.Start(
			context.Background(),
			"stagehand.malformed_frame",
			strace.WithSpanKind(strace.SpanKindConsumer),
			strace.WithAttributes(strace.SizeAttr(len(b)), strace.HexAttr("stagehand.frame", b)),
		)
		strace.SpanError(span, err)
		span.End()
		return
	}

	l.t.rx.Record(msg.Kind(), len(b))
	l.t.active.Store(msg.Kind() != sproto.ShutdownOccurredKind)
	l.t.q.Push(Delivery{Msg: msg, Size: len(b)})
}

// ping sends an anonymous Ping to the connected host, if any.
// Pings are not counted in the send tally.
func (l *recvLoop) ping() {
	peer := l.t.peer.Load()
	if peer == nil {
		return
	}

	b, err := l.enc.Encode(sproto.Ping{})
	if err != nil {
		panic(fmt.Errorf("BUG: failed to encode ping: %w", err))
	}

	if _, err := l.conn.WriteToUDPAddrPort(b, *peer); err != nil {
		l.log.Warn("Failed to send ping", "err", err)
		return
	}
	l.log.Debug("Sent ping", "remote", *peer)
}
