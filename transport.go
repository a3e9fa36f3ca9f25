package stagehand

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stagehand-audio/stagehand/internal/strace"
	"github.com/stagehand-audio/stagehand/saddr"
	"github.com/stagehand-audio/stagehand/sframe"
	"github.com/stagehand-audio/stagehand/sproto"
	"github.com/stagehand-audio/stagehand/squeue"
	"github.com/stagehand-audio/stagehand/stally"
)

const (
	DefaultLivenessTimeout = 10 * time.Second
	DefaultPingInterval    = 600 * time.Second
	DefaultPollInterval    = 250 * time.Millisecond
)

// Delivery is one item on the [*Transport.Receiver] queue:
// a decoded message and the size in bytes of the datagram it came from.
// Synthesized messages report a size of 1.
type Delivery struct {
	Msg  sproto.Message
	Size int
}

// TransportConfig is the configuration for a [Transport].
type TransportConfig struct {
	// Name this client reports to the host.
	// If empty, [saddr.DeviceName] is used.
	Identifier saddr.Identifier

	// Local IPv4 address to bind.
	// If invalid (the zero value), [saddr.LocalIP] is used.
	BindIP netip.Addr

	// Message kinds to subscribe to.
	// If zero, every kind is requested.
	Subscriptions sproto.MessageKindMask

	// How long the host may stay silent before the transport
	// delivers a synthesized ShutdownOccurred.
	// If zero, DefaultLivenessTimeout is used.
	LivenessTimeout time.Duration

	// How often to send an anonymous Ping to the connected host.
	// If zero, DefaultPingInterval is used.
	PingInterval time.Duration

	// Upper bound on a single socket read,
	// which is also how quickly the loop observes cancellation.
	// If zero, DefaultPollInterval is used.
	PollInterval time.Duration

	// Clock used for liveness and ping timing.
	// If nil, time.Now is used.
	NowFn func() time.Time

	// Spans are recorded for subscriptions, sends,
	// liveness timeouts, and malformed frames.
	// If nil, a no-op provider is used.
	TracerProvider strace.TracerProvider
}

func (c *TransportConfig) setDefaults() {
	if c.Identifier == "" {
		c.Identifier = saddr.DeviceName()
	}
	if c.Subscriptions == 0 {
		c.Subscriptions = sproto.AllMessageKindsMask
	}
	if c.LivenessTimeout == 0 {
		c.LivenessTimeout = DefaultLivenessTimeout
	}
	if c.PingInterval == 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.NowFn == nil {
		c.NowFn = time.Now
	}
	if c.TracerProvider == nil {
		c.TracerProvider = strace.NopTracerProvider()
	}
}

// validate panics if there are any illegal settings in the configuration.
func (c TransportConfig) validate() {
	// Collect every problem so a single panic
	// reports the whole misconfiguration.
	var panicErrs error

	if len(c.Identifier) > saddr.MaxIdentifierLen {
		panicErrs = errors.Join(
			panicErrs,
			fmt.Errorf(
				"TransportConfig.Identifier must be at most %d bytes (use saddr.NewIdentifier to truncate)",
				saddr.MaxIdentifierLen,
			),
		)
	}

	if c.BindIP.IsValid() && !c.BindIP.Unmap().Is4() {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("TransportConfig.BindIP must be an IPv4 address"),
		)
	}

	if c.LivenessTimeout < 0 {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("TransportConfig.LivenessTimeout must not be negative"),
		)
	}

	if c.PingInterval < 0 {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("TransportConfig.PingInterval must not be negative"),
		)
	}

	if c.PollInterval < 0 {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("TransportConfig.PollInterval must not be negative"),
		)
	}

	if c.PollInterval > 0 && c.LivenessTimeout > 0 && c.PollInterval > c.LivenessTimeout {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("TransportConfig.PollInterval must not exceed LivenessTimeout"),
		)
	}

	if panicErrs != nil {
		panic(panicErrs)
	}
}

// Transport is the client end of the link to a host.
//
// Create one with [NewTransport], call [*Transport.Start] to run the receive loop,
// then [*Transport.Connect] to subscribe to a host.
// Decoded messages arrive on [*Transport.Receiver].
type Transport struct {
	log *slog.Logger

	cfg TransportConfig

	tracer strace.Tracer

	localIP netip.Addr

	// Guards the socket and loop lifecycle fields.
	mu      sync.Mutex
	conn    *net.UDPConn
	local   saddr.ConnectionInfo
	remote  saddr.ConnectionInfo
	running bool
	closed  bool
	done    chan struct{}

	// The connected host, or nil.
	// Written by Connect and Disconnect, read by the loop on every datagram.
	peer atomic.Pointer[netip.AddrPort]

	// Held by the loop while it filters and records one datagram,
	// and by Connect and Disconnect while they change the peer.
	// Once the peer has been dropped, unpeered traffic is refused
	// until the next Connect or rebind.
	recvMu    sync.Mutex
	refuseAny bool

	active atomic.Bool

	// Serializes consumer-triggered sends, which share enc.
	sendMu sync.Mutex
	enc    sframe.RequestEncoder

	q *squeue.Queue[Delivery]

	rx *stally.Tracker[sproto.MessageKind]
	tx *stally.Tracker[sproto.RequestKind]
}

// NewTransport resolves the local IPv4 address
// and binds a UDP socket to it on an ephemeral port.
// The receive loop does not run until [*Transport.Start].
//
// NewTransport returns runtime errors that happen during initialization.
// Configuration errors cause a panic.
func NewTransport(log *slog.Logger, cfg TransportConfig) (*Transport, error) {
	cfg.setDefaults()
	cfg.validate()

	ip := cfg.BindIP.Unmap()
	if !ip.IsValid() {
		var err error
		ip, err = saddr.LocalIP()
		if err != nil {
			return nil, err
		}
	}

	t := &Transport{
		log: log,
		cfg: cfg,

		tracer: cfg.TracerProvider.Tracer(strace.TracerName),

		localIP: ip,

		q: squeue.New[Delivery](),

		rx: stally.NewTracker[sproto.MessageKind](),
		tx: stally.NewTracker[sproto.RequestKind](),
	}

	if err := t.bind(); err != nil {
		return nil, err
	}

	return t, nil
}

// bind replaces the socket with a fresh one on an ephemeral port
// and records the bound address as the local end.
// The caller must hold t.mu, or otherwise have exclusive access to t.
func (t *Transport) bind() error {
	conn, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(netip.AddrPortFrom(t.localIP, 0)))
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s: %w", t.localIP, err)
	}

	addr, err := saddr.FromNetAddr(conn.LocalAddr())
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to read bound address: %w", err)
	}

	if t.conn != nil {
		if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.log.Debug("Error closing previous socket", "err", err)
		}
	}

	t.conn = conn
	t.local = saddr.ConnectionInfo{
		End:        saddr.LocalEnd,
		Address:    addr,
		Identifier: t.cfg.Identifier,
	}
	return nil
}

// Start runs the receive loop in a new goroutine.
// The loop stops when ctx is cancelled or the transport is closed;
// use [*Transport.Wait] to block until it has stopped.
//
// Start is a no-op if a host is connected or the loop is already running.
// Otherwise it rebinds the socket to a new ephemeral port first.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	if t.running || t.peer.Load() != nil {
		t.log.Debug("Ignoring start request; already running or connected")
		return nil
	}

	if err := t.bind(); err != nil {
		return err
	}

	t.recvMu.Lock()
	t.refuseAny = false
	t.recvMu.Unlock()

	t.running = true
	t.done = make(chan struct{})

	l := &recvLoop{
		log: t.log.With("transport_sys", "recv_loop"),
		t:   t,

		conn: t.conn,
		done: t.done,
	}
	go l.Run(ctx)

	t.log.Info("Started receive loop", "local", t.local.Address)
	return nil
}

// loopStopped is called by the receive loop as it exits.
func (t *Transport) loopStopped(done chan struct{}) {
	t.mu.Lock()
	if t.done == done {
		t.running = false
	}
	t.mu.Unlock()

	close(done)
}

// Wait blocks until the receive loop has stopped.
// It returns immediately if the loop was never started.
func (t *Transport) Wait() {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Close closes the socket and waits for the receive loop to stop.
// The transport cannot be started again.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	err := t.conn.Close()
	t.mu.Unlock()

	t.Wait()

	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Connect subscribes to the host at addr under identifier,
// and makes it the connected peer.
// Identifier also becomes the local identifier for the connection,
// so the later Unsubscribe matches.
// The returned ConnectionInfo describes the remote end;
// the host does not report a name, so its Identifier is empty.
//
// An unusable address results in an [*AddressError].
// If the Subscribe request cannot be sent,
// the transport is left unconnected.
func (t *Transport) Connect(identifier saddr.Identifier, addr saddr.IPAddress) (saddr.ConnectionInfo, error) {
	if err := addr.Validate(); err != nil {
		return saddr.ConnectionInfo{}, &AddressError{Addr: addr.String(), Err: err}
	}

	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return saddr.ConnectionInfo{}, ErrNotStarted
	}
	local := t.local
	t.mu.Unlock()

	local.Identifier = saddr.NewIdentifier(string(identifier))
	remote := saddr.ConnectionInfo{
		End:     saddr.RemoteEnd,
		Address: addr,
	}

	ap := addr.AddrPort()
	_, span := t.tracer.Start(
		context.Background(),
		"stagehand.connect",
		strace.WithSpanKind(strace.SpanKindClient),
		strace.WithAttributes(
			strace.PeerAttr(ap),
			strace.StringerAttr("stagehand.local", local.Address),
		),
	)
	defer span.End()

	// Subscribe before publishing the peer,
	// so the loop's first ping cannot precede the subscription.
	err := t.send(ap, sproto.Subscribe{Info: sproto.SubscriberInfo{
		Identifier:   local.Identifier,
		Address:      local.Address,
		MessageKinds: t.cfg.Subscriptions,
		LastContact:  uint64(t.cfg.NowFn().Unix()),
	}})
	if err != nil {
		// Any previous connection is left as it was.
		strace.SpanError(span, err)
		return saddr.ConnectionInfo{}, fmt.Errorf("failed to subscribe to %s: %w", addr, err)
	}

	t.mu.Lock()
	t.local.Identifier = local.Identifier
	t.remote = remote
	t.mu.Unlock()

	t.recvMu.Lock()
	t.peer.Store(&ap)
	t.refuseAny = false
	t.recvMu.Unlock()

	t.log.Info("Connected to host", "remote", remote)
	return remote, nil
}

// ConnectAddr parses addr in the form "a.b.c.d:port" and calls Connect.
func (t *Transport) ConnectAddr(identifier, addr string) (saddr.ConnectionInfo, error) {
	a, err := saddr.ParseIPAddress(addr)
	if err != nil {
		return saddr.ConnectionInfo{}, &AddressError{Addr: addr, Err: err}
	}
	return t.Connect(saddr.NewIdentifier(identifier), a)
}

// Disconnect unsubscribes from the connected host,
// forgets it, and resets both tallies.
// It is a no-op if no host is connected.
//
// The returned error reports a failed Unsubscribe send;
// the transport is disconnected regardless.
func (t *Transport) Disconnect() error {
	if t.peer.Load() == nil {
		return nil
	}

	t.mu.Lock()
	local := t.local
	remote := t.remote
	t.mu.Unlock()

	_, span := t.tracer.Start(
		context.Background(),
		"stagehand.disconnect",
		strace.WithSpanKind(strace.SpanKindClient),
		strace.WithAttributes(strace.StringerAttr("stagehand.remote", remote.Address)),
	)
	defer span.End()

	err := t.SendMsg(sproto.Unsubscribe{Info: local})

	// The loop cannot record a datagram between dropping the peer
	// and resetting the receive tally.
	t.recvMu.Lock()
	t.peer.Store(nil)
	t.refuseAny = true
	t.active.Store(false)
	t.rx.Reset()
	t.recvMu.Unlock()

	t.mu.Lock()
	t.remote = saddr.ConnectionInfo{}
	t.mu.Unlock()

	t.tx.Reset()

	t.log.Info("Disconnected from host", "remote", remote)

	if err != nil {
		strace.SpanError(span, err)
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

// SendMsg encodes req and sends it to the connected host.
// The send tally is updated only after a successful write.
func (t *Transport) SendMsg(req sproto.Request) error {
	peer := t.peer.Load()
	if peer == nil {
		return ErrNotConnected
	}
	return t.send(*peer, req)
}

func (t *Transport) send(to netip.AddrPort, req sproto.Request) error {
	_, span := t.tracer.Start(
		context.Background(),
		"stagehand.send",
		strace.WithSpanKind(strace.SpanKindClient),
		strace.WithAttributes(strace.KindAttr(req.Kind()), strace.PeerAttr(to)),
	)
	defer span.End()

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	b, err := t.enc.Encode(req)
	if err != nil {
		strace.SpanError(span, err)
		return err
	}
	span.SetAttributes(strace.SizeAttr(len(b)))

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if _, err := conn.WriteToUDPAddrPort(b, to); err != nil {
		err = fmt.Errorf("failed to send %s: %w", req.Kind(), err)
		strace.SpanError(span, err)
		return err
	}

	t.tx.Record(req.Kind(), len(b))
	t.log.Debug("Sent request", "kind", req.Kind(), "size", len(b))
	return nil
}

// Local returns the local end of the link.
// The port changes each time Start rebinds the socket.
func (t *Transport) Local() saddr.ConnectionInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.local
}

// Remote returns the connected host, if any.
func (t *Transport) Remote() (saddr.ConnectionInfo, bool) {
	if t.peer.Load() == nil {
		return saddr.ConnectionInfo{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remote, true
}

// Active reports whether the most recent host message was live traffic,
// as opposed to a shutdown, a timeout, or no traffic at all.
func (t *Transport) Active() bool {
	return t.active.Load()
}

// Receiver returns the queue of decoded messages.
// The transport is the only producer.
func (t *Transport) Receiver() *squeue.Queue[Delivery] {
	return t.q
}

// RxTally returns the per-kind tally of received messages.
func (t *Transport) RxTally() *stally.Tracker[sproto.MessageKind] {
	return t.rx
}

// TxTally returns the per-kind tally of sent requests.
func (t *Transport) TxTally() *stally.Tracker[sproto.RequestKind] {
	return t.tx
}
