// Package sstatus folds messages delivered by a stagehand Transport
// into a single [Status] owned by the application.
package sstatus

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stagehand-audio/stagehand"
	"github.com/stagehand-audio/stagehand/sproto"
	"github.com/stagehand-audio/stagehand/squeue"
)

// DefaultBacklogLimit is the default [ReducerConfig.BacklogLimit].
const DefaultBacklogLimit = 16

// ReducerConfig is the configuration for a [Reducer].
type ReducerConfig struct {
	// A drain that finds more than this many queued deliveries
	// discards all of them instead of applying stale state.
	// If zero, DefaultBacklogLimit is used.
	BacklogLimit int

	// Clock used to stamp heartbeats.
	// If nil, time.Now is used.
	NowFn func() time.Time
}

func (c ReducerConfig) validate() {
	var panicErrs error

	if c.BacklogLimit < 0 {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("ReducerConfig.BacklogLimit must not be negative"),
		)
	}

	if panicErrs != nil {
		panic(panicErrs)
	}
}

// Reducer applies deliveries to a [Status].
// A Reducer is not safe for concurrent use;
// it belongs to the goroutine that drains the transport's queue.
type Reducer struct {
	log *slog.Logger

	backlogLimit int
	nowFn        func() time.Time

	status Status
}

// NewReducer returns a Reducer with an empty Status.
// Configuration errors cause a panic.
func NewReducer(log *slog.Logger, cfg ReducerConfig) *Reducer {
	cfg.validate()

	if cfg.BacklogLimit == 0 {
		cfg.BacklogLimit = DefaultBacklogLimit
	}
	if cfg.NowFn == nil {
		cfg.NowFn = time.Now
	}

	return &Reducer{
		log: log,

		backlogLimit: cfg.BacklogLimit,
		nowFn:        cfg.NowFn,
	}
}

// Status returns a copy of the current status.
// Slices inside the copy are shared with the reducer and must not be modified.
func (r *Reducer) Status() Status {
	return r.status
}

// Gains returns a pointer to the locally editable gain cache.
func (r *Reducer) Gains() *[sproto.ChannelCount]float32 {
	return &r.status.Gains
}

// Reset discards all status.
func (r *Reducer) Reset() {
	r.status = Status{}
}

// Apply folds one message, which arrived in size wire bytes, into the status.
// Any message except ShutdownOccurred marks the host active;
// ShutdownOccurred marks it inactive and keeps the rest of the status.
func (r *Reducer) Apply(msg sproto.Message, size int) {
	s := &r.status

	s.Seen |= sproto.NewMessageKindMask(msg.Kind())
	s.Applied++
	s.AppliedBytes += uint64(size)
	s.Active = true

	switch m := msg.(type) {
	case sproto.TransportData:
		s.Transport = m
		s.Timecode = m.LTC
	case sproto.TimecodeData:
		s.Timecode = m.LTC
	case sproto.BeatData:
		s.Beat = m
	case sproto.CueData:
		s.Cue = m
	case sproto.ShowData:
		s.Show = m
	case sproto.NetworkChanged:
		s.Network = m
	case sproto.JACKStateChanged:
		s.JACK = m
	case sproto.ConfigurationChanged:
		s.Config = m.Config
		for i, ch := range m.Config.Channels {
			s.Gains[i] = ch.Gain
		}
	case sproto.Heartbeat:
		s.Heartbeat = m
		s.HeartbeatAt = r.nowFn()
	case sproto.ShutdownOccurred:
		s.Active = false
	default:
		panic(fmt.Errorf("BUG: unhandled message type %T", msg))
	}
}

// DrainResult reports what one [*Reducer.Drain] call did.
type DrainResult struct {
	Applied int

	// Number of deliveries discarded because of a backlog overflow.
	Discarded int

	// Set when the queue was over the backlog limit.
	// Applications surface this as "living in the past".
	Overflow bool
}

// Drain applies every queued delivery in order.
//
// If the queue holds more than the backlog limit when Drain starts,
// the whole backlog is discarded without being applied.
func (r *Reducer) Drain(q *squeue.Queue[stagehand.Delivery]) DrainResult {
	if n := q.Len(); n > r.backlogLimit {
		discarded := q.Clear()
		r.log.Warn(
			"Living in the past; clearing backlog",
			"queued", n,
			"discarded", discarded,
			"limit", r.backlogLimit,
		)
		return DrainResult{Discarded: discarded, Overflow: true}
	}

	var res DrainResult
	for {
		d, ok := q.TryPop()
		if !ok {
			return res
		}
		r.Apply(d.Msg, d.Size)
		res.Applied++
	}
}
