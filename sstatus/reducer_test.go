package sstatus_test

import (
	"testing"
	"time"

	"github.com/stagehand-audio/stagehand"
	"github.com/stagehand-audio/stagehand/internal/stest"
	"github.com/stagehand-audio/stagehand/sproto"
	"github.com/stagehand-audio/stagehand/squeue"
	"github.com/stagehand-audio/stagehand/sstatus"
	"github.com/stretchr/testify/require"
)

func TestReducer_Apply(t *testing.T) {
	t.Parallel()

	r := sstatus.NewReducer(stest.NewLogger(t), sstatus.ReducerConfig{})
	require.False(t, r.Status().Active)

	td := sproto.TransportData{Running: true, PlayratePercent: 100, LTC: sproto.Timecode{Minutes: 3}}
	r.Apply(td, 9)

	s := r.Status()
	require.True(t, s.Active)
	require.Equal(t, td, s.Transport)
	require.Equal(t, td.LTC, s.Timecode)
	require.True(t, s.Seen.Has(sproto.TransportDataKind))
	require.Equal(t, uint64(1), s.Applied)
	require.Equal(t, uint64(9), s.AppliedBytes)

	r.Apply(sproto.TimecodeData{LTC: sproto.Timecode{Minutes: 4}}, 6)
	require.Equal(t, sproto.Timecode{Minutes: 4}, r.Status().Timecode)
	// Transport keeps its own copy.
	require.Equal(t, td, r.Status().Transport)

	cue := sproto.CueData{CueIdx: 2, Cue: sproto.Cue{Metadata: sproto.CueMetadata{HumanIdent: "2", Name: "Ballad"}}}
	r.Apply(cue, 20)
	require.Equal(t, cue, r.Status().Cue)

	// Last write wins.
	cue2 := sproto.CueData{CueIdx: 3}
	r.Apply(cue2, 5)
	require.Equal(t, cue2, r.Status().Cue)

	r.Apply(sproto.BeatData{BeatIdx: 7, Tempo: 100}, 7)
	r.Apply(sproto.ShowData{Name: "Tour"}, 7)
	r.Apply(sproto.NetworkChanged{Subscribers: []sproto.SubscriberInfo{{Identifier: "a"}}}, 20)
	r.Apply(sproto.JACKStateChanged{Running: true, SampleRate: 48000}, 12)

	s = r.Status()
	require.Equal(t, sproto.BeatData{BeatIdx: 7, Tempo: 100}, s.Beat)
	require.Equal(t, "Tour", s.Show.Name)
	require.Len(t, s.Network.Subscribers, 1)
	require.Equal(t, uint32(48000), s.JACK.SampleRate)
}

func TestReducer_Apply_shutdownKeepsStatus(t *testing.T) {
	t.Parallel()

	r := sstatus.NewReducer(stest.NewLogger(t), sstatus.ReducerConfig{})
	r.Apply(sproto.ShowData{Name: "Tour"}, 7)
	require.True(t, r.Status().Active)

	r.Apply(sproto.ShutdownOccurred{}, 1)

	s := r.Status()
	require.False(t, s.Active)
	require.Equal(t, "Tour", s.Show.Name)

	// Any later message marks the host active again.
	r.Apply(sproto.BeatData{}, 4)
	require.True(t, r.Status().Active)
}

func TestReducer_Apply_configurationRebuildsGains(t *testing.T) {
	t.Parallel()

	r := sstatus.NewReducer(stest.NewLogger(t), sstatus.ReducerConfig{})

	// Local edit, to be overwritten.
	r.Gains()[0] = 99

	var cfg sproto.SystemConfiguration
	for i := range cfg.Channels {
		cfg.Channels[i].Gain = float32(i)
	}
	r.Apply(sproto.ConfigurationChanged{Config: cfg}, 300)

	s := r.Status()
	require.Equal(t, cfg, s.Config)
	for i := range s.Gains {
		require.Equal(t, float32(i), s.Gains[i])
	}
}

func TestReducer_Apply_heartbeatStamped(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := sstatus.NewReducer(stest.NewLogger(t), sstatus.ReducerConfig{
		NowFn: func() time.Time { return at },
	})

	hb := sproto.Heartbeat{SystemTime: uint64(at.Unix()), CPUUseAudio: 10, ProcessFreqMain: 48000}
	r.Apply(hb, 25)

	s := r.Status()
	require.Equal(t, hb, s.Heartbeat)
	require.Equal(t, at, s.HeartbeatAt)
}

func TestReducer_Reset(t *testing.T) {
	t.Parallel()

	r := sstatus.NewReducer(stest.NewLogger(t), sstatus.ReducerConfig{})
	r.Apply(sproto.ShowData{Name: "Tour"}, 7)
	r.Reset()
	require.Equal(t, sstatus.Status{}, r.Status())
}

func fill(q *squeue.Queue[stagehand.Delivery], n int) {
	for i := range n {
		q.Push(stagehand.Delivery{Msg: sproto.BeatData{BeatIdx: uint16(i)}, Size: 4})
	}
}

func TestReducer_Drain(t *testing.T) {
	t.Parallel()

	r := sstatus.NewReducer(stest.NewLogger(t), sstatus.ReducerConfig{})
	q := squeue.New[stagehand.Delivery]()

	require.Equal(t, sstatus.DrainResult{}, r.Drain(q))

	// Exactly at the limit is applied in full, in order.
	fill(q, sstatus.DefaultBacklogLimit)
	res := r.Drain(q)
	require.Equal(t, sstatus.DrainResult{Applied: sstatus.DefaultBacklogLimit}, res)
	require.Zero(t, q.Len())
	require.Equal(t, uint16(sstatus.DefaultBacklogLimit-1), r.Status().Beat.BeatIdx)
	require.Equal(t, uint64(4*sstatus.DefaultBacklogLimit), r.Status().AppliedBytes)
}

func TestReducer_Drain_overflow(t *testing.T) {
	t.Parallel()

	r := sstatus.NewReducer(stest.NewLogger(t), sstatus.ReducerConfig{})
	q := squeue.New[stagehand.Delivery]()

	r.Apply(sproto.BeatData{BeatIdx: 500}, 4)

	fill(q, sstatus.DefaultBacklogLimit+1)
	res := r.Drain(q)
	require.Equal(t, sstatus.DrainResult{
		Discarded: sstatus.DefaultBacklogLimit + 1,
		Overflow:  true,
	}, res)
	require.Zero(t, q.Len())

	// Nothing from the backlog was applied.
	require.Equal(t, uint16(500), r.Status().Beat.BeatIdx)

	// The next tick proceeds normally.
	fill(q, 2)
	require.Equal(t, sstatus.DrainResult{Applied: 2}, r.Drain(q))
}

func TestReducer_Drain_customLimit(t *testing.T) {
	t.Parallel()

	r := sstatus.NewReducer(stest.NewLogger(t), sstatus.ReducerConfig{BacklogLimit: 2})
	q := squeue.New[stagehand.Delivery]()

	fill(q, 3)
	require.True(t, r.Drain(q).Overflow)
}

func TestNewReducer_invalidConfigPanics(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		sstatus.NewReducer(stest.NewLogger(t), sstatus.ReducerConfig{BacklogLimit: -1})
	})
}
