package sstatus_test

import (
	"testing"
	"time"

	"github.com/stagehand-audio/stagehand/sproto"
	"github.com/stagehand-audio/stagehand/sstatus"
	"github.com/stretchr/testify/require"
)

func TestStatus_Health_clock(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 400_000_000, time.UTC)

	var s sstatus.Status
	h := s.Health(now)
	require.False(t, h.HaveHeartbeat)
	require.False(t, h.ClockOK)

	s.Heartbeat = sproto.Heartbeat{SystemTime: uint64(now.Unix()) + 2, CPUUseAudio: 20, ProcessFreqMain: 48000}
	h = s.Health(now)
	require.True(t, h.HaveHeartbeat)
	require.Equal(t, 2*time.Second, h.ClockSkew)
	require.True(t, h.ClockOK)
	require.True(t, h.PerfOK)

	// A stale heartbeat drifts out of range.
	h = s.Health(now.Add(10 * time.Second))
	require.Equal(t, -8*time.Second, h.ClockSkew)
	require.False(t, h.ClockOK)
}

func TestStatus_Health_perf(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := sstatus.Status{Heartbeat: sproto.Heartbeat{SystemTime: uint64(now.Unix())}}

	for _, tc := range []struct {
		cpu  float32
		freq uint32
		ok   bool
	}{
		{cpu: 80, freq: 10_000, ok: true},
		{cpu: 80.5, freq: 48_000, ok: false},
		{cpu: 10, freq: 9_999, ok: false},
	} {
		s.Heartbeat.CPUUseAudio = tc.cpu
		s.Heartbeat.ProcessFreqMain = tc.freq
		require.Equal(t, tc.ok, s.Health(now).PerfOK, "cpu=%v freq=%v", tc.cpu, tc.freq)
	}
}

func TestStatus_Health_nearCueEnd(t *testing.T) {
	t.Parallel()

	s := sstatus.Status{
		Cue: sproto.CueData{Cue: sproto.Cue{Beats: make([]sproto.Beat, 20)}},
	}

	s.Beat.BeatIdx = 12
	require.False(t, s.Health(time.Now()).NearCueEnd)

	s.Beat.BeatIdx = 13
	require.True(t, s.Health(time.Now()).NearCueEnd)

	// Sentinel indices before the cue starts never warn.
	s.Beat.BeatIdx = 0xFFFF
	require.False(t, s.Health(time.Now()).NearCueEnd)
}

func TestStatus_CurrentBeat(t *testing.T) {
	t.Parallel()

	s := sstatus.Status{
		Cue:  sproto.CueData{Cue: sproto.Cue{Beats: []sproto.Beat{{BarNumber: 1, Count: 1}, {BarNumber: 1, Count: 2}}}},
		Beat: sproto.BeatData{BeatIdx: 1},
	}
	require.Equal(t, sproto.Beat{BarNumber: 1, Count: 2}, s.CurrentBeat())

	s.Beat.BeatIdx = 5
	require.Zero(t, s.CurrentBeat())
}
