package sstatus

import (
	"time"

	"github.com/stagehand-audio/stagehand/sproto"
)

// Health thresholds for [Status.Health].
const (
	MaxClockSkew       = 5 * time.Second
	MaxAudioCPUPercent = 80
	MinMainLoopHz      = 10_000
	CueEndWarningBeats = 8
)

// Status is the application's view of the host,
// built up from delivered messages.
// Each message kind overwrites its own field; nothing is merged.
type Status struct {
	// Whether the host is considered live.
	Active bool

	Transport sproto.TransportData
	Timecode  sproto.Timecode
	Beat      sproto.BeatData
	Cue       sproto.CueData
	Show      sproto.ShowData
	Network   sproto.NetworkChanged
	JACK      sproto.JACKStateChanged
	Config    sproto.SystemConfiguration

	// Per-channel gains from the last configuration,
	// kept separately so they can be edited locally.
	Gains [sproto.ChannelCount]float32

	Heartbeat sproto.Heartbeat

	// Local time the last heartbeat was applied.
	HeartbeatAt time.Time

	// Kinds applied since the last reset.
	Seen sproto.MessageKindMask

	// Messages and wire bytes applied since the last reset.
	Applied      uint64
	AppliedBytes uint64
}

// CurrentBeat returns the beat-grid entry for the current beat index.
// The zero Beat is returned if the loaded cue has no such beat.
func (s Status) CurrentBeat() sproto.Beat {
	b, _ := s.Cue.Cue.Beat(s.Beat.BeatIdx)
	return b
}

// Health summarizes the host's condition for display.
type Health struct {
	// Whether a heartbeat has been seen.
	HaveHeartbeat bool

	// Host clock from the last heartbeat minus the local clock.
	// A host that stops sending heartbeats drifts out of range.
	ClockSkew time.Duration
	ClockOK   bool

	// Audio CPU use and main loop frequency are both within limits.
	PerfOK bool

	// The current beat is within CueEndWarningBeats of the end of the cue.
	NearCueEnd bool
}

// Health evaluates s at local time now.
func (s Status) Health(now time.Time) Health {
	var h Health

	if s.Heartbeat.SystemTime > 0 {
		h.HaveHeartbeat = true

		// Host time only has second resolution.
		host := time.Unix(int64(s.Heartbeat.SystemTime), 0)
		h.ClockSkew = host.Sub(now.Truncate(time.Second))
		h.ClockOK = h.ClockSkew.Abs() < MaxClockSkew

		h.PerfOK = s.Heartbeat.CPUUseAudio <= MaxAudioCPUPercent &&
			s.Heartbeat.ProcessFreqMain >= MinMainLoopHz
	}

	// Beat indices in the upper half are the host's "before the cue" sentinel range.
	idx := int(s.Beat.BeatIdx)
	h.NearCueEnd = idx < 1<<15-1 && idx+CueEndWarningBeats > len(s.Cue.Cue.Beats)

	return h
}
