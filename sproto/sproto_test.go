package sproto_test

import (
	"testing"

	"github.com/stagehand-audio/stagehand/saddr"
	"github.com/stagehand-audio/stagehand/sproto"
	"github.com/stagehand-audio/stagehand/sproto/swire"
	"github.com/stretchr/testify/require"
)

func TestMessageKindMask(t *testing.T) {
	t.Parallel()

	m := sproto.NewMessageKindMask(sproto.CueDataKind, sproto.HeartbeatKind)
	require.Equal(t, sproto.MessageKindMask(1|1<<9), m)
	require.True(t, m.Has(sproto.CueDataKind))
	require.True(t, m.Has(sproto.HeartbeatKind))
	require.False(t, m.Has(sproto.BeatDataKind))
	require.Equal(t, []sproto.MessageKind{sproto.CueDataKind, sproto.HeartbeatKind}, m.Kinds())

	require.Equal(t, sproto.MessageKindMask(0x3FF), sproto.AllMessageKindsMask)
	require.Equal(t, sproto.AllMessageKinds(), sproto.AllMessageKindsMask.Kinds())

	// Unknown high bits are not reported as kinds.
	require.Equal(t, []sproto.MessageKind{sproto.ShowDataKind}, sproto.MessageKindMask(1<<15|1<<1).Kinds())
}

func TestMessageKind_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "JACKStateChanged", sproto.JACKStateChangedKind.String())
	require.Equal(t, "MessageKind(42)", sproto.MessageKind(42).String())
	require.Equal(t, "Ping", sproto.PingKind.String())
	require.Equal(t, "RequestKind(99)", sproto.RequestKind(99).String())
}

func encodeMessage(t *testing.T, m sproto.Message) []byte {
	t.Helper()

	buf := make([]byte, 64*1024)
	var w swire.Writer
	w.Reset(buf)
	sproto.EncodeMessage(&w, m)
	require.NoError(t, w.Err())
	return w.Bytes()
}

func decodeMessage(t *testing.T, m sproto.Message, b []byte) sproto.Message {
	t.Helper()

	var got sproto.Message
	var err error
	switch m.Category() {
	case sproto.LargeCategory:
		got, err = sproto.DecodeLarge(b)
	case sproto.SmallCategory:
		got, err = sproto.DecodeSmall(b)
	}
	require.NoError(t, err)
	return got
}

func sampleMessages() []sproto.Message {
	var cfg sproto.SystemConfiguration
	cfg.Audio = sproto.AudioConfig{DeviceID: "hw:1", SampleRate: 48000, BufferSize: 256}
	for i := range cfg.Channels {
		cfg.Channels[i] = sproto.ChannelConfig{Name: "ch", Gain: float32(i) / 2}
	}

	return []sproto.Message{
		sproto.CueData{
			CueIdx: 3,
			Cue: sproto.Cue{
				Metadata: sproto.CueMetadata{HumanIdent: "12A", Name: "Overture"},
				Beats:    []sproto.Beat{{BarNumber: 1, Count: 1}, {BarNumber: 1, Count: 2}, {BarNumber: 300, Count: 1}},
			},
		},
		sproto.ShowData{
			Name: "Tour",
			Cues: []sproto.CueMetadata{{HumanIdent: "1", Name: "Intro"}, {HumanIdent: "2", Name: "Ballad"}},
		},
		sproto.NetworkChanged{
			Subscribers: []sproto.SubscriberInfo{{
				Identifier:   "desk",
				Address:      saddr.IPAddress{Addr: [4]byte{10, 0, 0, 5}, Port: 5000},
				MessageKinds: sproto.AllMessageKindsMask,
				LastContact:  1_700_000_000_000,
			}},
		},
		sproto.JACKStateChanged{
			Running: true, CPULoad: 12.5, SampleRate: 48000, BufferSize: 128,
			AvailableDevices: []sproto.AudioDevice{{ID: "hw:0", Name: "Onboard"}},
		},
		sproto.ConfigurationChanged{Config: cfg},
		sproto.TransportData{
			Running: true, VLT: true, PlayratePercent: 105,
			LTC: sproto.Timecode{Hours: 1, Minutes: 2, Seconds: 3, Frames: 24},
		},
		sproto.TimecodeData{LTC: sproto.Timecode{Minutes: 59, Frames: 1}},
		sproto.BeatData{BeatIdx: 500, Tempo: 120},
		sproto.ShutdownOccurred{},
		sproto.Heartbeat{
			SystemTime: 1_700_000_000_123, CPUUseAudio: 33.25, ProcessFreqMain: 44100,
			CommonVersion: "0.4.1", SystemVersion: "0.9.0",
		},
	}
}

func TestMessages_roundTrip(t *testing.T) {
	t.Parallel()

	seen := map[sproto.MessageKind]bool{}
	for _, m := range sampleMessages() {
		t.Run(m.Kind().String(), func(t *testing.T) {
			got := decodeMessage(t, m, encodeMessage(t, m))
			require.Equal(t, m, got)
		})
		seen[m.Kind()] = true
	}
	require.Len(t, seen, len(sproto.AllMessageKinds()))
}

func TestDecode_categoriesUseDistinctVariants(t *testing.T) {
	t.Parallel()

	// Variant 0 is CueData when large and TransportData when small.
	got, err := sproto.DecodeLarge([]byte{0, 0, 0, 0, 0})
	require.NoError(t, err)
	require.Equal(t, sproto.CueDataKind, got.Kind())

	got, err = sproto.DecodeSmall([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	require.Equal(t, sproto.TransportDataKind, got.Kind())
}

func TestDecode_errors(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		_, err := sproto.DecodeSmall(nil)
		require.ErrorIs(t, err, swire.ErrShortBuffer)
	})

	t.Run("unknown variant", func(t *testing.T) {
		_, err := sproto.DecodeLarge([]byte{5})
		require.ErrorAs(t, err, new(sproto.UnknownVariantError))

		_, err = sproto.DecodeSmall([]byte{9})
		require.ErrorAs(t, err, new(sproto.UnknownVariantError))
	})

	t.Run("truncated", func(t *testing.T) {
		b := encodeMessage(t, sproto.BeatData{BeatIdx: 7, Tempo: 90})
		_, err := sproto.DecodeSmall(b[:len(b)-1])
		require.ErrorIs(t, err, swire.ErrShortBuffer)
	})

	t.Run("oversized sequence", func(t *testing.T) {
		// ShowData with an empty name and a cue count far above the limit.
		_, err := sproto.DecodeLarge([]byte{1, 0, 0xff, 0xff, 0x03})
		var lle swire.LengthLimitError
		require.ErrorAs(t, err, &lle)
		require.Equal(t, uint64(sproto.MaxCues), lle.Max)
	})
}

func TestEncodeMessage_rejectsLongStrings(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 1024)
	var w swire.Writer
	w.Reset(buf)
	sproto.EncodeMessage(&w, sproto.Heartbeat{CommonVersion: string(make([]byte, sproto.MaxVersionLen+1))})

	var lle swire.LengthLimitError
	require.ErrorAs(t, w.Err(), &lle)
}

func TestCue_Beat(t *testing.T) {
	t.Parallel()

	c := sproto.Cue{Beats: []sproto.Beat{{BarNumber: 1, Count: 1}, {BarNumber: 1, Count: 2}}}

	b, ok := c.Beat(1)
	require.True(t, ok)
	require.Equal(t, sproto.Beat{BarNumber: 1, Count: 2}, b)

	_, ok = c.Beat(2)
	require.False(t, ok)
}

func TestTimecode_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "01:02:03:04", sproto.Timecode{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4}.String())
}
