package sproto_test

import (
	"strings"
	"testing"

	"github.com/stagehand-audio/stagehand/saddr"
	"github.com/stagehand-audio/stagehand/sproto"
	"github.com/stagehand-audio/stagehand/sproto/swire"
	"github.com/stretchr/testify/require"
)

func sampleRequests() []sproto.Request {
	addr := saddr.IPAddress{Addr: [4]byte{192, 168, 1, 20}, Port: 40000}
	return []sproto.Request{
		sproto.Subscribe{Info: sproto.SubscriberInfo{
			Identifier:   "desk",
			Address:      addr,
			MessageKinds: sproto.AllMessageKindsMask,
		}},
		sproto.Unsubscribe{Info: saddr.ConnectionInfo{
			End: saddr.LocalEnd, Address: addr, Identifier: "desk",
		}},
		sproto.Ping{},
		sproto.ControlCommand{Action: sproto.ControlAction{Op: sproto.TransportStart}},
		sproto.ControlCommand{Action: sproto.ControlAction{Op: sproto.LoadCueByIndex, CueIndex: 7}},
		sproto.ControlCommand{Action: sproto.ControlAction{Op: sproto.ChangeJumpMode, JumpMode: sproto.JumpModeDisable}},
		sproto.ControlCommand{Action: sproto.ControlAction{Op: sproto.ChangePlayrate, PlayratePercent: 95}},
		sproto.ChangeConfiguration{Change: sproto.ConfigurationChange{Op: sproto.SetChannelGain, Channel: 4, Gain: -6}},
		sproto.ChangeConfiguration{Change: sproto.ConfigurationChange{Op: sproto.SetChannelName, Channel: 31, Name: "Click"}},
		sproto.ChangeConfiguration{Change: sproto.ConfigurationChange{Op: sproto.SetAudioDevice, DeviceID: "hw:2"}},
		sproto.ChangeConfiguration{Change: sproto.ConfigurationChange{Op: sproto.SetSampleRate, Value: 96000}},
		sproto.ChangeRouting{Source: 1, Destination: 2, Connect: true},
		sproto.Initialize{},
		sproto.NotifySubscribers{},
		sproto.Shutdown{},
	}
}

func TestRequests_roundTrip(t *testing.T) {
	t.Parallel()

	seen := map[sproto.RequestKind]bool{}
	for _, req := range sampleRequests() {
		var buf [sproto.MaxRequestSize]byte
		var w swire.Writer
		w.Reset(buf[:])
		sproto.EncodeRequest(&w, req)
		require.NoError(t, w.Err(), req.Kind().String())

		got, err := sproto.DecodeRequest(w.Bytes())
		require.NoError(t, err)
		require.Equal(t, req, got)

		seen[req.Kind()] = true
	}
	require.Len(t, seen, len(sproto.AllRequestKinds()))
}

func TestMaxRequestSize(t *testing.T) {
	t.Parallel()

	longest := sproto.Subscribe{Info: sproto.SubscriberInfo{
		Identifier:   saddr.NewIdentifier(strings.Repeat("x", 64)),
		Address:      saddr.IPAddress{Addr: [4]byte{255, 255, 255, 255}, Port: 65535},
		MessageKinds: sproto.MessageKindMask(0xFFFF),
		LastContact:  ^uint64(0),
	}}

	var buf [sproto.MaxRequestSize]byte
	var w swire.Writer
	w.Reset(buf[:])
	sproto.EncodeRequest(&w, longest)
	require.NoError(t, w.Err())
	require.Equal(t, sproto.MaxRequestSize, w.Len())

	// Every other request also fits.
	for _, req := range sampleRequests() {
		w.Reset(buf[:])
		sproto.EncodeRequest(&w, req)
		require.NoError(t, w.Err())
	}
}

func TestSubscribe_wireBytes(t *testing.T) {
	t.Parallel()

	var buf [sproto.MaxRequestSize]byte
	var w swire.Writer
	w.Reset(buf[:])
	sproto.EncodeRequest(&w, sproto.Subscribe{Info: sproto.SubscriberInfo{
		Identifier:   "X",
		Address:      saddr.IPAddress{Addr: [4]byte{10, 0, 0, 5}, Port: 5000},
		MessageKinds: sproto.AllMessageKindsMask,
	}})
	require.NoError(t, w.Err())

	require.Equal(t, []byte{
		0x00,        // Subscribe
		0x01, 'X',   // identifier
		10, 0, 0, 5, // address
		0x88, 0x27,  // port 5000
		0xFF, 0x07,  // mask 0x3FF
		0x00,        // last contact
	}, w.Bytes())
}

func TestDecodeRequest_errors(t *testing.T) {
	t.Parallel()

	_, err := sproto.DecodeRequest([]byte{9})
	require.ErrorAs(t, err, new(sproto.UnknownVariantError))

	// Index that would wrap to Subscribe if truncated to a byte.
	_, err = sproto.DecodeRequest([]byte{0x80, 0x02})
	require.ErrorAs(t, err, new(sproto.UnknownVariantError))

	// ControlCommand with an unknown op.
	_, err = sproto.DecodeRequest([]byte{3, 8})
	require.ErrorIs(t, err, swire.ErrVarintOverflow)
}

func TestEncodeRequest_identifierTooLong(t *testing.T) {
	t.Parallel()

	var buf [sproto.MaxRequestSize]byte
	var w swire.Writer
	w.Reset(buf[:])
	sproto.EncodeRequest(&w, sproto.Subscribe{Info: sproto.SubscriberInfo{
		Identifier: saddr.Identifier(strings.Repeat("y", saddr.MaxIdentifierLen+1)),
	}})

	var lle swire.LengthLimitError
	require.ErrorAs(t, w.Err(), &lle)
}
