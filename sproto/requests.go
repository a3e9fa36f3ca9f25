package sproto

import (
	"fmt"
	"strconv"

	"github.com/stagehand-audio/stagehand/saddr"
	"github.com/stagehand-audio/stagehand/sproto/swire"
)

// MaxRequestSize is the largest encoded size of any [Request].
// The largest is a Subscribe carrying a full-length identifier.
const MaxRequestSize = 1 + // variant index
	1 + saddr.MaxIdentifierLen + // identifier
	4 + 3 + // address octets and port
	3 + // message kind mask
	10 // last contact

// Request is a client-to-host message.
// Requests are sent without a frame tag.
type Request interface {
	Kind() RequestKind

	// EncodeTo writes the request's variant index and fields to w.
	EncodeTo(w *swire.Writer)
}

// EncodeRequest writes req to w.
func EncodeRequest(w *swire.Writer, req Request) {
	req.EncodeTo(w)
}

// DecodeRequest decodes an encoded request.
// The client never receives requests;
// this is used by hosts and test fixtures.
func DecodeRequest(b []byte) (Request, error) {
	r := swire.NewReader(b)
	idx := r.ReadUvarint()
	if err := r.Err(); err != nil {
		return nil, err
	}

	if idx >= numRequestKinds {
		return nil, UnknownVariantError{Of: "request", Index: idx}
	}

	var req Request
	switch RequestKind(idx) {
	case SubscribeKind:
		var v Subscribe
		v.Info.decode(r)
		req = v
	case UnsubscribeKind:
		var v Unsubscribe
		v.Info.Identifier = decodeIdentifier(r)
		v.Info.Address = decodeIPAddress(r)
		v.Info.End = saddr.ConnectionEnd(r.ReadUvarintMax(uint64(saddr.RemoteEnd)))
		req = v
	case PingKind:
		req = Ping{}
	case ControlCommandKind:
		var v ControlCommand
		v.Action.decode(r)
		req = v
	case SetConfigurationKind:
		var v ChangeConfiguration
		v.Change.decode(r)
		req = v
	case RoutingChangeKind:
		var v ChangeRouting
		v.Source = r.ReadUint8()
		v.Destination = r.ReadUint8()
		v.Connect = r.ReadBool()
		req = v
	case InitializeKind:
		req = Initialize{}
	case NotifySubscribersKind:
		req = NotifySubscribers{}
	case ShutdownKind:
		req = Shutdown{}
	default:
		panic(fmt.Errorf("BUG: unhandled request kind %d", idx))
	}

	if err := r.Err(); err != nil {
		return nil, err
	}
	return req, nil
}

// Subscribe asks the host to send the message kinds in Info.MessageKinds
// to Info.Address.
type Subscribe struct {
	Info SubscriberInfo
}

func (Subscribe) Kind() RequestKind { return SubscribeKind }

func (s Subscribe) EncodeTo(w *swire.Writer) {
	w.WriteUvarint(uint64(SubscribeKind))
	s.Info.encode(w)
}

// Unsubscribe asks the host to stop sending to Info.
type Unsubscribe struct {
	Info saddr.ConnectionInfo
}

func (Unsubscribe) Kind() RequestKind { return UnsubscribeKind }

func (u Unsubscribe) EncodeTo(w *swire.Writer) {
	w.WriteUvarint(uint64(UnsubscribeKind))
	encodeIdentifier(w, u.Info.Identifier)
	encodeIPAddress(w, u.Info.Address)
	w.WriteUvarint(uint64(u.Info.End))
}

// Ping keeps the host's record of this subscriber fresh.
type Ping struct{}

func (Ping) Kind() RequestKind { return PingKind }

func (Ping) EncodeTo(w *swire.Writer) { w.WriteUvarint(uint64(PingKind)) }

// ControlOp selects what a [ControlAction] does.
type ControlOp uint8

const (
	TransportStart  ControlOp = 0
	TransportStop   ControlOp = 1
	TransportZero   ControlOp = 2
	LoadNextCue     ControlOp = 3
	LoadPreviousCue ControlOp = 4
	LoadCueByIndex  ControlOp = 5
	ChangeJumpMode  ControlOp = 6
	ChangePlayrate  ControlOp = 7

	numControlOps = 8
)

var controlOpNames = [numControlOps]string{
	TransportStart:  "TransportStart",
	TransportStop:   "TransportStop",
	TransportZero:   "TransportZero",
	LoadNextCue:     "LoadNextCue",
	LoadPreviousCue: "LoadPreviousCue",
	LoadCueByIndex:  "LoadCueByIndex",
	ChangeJumpMode:  "ChangeJumpMode",
	ChangePlayrate:  "ChangePlayrate",
}

func (o ControlOp) String() string {
	if int(o) < len(controlOpNames) {
		return controlOpNames[o]
	}
	return "ControlOp(" + strconv.Itoa(int(o)) + ")"
}

// JumpModeChange is the argument to [ChangeJumpMode].
type JumpModeChange uint8

const (
	JumpModeToggle  JumpModeChange = 0
	JumpModeEnable  JumpModeChange = 1
	JumpModeDisable JumpModeChange = 2
)

// ControlAction is a transport or cue control.
// Only the field matching Op is meaningful:
// CueIndex for LoadCueByIndex,
// JumpMode for ChangeJumpMode,
// PlayratePercent for ChangePlayrate.
type ControlAction struct {
	Op              ControlOp
	CueIndex        uint8
	JumpMode        JumpModeChange
	PlayratePercent uint16
}

func (a ControlAction) encode(w *swire.Writer) {
	w.WriteUvarint(uint64(a.Op))
	switch a.Op {
	case LoadCueByIndex:
		w.WriteUint8(a.CueIndex)
	case ChangeJumpMode:
		w.WriteUvarint(uint64(a.JumpMode))
	case ChangePlayrate:
		w.WriteUvarint(uint64(a.PlayratePercent))
	}
}

func (a *ControlAction) decode(r *swire.Reader) {
	a.Op = ControlOp(r.ReadUvarintMax(numControlOps - 1))
	switch a.Op {
	case LoadCueByIndex:
		a.CueIndex = r.ReadUint8()
	case ChangeJumpMode:
		a.JumpMode = JumpModeChange(r.ReadUvarintMax(uint64(JumpModeDisable)))
	case ChangePlayrate:
		a.PlayratePercent = r.ReadUint16()
	}
}

// ControlCommand asks the host to perform a [ControlAction].
type ControlCommand struct {
	Action ControlAction
}

func (ControlCommand) Kind() RequestKind { return ControlCommandKind }

func (c ControlCommand) EncodeTo(w *swire.Writer) {
	w.WriteUvarint(uint64(ControlCommandKind))
	c.Action.encode(w)
}

// ConfigOp selects what a [ConfigurationChange] modifies.
type ConfigOp uint8

const (
	SetChannelGain ConfigOp = 0
	SetChannelName ConfigOp = 1
	SetAudioDevice ConfigOp = 2
	SetSampleRate  ConfigOp = 3
	SetBufferSize  ConfigOp = 4

	numConfigOps = 5
)

var configOpNames = [numConfigOps]string{
	SetChannelGain: "SetChannelGain",
	SetChannelName: "SetChannelName",
	SetAudioDevice: "SetAudioDevice",
	SetSampleRate:  "SetSampleRate",
	SetBufferSize:  "SetBufferSize",
}

func (o ConfigOp) String() string {
	if int(o) < len(configOpNames) {
		return configOpNames[o]
	}
	return "ConfigOp(" + strconv.Itoa(int(o)) + ")"
}

// ConfigurationChange is one edit to the host's [SystemConfiguration].
// Channel applies to SetChannelGain and SetChannelName,
// Gain to SetChannelGain, Name to SetChannelName,
// DeviceID to SetAudioDevice,
// and Value to SetSampleRate and SetBufferSize.
type ConfigurationChange struct {
	Op       ConfigOp
	Channel  uint8
	Gain     float32
	Name     string
	DeviceID string
	Value    uint32
}

func (c ConfigurationChange) encode(w *swire.Writer) {
	w.WriteUvarint(uint64(c.Op))
	switch c.Op {
	case SetChannelGain:
		w.WriteUint8(c.Channel)
		w.WriteFloat32(c.Gain)
	case SetChannelName:
		w.WriteUint8(c.Channel)
		w.WriteBoundedString(c.Name, MaxChannelNameLen)
	case SetAudioDevice:
		w.WriteBoundedString(c.DeviceID, MaxDeviceIDLen)
	case SetSampleRate, SetBufferSize:
		w.WriteUvarint(uint64(c.Value))
	}
}

func (c *ConfigurationChange) decode(r *swire.Reader) {
	c.Op = ConfigOp(r.ReadUvarintMax(numConfigOps - 1))
	switch c.Op {
	case SetChannelGain:
		c.Channel = r.ReadUint8()
		c.Gain = r.ReadFloat32()
	case SetChannelName:
		c.Channel = r.ReadUint8()
		c.Name = r.ReadString(MaxChannelNameLen)
	case SetAudioDevice:
		c.DeviceID = r.ReadString(MaxDeviceIDLen)
	case SetSampleRate, SetBufferSize:
		c.Value = r.ReadUint32()
	}
}

// ChangeConfiguration asks the host to apply a [ConfigurationChange].
type ChangeConfiguration struct {
	Change ConfigurationChange
}

func (ChangeConfiguration) Kind() RequestKind { return SetConfigurationKind }

func (c ChangeConfiguration) EncodeTo(w *swire.Writer) {
	w.WriteUvarint(uint64(SetConfigurationKind))
	c.Change.encode(w)
}

// ChangeRouting connects or disconnects an audio route on the host.
type ChangeRouting struct {
	Source      uint8
	Destination uint8
	Connect     bool
}

func (ChangeRouting) Kind() RequestKind { return RoutingChangeKind }

func (c ChangeRouting) EncodeTo(w *swire.Writer) {
	w.WriteUvarint(uint64(RoutingChangeKind))
	w.WriteUint8(c.Source)
	w.WriteUint8(c.Destination)
	w.WriteBool(c.Connect)
}

// Initialize asks the host to (re)initialize its audio system.
type Initialize struct{}

func (Initialize) Kind() RequestKind        { return InitializeKind }
func (Initialize) EncodeTo(w *swire.Writer) { w.WriteUvarint(uint64(InitializeKind)) }

// NotifySubscribers asks the host to resend its full state to every subscriber.
type NotifySubscribers struct{}

func (NotifySubscribers) Kind() RequestKind { return NotifySubscribersKind }
func (NotifySubscribers) EncodeTo(w *swire.Writer) {
	w.WriteUvarint(uint64(NotifySubscribersKind))
}

// Shutdown asks the host process to exit.
type Shutdown struct{}

func (Shutdown) Kind() RequestKind        { return ShutdownKind }
func (Shutdown) EncodeTo(w *swire.Writer) { w.WriteUvarint(uint64(ShutdownKind)) }
