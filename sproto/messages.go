package sproto

import (
	"fmt"

	"github.com/stagehand-audio/stagehand/saddr"
	"github.com/stagehand-audio/stagehand/sproto/swire"
)

// ChannelCount is the number of mixer channels in a [SystemConfiguration].
const ChannelCount = 32

// Decoding limits for variable-length fields.
// A length prefix above these fails the decode
// instead of allocating on the sender's say-so.
const (
	MaxNameLen        = 256
	MaxVersionLen     = 32
	MaxBeats          = 1 << 16
	MaxCues           = 1024
	MaxSubscribers    = 256
	MaxAudioDevices   = 256
	MaxDeviceIDLen    = 32
	MaxChannelNameLen = 32
)

// Message is a decoded host-to-client payload.
// The concrete types in this package are the only implementations.
type Message interface {
	Category() Category
	Kind() MessageKind

	variant() uint64
	encodeFields(w *swire.Writer)
}

// UnknownVariantError is reported when a variant index
// names no known payload.
type UnknownVariantError struct {
	Of    string
	Index uint64
}

func (e UnknownVariantError) Error() string {
	return fmt.Sprintf("unknown %s variant index %d", e.Of, e.Index)
}

// EncodeMessage writes msg's variant index and fields to w.
// The frame tag is not written; see package sframe.
func EncodeMessage(w *swire.Writer, msg Message) {
	w.WriteUvarint(msg.variant())
	msg.encodeFields(w)
}

// Large variant indices.
const (
	cueDataVariant              = 0
	showDataVariant             = 1
	networkChangedVariant       = 2
	jackStateChangedVariant     = 3
	configurationChangedVariant = 4
)

// Small variant indices.
const (
	transportDataVariant    = 0
	timecodeDataVariant     = 1
	beatDataVariant         = 2
	shutdownOccurredVariant = 3
	heartbeatVariant        = 4
)

// DecodeLarge decodes a large-category payload, without the frame tag.
func DecodeLarge(b []byte) (Message, error) {
	r := swire.NewReader(b)
	idx := r.ReadUvarint()
	if err := r.Err(); err != nil {
		return nil, err
	}

	var m Message
	switch idx {
	case cueDataVariant:
		var v CueData
		v.decode(r)
		m = v
	case showDataVariant:
		var v ShowData
		v.decode(r)
		m = v
	case networkChangedVariant:
		var v NetworkChanged
		v.decode(r)
		m = v
	case jackStateChangedVariant:
		var v JACKStateChanged
		v.decode(r)
		m = v
	case configurationChangedVariant:
		var v ConfigurationChanged
		v.decode(r)
		m = v
	default:
		return nil, UnknownVariantError{Of: "large message", Index: idx}
	}

	if err := r.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeSmall decodes a small-category payload, without the frame tag.
func DecodeSmall(b []byte) (Message, error) {
	r := swire.NewReader(b)
	idx := r.ReadUvarint()
	if err := r.Err(); err != nil {
		return nil, err
	}

	var m Message
	switch idx {
	case transportDataVariant:
		var v TransportData
		v.decode(r)
		m = v
	case timecodeDataVariant:
		var v TimecodeData
		v.decode(r)
		m = v
	case beatDataVariant:
		var v BeatData
		v.decode(r)
		m = v
	case shutdownOccurredVariant:
		m = ShutdownOccurred{}
	case heartbeatVariant:
		var v Heartbeat
		v.decode(r)
		m = v
	default:
		return nil, UnknownVariantError{Of: "small message", Index: idx}
	}

	if err := r.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// Timecode is an SMPTE-style hours:minutes:seconds:frames position.
type Timecode struct {
	Hours, Minutes, Seconds, Frames uint8
}

func (tc Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", tc.Hours, tc.Minutes, tc.Seconds, tc.Frames)
}

func (tc Timecode) encode(w *swire.Writer) {
	w.WriteUint8(tc.Hours)
	w.WriteUint8(tc.Minutes)
	w.WriteUint8(tc.Seconds)
	w.WriteUint8(tc.Frames)
}

func (tc *Timecode) decode(r *swire.Reader) {
	tc.Hours = r.ReadUint8()
	tc.Minutes = r.ReadUint8()
	tc.Seconds = r.ReadUint8()
	tc.Frames = r.ReadUint8()
}

// TransportData reports the playback transport.
type TransportData struct {
	Running bool

	// VLT is set when the host jumps to the next cue
	// automatically at the end of the current one.
	VLT bool

	PlayratePercent uint16
	LTC             Timecode
}

func (TransportData) Category() Category { return SmallCategory }
func (TransportData) Kind() MessageKind  { return TransportDataKind }
func (TransportData) variant() uint64    { return transportDataVariant }

func (m TransportData) encodeFields(w *swire.Writer) {
	w.WriteBool(m.Running)
	w.WriteBool(m.VLT)
	w.WriteUvarint(uint64(m.PlayratePercent))
	m.LTC.encode(w)
}

func (m *TransportData) decode(r *swire.Reader) {
	m.Running = r.ReadBool()
	m.VLT = r.ReadBool()
	m.PlayratePercent = r.ReadUint16()
	m.LTC.decode(r)
}

// TimecodeData reports the current linear timecode.
type TimecodeData struct {
	LTC Timecode
}

func (TimecodeData) Category() Category { return SmallCategory }
func (TimecodeData) Kind() MessageKind  { return TimecodeDataKind }
func (TimecodeData) variant() uint64    { return timecodeDataVariant }

func (m TimecodeData) encodeFields(w *swire.Writer) { m.LTC.encode(w) }
func (m *TimecodeData) decode(r *swire.Reader)      { m.LTC.decode(r) }

// BeatData reports the current position in the loaded cue's beat grid.
type BeatData struct {
	BeatIdx uint16
	Tempo   float32
}

func (BeatData) Category() Category { return SmallCategory }
func (BeatData) Kind() MessageKind  { return BeatDataKind }
func (BeatData) variant() uint64    { return beatDataVariant }

func (m BeatData) encodeFields(w *swire.Writer) {
	w.WriteUvarint(uint64(m.BeatIdx))
	w.WriteFloat32(m.Tempo)
}

func (m *BeatData) decode(r *swire.Reader) {
	m.BeatIdx = r.ReadUint16()
	m.Tempo = r.ReadFloat32()
}

// ShutdownOccurred means the host is going away.
// The transport also synthesizes one when the host stops talking.
type ShutdownOccurred struct{}

func (ShutdownOccurred) Category() Category           { return SmallCategory }
func (ShutdownOccurred) Kind() MessageKind            { return ShutdownOccurredKind }
func (ShutdownOccurred) variant() uint64              { return shutdownOccurredVariant }
func (ShutdownOccurred) encodeFields(w *swire.Writer) {}

// Heartbeat is the host's periodic health report.
type Heartbeat struct {
	// Host wall clock, in seconds since the Unix epoch.
	SystemTime uint64

	// Audio thread CPU use, in percent.
	CPUUseAudio float32

	// Main process loop frequency, in hertz.
	ProcessFreqMain uint32

	CommonVersion string
	SystemVersion string
}

func (Heartbeat) Category() Category { return SmallCategory }
func (Heartbeat) Kind() MessageKind  { return HeartbeatKind }
func (Heartbeat) variant() uint64    { return heartbeatVariant }

func (m Heartbeat) encodeFields(w *swire.Writer) {
	w.WriteUvarint(m.SystemTime)
	w.WriteFloat32(m.CPUUseAudio)
	w.WriteUvarint(uint64(m.ProcessFreqMain))
	w.WriteBoundedString(m.CommonVersion, MaxVersionLen)
	w.WriteBoundedString(m.SystemVersion, MaxVersionLen)
}

func (m *Heartbeat) decode(r *swire.Reader) {
	m.SystemTime = r.ReadUvarint()
	m.CPUUseAudio = r.ReadFloat32()
	m.ProcessFreqMain = r.ReadUint32()
	m.CommonVersion = r.ReadString(MaxVersionLen)
	m.SystemVersion = r.ReadString(MaxVersionLen)
}

// CueMetadata names a cue.
type CueMetadata struct {
	// HumanIdent is the operator-facing cue number, e.g. "12A".
	HumanIdent string
	Name       string
}

func (c CueMetadata) encode(w *swire.Writer) {
	w.WriteBoundedString(c.HumanIdent, MaxNameLen)
	w.WriteBoundedString(c.Name, MaxNameLen)
}

func (c *CueMetadata) decode(r *swire.Reader) {
	c.HumanIdent = r.ReadString(MaxNameLen)
	c.Name = r.ReadString(MaxNameLen)
}

// Beat is one entry in a cue's beat grid.
type Beat struct {
	BarNumber uint16
	Count     uint8
}

// Cue is a loaded cue with its full beat grid.
type Cue struct {
	Metadata CueMetadata
	Beats    []Beat
}

// Beat returns the beat at idx, if the grid has one.
func (c Cue) Beat(idx uint16) (Beat, bool) {
	if int(idx) >= len(c.Beats) {
		return Beat{}, false
	}
	return c.Beats[idx], true
}

// CueData reports the currently loaded cue.
type CueData struct {
	CueIdx uint16
	Cue    Cue
}

func (CueData) Category() Category { return LargeCategory }
func (CueData) Kind() MessageKind  { return CueDataKind }
func (CueData) variant() uint64    { return cueDataVariant }

func (m CueData) encodeFields(w *swire.Writer) {
	w.WriteUvarint(uint64(m.CueIdx))
	m.Cue.Metadata.encode(w)
	w.WriteUvarint(uint64(len(m.Cue.Beats)))
	for _, b := range m.Cue.Beats {
		w.WriteUvarint(uint64(b.BarNumber))
		w.WriteUint8(b.Count)
	}
}

func (m *CueData) decode(r *swire.Reader) {
	m.CueIdx = r.ReadUint16()
	m.Cue.Metadata.decode(r)
	n := r.ReadLength(MaxBeats)
	if n == 0 {
		return
	}
	m.Cue.Beats = make([]Beat, n)
	for i := range m.Cue.Beats {
		m.Cue.Beats[i].BarNumber = r.ReadUint16()
		m.Cue.Beats[i].Count = r.ReadUint8()
		if r.Err() != nil {
			m.Cue.Beats = nil
			return
		}
	}
}

// ShowData reports the loaded show and its cue list.
type ShowData struct {
	Name string
	Cues []CueMetadata
}

func (ShowData) Category() Category { return LargeCategory }
func (ShowData) Kind() MessageKind  { return ShowDataKind }
func (ShowData) variant() uint64    { return showDataVariant }

func (m ShowData) encodeFields(w *swire.Writer) {
	w.WriteBoundedString(m.Name, MaxNameLen)
	w.WriteUvarint(uint64(len(m.Cues)))
	for _, c := range m.Cues {
		c.encode(w)
	}
}

func (m *ShowData) decode(r *swire.Reader) {
	m.Name = r.ReadString(MaxNameLen)
	n := r.ReadLength(MaxCues)
	if n == 0 {
		return
	}
	m.Cues = make([]CueMetadata, n)
	for i := range m.Cues {
		m.Cues[i].decode(r)
		if r.Err() != nil {
			m.Cues = nil
			return
		}
	}
}

// SubscriberInfo describes one subscriber known to the host.
// It is also the body of a [Subscribe] request.
type SubscriberInfo struct {
	Identifier   saddr.Identifier
	Address      saddr.IPAddress
	MessageKinds MessageKindMask

	// Host wall clock of the subscriber's last request,
	// in milliseconds since the Unix epoch.
	LastContact uint64
}

func encodeIdentifier(w *swire.Writer, id saddr.Identifier) {
	w.WriteBoundedString(string(id), saddr.MaxIdentifierLen)
}

func decodeIdentifier(r *swire.Reader) saddr.Identifier {
	return saddr.Identifier(r.ReadString(saddr.MaxIdentifierLen))
}

func encodeIPAddress(w *swire.Writer, a saddr.IPAddress) {
	w.WriteFixed(a.Addr[:])
	w.WriteUvarint(uint64(a.Port))
}

func decodeIPAddress(r *swire.Reader) saddr.IPAddress {
	var a saddr.IPAddress
	r.ReadFixed(a.Addr[:])
	a.Port = r.ReadUint16()
	return a
}

func (s SubscriberInfo) encode(w *swire.Writer) {
	encodeIdentifier(w, s.Identifier)
	encodeIPAddress(w, s.Address)
	w.WriteUvarint(uint64(s.MessageKinds))
	w.WriteUvarint(s.LastContact)
}

func (s *SubscriberInfo) decode(r *swire.Reader) {
	s.Identifier = decodeIdentifier(r)
	s.Address = decodeIPAddress(r)
	s.MessageKinds = MessageKindMask(r.ReadUint16())
	s.LastContact = r.ReadUvarint()
}

// NetworkChanged lists the host's current subscribers.
type NetworkChanged struct {
	Subscribers []SubscriberInfo
}

func (NetworkChanged) Category() Category { return LargeCategory }
func (NetworkChanged) Kind() MessageKind  { return NetworkChangedKind }
func (NetworkChanged) variant() uint64    { return networkChangedVariant }

func (m NetworkChanged) encodeFields(w *swire.Writer) {
	w.WriteUvarint(uint64(len(m.Subscribers)))
	for _, s := range m.Subscribers {
		s.encode(w)
	}
}

func (m *NetworkChanged) decode(r *swire.Reader) {
	n := r.ReadLength(MaxSubscribers)
	if n == 0 {
		return
	}
	m.Subscribers = make([]SubscriberInfo, n)
	for i := range m.Subscribers {
		m.Subscribers[i].decode(r)
		if r.Err() != nil {
			m.Subscribers = nil
			return
		}
	}
}

// AudioDevice is an audio interface the host can open.
type AudioDevice struct {
	ID   string
	Name string
}

// JACKStateChanged reports the host's audio server.
type JACKStateChanged struct {
	Running          bool
	CPULoad          float32
	SampleRate       uint32
	BufferSize       uint32
	AvailableDevices []AudioDevice
}

func (JACKStateChanged) Category() Category { return LargeCategory }
func (JACKStateChanged) Kind() MessageKind  { return JACKStateChangedKind }
func (JACKStateChanged) variant() uint64    { return jackStateChangedVariant }

func (m JACKStateChanged) encodeFields(w *swire.Writer) {
	w.WriteBool(m.Running)
	w.WriteFloat32(m.CPULoad)
	w.WriteUvarint(uint64(m.SampleRate))
	w.WriteUvarint(uint64(m.BufferSize))
	w.WriteUvarint(uint64(len(m.AvailableDevices)))
	for _, d := range m.AvailableDevices {
		w.WriteBoundedString(d.ID, MaxDeviceIDLen)
		w.WriteBoundedString(d.Name, MaxNameLen)
	}
}

func (m *JACKStateChanged) decode(r *swire.Reader) {
	m.Running = r.ReadBool()
	m.CPULoad = r.ReadFloat32()
	m.SampleRate = r.ReadUint32()
	m.BufferSize = r.ReadUint32()
	n := r.ReadLength(MaxAudioDevices)
	if n == 0 {
		return
	}
	m.AvailableDevices = make([]AudioDevice, n)
	for i := range m.AvailableDevices {
		m.AvailableDevices[i].ID = r.ReadString(MaxDeviceIDLen)
		m.AvailableDevices[i].Name = r.ReadString(MaxNameLen)
		if r.Err() != nil {
			m.AvailableDevices = nil
			return
		}
	}
}

// ChannelConfig is the configuration of one mixer channel.
type ChannelConfig struct {
	Name string
	Gain float32
}

// AudioConfig selects the host's audio device and stream format.
type AudioConfig struct {
	DeviceID   string
	SampleRate uint32
	BufferSize uint32
}

// SystemConfiguration is the host's full persistent configuration.
type SystemConfiguration struct {
	Audio    AudioConfig
	Channels [ChannelCount]ChannelConfig
}

// ConfigurationChanged reports a new system configuration.
type ConfigurationChanged struct {
	Config SystemConfiguration
}

func (ConfigurationChanged) Category() Category { return LargeCategory }
func (ConfigurationChanged) Kind() MessageKind  { return ConfigurationChangedKind }
func (ConfigurationChanged) variant() uint64    { return configurationChangedVariant }

func (m ConfigurationChanged) encodeFields(w *swire.Writer) {
	w.WriteBoundedString(m.Config.Audio.DeviceID, MaxDeviceIDLen)
	w.WriteUvarint(uint64(m.Config.Audio.SampleRate))
	w.WriteUvarint(uint64(m.Config.Audio.BufferSize))

	// Fixed-size array: no length prefix.
	for _, ch := range m.Config.Channels {
		w.WriteBoundedString(ch.Name, MaxChannelNameLen)
		w.WriteFloat32(ch.Gain)
	}
}

func (m *ConfigurationChanged) decode(r *swire.Reader) {
	m.Config.Audio.DeviceID = r.ReadString(MaxDeviceIDLen)
	m.Config.Audio.SampleRate = r.ReadUint32()
	m.Config.Audio.BufferSize = r.ReadUint32()
	for i := range m.Config.Channels {
		m.Config.Channels[i].Name = r.ReadString(MaxChannelNameLen)
		m.Config.Channels[i].Gain = r.ReadFloat32()
	}
}
