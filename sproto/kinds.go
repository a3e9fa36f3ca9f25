package sproto

import (
	"strconv"

	"github.com/bits-and-blooms/bitset"
)

// Category is the frame-level classification of a [Message].
// It describes how often and how large a payload is,
// not what it means.
type Category uint8

const (
	LargeCategory Category = 1
	SmallCategory Category = 2
)

func (c Category) String() string {
	switch c {
	case LargeCategory:
		return "large"
	case SmallCategory:
		return "small"
	default:
		return "Category(" + strconv.Itoa(int(c)) + ")"
	}
}

// MessageKind identifies one kind of host-to-client message.
// The value is also the kind's bit position in a [MessageKindMask].
type MessageKind uint8

const (
	// Not using iota here, to avoid possibility of values changing across the wire.

	CueDataKind              MessageKind = 0
	ShowDataKind             MessageKind = 1
	TransportDataKind        MessageKind = 2
	TimecodeDataKind         MessageKind = 3
	BeatDataKind             MessageKind = 4
	NetworkChangedKind       MessageKind = 5
	JACKStateChangedKind     MessageKind = 6
	ConfigurationChangedKind MessageKind = 7
	ShutdownOccurredKind     MessageKind = 8
	HeartbeatKind            MessageKind = 9

	numMessageKinds = 10
)

var messageKindNames = [numMessageKinds]string{
	CueDataKind:              "CueData",
	ShowDataKind:             "ShowData",
	TransportDataKind:        "TransportData",
	TimecodeDataKind:         "TimecodeData",
	BeatDataKind:             "BeatData",
	NetworkChangedKind:       "NetworkChanged",
	JACKStateChangedKind:     "JACKStateChanged",
	ConfigurationChangedKind: "ConfigurationChanged",
	ShutdownOccurredKind:     "ShutdownOccurred",
	HeartbeatKind:            "Heartbeat",
}

func (k MessageKind) String() string {
	if int(k) < len(messageKindNames) {
		return messageKindNames[k]
	}
	return "MessageKind(" + strconv.Itoa(int(k)) + ")"
}

// AllMessageKinds returns every message kind, in wire order.
func AllMessageKinds() []MessageKind {
	out := make([]MessageKind, numMessageKinds)
	for i := range out {
		out[i] = MessageKind(i)
	}
	return out
}

// MessageKindMask is the set of message kinds a subscriber wants,
// one bit per [MessageKind].
type MessageKindMask uint16

// NewMessageKindMask returns a mask with the bit for each of kinds set.
func NewMessageKindMask(kinds ...MessageKind) MessageKindMask {
	bs := bitset.New(numMessageKinds)
	for _, k := range kinds {
		if k >= numMessageKinds {
			continue
		}
		bs.Set(uint(k))
	}
	return MessageKindMask(bs.Words()[0])
}

// AllMessageKindsMask is the mask subscribing to every message kind.
var AllMessageKindsMask = NewMessageKindMask(AllMessageKinds()...)

func (m MessageKindMask) bitset() *bitset.BitSet {
	return bitset.From([]uint64{uint64(m)})
}

// Has reports whether k is in m.
func (m MessageKindMask) Has(k MessageKind) bool {
	return m.bitset().Test(uint(k))
}

// Kinds returns the known kinds in m, in ascending order.
// Bits above the last known kind are ignored.
func (m MessageKindMask) Kinds() []MessageKind {
	bs := m.bitset()
	out := make([]MessageKind, 0, bs.Count())
	for i, ok := bs.NextSet(0); ok && i < numMessageKinds; i, ok = bs.NextSet(i + 1) {
		out = append(out, MessageKind(i))
	}
	return out
}

// RequestKind identifies one kind of client-to-host request.
// The value is also the request's variant index on the wire.
type RequestKind uint8

const (
	SubscribeKind         RequestKind = 0
	UnsubscribeKind       RequestKind = 1
	PingKind              RequestKind = 2
	ControlCommandKind    RequestKind = 3
	SetConfigurationKind  RequestKind = 4
	RoutingChangeKind     RequestKind = 5
	InitializeKind        RequestKind = 6
	NotifySubscribersKind RequestKind = 7
	ShutdownKind          RequestKind = 8

	numRequestKinds = 9
)

var requestKindNames = [numRequestKinds]string{
	SubscribeKind:         "Subscribe",
	UnsubscribeKind:       "Unsubscribe",
	PingKind:              "Ping",
	ControlCommandKind:    "ControlCommand",
	SetConfigurationKind:  "SetConfiguration",
	RoutingChangeKind:     "RoutingChange",
	InitializeKind:        "Initialize",
	NotifySubscribersKind: "NotifySubscribers",
	ShutdownKind:          "Shutdown",
}

func (k RequestKind) String() string {
	if int(k) < len(requestKindNames) {
		return requestKindNames[k]
	}
	return "RequestKind(" + strconv.Itoa(int(k)) + ")"
}

// AllRequestKinds returns every request kind, in wire order.
func AllRequestKinds() []RequestKind {
	out := make([]RequestKind, numRequestKinds)
	for i := range out {
		out[i] = RequestKind(i)
	}
	return out
}
