package msgs

import (
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/swuart/pkg/framework"
)

// GroupLink is the type ID group of link messages.
const GroupLink uint32 = 0x00030000

// TypeIDs.
const (
	FrameTypeID       uint32 = GroupLink | TypeIDKindEvent | 0x0000
	StatusTypeID      uint32 = GroupLink | TypeIDKindEvent | 0x0001
	SendTypeID        uint32 = GroupLink | 0x0001
	StatusQueryTypeID uint32 = GroupLink | 0x0002
)

// Frame is an event carrying units received by a link.
type Frame struct {
	Units  []uint32 `protobuf:"varint,1,rep,packed,name=units,proto3" json:"units,omitempty"`
	Errors uint32   `protobuf:"varint,2,opt,name=errors,proto3" json:"errors,omitempty"`
	Tick   uint64   `protobuf:"varint,3,opt,name=tick,proto3" json:"tick,omitempty"`
}

// NewMessage implements Message.
func (m *Frame) NewMessage() fx.Message { return &Frame{} }

// TypeID implements SerializableMessage.
func (m *Frame) TypeID() uint32 { return FrameTypeID }

// Serializable implements SerializableMessage.
func (m *Frame) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Frame) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Frame) Reset() { *m = Frame{} }

// String implements proto.Message.
func (m *Frame) String() string { return proto.CompactTextString(m) }

// Send is a command asking a link to transmit units.
type Send struct {
	Units []uint32 `protobuf:"varint,1,rep,packed,name=units,proto3" json:"units,omitempty"`
}

// NewMessage implements Message.
func (m *Send) NewMessage() fx.Message { return &Send{} }

// TypeID implements SerializableMessage.
func (m *Send) TypeID() uint32 { return SendTypeID }

// Serializable implements SerializableMessage.
func (m *Send) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Send) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Send) Reset() { *m = Send{} }

// String implements proto.Message.
func (m *Send) String() string { return proto.CompactTextString(m) }

// StatusQuery asks a link to publish its Status.
type StatusQuery struct {
}

// NewMessage implements Message.
func (m *StatusQuery) NewMessage() fx.Message { return &StatusQuery{} }

// TypeID implements SerializableMessage.
func (m *StatusQuery) TypeID() uint32 { return StatusQueryTypeID }

// Serializable implements SerializableMessage.
func (m *StatusQuery) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *StatusQuery) ProtoMessage() {}

// Reset implements proto.Message.
func (m *StatusQuery) Reset() { *m = StatusQuery{} }

// String implements proto.Message.
func (m *StatusQuery) String() string { return proto.CompactTextString(m) }

// Status is an event reporting the configuration and counters of a link.
type Status struct {
	Format        string `protobuf:"bytes,1,opt,name=format,proto3" json:"format,omitempty"`
	BitWidth      uint32 `protobuf:"varint,2,opt,name=bit_width,json=bitWidth,proto3" json:"bit_width,omitempty"`
	TripleScan    bool   `protobuf:"varint,3,opt,name=triple_scan,json=tripleScan,proto3" json:"triple_scan,omitempty"`
	Ticks         uint64 `protobuf:"varint,4,opt,name=ticks,proto3" json:"ticks,omitempty"`
	UnitsSent     uint64 `protobuf:"varint,5,opt,name=units_sent,json=unitsSent,proto3" json:"units_sent,omitempty"`
	UnitsReceived uint64 `protobuf:"varint,6,opt,name=units_received,json=unitsReceived,proto3" json:"units_received,omitempty"`
	Frames        uint64 `protobuf:"varint,7,opt,name=frames,proto3" json:"frames,omitempty"`
	FramingErrors uint64 `protobuf:"varint,8,opt,name=framing_errors,json=framingErrors,proto3" json:"framing_errors,omitempty"`
	ParityErrors  uint64 `protobuf:"varint,9,opt,name=parity_errors,json=parityErrors,proto3" json:"parity_errors,omitempty"`
	OverrunErrors uint64 `protobuf:"varint,10,opt,name=overrun_errors,json=overrunErrors,proto3" json:"overrun_errors,omitempty"`
	Pending       uint32 `protobuf:"varint,11,opt,name=pending,proto3" json:"pending,omitempty"`
	Queued        uint32 `protobuf:"varint,12,opt,name=queued,proto3" json:"queued,omitempty"`
	Busy          bool   `protobuf:"varint,13,opt,name=busy,proto3" json:"busy,omitempty"`
}

// NewMessage implements Message.
func (m *Status) NewMessage() fx.Message { return &Status{} }

// TypeID implements SerializableMessage.
func (m *Status) TypeID() uint32 { return StatusTypeID }

// Serializable implements SerializableMessage.
func (m *Status) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Status) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Status) Reset() { *m = Status{} }

// String implements proto.Message.
func (m *Status) String() string { return proto.CompactTextString(m) }
