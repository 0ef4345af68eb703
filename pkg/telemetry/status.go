// Package telemetry publishes drive status for remote observers.
package telemetry

import (
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/kayak/pkg/kayak"
)

// DriveStatus is published whenever the channels change.
type DriveStatus struct {
	ID          string  `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	Ticks       uint64  `protobuf:"varint,2,opt,name=ticks,proto3" json:"ticks,omitempty"`
	Held        string  `protobuf:"bytes,3,opt,name=held,proto3" json:"held,omitempty"`
	ChannelA    float32 `protobuf:"fixed32,4,opt,name=channel_a,proto3" json:"channel_a"`
	ChannelB    float32 `protobuf:"fixed32,5,opt,name=channel_b,proto3" json:"channel_b"`
	Packet      []byte  `protobuf:"bytes,6,opt,name=packet,proto3" json:"packet,omitempty"`
	TimestampNs int64   `protobuf:"varint,7,opt,name=timestamp_ns,proto3" json:"timestamp_ns,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *DriveStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *DriveStatus) Reset() { *m = DriveStatus{} }

// String implements proto.Message.
func (m *DriveStatus) String() string { return proto.CompactTextString(m) }

// NewDriveStatus converts a tick status.
func NewDriveStatus(id string, s kayak.Status) *DriveStatus {
	m := &DriveStatus{
		ID:       id,
		Ticks:    s.Ticks,
		Held:     s.State.String(),
		ChannelA: float32(s.Channels.A),
		ChannelB: float32(s.Channels.B),
		Packet:   s.Packet.Bytes(),
	}
	if !s.Time.IsZero() {
		m.TimestampNs = s.Time.UnixNano()
	}
	return m
}

// Reporters fans a status out to all reporters.
type Reporters []kayak.StatusReporter

// ReportStatus implements kayak.StatusReporter.
func (r Reporters) ReportStatus(s kayak.Status) {
	for _, reporter := range r {
		reporter.ReportStatus(s)
	}
}
