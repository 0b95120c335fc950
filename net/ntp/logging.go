package ntp

import (
	"go.uber.org/zap/zapcore"
)

type PacketMarshaler struct {
	Pkt *Packet
}

func (m PacketMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint8("LI", m.Pkt.LeapIndicator())
	enc.AddUint8("VN", m.Pkt.Version())
	enc.AddUint8("Mode", m.Pkt.Mode())
	enc.AddUint8("Stratum", m.Pkt.Stratum)
	enc.AddInt8("Poll", m.Pkt.Poll)
	enc.AddInt8("Precision", m.Pkt.Precision)
	enc.AddDuration("RootDelay", m.Pkt.RootDelay.Duration())
	enc.AddDuration("RootDispersion", m.Pkt.RootDispersion.Duration())
	enc.AddUint32("ReferenceID", m.Pkt.ReferenceID)
	enc.AddTime("ReferenceTime", TimeFromTime64(m.Pkt.ReferenceTime))
	enc.AddTime("OriginTime", TimeFromTime64(m.Pkt.OriginTime))
	enc.AddTime("ReceiveTime", TimeFromTime64(m.Pkt.ReceiveTime))
	enc.AddTime("TransmitTime", TimeFromTime64(m.Pkt.TransmitTime))
	return nil
}
