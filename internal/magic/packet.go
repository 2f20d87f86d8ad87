package magic

// PacketSize is the fixed length of a Wake-on-LAN magic packet.
const PacketSize = 102

// Packet is a magic packet: six 0xFF synchronization bytes followed by the
// target MAC repeated sixteen times. Immutable once built.
type Packet [PacketSize]byte

// NewPacket builds the magic packet for mac. The construction is total:
// every valid MAC yields exactly one 102-byte packet.
func NewPacket(mac MAC) Packet {
	var p Packet
	for i := 0; i < 6; i++ {
		p[i] = 0xFF
	}
	for i := 0; i < 16; i++ {
		copy(p[6+i*6:], mac[:])
	}
	return p
}

// Bytes returns the packet payload as a byte slice.
func (p Packet) Bytes() []byte {
	return p[:]
}
