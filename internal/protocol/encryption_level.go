package protocol

// EncryptionLevel is the encryption level of a packet or key.
// There are three packet number spaces: Initial, Handshake and AppData,
// which is used for both 0-RTT and 1-RTT packets.
type EncryptionLevel uint8

const (
	// EncryptionInitial is the Initial encryption level
	EncryptionInitial EncryptionLevel = 1 + iota
	// EncryptionHandshake is the Handshake encryption level
	EncryptionHandshake
	// Encryption0RTT is the 0-RTT encryption level
	Encryption0RTT
	// Encryption1RTT is the 1-RTT encryption level
	Encryption1RTT
)

func (e EncryptionLevel) String() string {
	switch e {
	case EncryptionInitial:
		return "Initial"
	case EncryptionHandshake:
		return "Handshake"
	case Encryption0RTT:
		return "0-RTT"
	case Encryption1RTT:
		return "1-RTT"
	default:
		return "unknown encryption level"
	}
}

// PacketNumberSpace maps an encryption level onto one of the three
// independent packet number spaces. 0-RTT and 1-RTT packets share the
// AppData space.
func (e EncryptionLevel) PacketNumberSpace() EncryptionLevel {
	if e == Encryption0RTT {
		return Encryption1RTT
	}
	return e
}

// IsLongHeader says whether packets on this level use the long header form.
func (e EncryptionLevel) IsLongHeader() bool {
	return e == EncryptionInitial || e == EncryptionHandshake || e == Encryption0RTT
}
