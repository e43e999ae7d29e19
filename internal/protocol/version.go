package protocol

import "fmt"

// Version is a QUIC version number, as sent on the wire.
type Version uint32

const (
	// Version1 is RFC 9000.
	Version1 Version = 0x00000001
	// Version2 is RFC 9369.
	Version2 Version = 0x6b3343cf
	// VersionUnknown is returned when we don't support the version
	VersionUnknown Version = 0
)

// SupportedVersions is the list of QUIC versions supported, in order of preference.
var SupportedVersions = []Version{Version1, Version2}

func (vn Version) String() string {
	switch vn {
	case VersionUnknown:
		return "unknown"
	case Version1:
		return "v1"
	case Version2:
		return "v2"
	default:
		return fmt.Sprintf("%#x", uint32(vn))
	}
}

// IsSupportedVersion reports whether v is present in the supported list.
func IsSupportedVersion(supported []Version, v Version) bool {
	for _, t := range supported {
		if t == v {
			return true
		}
	}
	return false
}

// ChooseSupportedVersion finds the first of ours that also appears in theirs.
// ours is ordered by our preference; theirs' order doesn't matter.
func ChooseSupportedVersion(ours, theirs []Version) (Version, bool) {
	for _, ourVer := range ours {
		for _, theirVer := range theirs {
			if ourVer == theirVer {
				return ourVer, true
			}
		}
	}
	return VersionUnknown, false
}

// initialSalt is the version-specific salt used to derive Initial keys from
// the original destination connection ID (RFC 9001 Section 5.2, RFC 9369
// Section 3.3.1). Keeping these in an immutable, version-keyed table (rather
// than a single package-level constant) is what lets a single binary speak
// more than one wire version side by side.
var initialSalt = map[Version][]byte{
	Version1: {0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3, 0x4d, 0x17, 0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad, 0xcc, 0xbb, 0x7f, 0x0a},
	Version2: {0x0d, 0xed, 0xe3, 0xde, 0xf7, 0x00, 0xa6, 0xdb, 0x81, 0x93, 0x81, 0xbe, 0x6e, 0x26, 0x9d, 0xcb, 0xf9, 0xbd, 0x2e, 0xd9},
}

// InitialSalt returns the salt used to derive Initial secrets for v, and
// whether v is a version this table knows about.
func InitialSalt(v Version) ([]byte, bool) {
	s, ok := initialSalt[v]
	return s, ok
}

// retryIntegrityKey and retryIntegrityNonce are the version-specific AEAD
// key/nonce used to compute the Retry Integrity Tag (RFC 9001 Section 5.8).
var retryIntegrityKey = map[Version][]byte{
	Version1: {0xbe, 0x0c, 0x69, 0x0b, 0x9f, 0x66, 0x57, 0x5a, 0x1d, 0x76, 0x6b, 0x54, 0xe3, 0x68, 0xc8, 0x4e},
	Version2: {0x8f, 0xb4, 0xb0, 0x1b, 0x56, 0xac, 0x48, 0xe2, 0x60, 0xfb, 0xcb, 0xce, 0xad, 0x7c, 0xcc, 0x92},
}

var retryIntegrityNonce = map[Version][]byte{
	Version1: {0x46, 0x15, 0x99, 0xd3, 0x5d, 0x63, 0x2b, 0xf2, 0x23, 0x98, 0x25, 0xbb},
	Version2: {0xd8, 0x69, 0x69, 0xbc, 0x2e, 0xd6, 0x6b, 0xde, 0x88, 0xf9, 0x66, 0x80},
}

// RetryIntegrityKeyAndNonce returns the AEAD key and nonce used to protect
// Retry packets for v.
func RetryIntegrityKeyAndNonce(v Version) (key, nonce []byte, ok bool) {
	k, ok1 := retryIntegrityKey[v]
	n, ok2 := retryIntegrityNonce[v]
	return k, n, ok1 && ok2
}

// HKDFLabels carries the "quic key"/"quic iv"/"quic hp" string constants
// that changed between QUIC v1 and v2 (RFC 9369 Section 3.3.2).
type HKDFLabels struct {
	Key, IV, HP, KeyUpdate string
}

var hkdfLabels = map[Version]HKDFLabels{
	Version1: {Key: "quic key", IV: "quic iv", HP: "quic hp", KeyUpdate: "quic ku"},
	Version2: {Key: "quicv2 key", IV: "quicv2 iv", HP: "quicv2 hp", KeyUpdate: "quicv2 ku"},
}

// LabelsForVersion returns the version-specific derive labels for v.
func LabelsForVersion(v Version) (HKDFLabels, bool) {
	l, ok := hkdfLabels[v]
	return l, ok
}
