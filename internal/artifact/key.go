package artifact

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// DeriveID returns the content-derived identifier of an artifact.
// The salt separates rapid resubmissions of an identical page by the same
// client; ids are collision resistant, not guaranteed unique.
func DeriveID(clientID, element string, salt uint16) string {
	h := blake3.New()
	_, _ = h.Write([]byte(clientID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(element))
	_, _ = h.Write([]byte{0})

	var s [2]byte
	binary.BigEndian.PutUint16(s[:], salt)
	_, _ = h.Write(s[:])

	return hex.EncodeToString(h.Sum(nil))
}
