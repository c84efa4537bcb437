package badger

import (
	"encoding/binary"

	"github.com/poiesic/medimatch/core"
)

// Key prefixes for different data types
const (
	medicationPrefix = "medrec:"
	medicationIDSeq  = "medseq"
	catalogInfoKey   = "catinfo"
)

// makeMedicationKey generates a key for a medication by ID.
// IDs are written big-endian so prefix iteration follows insertion order.
func makeMedicationKey(id core.ID) []byte {
	buf := make([]byte, len(medicationPrefix)+8)
	offset := copy(buf, medicationPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}
