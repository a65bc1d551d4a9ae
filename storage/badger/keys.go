package badger

import (
	"encoding/binary"
	"time"

	"github.com/poiesic/lexrag/core"
)

// Key prefixes for different data types.
// User ids are terminated by keySeparator so one user's prefix never
// matches another's.
const (
	recordPrefix     = "ltrec:"
	recordDatePrefix = "ltrecd:"
	recordIDSeq      = "ltrecseq"
	keySeparator     = 0x00
)

// makeUserRecordPrefix returns the prefix shared by all of a user's records.
// Format: prefix:userID\x00
func makeUserRecordPrefix(userID string) []byte {
	buf := make([]byte, 0, len(recordPrefix)+len(userID)+1)
	buf = append(buf, recordPrefix...)
	buf = append(buf, userID...)
	return append(buf, keySeparator)
}

// makeRecordKey generates the primary key for a record.
// Format: prefix:userID\x00id
func makeRecordKey(userID string, id core.ID) []byte {
	buf := makeUserRecordPrefix(userID)
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// makeUserDatePrefix returns the prefix of a user's date index.
// Format: prefix:userID\x00
func makeUserDatePrefix(userID string) []byte {
	buf := make([]byte, 0, len(recordDatePrefix)+len(userID)+1)
	buf = append(buf, recordDatePrefix...)
	buf = append(buf, userID...)
	return append(buf, keySeparator)
}

// makeRecordDateKey generates a composite key for the per-user date index.
// Format: prefix:userID\x00timestamp id
func makeRecordDateKey(userID string, timestamp time.Time, id core.ID) []byte {
	buf := makeUserDatePrefix(userID)
	// Write in BigEndian order so lexicographic sort works correctly
	buf = binary.BigEndian.AppendUint64(buf, uint64(timestamp.UnixMicro()))
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// prefixEnd returns a key that sorts after every key starting with prefix.
// Used as the seek target for reverse iteration.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, 0, len(prefix)+17)
	end = append(end, prefix...)
	for i := 0; i < 17; i++ {
		end = append(end, 0xFF)
	}
	return end
}
