package storage

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/lexrag/core"
)

// LongTermRecordMUS is the MUS serializer for core.LongTermRecord.
// Timestamps are stored as Unix microseconds in UTC.
var LongTermRecordMUS = longTermRecordMUS{}

// MemoryTurnMUS is the MUS serializer for core.MemoryTurn.
var MemoryTurnMUS = memoryTurnMUS{}

type memoryTurnMUS struct{}

func (memoryTurnMUS) Marshal(v core.MemoryTurn, bs []byte) (n int) {
	n = ord.String.Marshal(string(v.Role), bs)
	n += ord.String.Marshal(v.Text, bs[n:])
	n += marshalTime(v.Timestamp, bs[n:])
	return
}

func (memoryTurnMUS) Unmarshal(bs []byte) (v core.MemoryTurn, n int, err error) {
	role, n, err := ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Role = core.Role(role)
	var n1 int
	v.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Timestamp, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (memoryTurnMUS) Size(v core.MemoryTurn) (size int) {
	size = ord.String.Size(string(v.Role))
	size += ord.String.Size(v.Text)
	return size + sizeTime(v.Timestamp)
}

func (s memoryTurnMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type longTermRecordMUS struct{}

func (longTermRecordMUS) Marshal(v core.LongTermRecord, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(v.ID), bs)
	n += ord.String.Marshal(v.UserID, bs[n:])
	n += ord.String.Marshal(v.SessionID, bs[n:])
	n += marshalTime(v.Timestamp, bs[n:])
	n += varint.PositiveInt.Marshal(len(v.Turns), bs[n:])
	for _, turn := range v.Turns {
		n += MemoryTurnMUS.Marshal(turn, bs[n:])
	}
	n += varint.PositiveInt.Marshal(len(v.Vector), bs[n:])
	for _, f := range v.Vector {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return
}

func (longTermRecordMUS) Unmarshal(bs []byte) (v core.LongTermRecord, n int, err error) {
	id, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	v.ID = core.ID(id)

	var n1 int
	if v.UserID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.SessionID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Timestamp, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1

	count, n1, err := unmarshalLength(bs[n:])
	if err != nil {
		return
	}
	n += n1
	if count > 0 {
		v.Turns = make([]core.MemoryTurn, count)
		for i := range v.Turns {
			if v.Turns[i], n1, err = MemoryTurnMUS.Unmarshal(bs[n:]); err != nil {
				return
			}
			n += n1
		}
	}

	count, n1, err = unmarshalLength(bs[n:])
	if err != nil {
		return
	}
	n += n1
	if count > 0 {
		v.Vector = make([]float32, count)
		for i := range v.Vector {
			if v.Vector[i], n1, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
				return
			}
			n += n1
		}
	}
	return
}

func (longTermRecordMUS) Size(v core.LongTermRecord) (size int) {
	size = varint.Uint64.Size(uint64(v.ID))
	size += ord.String.Size(v.UserID)
	size += ord.String.Size(v.SessionID)
	size += sizeTime(v.Timestamp)
	size += varint.PositiveInt.Size(len(v.Turns))
	for _, turn := range v.Turns {
		size += MemoryTurnMUS.Size(turn)
	}
	size += varint.PositiveInt.Size(len(v.Vector))
	for _, f := range v.Vector {
		size += raw.Float32.Size(f)
	}
	return
}

func (s longTermRecordMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}

// unmarshalLength reads a collection length and rejects values that cannot
// fit in the remaining buffer.
func unmarshalLength(bs []byte) (int, int, error) {
	l, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return 0, n, err
	}
	if l < 0 || l > len(bs)-n {
		return 0, n, ErrTruncatedData
	}
	return l, n, nil
}
