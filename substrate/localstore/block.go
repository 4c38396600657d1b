package localstore

import (
	"crypto/sha256"
	"encoding/binary"
	"time"

	"garden.dev/garden/protocol"
	"garden.dev/garden/substrate"
)

type localBlock struct {
	timestamp time.Time
	messages  []*localMessage
}

func (b *localBlock) Timestamp() time.Time { return b.timestamp }

func (b *localBlock) InlineMessages() []substrate.Message {
	out := make([]substrate.Message, len(b.messages))
	for i, m := range b.messages {
		out[i] = m
	}
	return out
}

func blockHash(prev protocol.Hash, ts time.Time, messages []*localMessage) protocol.Hash {
	h := sha256.New()
	h.Write(prev[:])
	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], uint64(ts.Unix()))
	h.Write(tsBuf[:])
	for _, m := range messages {
		mh := m.hash
		h.Write(mh[:])
	}
	var out protocol.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// encodeBlock/decodeBlock are this reference store's on-disk block format.
// It is deliberately simple (length-prefixed fields, no versioning) since it
// is never interpreted outside this package: durable block encoding belongs
// to the substrate, which is out of scope for the core this repo implements.
func encodeBlock(b *localBlock) []byte {
	out := make([]byte, 0, 64)
	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], uint64(b.timestamp.Unix()))
	out = append(out, tsBuf[:]...)

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(b.messages)))
	out = append(out, countBuf[:]...)

	for _, m := range b.messages {
		out = appendLP16(out, m.pub)
		out = appendLP16(out, m.sig)
		out = appendLP32(out, m.data)
	}
	return out
}

func decodeBlock(b []byte) (*localBlock, error) {
	if len(b) < 12 {
		return nil, &signatureError{"truncated block record"}
	}
	ts := time.Unix(int64(binary.LittleEndian.Uint64(b[0:8])), 0).UTC()
	count := binary.LittleEndian.Uint32(b[8:12])
	off := 12
	messages := make([]*localMessage, 0, count)
	for i := uint32(0); i < count; i++ {
		pub, n, err := readLP16(b, off)
		if err != nil {
			return nil, err
		}
		off = n
		sig, n, err := readLP16(b, off)
		if err != nil {
			return nil, err
		}
		off = n
		data, n, err := readLP32(b, off)
		if err != nil {
			return nil, err
		}
		off = n
		messages = append(messages, &localMessage{
			data: data,
			pub:  pub,
			sig:  sig,
			hash: messageHash(pub, sig, data),
		})
	}
	return &localBlock{timestamp: ts, messages: messages}, nil
}

func appendLP16(dst, b []byte) []byte {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(b)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, b...)
}

func appendLP32(dst, b []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, b...)
}

func readLP16(b []byte, off int) ([]byte, int, error) {
	if off+2 > len(b) {
		return nil, 0, &signatureError{"truncated length-prefixed field"}
	}
	n := int(binary.LittleEndian.Uint16(b[off : off+2]))
	off += 2
	if off+n > len(b) {
		return nil, 0, &signatureError{"truncated length-prefixed field"}
	}
	return append([]byte(nil), b[off:off+n]...), off + n, nil
}

func readLP32(b []byte, off int) ([]byte, int, error) {
	if off+4 > len(b) {
		return nil, 0, &signatureError{"truncated length-prefixed field"}
	}
	n := int(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4
	if off+n > len(b) {
		return nil, 0, &signatureError{"truncated length-prefixed field"}
	}
	return append([]byte(nil), b[off:off+n]...), off + n, nil
}
