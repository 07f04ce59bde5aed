package storage

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"
)

func encodeRLP(v any) ([]byte, error) {
	return rlp.EncodeToBytes(v)
}

func decodeRLP(b []byte, v any) error {
	return rlp.DecodeBytes(b, v)
}

// heightKey encodes h big-endian so keys sort by height.
func heightKey(prefix string, h uint64) []byte {
	k := make([]byte, len(prefix)+8)
	copy(k, prefix)
	binary.BigEndian.PutUint64(k[len(prefix):], h)
	return k
}
