package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

type Hash [32]byte

func (h Hash) String() string {
	return base58.Encode(h[:])
}

func (h Hash) Equals(other Hash) bool {
	return h == other
}

func HashFromBase58(s string) (Hash, error) {
	var h Hash
	data, err := base58.Decode(s)
	if err != nil {
		return h, err
	}
	if len(data) != 32 {
		return h, fmt.Errorf("invalid hash length: got %d, want 32", len(data))
	}
	copy(h[:], data)
	return h, nil
}

// Signature 表示交易签名（64 字节 ed25519 签名）
type Signature [64]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (s Signature) IsZero() bool {
	return s == Signature{}
}

func SignatureFromBytes(b []byte) (Signature, error) {
	var s Signature
	if len(b) != 64 {
		return s, fmt.Errorf("invalid signature length: got %d, want 64", len(b))
	}
	copy(s[:], b)
	return s, nil
}

func SignatureFromBase58(str string) (Signature, error) {
	data, err := base58.Decode(str)
	if err != nil {
		return Signature{}, fmt.Errorf("failed to decode base58 signature %q: %w", str, err)
	}
	return SignatureFromBytes(data)
}
