package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// The escrow system only ever calls a fixed set of contract functions, so
// instead of a full ABI layer we encode calldata as a 4-byte selector followed
// by 32-byte words.

const wordSize = 32

// Keccak returns the keccak-256 digest of data.
func Keccak(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// Selector derives the 4-byte function selector for a canonical signature
// such as "approve(address,uint256)".
func Selector(signature string) []byte {
	return Keccak([]byte(signature))[:4]
}

// EventTopic derives the topic0 hash for a canonical event signature.
func EventTopic(signature string) string {
	return "0x" + hex.EncodeToString(Keccak([]byte(signature)))
}

// MemoHash hashes an opaque deal id into the bytes32 memo recorded on-chain.
func MemoHash(dealID string) [32]byte {
	var out [32]byte
	copy(out[:], Keccak([]byte(dealID)))
	return out
}

// EncodeAddress left-pads a 20-byte address into a calldata word.
func EncodeAddress(addr string) ([]byte, error) {
	if !IsAddress(addr) {
		return nil, fmt.Errorf("chain: invalid address %q", addr)
	}
	raw, err := hex.DecodeString(addr[2:])
	if err != nil {
		return nil, fmt.Errorf("chain: decode address %q: %w", addr, err)
	}
	word := make([]byte, wordSize)
	copy(word[wordSize-len(raw):], raw)
	return word, nil
}

// EncodeBig left-pads an unsigned integer into a calldata word.
func EncodeBig(n *big.Int) ([]byte, error) {
	if n.Sign() < 0 {
		return nil, fmt.Errorf("chain: cannot encode negative integer %s", n)
	}
	raw := n.Bytes()
	if len(raw) > wordSize {
		return nil, fmt.Errorf("chain: integer %s overflows a word", n)
	}
	word := make([]byte, wordSize)
	copy(word[wordSize-len(raw):], raw)
	return word, nil
}

// EncodeBool encodes a boolean calldata word.
func EncodeBool(b bool) []byte {
	word := make([]byte, wordSize)
	if b {
		word[wordSize-1] = 1
	}
	return word
}

// EncodeBytes32 copies a fixed hash into a calldata word.
func EncodeBytes32(b [32]byte) []byte {
	word := make([]byte, wordSize)
	copy(word, b[:])
	return word
}

// Calldata assembles hex calldata from a signature and pre-encoded words.
func Calldata(signature string, words ...[]byte) string {
	data := Selector(signature)
	for _, w := range words {
		data = append(data, w...)
	}
	return "0x" + hex.EncodeToString(data)
}

// decodeWords splits an eth_call hex result into 32-byte words.
func decodeWords(result string) ([][]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(result, "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain: decode call result: %w", err)
	}
	if len(raw)%wordSize != 0 {
		return nil, fmt.Errorf("chain: call result length %d is not word aligned", len(raw))
	}
	words := make([][]byte, 0, len(raw)/wordSize)
	for i := 0; i < len(raw); i += wordSize {
		words = append(words, raw[i:i+wordSize])
	}
	return words, nil
}

func wordAddress(word []byte) string {
	return "0x" + hex.EncodeToString(word[wordSize-20:])
}

func wordBig(word []byte) *big.Int {
	return new(big.Int).SetBytes(word)
}

// topicAddress extracts the address packed into an indexed event topic.
func topicAddress(topic string) (string, bool) {
	raw := strings.TrimPrefix(topic, "0x")
	if len(raw) != 2*wordSize {
		return "", false
	}
	addr := "0x" + raw[2*(wordSize-20):]
	if !IsAddress(addr) {
		return "", false
	}
	return strings.ToLower(addr), true
}
