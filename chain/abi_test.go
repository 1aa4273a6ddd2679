package chain

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"strings"
	"testing"
)

func TestSelector_KnownVectors(t *testing.T) {
	// Selectors published for the ERC-20 functions.
	cases := []struct {
		signature string
		want      string
	}{
		{"approve(address,uint256)", "095ea7b3"},
		{"transfer(address,uint256)", "a9059cbb"},
		{"balanceOf(address)", "70a08231"},
	}
	for _, tc := range cases {
		got := hex.EncodeToString(Selector(tc.signature))
		if got != tc.want {
			t.Errorf("Selector(%q) = %s, want %s", tc.signature, got, tc.want)
		}
	}
}

func TestEventTopic_KnownVector(t *testing.T) {
	got := EventTopic("Transfer(address,address,uint256)")
	want := "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	if got != want {
		t.Errorf("EventTopic = %s, want %s", got, want)
	}
}

func TestEncodeAddress(t *testing.T) {
	word, err := EncodeAddress("0x00000000000000000000000000000000000000aB")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(word) != 32 {
		t.Fatalf("expected 32-byte word, got %d", len(word))
	}
	if word[31] != 0xab || word[30] != 0x00 {
		t.Errorf("expected left-padded address, got %x", word)
	}

	if _, err := EncodeAddress("not-an-address"); err == nil {
		t.Errorf("expected error for malformed address")
	}
	if _, err := EncodeAddress("0x00000000000000000000000000000000000000"); err == nil {
		t.Errorf("expected error for short address")
	}
}

func TestEncodeBig(t *testing.T) {
	word, err := EncodeBig(big.NewInt(255))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if word[31] != 0xff {
		t.Errorf("expected 0xff in the last byte, got %x", word)
	}

	if _, err := EncodeBig(big.NewInt(-1)); err == nil {
		t.Errorf("expected error for negative integer")
	}

	over := new(big.Int).Lsh(big.NewInt(1), 256)
	if _, err := EncodeBig(over); err == nil {
		t.Errorf("expected error for 33-byte integer")
	}
}

func TestEncodeBool(t *testing.T) {
	if w := EncodeBool(true); w[31] != 1 {
		t.Errorf("expected true word to end in 1, got %x", w)
	}
	if w := EncodeBool(false); !bytes.Equal(w, make([]byte, 32)) {
		t.Errorf("expected all-zero word for false, got %x", w)
	}
}

func TestCalldata_Assembly(t *testing.T) {
	spender, err := EncodeAddress("0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("encode spender: %v", err)
	}
	amount, err := EncodeBig(big.NewInt(1000000))
	if err != nil {
		t.Fatalf("encode amount: %v", err)
	}

	data := Calldata("approve(address,uint256)", spender, amount)
	if !strings.HasPrefix(data, "0x095ea7b3") {
		t.Errorf("expected approve selector prefix, got %s", data[:12])
	}
	// selector + two words
	if len(data) != 2+8+64+64 {
		t.Errorf("expected %d hex chars, got %d", 2+8+64+64, len(data))
	}

	if got := Calldata("fund()"); got != "0x"+hex.EncodeToString(Selector("fund()")) {
		t.Errorf("expected bare selector for zero-arg call, got %s", got)
	}
}

func TestMemoHash_Deterministic(t *testing.T) {
	a := MemoHash("DEAL-1700000000000-abcd1234")
	b := MemoHash("DEAL-1700000000000-abcd1234")
	if a != b {
		t.Errorf("expected identical hashes for identical deal ids")
	}
	if a == MemoHash("DEAL-1700000000001-abcd1234") {
		t.Errorf("expected distinct hashes for distinct deal ids")
	}
}

func TestDecodeWords(t *testing.T) {
	words, err := decodeWords("0x" + strings.Repeat("00", 31) + "2a" + strings.Repeat("00", 32))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(words))
	}
	if wordBig(words[0]).Int64() != 42 {
		t.Errorf("expected first word to decode to 42")
	}

	if _, err := decodeWords("0xabcdef"); err == nil {
		t.Errorf("expected error for unaligned result")
	}
}
