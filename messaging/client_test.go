package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestSendMessage(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "topsecret")
	if err := c.SendMessage(context.Background(), "channel-1", "hello"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if gotPath != "/channels/channel-1/messages" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotBody["text"] != "hello" {
		t.Errorf("unexpected body %v", gotBody)
	}

	raw, ok := strings.CutPrefix(gotAuth, "Bearer ")
	if !ok {
		t.Fatalf("expected bearer authorization, got %q", gotAuth)
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte("topsecret"), nil
	})
	if err != nil || !token.Valid {
		t.Errorf("expected verifiable HS256 token: %v", err)
	}
}

func TestSendInteractionRequest(t *testing.T) {
	var got InteractionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/channel-1/interactions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer srv.Close()

	req := InteractionRequest{
		Type:  "transaction",
		ID:    "tx-1",
		Title: "Fund escrow",
		Tx:    TxDescriptor{ChainID: "8453", To: "0xabc", Value: "0", Data: "0xdead"},
	}
	c := NewClient(srv.URL, "topsecret")
	if err := c.SendInteractionRequest(context.Background(), "channel-1", req); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.ID != "tx-1" || got.Tx.ChainID != "8453" {
		t.Errorf("payload did not round-trip: %+v", got)
	}
}

func TestPost_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "topsecret")
	err := c.SendMessage(context.Background(), "channel-1", "hello")
	if err == nil {
		t.Fatalf("expected error for non-2xx gateway response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status code in error, got %v", err)
	}
}

func TestInteractionResponse_Failed(t *testing.T) {
	if (InteractionResponse{TxHash: "0xabc"}).Failed() {
		t.Errorf("expected hash-bearing response to succeed")
	}
	if !(InteractionResponse{Error: "user rejected"}).Failed() {
		t.Errorf("expected error response to be failed")
	}
	if !(InteractionResponse{}).Failed() {
		t.Errorf("expected empty response to be failed")
	}
}
