package interaction

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"dealflow/chain"
	"dealflow/deal"
	"dealflow/messaging"
)

func selectorHex(signature string) string {
	return hex.EncodeToString(chain.Selector(signature))
}

type fakeGateway struct {
	messages     []string
	interactions []messaging.InteractionRequest
	channels     []string
	sendErr      error
	dispatchErr  error
	// block makes SendInteractionRequest wait for ctx cancellation.
	block bool
}

func (f *fakeGateway) SendMessage(_ context.Context, channelID, text string) error {
	f.channels = append(f.channels, channelID)
	f.messages = append(f.messages, text)
	return f.sendErr
}

func (f *fakeGateway) SendInteractionRequest(ctx context.Context, channelID string, req messaging.InteractionRequest) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.channels = append(f.channels, channelID)
	f.interactions = append(f.interactions, req)
	return f.dispatchErr
}

const (
	factoryAddr    = "0x1000000000000000000000000000000000000001"
	tokenAddr      = "0x2000000000000000000000000000000000000002"
	arbitratorAddr = "0x3000000000000000000000000000000000000003"
	escrowAddr     = "0x4000000000000000000000000000000000000004"
	sellerAddr     = "0x5000000000000000000000000000000000000005"
	buyerAddr      = "0x6000000000000000000000000000000000000006"
)

func testConfig() Config {
	return Config{
		ChainID:           "8453",
		FactoryAddress:    factoryAddr,
		TokenAddress:      tokenAddr,
		ArbitratorAddress: arbitratorAddr,
		TokenDecimals:     6,
		DispatchTimeout:   time.Second,
	}
}

func testDeal() deal.Deal {
	return deal.Deal{
		ID:            "DEAL-1700000000000-abcd1234",
		SellerAddress: sellerAddr,
		BuyerAddress:  buyerAddr,
		Amount:        "150.5",
		Token:         "USDC",
		Deadline:      1767225600,
		Status:        deal.StatusDraft,
		ChannelID:     "channel-1",
		EscrowAddress: escrowAddr,
	}
}

func TestRequestAction_UniqueIDsWithinOneMillisecond(t *testing.T) {
	gw := &fakeGateway{}
	reg := NewRegistry()
	o := NewOrchestrator(testConfig(), reg, gw)
	fixed := time.UnixMilli(1700000000000)
	o.now = func() time.Time { return fixed }

	d := testDeal()
	first, err := o.RequestAction(context.Background(), d, ActionFund, "user-1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	second, err := o.RequestAction(context.Background(), d, ActionFund, "user-1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	// Same deal, same action, same clock reading: the ids must still differ
	// so the second pending entry cannot shadow the first.
	if first == second {
		t.Fatalf("expected distinct correlation ids, got %q twice", first)
	}
	if reg.Len() != 2 {
		t.Errorf("expected both requests registered, got %d", reg.Len())
	}
}

func TestRequestAction_Descriptors(t *testing.T) {
	cases := []struct {
		action       Action
		wantTo       string
		wantSelector string
	}{
		{ActionCreate, factoryAddr, "0x" + selectorHex("createEscrow(address,address,uint256,uint256,address,bytes32)")},
		{ActionApprove, tokenAddr, "0x095ea7b3"},
		{ActionFund, escrowAddr, "0x" + selectorHex("fund()")},
		{ActionRelease, escrowAddr, "0x" + selectorHex("release()")},
		{ActionDispute, escrowAddr, "0x" + selectorHex("openDispute()")},
		{ActionResolve, escrowAddr, "0x" + selectorHex("resolve(bool)")},
	}

	for _, tc := range cases {
		t.Run(string(tc.action), func(t *testing.T) {
			gw := &fakeGateway{}
			reg := NewRegistry()
			o := NewOrchestrator(testConfig(), reg, gw)

			id, err := o.RequestAction(context.Background(), testDeal(), tc.action, "user-1")
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if id == "" {
				t.Fatalf("expected correlation id")
			}

			if len(gw.interactions) != 1 {
				t.Fatalf("expected 1 dispatched interaction, got %d", len(gw.interactions))
			}
			req := gw.interactions[0]
			if req.Type != "transaction" || req.ID != id {
				t.Errorf("unexpected request envelope: %+v", req)
			}
			if req.Tx.To != tc.wantTo {
				t.Errorf("expected target %s, got %s", tc.wantTo, req.Tx.To)
			}
			if !strings.HasPrefix(req.Tx.Data, tc.wantSelector) {
				t.Errorf("expected selector %s, got %s", tc.wantSelector, req.Tx.Data[:10])
			}
			if req.Tx.ChainID != "8453" || req.Tx.Value != "0" {
				t.Errorf("unexpected descriptor chain/value: %+v", req.Tx)
			}

			p, ok := reg.Get(id)
			if !ok {
				t.Fatalf("expected pending entry registered")
			}
			if p.DealID != testDeal().ID || p.Action != tc.action || p.ChannelID != "channel-1" {
				t.Errorf("unexpected pending entry: %+v", p)
			}
		})
	}
}

func TestRequestAction_AmountInBaseUnits(t *testing.T) {
	gw := &fakeGateway{}
	o := NewOrchestrator(testConfig(), NewRegistry(), gw)

	if _, err := o.RequestAction(context.Background(), testDeal(), ActionApprove, buyerAddr); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	// 150.5 with 6 decimals is 150_500_000 = 0x08F872A0, word-encoded at the
	// tail of approve(spender, amount).
	data := gw.interactions[0].Tx.Data
	if !strings.HasSuffix(data, "0000000000000000000000000000000000000000000000000000000008f872a0") {
		t.Errorf("expected shifted amount word, got %s", data)
	}
}

func TestRequestAction_RecipientOnlyForAddresses(t *testing.T) {
	gw := &fakeGateway{}
	o := NewOrchestrator(testConfig(), NewRegistry(), gw)

	if _, err := o.RequestAction(context.Background(), testDeal(), ActionFund, buyerAddr); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if gw.interactions[0].Recipient != buyerAddr {
		t.Errorf("expected address recipient, got %q", gw.interactions[0].Recipient)
	}

	if _, err := o.RequestAction(context.Background(), testDeal(), ActionFund, "user-42"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if gw.interactions[1].Recipient != "" {
		t.Errorf("expected empty recipient for platform user id, got %q", gw.interactions[1].Recipient)
	}
}

func TestRequestAction_EscrowFallbackToFactory(t *testing.T) {
	gw := &fakeGateway{}
	o := NewOrchestrator(testConfig(), NewRegistry(), gw)

	d := testDeal()
	d.EscrowAddress = ""
	if _, err := o.RequestAction(context.Background(), d, ActionApprove, buyerAddr); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	// The approve spender word falls back to the factory address.
	if !strings.Contains(gw.interactions[0].Tx.Data, strings.TrimPrefix(factoryAddr, "0x")) {
		t.Errorf("expected factory fallback spender in calldata: %s", gw.interactions[0].Tx.Data)
	}
}

func TestRequestAction_InvalidAction(t *testing.T) {
	o := NewOrchestrator(testConfig(), NewRegistry(), &fakeGateway{})

	_, err := o.RequestAction(context.Background(), testDeal(), Action("teleport"), "user-1")
	if !errors.Is(err, ErrInvalidAction) {
		t.Errorf("expected ErrInvalidAction, got %v", err)
	}
}

func TestRequestAction_InvalidAmount(t *testing.T) {
	reg := NewRegistry()
	o := NewOrchestrator(testConfig(), reg, &fakeGateway{})

	d := testDeal()
	d.Amount = "many"
	if _, err := o.RequestAction(context.Background(), d, ActionCreate, "user-1"); err == nil {
		t.Fatalf("expected amount error")
	}
	if reg.Len() != 0 {
		t.Errorf("expected no pending entry for a descriptor build failure")
	}
}

func TestRequestAction_DispatchTimeoutKeepsPending(t *testing.T) {
	gw := &fakeGateway{block: true}
	reg := NewRegistry()
	cfg := testConfig()
	cfg.DispatchTimeout = 20 * time.Millisecond
	o := NewOrchestrator(cfg, reg, gw)

	id, err := o.RequestAction(context.Background(), testDeal(), ActionCreate, "user-1")
	if err == nil {
		t.Fatalf("expected dispatch timeout error")
	}
	if id == "" {
		t.Fatalf("expected correlation id even on dispatch failure")
	}
	// A late response can still arrive, so the pending entry survives.
	if _, ok := reg.Get(id); !ok {
		t.Errorf("expected pending entry to remain registered after timeout")
	}
}
