package messaging

import "context"

// TxDescriptor is the unsigned transaction a human is asked to sign.
type TxDescriptor struct {
	ChainID string `json:"chainId"`
	To      string `json:"to"`
	Value   string `json:"value"`
	Data    string `json:"data"`
}

// InteractionRequest is the signing-interaction payload delivered to a chat
// channel. Type is always "transaction".
type InteractionRequest struct {
	Type     string       `json:"type"`
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Subtitle string       `json:"subtitle"`
	Tx       TxDescriptor `json:"tx"`
	// Recipient optionally narrows the request to one user; empty means the
	// whole channel may respond.
	Recipient string `json:"recipient,omitempty"`
}

// InteractionResponse is the asynchronous outcome of a signing request.
// Exactly one of TxHash and Error is set.
type InteractionResponse struct {
	InteractionID string `json:"interactionId"`
	TxHash        string `json:"txHash,omitempty"`
	Error         string `json:"error,omitempty"`
	ChannelID     string `json:"channelId,omitempty"`
}

// Failed reports whether the response carries an error instead of a
// transaction hash.
func (r InteractionResponse) Failed() bool {
	return r.TxHash == ""
}

// Gateway delivers chat messages and signing requests. Implementations talk
// to the messaging platform; the core only depends on this contract.
type Gateway interface {
	SendMessage(ctx context.Context, channelID, text string) error
	SendInteractionRequest(ctx context.Context, channelID string, req InteractionRequest) error
}
