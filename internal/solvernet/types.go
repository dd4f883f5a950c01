package solvernet

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
)

// WSCommand is a command sent over the solver-network WebSocket.
type WSCommand struct {
	Type    string   `json:"type"` // "subscribe" | "unsubscribe" | "publish_intent"
	Intents []string `json:"intents,omitempty"`
	Payload any      `json:"payload,omitempty"`
}

// IntentMessage is the wire form of an intent publication. Amounts are
// decimal strings to preserve precision across the JSON boundary.
type IntentMessage struct {
	IntentID     string `json:"intent_id"`
	User         string `json:"user"`
	AssetIn      string `json:"asset_in"`
	AmountIn     string `json:"amount_in"`
	AssetOut     string `json:"asset_out"`
	AmountOutMin string `json:"amount_out_min"`
	Nonce        uint64 `json:"nonce"`
	ExpiresAt    int64  `json:"expires_at"` // unix seconds
}

// EncodeIntent builds the wire message for an intent.
func EncodeIntent(i domain.Intent) IntentMessage {
	return IntentMessage{
		IntentID:     i.ID,
		User:         i.User,
		AssetIn:      i.AssetIn,
		AmountIn:     i.AmountIn.String(),
		AssetOut:     i.AssetOut,
		AmountOutMin: i.AmountOutMin.String(),
		Nonce:        i.Nonce,
		ExpiresAt:    i.ExpiresAt.Unix(),
	}
}

// QuoteMessage is the wire form of a solver quote.
type QuoteMessage struct {
	QuoteID    string  `json:"quote_id"`
	SolverID   string  `json:"solver_id"`
	IntentID   string  `json:"intent_id"`
	AmountOut  string  `json:"amount_out"`
	Fee        string  `json:"fee"`
	Gas        string  `json:"gas"`
	ExecTimeMs int64   `json:"exec_time_ms"`
	Confidence float64 `json:"confidence"`
	Signature  string  `json:"signature"` // hex
	ExpiresAt  int64   `json:"expires_at"`
}

// Decode converts the wire quote into a domain quote, rejecting malformed
// numeric fields.
func (m QuoteMessage) Decode() (domain.Quote, error) {
	amountOut, ok := new(big.Int).SetString(m.AmountOut, 10)
	if !ok {
		return domain.Quote{}, fmt.Errorf("solvernet: quote %s: bad amount_out %q", m.QuoteID, m.AmountOut)
	}
	fee, ok := new(big.Int).SetString(m.Fee, 10)
	if !ok {
		return domain.Quote{}, fmt.Errorf("solvernet: quote %s: bad fee %q", m.QuoteID, m.Fee)
	}
	gas := new(big.Int)
	if m.Gas != "" {
		if gas, ok = new(big.Int).SetString(m.Gas, 10); !ok {
			return domain.Quote{}, fmt.Errorf("solvernet: quote %s: bad gas %q", m.QuoteID, m.Gas)
		}
	}
	var sig []byte
	if m.Signature != "" {
		var err error
		if sig, err = hex.DecodeString(trim0x(m.Signature)); err != nil {
			return domain.Quote{}, fmt.Errorf("solvernet: quote %s: bad signature: %w", m.QuoteID, err)
		}
	}
	return domain.Quote{
		ID:          m.QuoteID,
		SolverID:    m.SolverID,
		IntentID:    m.IntentID,
		AmountOut:   amountOut,
		Fee:         fee,
		GasEstimate: gas,
		ExecTime:    time.Duration(m.ExecTimeMs) * time.Millisecond,
		Confidence:  m.Confidence,
		Signature:   sig,
		ExpiresAt:   time.Unix(m.ExpiresAt, 0),
		ReceivedAt:  time.Now(),
	}, nil
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// wsEnvelope is the outer shape of every inbound WebSocket message.
type wsEnvelope struct {
	Type  string       `json:"type"` // "quote" | "pong" | "error"
	Quote QuoteMessage `json:"quote,omitempty"`
	Error string       `json:"error,omitempty"`
}
