package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Token side of a pair as returned by the indexing API
type Token struct {
	ID     string `json:"id"` // 0x-prefixed token contract address
	Symbol string `json:"symbol"`
}

type Pair struct {
	Token0 Token `json:"token0"`
	Token1 Token `json:"token1"`
}

// SwapRecord is one swap of the wallet, numeric fields already parsed
type SwapRecord struct {
	AmountUSD  decimal.Decimal
	AmountIn0  decimal.Decimal
	AmountIn1  decimal.Decimal
	AmountOut0 decimal.Decimal
	AmountOut1 decimal.Decimal
	Timestamp  int64 // unix seconds
	Pair       Pair
}

// Source of a report request
type Source string

const (
	SourceTelegram Source = "telegram"
	SourceHTTP     Source = "http"
)

// Outcome of a report request
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeFetchFailed Outcome = "fetch_failed"
	OutcomeParseFailed Outcome = "parse_failed"
	OutcomeLimited     Outcome = "rate_limited"
)

// ReportRequest is the audit record of one invocation. Carries request metadata only, never report amounts.
type ReportRequest struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"ts"`
	Source     Source    `json:"source"`
	ChatID     int64     `json:"chat_id,omitempty"`
	Wallet     string    `json:"wallet,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	SwapCount  int       `json:"swap_count"`
	DurationMS int64     `json:"duration_ms"`
}
