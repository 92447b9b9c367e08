package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"walletbot/internal/domain"

	"github.com/shopspring/decimal"
)

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data *struct {
		Swaps *[]swapDTO `json:"swaps"`
	} `json:"data"`
	Errors []gqlError `json:"errors"`
}

// BigDecimal/BigInt arrive as strings, some gateways emit plain numbers; null or absent stays unset
type scalar struct {
	raw string
	set bool
}

func (s *scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s.raw); err != nil {
			return err
		}
	} else {
		s.raw = string(b)
	}
	s.set = true

	return nil
}

type swapDTO struct {
	AmountUSD  scalar `json:"amountUSD"`
	Amount0In  scalar `json:"amount0In"`
	Amount1In  scalar `json:"amount1In"`
	Amount0Out scalar `json:"amount0Out"`
	Amount1Out scalar `json:"amount1Out"`
	Timestamp  scalar `json:"timestamp"`
	Pair       struct {
		Token0 domain.Token `json:"token0"`
		Token1 domain.Token `json:"token1"`
	} `json:"pair"`
}

func (d *swapDTO) toDomain(idx int) (domain.SwapRecord, error) {
	var (
		rec domain.SwapRecord
		err error
	)

	fields := []struct {
		name string
		src  scalar
		dst  *decimal.Decimal
	}{
		{"amountUSD", d.AmountUSD, &rec.AmountUSD},
		{"amount0In", d.Amount0In, &rec.AmountIn0},
		{"amount1In", d.Amount1In, &rec.AmountIn1},
		{"amount0Out", d.Amount0Out, &rec.AmountOut0},
		{"amount1Out", d.Amount1Out, &rec.AmountOut1},
	}

	for _, f := range fields {
		if *f.dst, err = parseDecimal(idx, f.name, f.src); err != nil {
			return rec, err
		}
	}

	if !d.Timestamp.set {
		return rec, &domain.ParseError{Index: idx, Field: "timestamp", Err: errMissing}
	}
	if rec.Timestamp, err = strconv.ParseInt(d.Timestamp.raw, 10, 64); err != nil {
		return rec, &domain.ParseError{Index: idx, Field: "timestamp", Value: d.Timestamp.raw, Err: err}
	}

	if d.Pair.Token0.ID == "" {
		return rec, &domain.ParseError{Index: idx, Field: "pair.token0.id", Err: errMissing}
	}
	if d.Pair.Token1.ID == "" {
		return rec, &domain.ParseError{Index: idx, Field: "pair.token1.id", Err: errMissing}
	}
	rec.Pair = domain.Pair{Token0: d.Pair.Token0, Token1: d.Pair.Token1}

	return rec, nil
}

var errMissing = errors.New("field is missing")

func parseDecimal(idx int, name string, s scalar) (decimal.Decimal, error) {
	if !s.set {
		return decimal.Zero, &domain.ParseError{Index: idx, Field: name, Err: errMissing}
	}

	v, err := decimal.NewFromString(s.raw)
	if err != nil {
		return decimal.Zero, &domain.ParseError{Index: idx, Field: name, Value: s.raw, Err: err}
	}

	return v, nil
}
