//go:build ignore

// Run: go run ./build-tools/fakegraph.go -addr :8545 -swaps 200 -days 15 -tokens USDC:0x55d3,WBNB:0xbb4c,CAKE:0x0e09
// Then point GRAPH_ENDPOINT at http://localhost:8545/subgraphs/name/exchange

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	mrand "math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
)

type token struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
}

type swap struct {
	AmountUSD  string `json:"amountUSD"`
	Amount0In  string `json:"amount0In"`
	Amount1In  string `json:"amount1In"`
	Amount0Out string `json:"amount0Out"`
	Amount1Out string `json:"amount1Out"`
	Timestamp  string `json:"timestamp"`
	Pair       struct {
		Token0 token `json:"token0"`
		Token1 token `json:"token1"`
	} `json:"pair"`
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func main() {
	var (
		addr     = flag.String("addr", ":8545", "listen address")
		count    = flag.Int("swaps", 200, "swaps generated per wallet")
		days     = flag.Int("days", 15, "spread swaps over this many days back")
		tokens   = flag.String("tokens", "USDC:0x55d3,WBNB:0xbb4c,CAKE:0x0e09", "comma-separated SYMBOL:id pairs")
		failRate = flag.Float64("fail", 0, "share of requests answered with 500, 0..1")
		latency  = flag.Duration("latency", 0, "added delay per request")
	)
	flag.Parse()

	toks, err := parseTokens(*tokens)
	if err != nil || len(toks) < 2 {
		fmt.Printf("need at least two tokens: %v\n", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Post("/subgraphs/name/{name}", func(w http.ResponseWriter, r *http.Request) {
		if *latency > 0 {
			time.Sleep(*latency)
		}
		if *failRate > 0 && mrand.Float64() < *failRate {
			http.Error(w, "indexer unavailable", http.StatusInternalServerError)
			return
		}

		var req gqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		sender, _ := req.Variables["sender"].(string)
		since, _ := strconv.ParseInt(fmt.Sprint(req.Variables["since"]), 10, 64)

		// same wallet -> same history between runs
		rng := mrand.New(mrand.NewSource(seed(sender)))
		swaps := generate(rng, toks, *count, *days, since)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"swaps": swaps}})
	})

	srv := &http.Server{Addr: *addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		fmt.Printf("fake subgraph listening on %s\n", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("serve error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	fmt.Println("stopped")
}

func generate(rng *mrand.Rand, toks []token, n, days int, since int64) []swap {
	now := time.Now().Unix()
	span := int64(days) * 86400

	out := make([]swap, 0, n)
	for i := 0; i < n; i++ {
		ts := now - rng.Int63n(span)
		if ts < since {
			continue
		}

		i0 := rng.Intn(len(toks))
		i1 := (i0 + 1 + rng.Intn(len(toks)-1)) % len(toks)

		usd := decimal.NewFromFloat(10 + rng.Float64()*5000).Round(2)
		// up to 2% lost on the way out
		loss := decimal.NewFromFloat(rng.Float64() * 0.02)
		in := usd
		outAmt := usd.Mul(decimal.NewFromInt(1).Sub(loss)).Round(6)

		var s swap
		s.AmountUSD = usd.String()
		s.Timestamp = strconv.FormatInt(ts, 10)
		s.Pair.Token0 = toks[i0]
		s.Pair.Token1 = toks[i1]
		if rng.Intn(2) == 0 {
			s.Amount0In, s.Amount1In = in.String(), "0"
			s.Amount0Out, s.Amount1Out = "0", outAmt.String()
		} else {
			s.Amount0In, s.Amount1In = "0", in.String()
			s.Amount0Out, s.Amount1Out = outAmt.String(), "0"
		}

		out = append(out, s)
	}

	return out
}

func parseTokens(s string) ([]token, error) {
	var out []token
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		sym, id, ok := strings.Cut(p, ":")
		if !ok {
			return nil, fmt.Errorf("bad token %q, want SYMBOL:id", p)
		}
		out = append(out, token{ID: id, Symbol: sym})
	}
	return out, nil
}

func seed(s string) int64 {
	var h int64 = 1469598103
	for i := 0; i < len(s); i++ {
		h = h*31 + int64(s[i])
	}
	return h
}
