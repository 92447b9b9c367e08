package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"walletbot/internal/config"
	"walletbot/internal/domain"

	"gitlab.com/nevasik7/alerting/logger"
)

// one page, newest first; sender and cutoff are the only bound values
const swapsQueryTmpl = `query WalletSwaps($sender: Bytes!, $since: BigInt!) {
  swaps(first: %d, orderBy: timestamp, orderDirection: desc,
    where: {sender: $sender, timestamp_gte: $since}) {
    amountUSD
    amount0In
    amount1In
    amount0Out
    amount1Out
    timestamp
    pair {
      token0 { id symbol }
      token1 { id symbol }
    }
  }
}`

// errBodyLimit caps how much of an error body ends up in logs
const errBodyLimit = 512

// Client queries the swaps subgraph of the indexing API
type Client struct {
	log        logger.Logger
	endpoint   string
	query      string
	httpClient *http.Client
}

func NewClient(log logger.Logger, cfg *config.GraphConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("graph config is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("graph endpoint is required")
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	return &Client{
		log:      log,
		endpoint: cfg.Endpoint,
		query:    fmt.Sprintf(swapsQueryTmpl, pageSize),
		// zero timeout keeps the transport default
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Fetch returns the wallet swaps with timestamp >= cutoff.
// Every transport, status or envelope failure wraps domain.ErrFetch; bad numeric fields return *domain.ParseError.
func (c *Client) Fetch(ctx context.Context, wallet string, cutoff int64) ([]domain.SwapRecord, error) {
	body, err := json.Marshal(gqlRequest{
		Query: c.query,
		Variables: map[string]any{
			"sender": strings.ToLower(wallet),
			"since":  strconv.FormatInt(cutoff, 10),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", domain.ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", domain.ErrFetch, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %v", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		return nil, fmt.Errorf("%w: indexing API returned status %d: %s", domain.ErrFetch, resp.StatusCode, string(b))
	}

	var out gqlResponse
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", domain.ErrFetch, err)
	}

	if out.Data == nil || out.Data.Swaps == nil {
		return nil, fmt.Errorf("%w: response has no data.swaps envelope%s", domain.ErrFetch, joinErrors(out.Errors))
	}
	if len(out.Errors) > 0 {
		c.log.Warnf("Indexing API returned data with errors, wallet=%s%s", wallet, joinErrors(out.Errors))
	}

	raw := *out.Data.Swaps
	swaps := make([]domain.SwapRecord, 0, len(raw))
	for i := range raw {
		rec, err := raw[i].toDomain(i)
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, rec)
	}

	c.log.Debugf("Fetched %d swaps for wallet=%s since=%d in %s", len(swaps), wallet, cutoff, time.Since(start))
	return swaps, nil
}

func joinErrors(errs []gqlError) string {
	if len(errs) == 0 {
		return ""
	}

	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}

	return ", errors=" + strings.Join(msgs, "; ")
}
