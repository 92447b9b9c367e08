package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"walletbot/internal/config"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

const createTableTmpl = `
CREATE TABLE IF NOT EXISTS %s (
	id          String,
	ts          DateTime64(3, 'UTC'),
	source      LowCardinality(String),
	chat_id     Int64,
	wallet      String,
	outcome     LowCardinality(String),
	swap_count  UInt32,
	duration_ms UInt32
) ENGINE = MergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (wallet, ts)
TTL toDateTime(ts) + INTERVAL 90 DAY
`

type Conn struct {
	Native ch.Conn
}

func New(ctx context.Context, cfg *config.ClickHouseConfig) (*Conn, error) {
	if cfg == nil {
		return nil, errors.New("clickhouse config cannot be nil")
	}
	opts, err := ch.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed parse DSN ch, error=%w", err)
	}

	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}

	if opts.Compression == nil {
		opts.Compression = &ch.Compression{Method: ch.CompressionLZ4}
	}

	opts.ClientInfo = ch.ClientInfo{
		Products: []struct{ Name, Version string }{
			{
				Name:    "walletbot",
				Version: "0.1.0",
			},
		},
	}

	conn, err := ch.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed Open ch, error=%w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err = conn.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed ping ch, error=%w", err)
	}

	return &Conn{Native: conn}, nil
}

// EnsureTable creates the audit table when it does not exist yet
func (c *Conn) EnsureTable(ctx context.Context, table string) error {
	if err := c.Native.Exec(ctx, fmt.Sprintf(createTableTmpl, table)); err != nil {
		return fmt.Errorf("failed create table %s, error=%w", table, err)
	}

	return nil
}

func (c *Conn) Health(ctx context.Context) error {
	return c.Native.Ping(ctx)
}

func (c *Conn) Close() error {
	return c.Native.Close()
}
