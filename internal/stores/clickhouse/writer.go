package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"walletbot/internal/config"
	"walletbot/internal/domain"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"gitlab.com/nevasik7/alerting/logger"
)

var (
	ErrWriterClosed = errors.New("clickhouse writer closed")
	ErrQueueFull    = errors.New("clickhouse writer queue is full")
)

// batchPreparer is the part of ch.Conn the writer needs
type batchPreparer interface {
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
}

// Writer buffers audit rows and inserts them in batches by size or interval
type Writer struct {
	log logger.Logger

	conn  batchPreparer
	cfg   config.ClickHouseWriterConfig
	query string

	// mu orders sends against close: once closedCh is closed no row enters inCh
	mu        sync.RWMutex
	inCh      chan domain.ReportRequest
	closedCh  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewWriter(log logger.Logger, conn batchPreparer, cfg config.ClickHouseConfig) *Writer {
	wcfg := cfg.Writer
	if wcfg.BatchMaxRows <= 0 {
		wcfg.BatchMaxRows = 500
	}
	if wcfg.BatchMaxInterval <= 0 {
		wcfg.BatchMaxInterval = time.Second
	}
	if wcfg.MaxRetries < 0 {
		wcfg.MaxRetries = 0
	}
	if wcfg.RetryBackoff <= 0 {
		wcfg.RetryBackoff = 200 * time.Millisecond
	}

	table := cfg.Table
	if table == "" {
		table = "wallet_report_requests"
	}

	w := &Writer{
		log:  log,
		conn: conn,
		cfg:  wcfg,
		query: fmt.Sprintf(`INSERT INTO %s (
			id,
			ts,
			source,
			chat_id,
			wallet,
			outcome,
			swap_count,
			duration_ms
		)`, table),
		inCh:     make(chan domain.ReportRequest, 4*wcfg.BatchMaxRows),
		closedCh: make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()

	return w
}

// Enqueue never blocks the request path: a full buffer drops the row
func (w *Writer) Enqueue(row domain.ReportRequest) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	select {
	case <-w.closedCh:
		return ErrWriterClosed
	default:
	}

	select {
	case w.inCh <- row:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close flushes what is buffered and waits for the loop or ctx
func (w *Writer) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		close(w.closedCh)
		w.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) loop() {
	defer w.wg.Done()

	batch := make([]domain.ReportRequest, 0, w.cfg.BatchMaxRows)
	ticker := time.NewTicker(w.cfg.BatchMaxInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		if err := w.insertBatch(context.Background(), batch); err != nil {
			w.log.Errorf("Failed insert [%d] rows by batch to clickhouse, error=%v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case row := <-w.inCh:
			batch = append(batch, row)
			if len(batch) >= w.cfg.BatchMaxRows {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.closedCh:
			for {
				select {
				case row := <-w.inCh:
					batch = append(batch, row)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (w *Writer) insertBatch(ctx context.Context, rows []domain.ReportRequest) error {
	backoff := w.cfg.RetryBackoff

	var lastErr error
	for attempt := 0; attempt <= w.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		if lastErr = w.sendBatch(ctx, rows); lastErr == nil {
			return nil
		}
	}

	return lastErr
}

func (w *Writer) sendBatch(ctx context.Context, rows []domain.ReportRequest) error {
	batch, err := w.conn.PrepareBatch(ctx, w.query)
	if err != nil {
		return err
	}

	for i := range rows {
		r := &rows[i]
		if err = batch.Append(
			r.ID,
			r.Time.UTC(),
			string(r.Source),
			r.ChatID,
			r.Wallet,
			string(r.Outcome),
			uint32(r.SwapCount),
			uint32(r.DurationMS),
		); err != nil {
			_ = batch.Abort()
			return err
		}
	}

	return batch.Send()
}
