package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"walletbot/internal/config"
	"walletbot/internal/domain"
	"walletbot/internal/metrics"
	"walletbot/internal/pubsub"
	"walletbot/internal/report"

	"github.com/google/uuid"
	"gitlab.com/nevasik7/alerting/logger"
)

const (
	MsgFetchFailed = "Failed to fetch data."
	MsgRateLimited = "Too many requests, try again later."

	auditTimeout = 2 * time.Second
)

// Fetcher loads the wallet swaps newer than cutoff (unix seconds)
type Fetcher interface {
	Fetch(ctx context.Context, wallet string, cutoff int64) ([]domain.SwapRecord, error)
}

// AuditSink takes request rows without blocking, see clickhouse.Writer
type AuditSink interface {
	Enqueue(row domain.ReportRequest) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, b config.RateBucket) (bool, error)
}

// Request one invocation of the report, either a chat command or an API call
type Request struct {
	Source domain.Source
	ChatID int64
	Args   []string // command arguments, exactly one address is valid
}

// Reply what goes back to the chat. Action is set only when a report was built and its command fits a button.
type Reply struct {
	Text   string
	Action *report.Action
}

type Options struct {
	Lookback      time.Duration
	StrictAddress bool
	ChatBucket    config.RateBucket
}

// WalletReportService runs validate → fetch → aggregate → render and records every invocation.
// Audit, events and metrics are best-effort and never change the answer.
type WalletReportService struct {
	log      logger.Logger
	fetcher  Fetcher
	reporter *report.Reporter
	opts     Options

	limiter     RateLimiter // optional
	audit       AuditSink   // optional
	broadcaster pubsub.Broadcaster
	metrics     *metrics.Metrics // optional

	now func() time.Time
}

func NewWalletReportService(log logger.Logger, fetcher Fetcher, reporter *report.Reporter, opts Options) (*WalletReportService, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required to the wallet report service")
	}
	if reporter == nil {
		return nil, errors.New("reporter is required to the wallet report service")
	}
	if opts.Lookback <= 0 {
		opts.Lookback = time.Duration(report.DefaultLookback) * 24 * time.Hour
	}

	return &WalletReportService{
		log:         log,
		fetcher:     fetcher,
		reporter:    reporter,
		opts:        opts,
		broadcaster: pubsub.Noop{},
		now:         time.Now,
	}, nil
}

func (s *WalletReportService) WithLimiter(l RateLimiter) *WalletReportService {
	s.limiter = l
	return s
}

func (s *WalletReportService) WithAudit(a AuditSink) *WalletReportService {
	s.audit = a
	return s
}

func (s *WalletReportService) WithBroadcaster(b pubsub.Broadcaster) *WalletReportService {
	if b != nil {
		s.broadcaster = b
	}
	return s
}

func (s *WalletReportService) WithMetrics(m *metrics.Metrics) *WalletReportService {
	s.metrics = m
	return s
}

// UsageText answer for a malformed command
func (s *WalletReportService) UsageText() string {
	return fmt.Sprintf("Please enter a valid wallet address. Example: /%s 0xabc...", s.reporter.Command)
}

// Command name the reports are requested with, without the slash
func (s *WalletReportService) Command() string {
	return s.reporter.Command
}

// Reply builds the chat answer. Errors never leak to the user: they become one of the fixed messages.
func (s *WalletReportService) Reply(ctx context.Context, req Request) Reply {
	rep, err := s.Report(ctx, req)
	if err == nil {
		return Reply{Text: rep.Text, Action: rep.Action}
	}

	switch domain.OutcomeOf(err) {
	case domain.OutcomeInvalid:
		return Reply{Text: s.UsageText()}
	case domain.OutcomeLimited:
		return Reply{Text: MsgRateLimited}
	default:
		return Reply{Text: MsgFetchFailed}
	}
}

// Report validates the arguments and builds the report. The error is classified by domain.OutcomeOf.
func (s *WalletReportService) Report(ctx context.Context, req Request) (report.Report, error) {
	start := s.now()
	row := domain.ReportRequest{
		ID:     uuid.NewString(),
		Time:   start.UTC(),
		Source: req.Source,
		ChatID: req.ChatID,
	}

	rep, err := s.run(ctx, req, &row)

	row.Outcome = domain.OutcomeOf(err)
	row.DurationMS = s.now().Sub(start).Milliseconds()
	s.record(ctx, row, err)

	return rep, err
}

func (s *WalletReportService) run(ctx context.Context, req Request, row *domain.ReportRequest) (report.Report, error) {
	wallet, err := domain.ParseWalletArgs(req.Args, s.opts.StrictAddress)
	if err != nil {
		return report.Report{}, err
	}
	row.Wallet = wallet

	if err = s.allow(ctx, req); err != nil {
		return report.Report{}, err
	}

	start := s.now()
	cutoff := start.Add(-s.opts.Lookback).Unix()

	swaps, err := s.fetcher.Fetch(ctx, wallet, cutoff)
	if s.metrics != nil {
		n := len(swaps)
		if err != nil {
			n = -1
		}
		s.metrics.ObserveFetch(s.now().Sub(start), n)
	}
	if err != nil {
		return report.Report{}, err
	}
	row.SwapCount = len(swaps)

	return s.reporter.Render(report.Aggregate(swaps), wallet), nil
}

// allow only chat requests are limited here, the HTTP API limits by ip in its middleware
func (s *WalletReportService) allow(ctx context.Context, req Request) error {
	if s.limiter == nil || req.Source != domain.SourceTelegram {
		return nil
	}

	ok, err := s.limiter.Allow(ctx, "chat:"+strconv.FormatInt(req.ChatID, 10), s.opts.ChatBucket)
	if err != nil {
		s.log.Warnf("Rate limiter unavailable, letting chat=%d through, error=%v", req.ChatID, err)
	}
	if !ok {
		return fmt.Errorf("chat %d: %w", req.ChatID, domain.ErrRateLimited)
	}

	return nil
}

func (s *WalletReportService) record(ctx context.Context, row domain.ReportRequest, err error) {
	switch row.Outcome {
	case domain.OutcomeOK:
		s.log.Infof("Report built, id=%s, source=%s, wallet=%s, swaps=%d, took=%dms",
			row.ID, row.Source, row.Wallet, row.SwapCount, row.DurationMS)
	case domain.OutcomeInvalid, domain.OutcomeLimited:
		s.log.Debugf("Report rejected, id=%s, source=%s, outcome=%s, error=%v", row.ID, row.Source, row.Outcome, err)
	default:
		s.log.Errorf("Failed to build report, id=%s, source=%s, wallet=%s, outcome=%s, error=%v",
			row.ID, row.Source, row.Wallet, row.Outcome, err)
	}

	if s.metrics != nil {
		s.metrics.ObserveRequest(row.Source, row.Outcome)
	}

	if s.audit != nil {
		if aerr := s.audit.Enqueue(row); aerr != nil {
			s.log.Warnf("Failed enqueue audit row id=%s, error=%v", row.ID, aerr)
		}
	}

	// the caller ctx may already be cancelled, the event still goes out
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	if perr := s.broadcaster.Publish(pctx, string(row.Outcome), row); perr != nil {
		s.log.Warnf("Failed publish request event id=%s, error=%v", row.ID, perr)
	}
}
