package report

import (
	"sort"
	"time"

	"walletbot/internal/domain"

	"github.com/shopspring/decimal"
)

// DateLayout is the bucket key; distinct years collapse into one key
const DateLayout = "01/02"

// DailyTokenStat accumulated volume and slippage of one (date, token) bucket
type DailyTokenStat struct {
	TokenID     string
	Symbol      string // last write wins
	VolumeUSD   decimal.Decimal
	SlippageUSD decimal.Decimal
}

type Totals struct {
	VolumeUSD   decimal.Decimal
	SlippageUSD decimal.Decimal
}

// Day holds the token buckets of one date in first-seen order
type Day struct {
	Date   string
	stats  map[string]*DailyTokenStat
	tokens []string
}

func newDay(date string) *Day {
	return &Day{Date: date, stats: make(map[string]*DailyTokenStat)}
}

// stat get-or-insert by token id
func (d *Day) stat(tokenID string) *DailyTokenStat {
	if s, ok := d.stats[tokenID]; ok {
		return s
	}

	s := &DailyTokenStat{TokenID: tokenID}
	d.stats[tokenID] = s
	d.tokens = append(d.tokens, tokenID)
	return s
}

func (d *Day) Tokens() []*DailyTokenStat {
	out := make([]*DailyTokenStat, 0, len(d.tokens))
	for _, id := range d.tokens {
		out = append(out, d.stats[id])
	}
	return out
}

func (d *Day) Stat(tokenID string) (*DailyTokenStat, bool) {
	s, ok := d.stats[tokenID]
	return s, ok
}

// VolumeUSD sum of the day's token volumes
func (d *Day) VolumeUSD() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range d.stats {
		sum = sum.Add(s.VolumeUSD)
	}
	return sum
}

// Summary is built fresh per invocation and never shared
type Summary struct {
	Totals Totals
	Swaps  int

	days  map[string]*Day
	dates []string
}

func newSummary() *Summary {
	return &Summary{
		Totals: Totals{VolumeUSD: decimal.Zero, SlippageUSD: decimal.Zero},
		days:   make(map[string]*Day),
	}
}

// day get-or-insert by date key
func (s *Summary) day(date string) *Day {
	if d, ok := s.days[date]; ok {
		return d
	}

	d := newDay(date)
	s.days[date] = d
	s.dates = append(s.dates, date)
	return d
}

func (s *Summary) Day(date string) (*Day, bool) {
	d, ok := s.days[date]
	return d, ok
}

func (s *Summary) Len() int {
	return len(s.days)
}

// RecentDates up to n date keys in reverse lexicographic order of "MM/DD".
// Not chronological across a year boundary: "01/05" sorts before "12/31".
func (s *Summary) RecentDates(n int) []string {
	dates := make([]string, len(s.dates))
	copy(dates, s.dates)
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	if n >= 0 && len(dates) > n {
		dates = dates[:n]
	}
	return dates
}

var one = decimal.NewFromInt(1)

// Slippage usd * (1 - out/in) when input exceeds output, otherwise zero
func Slippage(amountUSD, inSum, outSum decimal.Decimal) decimal.Decimal {
	if !inSum.GreaterThan(outSum) || !inSum.IsPositive() {
		return decimal.Zero
	}
	return amountUSD.Mul(one.Sub(outSum.Div(inSum)))
}

// AttributedToken token0 when inSum >= outSum, token1 otherwise
func AttributedToken(p domain.Pair, inSum, outSum decimal.Decimal) domain.Token {
	if inSum.GreaterThanOrEqual(outSum) {
		return p.Token0
	}
	return p.Token1
}

// DateKey UTC "MM/DD" of a unix timestamp
func DateKey(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(DateLayout)
}

// Aggregate partitions swaps by date and attributed token and sums totals
func Aggregate(swaps []domain.SwapRecord) *Summary {
	s := newSummary()

	for i := range swaps {
		sw := &swaps[i]

		inSum := sw.AmountIn0.Add(sw.AmountIn1)
		outSum := sw.AmountOut0.Add(sw.AmountOut1)
		slip := Slippage(sw.AmountUSD, inSum, outSum)
		token := AttributedToken(sw.Pair, inSum, outSum)

		st := s.day(DateKey(sw.Timestamp)).stat(token.ID)
		st.VolumeUSD = st.VolumeUSD.Add(sw.AmountUSD)
		st.SlippageUSD = st.SlippageUSD.Add(slip)
		st.Symbol = token.Symbol

		s.Totals.VolumeUSD = s.Totals.VolumeUSD.Add(sw.AmountUSD)
		s.Totals.SlippageUSD = s.Totals.SlippageUSD.Add(slip)
	}
	s.Swaps = len(swaps)

	return s
}
