package report

import (
	"fmt"
	"strings"

	"walletbot/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	DefaultCommand    = "wallet"
	DefaultRecentDays = 5
	DefaultLookback   = 15 // days, header only

	// MaxActionPayload Telegram callback_data limit, in bytes
	MaxActionPayload = 64
)

var two = decimal.NewFromInt(2)

// Action follow-up button; Payload reproduces the command and is at most MaxActionPayload bytes
type Action struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

type TokenLine struct {
	TokenID     string          `json:"token_id"`
	Symbol      string          `json:"symbol"`
	VolumeUSD   decimal.Decimal `json:"volume_usd"`
	SlippageUSD decimal.Decimal `json:"slippage_usd"`
}

type DayLine struct {
	Date      string          `json:"date"`
	Tokens    []TokenLine     `json:"tokens"`
	VolumeX2  decimal.Decimal `json:"volume_x2"`
	Magnitude int             `json:"magnitude_pow2"`
}

type TotalsLine struct {
	VolumeUSD   decimal.Decimal `json:"volume_usd"`
	VolumeX2    decimal.Decimal `json:"volume_x2"`
	SlippageUSD decimal.Decimal `json:"slippage_usd"`
}

// Report rendered text plus the structured view it was built from
type Report struct {
	Wallet string     `json:"wallet"`
	Text   string     `json:"text"`
	Days   []DayLine  `json:"days"`
	Totals TotalsLine `json:"totals"`
	Swaps  int        `json:"swaps"`
	Action *Action    `json:"action,omitempty"`
}

type Reporter struct {
	Command      string
	RecentDays   int
	LookbackDays int
}

func NewReporter(command string, lookbackDays int) *Reporter {
	if command == "" {
		command = DefaultCommand
	}
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookback
	}

	return &Reporter{
		Command:      command,
		RecentDays:   DefaultRecentDays,
		LookbackDays: lookbackDays,
	}
}

func (r *Reporter) Render(s *Summary, wallet string) Report {
	rep := Report{
		Wallet: wallet,
		Days:   make([]DayLine, 0, r.RecentDays),
		Swaps:  s.Swaps,
		Totals: TotalsLine{
			VolumeUSD:   s.Totals.VolumeUSD,
			VolumeX2:    s.Totals.VolumeUSD.Mul(two),
			SlippageUSD: s.Totals.SlippageUSD,
		},
	}

	for _, date := range s.RecentDates(r.RecentDays) {
		day, _ := s.Day(date)

		line := DayLine{Date: date}
		for _, st := range day.Tokens() {
			line.Tokens = append(line.Tokens, TokenLine{
				TokenID:     st.TokenID,
				Symbol:      st.Symbol,
				VolumeUSD:   st.VolumeUSD,
				SlippageUSD: st.SlippageUSD,
			})
		}
		line.VolumeX2 = day.VolumeUSD().Mul(two)
		line.Magnitude = PowerOfTwo(line.VolumeX2)

		rep.Days = append(rep.Days, line)
	}

	// no button when the command would not fit into callback data
	if payload := domain.CommandPayload(r.Command, wallet); len(payload) <= MaxActionPayload {
		rep.Action = &Action{Label: payload, Payload: payload}
	}
	rep.Text = r.text(&rep)

	return rep
}

func (r *Reporter) text(rep *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[Wallet Slippage Summary (Last %d days)]\n\n", r.LookbackDays)

	b.WriteString("[Daily Token Volume + Slippage]\n")
	for _, d := range rep.Days {
		b.WriteString(d.Date + "\n")
		for _, t := range d.Tokens {
			fmt.Fprintf(&b, "  - %s: %s / Slippage: %s\n", t.Symbol, FormatUSD(t.VolumeUSD), FormatUSD(t.SlippageUSD))
		}
	}

	b.WriteString("\n[x2 Volume Summary]\n")
	for _, d := range rep.Days {
		fmt.Fprintf(&b, "%s  %s (%s)\n", d.Date, FormatUSD(d.VolumeX2), MagnitudeLabel(d.VolumeX2))
	}

	fmt.Fprintf(&b, "\nTotal Volume: %s (x2 BSC: %s)", FormatUSD(rep.Totals.VolumeUSD), FormatUSD(rep.Totals.VolumeX2))
	fmt.Fprintf(&b, "\nTotal Slippage: %s", FormatUSD(rep.Totals.SlippageUSD))

	return b.String()
}
