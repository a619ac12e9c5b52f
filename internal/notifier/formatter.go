package notifier

import (
	"fmt"
	"strings"

	"CloudTrader/internal/model"

	"github.com/shopspring/decimal"
)

func FormatStarted(name string, markets int) string {
	return fmt.Sprintf("%s started, watching %d markets", name, markets)
}

func FormatSelected(market string) string {
	return "Selected " + market
}

func FormatCheckError(market string, err error) string {
	return fmt.Sprintf("Error checking %s: %v", market, err)
}

func FormatBuyError(market string, err error) string {
	return fmt.Sprintf("Error buying %s: %v", market, err)
}

func FormatNoPrice(market string) string {
	return "Failed to get current price for " + market
}

// FormatBuy reports a placed market buy.
func FormatBuy(market string, price, amount decimal.Decimal) string {
	return fmt.Sprintf("Buy %s at %s KRW, Amount: %s", market, price.String(), amount.StringFixed(0))
}

// FormatExit reports how a monitored position ended.
func FormatExit(rep model.ExitReport) string {
	if rep.Reason.Closed() {
		return fmt.Sprintf("Sell %s at %s KRW, %s (%+.2f%%)",
			rep.Market, rep.ExitPrice.String(), rep.Reason.Label(), rep.ReturnPct())
	}
	return fmt.Sprintf("Stopped monitoring %s: %s", rep.Market, rep.Reason.Label())
}

// FormatPositions lists the positions currently being monitored.
func FormatPositions(positions []model.Position) string {
	if len(positions) == 0 {
		return "No open positions"
	}
	var b strings.Builder
	b.WriteString("Open positions:\n")
	for _, p := range positions {
		state := "waiting"
		if p.Armed {
			state = "armed, high " + p.TrailingHigh.String()
		}
		last := "-"
		if !p.LastPrice.IsZero() {
			last = p.LastPrice.String()
		}
		b.WriteString(fmt.Sprintf("%s: entry %s, last %s, %s\n", p.Market, p.EntryPrice.String(), last, state))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatHelp lists the chat commands.
func FormatHelp() string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	b.WriteString("/report - portfolio summary\n")
	b.WriteString("/positions - monitored positions\n")
	b.WriteString("/help - this message")
	return b.String()
}
