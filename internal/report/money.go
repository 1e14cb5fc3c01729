package report

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatMoney renders d with two decimals and thousands separators, e.g.
// "₹1,234.50". Negative values are prefixed with a minus sign.
func FormatMoney(d decimal.Decimal, symbol string) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + symbol + printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}
