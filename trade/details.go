package trade

import (
	"fmt"
	"strings"
	"time"
)

// Currency is a supported fiat code. The set is closed; the details
// validator rejects anything outside it.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	CHF Currency = "CHF"
	AUD Currency = "AUD"
	CAD Currency = "CAD"
	NZD Currency = "NZD"
)

var currencies = map[Currency]bool{
	USD: true, EUR: true, GBP: true, JPY: true,
	CHF: true, AUD: true, CAD: true, NZD: true,
}

func (c Currency) Valid() bool { return currencies[c] }

type Direction uint8

const (
	Buy Direction = iota + 1
	Sell
)

func (d Direction) Valid() bool { return d == Buy || d == Sell }

func (d Direction) String() string {
	switch d {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// TimeStamp is milliseconds since the Unix epoch.
type TimeStamp int64

func TimeStampOf(t time.Time) TimeStamp { return TimeStamp(t.UnixMilli()) }

func (ts TimeStamp) Time() time.Time { return time.UnixMilli(int64(ts)).UTC() }

// Strike is a fixed-point decimal rate: Unscaled / 10^Scale.
// 1.0850 is {Unscaled: 10850, Scale: 4}.
type Strike struct {
	Unscaled uint64
	Scale    uint8
}

func (s Strike) Positive() bool { return s.Unscaled > 0 }

func (s Strike) String() string {
	digits := fmt.Sprintf("%d", s.Unscaled)
	if s.Scale == 0 {
		return digits
	}
	for len(digits) <= int(s.Scale) {
		digits = "0" + digits
	}
	cut := len(digits) - int(s.Scale)
	return digits[:cut] + "." + digits[cut:]
}

// CurrencyAmount is an amount in a currency's minor units.
type CurrencyAmount struct {
	Currency Currency
	Amount   uint64
}

// TradeDetails is the economic description of one forward contract. A
// details record is immutable once stored; updates write a new record
// and point the chain at it.
type TradeDetails struct {
	Entity       string
	Counterparty string
	Direction    Direction
	Notional     CurrencyAmount
	Underlying   CurrencyAmount
	TradeDate    TimeStamp
	ValueDate    TimeStamp
	DeliveryDate TimeStamp
	Strike       *Strike // set only at execution
}

// Validate enforces the details invariant: dates ordered, currencies
// distinct, amounts positive.
func (d *TradeDetails) Validate() error {
	if d == nil {
		return detailserr(DETAILS_ERR_MISSING, "nil details")
	}
	if strings.TrimSpace(d.Entity) == "" {
		return detailserr(DETAILS_ERR_MISSING, "entity")
	}
	if strings.TrimSpace(d.Counterparty) == "" {
		return detailserr(DETAILS_ERR_MISSING, "counterparty")
	}
	if !d.Direction.Valid() {
		return detailserr(DETAILS_ERR_MISSING, "direction")
	}
	if !d.Notional.Currency.Valid() {
		return detailserr(DETAILS_ERR_CURRENCY, fmt.Sprintf("notional currency %q", d.Notional.Currency))
	}
	if !d.Underlying.Currency.Valid() {
		return detailserr(DETAILS_ERR_CURRENCY, fmt.Sprintf("underlying currency %q", d.Underlying.Currency))
	}
	if d.Notional.Currency == d.Underlying.Currency {
		return detailserr(DETAILS_ERR_SAME_CURRENCY, string(d.Notional.Currency))
	}
	if d.Notional.Amount == 0 {
		return detailserr(DETAILS_ERR_AMOUNT, "notional amount must be positive")
	}
	if d.Underlying.Amount == 0 {
		return detailserr(DETAILS_ERR_AMOUNT, "underlying amount must be positive")
	}
	if err := d.ValidateDates(); err != nil {
		return err
	}
	if d.Strike != nil && !d.Strike.Positive() {
		return detailserr(DETAILS_ERR_STRIKE, "strike must be positive")
	}
	return nil
}

// ValidateDates checks trade_date <= value_date <= delivery_date. Execute
// re-runs this alone against the currently referenced details.
func (d *TradeDetails) ValidateDates() error {
	if d.TradeDate > d.ValueDate {
		return detailserr(DETAILS_ERR_DATE_ORDER, "value_date before trade_date")
	}
	if d.ValueDate > d.DeliveryDate {
		return detailserr(DETAILS_ERR_DATE_ORDER, "delivery_date before value_date")
	}
	return nil
}

// DetailsBuilder assembles TradeDetails field by field. Build rejects an
// incomplete builder with every missing field named.
type DetailsBuilder struct {
	entity       string
	counterparty string
	direction    Direction
	notional     *CurrencyAmount
	underlying   *CurrencyAmount
	tradeDate    *TimeStamp
	valueDate    *TimeStamp
	deliveryDate *TimeStamp
	strike       *Strike
}

func NewDetailsBuilder() *DetailsBuilder { return &DetailsBuilder{} }

func (b *DetailsBuilder) Entity(s string) *DetailsBuilder       { b.entity = s; return b }
func (b *DetailsBuilder) Counterparty(s string) *DetailsBuilder { b.counterparty = s; return b }
func (b *DetailsBuilder) Direction(d Direction) *DetailsBuilder { b.direction = d; return b }

func (b *DetailsBuilder) Notional(c Currency, amount uint64) *DetailsBuilder {
	b.notional = &CurrencyAmount{Currency: c, Amount: amount}
	return b
}

func (b *DetailsBuilder) Underlying(c Currency, amount uint64) *DetailsBuilder {
	b.underlying = &CurrencyAmount{Currency: c, Amount: amount}
	return b
}

func (b *DetailsBuilder) TradeDate(t time.Time) *DetailsBuilder {
	ts := TimeStampOf(t)
	b.tradeDate = &ts
	return b
}

func (b *DetailsBuilder) ValueDate(t time.Time) *DetailsBuilder {
	ts := TimeStampOf(t)
	b.valueDate = &ts
	return b
}

func (b *DetailsBuilder) DeliveryDate(t time.Time) *DetailsBuilder {
	ts := TimeStampOf(t)
	b.deliveryDate = &ts
	return b
}

func (b *DetailsBuilder) Strike(s Strike) *DetailsBuilder { b.strike = &s; return b }

// Build validates completeness then the details invariant.
func (b *DetailsBuilder) Build() (*TradeDetails, error) {
	if b == nil {
		return nil, detailserr(DETAILS_ERR_MISSING, "nil builder")
	}
	var missing []string
	if strings.TrimSpace(b.entity) == "" {
		missing = append(missing, "entity")
	}
	if strings.TrimSpace(b.counterparty) == "" {
		missing = append(missing, "counterparty")
	}
	if !b.direction.Valid() {
		missing = append(missing, "direction")
	}
	if b.notional == nil {
		missing = append(missing, "notional")
	}
	if b.underlying == nil {
		missing = append(missing, "underlying")
	}
	if b.tradeDate == nil {
		missing = append(missing, "trade_date")
	}
	if b.valueDate == nil {
		missing = append(missing, "value_date")
	}
	if b.deliveryDate == nil {
		missing = append(missing, "delivery_date")
	}
	if len(missing) > 0 {
		return nil, &InvalidDetails{Code: DETAILS_ERR_MISSING, Missing: missing}
	}

	d := &TradeDetails{
		Entity:       b.entity,
		Counterparty: b.counterparty,
		Direction:    b.direction,
		Notional:     *b.notional,
		Underlying:   *b.underlying,
		TradeDate:    *b.tradeDate,
		ValueDate:    *b.valueDate,
		DeliveryDate: *b.deliveryDate,
	}
	if b.strike != nil {
		s := *b.strike
		d.Strike = &s
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}
