package pricing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 14, 0, 0, 0, time.UTC)
}

func r1Line() Line {
	return Line{
		NightlyRate: NewFromInt(700000),
		Capacity:    2,
		CheckIn:     day(2025, time.June, 10),
		CheckOut:    day(2025, time.June, 12),
		Adults:      2,
	}
}

func TestQuoteHighSeasonNoPromotion(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	b, err := e.Quote(r1Line(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, b.Nights)
	assert.Equal(t, "1400000", b.BasePrice.String())
	assert.Equal(t, "420000", b.SeasonalSurcharge.String())
	assert.Equal(t, "0", b.GuestSurcharge.String())
	assert.Equal(t, "1820000", b.Subtotal.String())
	assert.Equal(t, "182000", b.VAT.String())
	assert.Equal(t, "0", b.Discount.String())
	assert.Equal(t, "2002000", b.Total.String())
}

func TestQuoteFixedPromotionOnlyMovesDiscountAndTotal(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	plain, err := e.Quote(r1Line(), nil)
	require.NoError(t, err)
	promo := &Promotion{Code: "SUMMER100", Kind: KindFixed, Value: NewFromInt(100000)}
	disc, err := e.Quote(r1Line(), promo)
	require.NoError(t, err)

	assert.Equal(t, "1902000", disc.Total.String())
	assert.Equal(t, "100000", disc.Discount.String())
	assert.Equal(t, 0, plain.BasePrice.Cmp(disc.BasePrice))
	assert.Equal(t, 0, plain.SeasonalSurcharge.Cmp(disc.SeasonalSurcharge))
	assert.Equal(t, 0, plain.GuestSurcharge.Cmp(disc.GuestSurcharge))
	assert.Equal(t, 0, plain.VAT.Cmp(disc.VAT))
}

func TestQuotePercentPromotion(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	promo := &Promotion{Code: "TEN", Kind: KindPercent, Value: NewFromInt(10)}
	b, err := e.Quote(r1Line(), promo)
	require.NoError(t, err)
	assert.Equal(t, "200200", b.Discount.String())
	assert.Equal(t, "1801800", b.Total.String())
}

func TestQuoteDiscountCappedAtGross(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	promo := &Promotion{Code: "ALL", Kind: KindFixed, Value: NewFromInt(9000000)}
	b, err := e.Quote(r1Line(), promo)
	require.NoError(t, err)
	assert.Equal(t, "2002000", b.Discount.String())
	assert.True(t, b.Total.IsZero())
}

func TestQuoteSeasonsAndGuests(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	tests := []struct {
		name     string
		line     Line
		seasonal string
		guest    string
		total    string
	}{
		{
			name: "peak month",
			line: Line{NightlyRate: NewFromInt(500000), Capacity: 2, CheckIn: day(2025, time.December, 30), CheckOut: day(2026, time.January, 1), Adults: 2},
			// base 1,000,000 peak +50%
			seasonal: "500000", guest: "0", total: "1650000",
		},
		{
			name:     "off season with extra guests",
			line:     Line{NightlyRate: NewFromInt(500000), Capacity: 2, CheckIn: day(2025, time.October, 1), CheckOut: day(2025, time.October, 2), Adults: 2, Children: 2},
			seasonal: "0", guest: "300000", total: "880000",
		},
		{
			name: "partial day counts as a night",
			line: Line{NightlyRate: NewFromInt(333333), Capacity: 1, CheckIn: day(2025, time.March, 1), CheckOut: day(2025, time.March, 1).Add(30 * time.Hour), Adults: 1},
			// 2 nights = 666666, vat 66666.6, total rounds half up
			seasonal: "0", guest: "0", total: "733333",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := e.Quote(tt.line, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.seasonal, b.SeasonalSurcharge.String())
			assert.Equal(t, tt.guest, b.GuestSurcharge.String())
			assert.Equal(t, tt.total, b.Total.String())
		})
	}
}

func TestQuoteRejectsEmptyStay(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	l := r1Line()
	l.CheckOut = l.CheckIn
	_, err := e.Quote(l, nil)
	require.ErrorIs(t, err, ErrInvalidStay)
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "3", MustParse("2.5").Round().String())
	assert.Equal(t, "2", MustParse("2.4999").Round().String())
	assert.Equal(t, "-3", MustParse("-2.5").Round().String())
}

func TestDecimalScanAndJSON(t *testing.T) {
	var d Decimal
	require.NoError(t, d.Scan([]byte("700000.0000")))
	assert.Equal(t, "700000", d.String())
	require.NoError(t, d.Scan(float64(0.3)))
	assert.Equal(t, "0.3", d.String())
	require.NoError(t, d.Scan(int64(42)))
	assert.Equal(t, "42", d.String())

	v, err := MustParse("182000").Value()
	require.NoError(t, err)
	assert.Equal(t, "182000.0000", v)

	out, err := json.Marshal(struct {
		Total Decimal `json:"total"`
	}{NewFromInt(2002000)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":2002000}`, string(out))

	var in struct {
		Amount Decimal `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"1902000"}`), &in))
	assert.Equal(t, "1902000", in.Amount.String())
}

func TestLoadPolicyOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	body := "peak_months: [4, 5]\nvat_rate: \"0.08\"\nextra_guest_fee: \"200000\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.True(t, p.PeakMonths[time.April])
	assert.False(t, p.PeakMonths[time.December])
	assert.True(t, p.HighMonths[time.June])
	assert.Equal(t, "0.08", p.VATRate.String())
	assert.Equal(t, "200000", p.ExtraGuestFee.String())
	assert.Equal(t, "0.5", p.SeasonalRate(time.May).String())
}

func TestLoadPolicyRejectsBadMonth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("high_months: [13]\n"), 0o644))
	_, err := LoadPolicy(path)
	require.Error(t, err)
}

func TestLoadPolicyEmptyPathUsesDefaults(t *testing.T) {
	p, err := LoadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, "0.1", p.VATRate.String())
}
