package pricing

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy is the pricing table applied to every booking line.
type Policy struct {
	PeakMonths    map[time.Month]bool
	HighMonths    map[time.Month]bool
	PeakRate      Decimal
	HighRate      Decimal
	VATRate       Decimal
	ExtraGuestFee Decimal
}

// DefaultPolicy: Tết and year-end holidays are peak, summer is high season.
func DefaultPolicy() Policy {
	return Policy{
		PeakMonths:    monthSet(time.December, time.January, time.February),
		HighMonths:    monthSet(time.June, time.July, time.August),
		PeakRate:      NewFromFrac(50, 100),
		HighRate:      NewFromFrac(30, 100),
		VATRate:       NewFromFrac(10, 100),
		ExtraGuestFee: NewFromInt(150000),
	}
}

// SeasonalRate returns the surcharge rate for a check-in month. Peak wins
// when a month is listed in both sets.
func (p Policy) SeasonalRate(m time.Month) Decimal {
	switch {
	case p.PeakMonths[m]:
		return p.PeakRate
	case p.HighMonths[m]:
		return p.HighRate
	default:
		return Zero
	}
}

// policyFile mirrors the YAML representation of the pricing policy. Omitted
// keys keep their default.
type policyFile struct {
	PeakMonths    []int  `yaml:"peak_months"`
	HighMonths    []int  `yaml:"high_months"`
	PeakRate      string `yaml:"peak_rate"`
	HighRate      string `yaml:"high_rate"`
	VATRate       string `yaml:"vat_rate"`
	ExtraGuestFee string `yaml:"extra_guest_fee"`
}

// LoadPolicy reads a pricing policy from a YAML file on disk. An empty path
// returns DefaultPolicy.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return Policy{}, fmt.Errorf("open pricing policy: %w", err)
	}
	defer file.Close()

	var pf policyFile
	if err := yaml.NewDecoder(file).Decode(&pf); err != nil {
		return Policy{}, fmt.Errorf("decode pricing policy: %w", err)
	}
	return pf.apply(p)
}

func (pf policyFile) apply(p Policy) (Policy, error) {
	if pf.PeakMonths != nil {
		set, err := parseMonths(pf.PeakMonths)
		if err != nil {
			return Policy{}, fmt.Errorf("peak_months: %w", err)
		}
		p.PeakMonths = set
	}
	if pf.HighMonths != nil {
		set, err := parseMonths(pf.HighMonths)
		if err != nil {
			return Policy{}, fmt.Errorf("high_months: %w", err)
		}
		p.HighMonths = set
	}
	fields := []struct {
		name string
		raw  string
		dst  *Decimal
	}{
		{"peak_rate", pf.PeakRate, &p.PeakRate},
		{"high_rate", pf.HighRate, &p.HighRate},
		{"vat_rate", pf.VATRate, &p.VATRate},
		{"extra_guest_fee", pf.ExtraGuestFee, &p.ExtraGuestFee},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := Parse(f.raw)
		if err != nil {
			return Policy{}, fmt.Errorf("%s: %w", f.name, err)
		}
		if v.Sign() < 0 {
			return Policy{}, fmt.Errorf("%s must not be negative", f.name)
		}
		*f.dst = v
	}
	return p, nil
}

func parseMonths(ms []int) (map[time.Month]bool, error) {
	out := make(map[time.Month]bool, len(ms))
	for _, m := range ms {
		if m < 1 || m > 12 {
			return nil, fmt.Errorf("invalid month %d", m)
		}
		out[time.Month(m)] = true
	}
	return out, nil
}

func monthSet(ms ...time.Month) map[time.Month]bool {
	out := make(map[time.Month]bool, len(ms))
	for _, m := range ms {
		out[m] = true
	}
	return out
}
