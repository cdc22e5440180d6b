package pricing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// storageScale is the number of fractional digits persisted for money
// columns (DECIMAL(18,4)).
const storageScale = 4

// Decimal is an exact, immutable monetary amount backed by big.Rat. The zero
// value is 0. All arithmetic returns a new Decimal; rounding only happens
// through Round.
type Decimal struct {
	r *big.Rat
}

// Zero is the additive identity.
var Zero = Decimal{}

// NewFromInt returns v as a Decimal.
func NewFromInt(v int64) Decimal {
	return Decimal{r: new(big.Rat).SetInt64(v)}
}

// NewFromFrac returns num/den as a Decimal. den must be non-zero.
func NewFromFrac(num, den int64) Decimal {
	return Decimal{r: big.NewRat(num, den)}
}

// Parse reads a decimal literal such as "700000", "0.30" or "1e3".
func Parse(s string) (Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Decimal{}, fmt.Errorf("pricing: empty decimal")
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Decimal{}, fmt.Errorf("pricing: invalid decimal %q", s)
	}
	return Decimal{r: r}, nil
}

// MustParse is Parse for constants; it panics on malformed input.
func MustParse(s string) Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Decimal) rat() *big.Rat {
	if d.r == nil {
		return new(big.Rat)
	}
	return d.r
}

func (d Decimal) Add(o Decimal) Decimal { return Decimal{r: new(big.Rat).Add(d.rat(), o.rat())} }
func (d Decimal) Sub(o Decimal) Decimal { return Decimal{r: new(big.Rat).Sub(d.rat(), o.rat())} }
func (d Decimal) Mul(o Decimal) Decimal { return Decimal{r: new(big.Rat).Mul(d.rat(), o.rat())} }

// MulInt multiplies by an integer factor.
func (d Decimal) MulInt(n int64) Decimal {
	return Decimal{r: new(big.Rat).Mul(d.rat(), new(big.Rat).SetInt64(n))}
}

// Cmp compares d and o and returns -1, 0 or +1.
func (d Decimal) Cmp(o Decimal) int { return d.rat().Cmp(o.rat()) }

func (d Decimal) Sign() int    { return d.rat().Sign() }
func (d Decimal) IsZero() bool { return d.Sign() == 0 }

// Min returns the smaller of d and o.
func (d Decimal) Min(o Decimal) Decimal {
	if d.Cmp(o) <= 0 {
		return d
	}
	return o
}

// Round rounds to the nearest whole currency unit, half away from zero.
func (d Decimal) Round() Decimal {
	r := d.rat()
	num := new(big.Int).Abs(r.Num())
	den := r.Denom()
	q, m := new(big.Int).QuoRem(num, den, new(big.Int))
	if m.Lsh(m, 1).Cmp(den) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	if r.Sign() < 0 {
		q.Neg(q)
	}
	return Decimal{r: new(big.Rat).SetInt(q)}
}

// Int64 returns the integral part of d. Intended for whole-unit amounts.
func (d Decimal) Int64() int64 {
	r := d.rat()
	return new(big.Int).Quo(r.Num(), r.Denom()).Int64()
}

// String renders d without trailing fractional zeros, e.g. "2002000" or "0.3".
func (d Decimal) String() string {
	r := d.rat()
	if r.IsInt() {
		return r.Num().String()
	}
	s := r.FloatString(storageScale)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// MarshalJSON encodes d as a JSON number.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (d *Decimal) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*d = Decimal{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = str
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Value stores d as a fixed-scale decimal string.
func (d Decimal) Value() (driver.Value, error) {
	return d.rat().FloatString(storageScale), nil
}

// Scan reads DECIMAL columns as returned by the MySQL and SQLite drivers.
func (d *Decimal) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Decimal{}
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	case int64:
		*d = NewFromInt(v)
		return nil
	case float64:
		return d.scanString(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return fmt.Errorf("pricing: cannot scan %T into Decimal", src)
	}
}

func (d *Decimal) scanString(s string) error {
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
