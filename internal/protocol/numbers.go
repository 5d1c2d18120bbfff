package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
)

// Score is an arbitrary-precision signed integer. A Score is immutable; the
// zero value is 0.
type Score struct {
	i *big.Int
}

// NewScore returns a Score holding n.
func NewScore(n int64) Score {
	return Score{i: big.NewInt(n)}
}

const (
	// MaxScoreDigits bounds the decimal length of a score's integer part.
	MaxScoreDigits = 400
	// maxScoreBits covers every MaxScoreDigits-digit value.
	maxScoreBits = 1329
	// maxScoreLiteral bounds the raw literal, leaving room for a sign, a
	// fraction and an exponent.
	maxScoreLiteral = 2 * MaxScoreDigits
)

// ParseScore parses a decimal integer, or a decimal/exponent literal which is
// truncated toward zero. Values with more than MaxScoreDigits digits are
// rejected with ErrMalformed.
func ParseScore(s string) (Score, error) {
	if len(s) > maxScoreLiteral {
		return Score{}, fmt.Errorf("%w: score literal too long (%d bytes)", ErrMalformed, len(s))
	}
	if i, ok := new(big.Int).SetString(s, 10); ok {
		if i.BitLen() > maxScoreBits {
			return Score{}, fmt.Errorf("%w: score exceeds %d digits", ErrMalformed, MaxScoreDigits)
		}
		return Score{i: i}, nil
	}
	f, _, err := big.ParseFloat(s, 10, 4096, big.ToZero)
	if err != nil {
		return Score{}, fmt.Errorf("%w: parse score %q: %v", ErrMalformed, s, err)
	}
	if f.IsInf() {
		return Score{}, fmt.Errorf("%w: parse score %q: infinite", ErrMalformed, s)
	}
	// |f| < 2^exp, so checking the exponent avoids expanding huge literals.
	if exp := f.MantExp(nil); exp > maxScoreBits {
		return Score{}, fmt.Errorf("%w: score exceeds %d digits", ErrMalformed, MaxScoreDigits)
	}
	i, _ := f.Int(nil)
	return Score{i: i}, nil
}

func (s Score) bigInt() *big.Int {
	if s.i == nil {
		return new(big.Int)
	}
	return s.i
}

// Cmp compares s and o and returns -1, 0 or +1.
func (s Score) Cmp(o Score) int {
	return s.bigInt().Cmp(o.bigInt())
}

// String returns the decimal form.
func (s Score) String() string {
	return s.bigInt().String()
}

// MarshalJSON encodes the score as a bare JSON number.
func (s Score) MarshalJSON() ([]byte, error) {
	return []byte(s.bigInt().String()), nil
}

// UnmarshalJSON accepts a JSON number or a string holding one.
func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = Score{}
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	parsed, err := ParseScore(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Int is an integer field that clients may send either as a JSON number or as
// a numeric string.
type Int int

// UnmarshalJSON accepts 3, 3.0 and "3". Values outside the int32 range are
// rejected.
func (n *Int) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	if v, err := strconv.ParseInt(raw, 10, 32); err == nil {
		*n = Int(v)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return fmt.Errorf("%w: not an integer: %s", ErrMalformed, raw)
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return fmt.Errorf("%w: integer out of range: %s", ErrMalformed, raw)
	}
	*n = Int(f)
	return nil
}
