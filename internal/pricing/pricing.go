// Package pricing единственный источник денежных сумм заявки.
//
// Все суммы в минимальных единицах валюты (копейки/центы), поэтому
// округление до двух знаков после запятой - это округление до целого.
package pricing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRate базовая ставка должна быть положительной
var ErrInvalidRate = errors.New("invalid rate")

// FeePercent комиссия платформы с каждой стороны
const FeePercent = 10

// Breakdown разбивка суммы, всегда выводится из базовой ставки
type Breakdown struct {
	BaseRate    int64 `json:"base_rate"`
	Fee         int64 `json:"fee"`
	PayerAmount int64 `json:"payer_amount"`
	PayeeAmount int64 `json:"payee_amount"`
}

// Calculate считает комиссию, сумму к оплате и сумму к выплате.
// Инвариант: PayerAmount - PayeeAmount == 2 * Fee.
func Calculate(baseRate int64) (Breakdown, error) {
	if baseRate <= 0 {
		return Breakdown{}, fmt.Errorf("%w: %d", ErrInvalidRate, baseRate)
	}

	fee := roundHalfAwayFromZero(baseRate*FeePercent, 100)

	return Breakdown{
		BaseRate:    baseRate,
		Fee:         fee,
		PayerAmount: baseRate + fee,
		PayeeAmount: baseRate - fee,
	}, nil
}

// roundHalfAwayFromZero делит num на den с округлением половины от нуля
func roundHalfAwayFromZero(num, den int64) int64 {
	q, r := num/den, num%den
	if r < 0 {
		r = -r
	}
	if 2*r >= den {
		if num < 0 {
			return q - 1
		}
		return q + 1
	}
	return q
}

// ParseAmount переводит "110.00" в 11000
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimals", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}

	v := units*100 + cents
	if neg {
		v = -v
	}
	return v, nil
}

// FormatAmount переводит 11000 в "110.00"
func FormatAmount(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
