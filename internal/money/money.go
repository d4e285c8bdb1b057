// Package money переводит суммы между API-представлением и целыми минимальными единицами хранения.
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Scale задаёт количество знаков после запятой в минимальной единице валюты.
const Scale = 2

// ErrPrecision возвращается, если сумма содержит доли минимальной единицы.
var ErrPrecision = errors.New("amount has more than 2 decimal places")

// ErrOutOfRange возвращается, если сумма в минимальных единицах не помещается в int64.
var ErrOutOfRange = errors.New("amount is out of range")

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// ToMinor переводит десятичную сумму в минимальные единицы.
func ToMinor(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(Scale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %s", ErrPrecision, d.String())
	}
	if shifted.GreaterThan(maxMinor) || shifted.LessThan(minMinor) {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, d.String())
	}
	return shifted.IntPart(), nil
}

// FromMinor переводит сумму в минимальных единицах в десятичное значение.
func FromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -Scale)
}
