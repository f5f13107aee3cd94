package valueobject

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
)

// minorUnits число знаков после запятой для валют, отличающихся от стандартных двух.
var minorUnits = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"CLP": 0,
	"ISK": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
	"JOD": 3,
	"TND": 3,
}

// MinorUnits возвращает количество знаков минорной единицы валюты по ISO 4217.
func MinorUnits(currency string) int32 {
	if units, ok := minorUnits[strings.ToUpper(currency)]; ok {
		return units
	}
	return 2
}

type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney проверяет сумму и валюту. Сумма не может содержать долей мельче минорной единицы.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "валюта должна быть кодом ISO 4217")
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return Money{}, apperror.New(apperror.ErrCodeValidation, "валюта должна быть кодом ISO 4217")
		}
	}
	if amount.IsNegative() {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "сумма не может быть отрицательной")
	}
	if !amount.Equal(amount.Round(MinorUnits(currency))) {
		return Money{}, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("сумма в %s не может иметь более %d знаков после запятой", currency, MinorUnits(currency)))
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// RoundToMinor округляет сумму до минорной единицы валюты по правилу half-up.
func RoundToMinor(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(MinorUnits(currency))
}

// ToMinorUnits переводит сумму в целое число минорных единиц (для платёжного шлюза).
func (m Money) ToMinorUnits() int64 {
	return m.Amount.Shift(MinorUnits(m.Currency)).IntPart()
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(MinorUnits(m.Currency)), m.Currency)
}

// FeeSplit разбиение суммы сделки на комиссию платформы и выплату исполнителю.
type FeeSplit struct {
	Agreed   decimal.Decimal
	Fee      decimal.Decimal
	Payout   decimal.Decimal
	FeeRate  decimal.Decimal
	Currency string
}

// SplitFee считает комиссию от суммы с округлением half-up до минорной единицы.
// Выплата считается как разность, поэтому payout + fee == agreed без дрейфа.
func SplitFee(agreed decimal.Decimal, currency string, feeRate decimal.Decimal) FeeSplit {
	fee := RoundToMinor(agreed.Mul(feeRate), currency)
	return FeeSplit{
		Agreed:   agreed,
		Fee:      fee,
		Payout:   agreed.Sub(fee),
		FeeRate:  feeRate,
		Currency: currency,
	}
}
