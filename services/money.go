package services

import "github.com/shopspring/decimal"

// MoneyPrecision is the number of decimal places carried on monetary amounts
const MoneyPrecision = 4

// roundMoney normalizes an amount to the canonical money precision,
// half up
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPrecision)
}

// moneyFloat converts a normalized decimal back to the float64 the storage
// layer persists
func moneyFloat(d decimal.Decimal) float64 {
	f, _ := roundMoney(d).Float64()
	return f
}
