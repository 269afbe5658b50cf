package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// TokenDecimals is the precision of the stable token contract (USDT-style).
const TokenDecimals int32 = 6

// AmountFromUnits converts an on-chain integer token amount to a decimal
// token amount. The conversion is exact.
func AmountFromUnits(units *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(units, -TokenDecimals)
}

// UnitsFromAmount converts a decimal token amount back to integer contract
// units, truncating any precision below the token's smallest unit.
func UnitsFromAmount(amount decimal.Decimal) *big.Int {
	return amount.Shift(TokenDecimals).Truncate(0).BigInt()
}
