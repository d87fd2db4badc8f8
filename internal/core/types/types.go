// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ZeroMoney returns zero Money value.
func ZeroMoney() Money {
	return decimal.Zero
}

// BaseQty is a stock quantity in base units of a product's unit family.
// All ledger arithmetic happens on this type; fractional quantities exist
// only at the API edge and are converted through the unit resolver.
//
// Storage: BIGINT. Signed, so movement deltas and balances share the type.
type BaseQty = int64

// WeightedAverage returns the new moving average cost after receiving
// addQty units at addCost, given onHand units already at avgCost.
// Falls back to addCost when the resulting quantity is not positive.
func WeightedAverage(onHand BaseQty, avgCost Money, addQty BaseQty, addCost Money) Money {
	total := onHand + addQty
	if total <= 0 {
		return addCost
	}
	current := avgCost.Mul(decimal.NewFromInt(onHand))
	incoming := addCost.Mul(decimal.NewFromInt(addQty))
	return current.Add(incoming).Div(decimal.NewFromInt(total)).Round(4)
}
