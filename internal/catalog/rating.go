package catalog

import (
	"github.com/shopspring/decimal"
)

const (
	MinRating = 1
	MaxRating = 5
)

func ValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}

// NextRating folds one new rating into a running mean and rounds the result to one decimal.
func NextRating(mean float64, count int, rating int) (float64, int) {
	if count < 0 {
		count = 0
	}
	total := decimal.NewFromFloat(mean).Mul(decimal.NewFromInt(int64(count))).Add(decimal.NewFromInt(int64(rating)))
	newCount := count + 1
	next, _ := total.Div(decimal.NewFromInt(int64(newCount))).Round(1).Float64()
	return next, newCount
}
