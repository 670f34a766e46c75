package gateway

import (
	"math"
	"strconv"
)

// NoMaxAmount disables the upper bound check.
const NoMaxAmount = math.MaxFloat64

// CleanAmount normalizes a decimal amount string against backend bounds.
// When cents is true the amount is converted to an integer minor-unit string
// ("10.00" -> "1000"), otherwise it is reformatted with two decimals.
func CleanAmount(value string, minAmount, maxAmount float64, cents bool) (string, error) {
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return "", &AmountError{Value: value, Message: "not a number"}
	}
	if amount <= minAmount {
		return "", &AmountError{Value: value, Message: "too small"}
	}
	if amount > maxAmount {
		return "", &AmountError{Value: value, Message: "too large"}
	}
	if cents {
		return strconv.FormatInt(int64(math.Round(amount*100)), 10), nil
	}
	return strconv.FormatFloat(amount, 'f', 2, 64), nil
}
