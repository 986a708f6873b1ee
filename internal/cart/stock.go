package cart

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfStock        = errors.New("out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// StockError reports how many more units of a variant can still go into the cart.
type StockError struct {
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("only %d left in stock", e.Available)
}

func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// CheckStock validates that inCart+requested units fit within stock.
// A nil stock is unlimited.
func CheckStock(stock *int, inCart, requested int) error {
	if stock == nil {
		return nil
	}
	if *stock <= 0 {
		return ErrOutOfStock
	}
	if inCart+requested <= *stock {
		return nil
	}
	available := *stock - inCart
	if available <= 0 {
		return ErrOutOfStock
	}
	return &StockError{Available: available}
}
