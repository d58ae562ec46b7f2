package market

import "errors"

var (
	// ErrInvalidItemSymbol is returned when an item symbol is empty.
	ErrInvalidItemSymbol = errors.New("invalid item symbol")

	// ErrInvalidPrice is returned when a price/value is negative.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInvalidQuantity is returned when an order quantity is not positive.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrUnknownItem is returned when an operation references an item with
	// no registered book.
	ErrUnknownItem = errors.New("unknown item")
)
