package domain

import "errors"

var (
	// ErrUnauthorized is returned when the caller lacks the privilege for an operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInsufficientBalance is returned when a transfer or escrow step asks for more than the source holds.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOrderNotFound is returned when the referenced order id does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInsufficientOrderQuantity is returned when a fill exceeds the order's remaining quantity.
	ErrInsufficientOrderQuantity = errors.New("insufficient order quantity")

	// ErrIncorrectPayment is returned when the payment differs from fill quantity times unit price.
	ErrIncorrectPayment = errors.New("incorrect payment")

	// ErrInsufficientFunds is returned when a payment balance cannot cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrInvalidIdentity = errors.New("invalid identity")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidPrice    = errors.New("invalid price")
	ErrInvalidValue    = errors.New("invalid value")

	// ErrOverflow is returned when an issuance would exceed the representable quantity.
	ErrOverflow = errors.New("quantity overflow")

	ErrUnknownCommand = errors.New("unknown command")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)

// OperationError ties a failure to the operation that produced it.
type OperationError struct {
	Op  string // e.g. "transfer", "post_buy_order"
	Err error
}

func (e *OperationError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError wraps err with the operation name.
func NewOperationError(op string, err error) *OperationError {
	return &OperationError{Op: op, Err: err}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrUnauthorized, "UNAUTHORIZED"},
	{ErrInsufficientBalance, "INSUFFICIENT_BALANCE"},
	{ErrOrderNotFound, "ORDER_NOT_FOUND"},
	{ErrInsufficientOrderQuantity, "INSUFFICIENT_ORDER_QUANTITY"},
	{ErrIncorrectPayment, "INCORRECT_PAYMENT"},
	{ErrInsufficientFunds, "INSUFFICIENT_FUNDS"},
	{ErrInvalidIdentity, "INVALID_IDENTITY"},
	{ErrInvalidQuantity, "INVALID_QUANTITY"},
	{ErrInvalidPrice, "INVALID_PRICE"},
	{ErrInvalidValue, "INVALID_VALUE"},
	{ErrOverflow, "OVERFLOW"},
	{ErrUnknownCommand, "UNKNOWN_COMMAND"},
}

// Code maps an error to its stable wire code. Nil maps to "" and
// unclassified errors to "INTERNAL".
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}
