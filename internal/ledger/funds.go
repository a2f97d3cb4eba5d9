package ledger

import (
	"log/slog"

	"token_market/internal/domain"

	"github.com/shopspring/decimal"
)

// Deposit credits value to holder's payment balance. Deposits are the only way
// payment value enters the system, so like issuance they are administrator only.
func (tx *Tx) Deposit(caller, holder domain.Identity, value decimal.Decimal) error {
	const op = "deposit"
	tx.mustBeOpen()

	if err := tx.l.requireAdministrator(caller); err != nil {
		return domain.NewOperationError(op, err)
	}
	if err := requireIdentities(holder); err != nil {
		return domain.NewOperationError(op, err)
	}
	if err := domain.ValidateValue(value); err != nil {
		return domain.NewOperationError(op, err)
	}

	tx.setFunds(holder, tx.l.fundsOf(holder).Add(value))
	return nil
}

// Withdraw debits value from the caller's payment balance.
func (tx *Tx) Withdraw(caller domain.Identity, value decimal.Decimal) error {
	const op = "withdraw"
	tx.mustBeOpen()

	if err := requireIdentities(caller); err != nil {
		return domain.NewOperationError(op, err)
	}
	if err := domain.ValidateValue(value); err != nil {
		return domain.NewOperationError(op, err)
	}

	balance := tx.l.fundsOf(caller)
	if balance.LessThan(value) {
		return domain.NewOperationError(op, domain.ErrInsufficientFunds)
	}
	tx.setFunds(caller, balance.Sub(value))
	return nil
}

// TransferFunds moves payment value between identities. Only the owner of the
// funds may move them; asset approvals do not extend to payment balances.
func (tx *Tx) TransferFunds(caller, from, to domain.Identity, value decimal.Decimal) error {
	const op = "transfer_funds"
	tx.mustBeOpen()

	if err := requireIdentities(caller, from, to); err != nil {
		return domain.NewOperationError(op, err)
	}
	if caller != from {
		return domain.NewOperationError(op, domain.ErrUnauthorized)
	}
	if err := domain.ValidateValue(value); err != nil {
		return domain.NewOperationError(op, err)
	}

	fromBalance := tx.l.fundsOf(from)
	if fromBalance.LessThan(value) {
		return domain.NewOperationError(op, domain.ErrInsufficientFunds)
	}
	if from == to {
		return nil
	}

	tx.setFunds(from, fromBalance.Sub(value))
	tx.setFunds(to, tx.l.fundsOf(to).Add(value))

	slog.Debug("ledger "+op,
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("value", value.String()))
	return nil
}
