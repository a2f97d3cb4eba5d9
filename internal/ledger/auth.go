package ledger

import "token_market/internal/domain"

// requireAdministrator guards privileged operations.
func (l *Ledger) requireAdministrator(caller domain.Identity) error {
	if caller != l.admin {
		return domain.ErrUnauthorized
	}
	return nil
}

// requireOperator passes when caller owns the balances or holds an approval from owner.
func (l *Ledger) requireOperator(caller, owner domain.Identity) error {
	if caller == owner || l.approvals[owner][caller] {
		return nil
	}
	return domain.ErrUnauthorized
}

func requireIdentities(ids ...domain.Identity) error {
	for _, id := range ids {
		if !id.Valid() {
			return domain.ErrInvalidIdentity
		}
	}
	return nil
}
