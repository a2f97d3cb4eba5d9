package ledger

import (
	"errors"
	"testing"

	"token_market/internal/domain"

	"pgregory.net/rapid"
)

var holders = []domain.Identity{admin, alice, bob, "carol"}

// Every prefix of a random issue/transfer sequence keeps supply equal to the
// sum of balances, and a rejected transfer changes nothing.
func TestProperty_SupplyConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l, err := New(admin)
		if err != nil {
			t.Fatal(err)
		}

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			asset := domain.AssetID(rapid.Uint64Range(1, 3).Draw(t, "asset"))
			qty := rapid.Uint64Range(1, 500).Draw(t, "qty")

			if rapid.Bool().Draw(t, "issue") {
				caller := rapid.SampledFrom(holders).Draw(t, "issuer")
				target := rapid.SampledFrom(holders).Draw(t, "target")
				before := l.TotalSupply(asset)
				err := l.Issue(caller, target, asset, qty, "")
				if caller != admin {
					if !errors.Is(err, domain.ErrUnauthorized) {
						t.Fatalf("expected unauthorized issue by %s, got %v", caller, err)
					}
					if l.TotalSupply(asset) != before {
						t.Fatalf("rejected issue changed supply")
					}
				} else if err != nil {
					t.Fatalf("issue failed: %v", err)
				}
			} else {
				from := rapid.SampledFrom(holders).Draw(t, "from")
				to := rapid.SampledFrom(holders).Draw(t, "to")
				fromBefore, toBefore := l.BalanceOf(from, asset), l.BalanceOf(to, asset)

				err := l.Transfer(from, from, to, asset, qty, "")
				switch {
				case fromBefore < qty:
					if !errors.Is(err, domain.ErrInsufficientBalance) {
						t.Fatalf("expected insufficient balance, got %v", err)
					}
					if l.BalanceOf(from, asset) != fromBefore || l.BalanceOf(to, asset) != toBefore {
						t.Fatalf("rejected transfer changed balances")
					}
				case err != nil:
					t.Fatalf("transfer failed: %v", err)
				case from != to && l.BalanceOf(from, asset)+l.BalanceOf(to, asset) != fromBefore+toBefore:
					t.Fatalf("transfer did not conserve the pair sum")
				}
			}

			for a := domain.AssetID(1); a <= 3; a++ {
				var sum uint64
				for _, h := range holders {
					sum += l.BalanceOf(h, a)
				}
				if sum != l.TotalSupply(a) {
					t.Fatalf("asset %d: supply %d != sum %d", a, l.TotalSupply(a), sum)
				}
			}
		}
	})
}
