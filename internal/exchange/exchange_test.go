package exchange

import (
	"testing"
	"time"

	"token_market/internal/domain"
	"token_market/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	owner  = domain.Identity("owner")
	buyer  = domain.Identity("addr1")
	market = domain.Identity("token-market")

	tokenID  = domain.AssetID(1)
	quantity = uint64(100)
)

var sellPrice = domain.MustEther("0.1")

// newMarket sets up a listing-ready market: the owner approves the market,
// holds 100 units of token 1 and the buyer has 10 ether to spend.
func newMarket(t *testing.T) (*Exchange, *ledger.Ledger) {
	t.Helper()

	l, err := ledger.New(owner)
	require.NoError(t, err)
	ex, err := New(l, market)
	require.NoError(t, err)
	ex.now = func() time.Time { return time.UnixMicro(1_700_000_000_000_000) }

	require.NoError(t, l.SetApprovalForAll(owner, market, true))
	require.NoError(t, l.Issue(owner, owner, tokenID, quantity, "0x00"))
	require.NoError(t, l.Deposit(owner, buyer, domain.MustEther("10")))
	return ex, l
}

func TestNew_Validation(t *testing.T) {
	l, err := ledger.New(owner)
	require.NoError(t, err)

	_, err = New(l, "")
	require.ErrorIs(t, err, domain.ErrInvalidIdentity)

	_, err = New(l, owner)
	require.ErrorIs(t, err, domain.ErrInvalidIdentity)
}

func TestPostSellOrder(t *testing.T) {
	t.Run("updates order book", func(t *testing.T) {
		ex, _ := newMarket(t)
		for i := 0; i < 3; i++ {
			id, err := ex.PostSellOrder(owner, tokenID, 1, sellPrice)
			require.NoError(t, err)
			require.Equal(t, uint64(i), id)
		}
		require.Len(t, ex.GetOrderBook(), 3)
	})

	t.Run("fails without balance", func(t *testing.T) {
		ex, _ := newMarket(t)
		_, err := ex.PostSellOrder(owner, tokenID+1, 1, sellPrice)
		require.ErrorIs(t, err, domain.ErrInsufficientBalance)
		require.Empty(t, ex.GetOrderBook())
	})

	t.Run("escrows into the market identity", func(t *testing.T) {
		ex, l := newMarket(t)
		_, err := ex.PostSellOrder(owner, tokenID, 1, sellPrice)
		require.NoError(t, err)

		require.Equal(t, quantity-1, l.BalanceOf(owner, tokenID))
		require.Equal(t, uint64(1), l.BalanceOf(market, tokenID))
		require.Equal(t, quantity, l.TotalSupply(tokenID))
	})

	t.Run("requires approval of the market", func(t *testing.T) {
		ex, l := newMarket(t)
		require.NoError(t, l.SetApprovalForAll(owner, market, false))

		_, err := ex.PostSellOrder(owner, tokenID, 1, sellPrice)
		require.ErrorIs(t, err, domain.ErrUnauthorized)
		require.Empty(t, ex.GetOrderBook())
		require.Equal(t, quantity, l.BalanceOf(owner, tokenID))
	})

	t.Run("rejects bad parameters", func(t *testing.T) {
		ex, _ := newMarket(t)

		_, err := ex.PostSellOrder(owner, tokenID, 0, sellPrice)
		require.ErrorIs(t, err, domain.ErrInvalidQuantity)

		for _, price := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-1), decimal.RequireFromString("0.5")} {
			_, err = ex.PostSellOrder(owner, tokenID, 1, price)
			require.ErrorIs(t, err, domain.ErrInvalidPrice)
		}

		_, err = ex.PostSellOrder(market, tokenID, 1, sellPrice)
		require.ErrorIs(t, err, domain.ErrUnauthorized)

		require.Empty(t, ex.GetOrderBook())
	})

	t.Run("failed listing does not consume an id", func(t *testing.T) {
		ex, _ := newMarket(t)
		_, err := ex.PostSellOrder(owner, tokenID, quantity+1, sellPrice)
		require.ErrorIs(t, err, domain.ErrInsufficientBalance)

		id, err := ex.PostSellOrder(owner, tokenID, 1, sellPrice)
		require.NoError(t, err)
		require.Zero(t, id)
	})
}

func TestPostBuyOrder(t *testing.T) {
	t.Run("transfers tokens to buyer and payment to seller", func(t *testing.T) {
		ex, l := newMarket(t)
		sellerStart := l.FundsOf(owner)

		_, err := ex.PostSellOrder(owner, tokenID, 1, sellPrice)
		require.NoError(t, err)

		require.NoError(t, ex.PostBuyOrder(buyer, 0, 1, domain.MustEther("0.1")))

		require.True(t, l.FundsOf(owner).Sub(sellerStart).Equal(domain.MustEther("0.1")))
		require.Equal(t, uint64(1), l.BalanceOf(buyer, tokenID))
		require.True(t, l.FundsOf(buyer).Equal(domain.MustEther("9.9")))
		require.Zero(t, l.BalanceOf(market, tokenID))

		o, ok := ex.Order(0)
		require.True(t, ok)
		require.Zero(t, o.Remaining)
		require.Equal(t, domain.OrderStatusFilled, o.Status())
	})

	t.Run("partial fills decrement remaining", func(t *testing.T) {
		ex, l := newMarket(t)
		_, err := ex.PostSellOrder(owner, tokenID, 10, sellPrice)
		require.NoError(t, err)

		require.NoError(t, ex.PostBuyOrder(buyer, 0, 4, domain.MustEther("0.4")))
		o, _ := ex.Order(0)
		require.Equal(t, uint64(6), o.Remaining)
		require.Equal(t, uint64(6), l.BalanceOf(market, tokenID))
		require.Equal(t, uint64(6), ex.Escrowed(tokenID))

		require.NoError(t, ex.PostBuyOrder(buyer, 0, 6, domain.MustEther("0.6")))
		require.Empty(t, ex.OpenOrders())
		require.Len(t, ex.GetOrderBook(), 1)
		require.Equal(t, uint64(10), l.BalanceOf(buyer, tokenID))
		require.True(t, l.FundsOf(owner).Equal(domain.MustEther("1")))
	})

	t.Run("unknown order", func(t *testing.T) {
		ex, _ := newMarket(t)
		err := ex.PostBuyOrder(buyer, 0, 1, sellPrice)
		require.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("fill beyond remaining", func(t *testing.T) {
		ex, l := newMarket(t)
		_, err := ex.PostSellOrder(owner, tokenID, 2, sellPrice)
		require.NoError(t, err)

		err = ex.PostBuyOrder(buyer, 0, 3, domain.MustEther("0.3"))
		require.ErrorIs(t, err, domain.ErrInsufficientOrderQuantity)
		o, _ := ex.Order(0)
		require.Equal(t, uint64(2), o.Remaining)
		require.Zero(t, l.BalanceOf(buyer, tokenID))

		require.NoError(t, ex.PostBuyOrder(buyer, 0, 2, domain.MustEther("0.2")))
		err = ex.PostBuyOrder(buyer, 0, 1, sellPrice)
		require.ErrorIs(t, err, domain.ErrInsufficientOrderQuantity)
	})

	t.Run("zero fill", func(t *testing.T) {
		ex, _ := newMarket(t)
		_, err := ex.PostSellOrder(owner, tokenID, 2, sellPrice)
		require.NoError(t, err)
		require.ErrorIs(t, ex.PostBuyOrder(buyer, 0, 0, decimal.Zero), domain.ErrInvalidQuantity)
	})
}

func TestPostBuyOrder_PaymentExactness(t *testing.T) {
	tests := []struct {
		name    string
		payment decimal.Decimal
		wantErr error
	}{
		{"exact", domain.MustEther("0.2"), nil},
		{"underpaid by one wei", domain.MustEther("0.2").Sub(decimal.NewFromInt(1)), domain.ErrIncorrectPayment},
		{"overpaid by one wei", domain.MustEther("0.2").Add(decimal.NewFromInt(1)), domain.ErrIncorrectPayment},
		{"zero", decimal.Zero, domain.ErrIncorrectPayment},
		{"single unit price", sellPrice, domain.ErrIncorrectPayment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, l := newMarket(t)
			_, err := ex.PostSellOrder(owner, tokenID, 2, sellPrice)
			require.NoError(t, err)

			err = ex.PostBuyOrder(buyer, 0, 2, tt.payment)
			if tt.wantErr == nil {
				require.NoError(t, err)
				require.True(t, l.FundsOf(owner).Equal(tt.payment))
				return
			}

			require.ErrorIs(t, err, tt.wantErr)
			require.True(t, l.FundsOf(owner).IsZero())
			require.True(t, l.FundsOf(buyer).Equal(domain.MustEther("10")))
			require.Zero(t, l.BalanceOf(buyer, tokenID))
			o, _ := ex.Order(0)
			require.Equal(t, uint64(2), o.Remaining)
		})
	}
}

func TestPostBuyOrder_RollsBackOnInsufficientFunds(t *testing.T) {
	ex, l := newMarket(t)
	_, err := ex.PostSellOrder(owner, tokenID, 5, domain.MustEther("3"))
	require.NoError(t, err)

	// 4 units cost 12 ether; the buyer only has 10. The escrow release
	// succeeds before the payment step fails and must be undone.
	err = ex.PostBuyOrder(buyer, 0, 4, domain.MustEther("12"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	o, _ := ex.Order(0)
	require.Equal(t, uint64(5), o.Remaining)
	require.Equal(t, uint64(5), l.BalanceOf(market, tokenID))
	require.Zero(t, l.BalanceOf(buyer, tokenID))
	require.True(t, l.FundsOf(buyer).Equal(domain.MustEther("10")))
	require.True(t, l.FundsOf(owner).IsZero())
	require.NoError(t, ex.VerifyEscrow())
	require.NoError(t, l.VerifyInvariants())
}

func TestPostBuyOrder_MarketCannotBuy(t *testing.T) {
	ex, _ := newMarket(t)
	_, err := ex.PostSellOrder(owner, tokenID, 1, sellPrice)
	require.NoError(t, err)
	require.ErrorIs(t, ex.PostBuyOrder(market, 0, 1, sellPrice), domain.ErrUnauthorized)
}

func TestGetOrderBook_ReturnsCopies(t *testing.T) {
	ex, _ := newMarket(t)
	_, err := ex.PostSellOrder(owner, tokenID, 3, sellPrice)
	require.NoError(t, err)

	book := ex.GetOrderBook()
	book[0].Remaining = 0

	o, _ := ex.Order(0)
	require.Equal(t, uint64(3), o.Remaining)
	require.Equal(t, int64(1_700_000_000_000_000), o.CreatedUnixM)
}

func TestOpenOrders_FiltersFilled(t *testing.T) {
	ex, _ := newMarket(t)
	for i := 0; i < 3; i++ {
		_, err := ex.PostSellOrder(owner, tokenID, 1, sellPrice)
		require.NoError(t, err)
	}
	require.NoError(t, ex.PostBuyOrder(buyer, 1, 1, sellPrice))

	open := ex.OpenOrders()
	require.Len(t, open, 2)
	require.Equal(t, uint64(0), open[0].ID)
	require.Equal(t, uint64(2), open[1].ID)
	require.Len(t, ex.GetOrderBook(), 3)
}

func TestSnapshotRestore(t *testing.T) {
	ex, l := newMarket(t)
	_, err := ex.PostSellOrder(owner, tokenID, 4, sellPrice)
	require.NoError(t, err)
	_, err = ex.PostSellOrder(owner, tokenID, 2, sellPrice)
	require.NoError(t, err)
	require.NoError(t, ex.PostBuyOrder(buyer, 0, 1, sellPrice))

	l2, err := ledger.New(owner)
	require.NoError(t, err)
	require.NoError(t, l2.Restore(l.Snapshot()))
	ex2, err := New(l2, market)
	require.NoError(t, err)
	require.NoError(t, ex2.Restore(ex.Snapshot()))
	require.Equal(t, ex.GetOrderBook(), ex2.GetOrderBook())

	id, err := ex2.PostSellOrder(owner, tokenID, 1, sellPrice)
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)

	t.Run("rejects book not backed by escrow", func(t *testing.T) {
		empty, err := ledger.New(owner)
		require.NoError(t, err)
		ex3, err := New(empty, market)
		require.NoError(t, err)
		require.Error(t, ex3.Restore(ex.Snapshot()))
		require.Empty(t, ex3.GetOrderBook())
	})

	t.Run("rejects sparse ids", func(t *testing.T) {
		state := ex.Snapshot()
		state.Orders[1].ID = 7
		require.Error(t, ex2.Restore(state))
	})
}
