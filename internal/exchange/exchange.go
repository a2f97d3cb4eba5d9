package exchange

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"token_market/internal/domain"
	"token_market/internal/ledger"
	"token_market/pkg/safe"

	"github.com/shopspring/decimal"
)

const (
	escrowMemo  = "escrow"
	releaseMemo = "release"
)

// Exchange maintains the order book and settles fills against escrow held
// under its own ledger identity. It moves sellers' assets as an approved
// operator, so a seller must approve the exchange identity before listing.
//
// Lock order: mu is always taken before the ledger lock.
type Exchange struct {
	ledger   *ledger.Ledger
	identity domain.Identity
	now      func() time.Time

	mu     sync.RWMutex
	orders []*domain.Order // index == Order.ID
}

// New creates an exchange that escrows into identity's ledger balance.
func New(l *ledger.Ledger, identity domain.Identity) (*Exchange, error) {
	if !identity.Valid() {
		return nil, domain.NewOperationError("new_exchange", domain.ErrInvalidIdentity)
	}
	if identity == l.Administrator() {
		return nil, domain.NewOperationError("new_exchange",
			fmt.Errorf("%w: exchange identity must differ from administrator", domain.ErrInvalidIdentity))
	}
	return &Exchange{
		ledger:   l,
		identity: identity,
		now:      time.Now,
	}, nil
}

// SetClock replaces the time source stamped on new orders. The sequencer uses
// it so replayed orders keep their original creation time.
func (e *Exchange) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// Identity returns the ledger identity holding escrow.
func (e *Exchange) Identity() domain.Identity {
	return e.identity
}

// PostSellOrder escrows quantity of asset from caller and lists it at unitPrice.
// On any failure the order book is unchanged.
func (e *Exchange) PostSellOrder(caller domain.Identity, asset domain.AssetID, quantity uint64, unitPrice decimal.Decimal) (uint64, error) {
	const op = "post_sell_order"

	if err := e.requireParticipant(caller); err != nil {
		return 0, domain.NewOperationError(op, err)
	}
	if quantity == 0 {
		return 0, domain.NewOperationError(op, domain.ErrInvalidQuantity)
	}
	if err := domain.ValidateValue(unitPrice); err != nil {
		return 0, domain.NewOperationError(op, domain.ErrInvalidPrice)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var order *domain.Order
	err := e.ledger.Update(func(tx *ledger.Tx) error {
		if err := tx.Transfer(e.identity, caller, e.identity, asset, quantity, escrowMemo); err != nil {
			return err
		}

		order = &domain.Order{
			ID:           uint64(len(e.orders)),
			Seller:       caller,
			AssetID:      asset,
			UnitPrice:    unitPrice,
			Quantity:     quantity,
			Remaining:    quantity,
			CreatedUnixM: e.now().UnixMicro(),
		}
		e.orders = append(e.orders, order)
		tx.OnRollback(func() {
			e.orders = e.orders[:len(e.orders)-1]
		})
		return nil
	})
	if err != nil {
		return 0, domain.NewOperationError(op, err)
	}

	slog.Info("Sell order posted",
		slog.Uint64("order_id", order.ID),
		slog.String("seller", string(caller)),
		slog.Uint64("asset", uint64(asset)),
		slog.Uint64("quantity", quantity),
		slog.String("unit_price", unitPrice.String()))
	return order.ID, nil
}

// PostBuyOrder fills fillQuantity of order orderID for caller. payment must be
// exactly fillQuantity * unitPrice. Decrementing the order, releasing escrow to
// the buyer and forwarding payment to the seller commit together or not at all.
func (e *Exchange) PostBuyOrder(caller domain.Identity, orderID uint64, fillQuantity uint64, payment decimal.Decimal) error {
	const op = "post_buy_order"

	if err := e.requireParticipant(caller); err != nil {
		return domain.NewOperationError(op, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.lookup(orderID)
	if !ok {
		return domain.NewOperationError(op, domain.ErrOrderNotFound)
	}
	if fillQuantity == 0 {
		return domain.NewOperationError(op, domain.ErrInvalidQuantity)
	}
	if fillQuantity > order.Remaining {
		return domain.NewOperationError(op, domain.ErrInsufficientOrderQuantity)
	}
	if required := order.Cost(fillQuantity); !payment.Equal(required) {
		return domain.NewOperationError(op,
			fmt.Errorf("%w: want %s, got %s", domain.ErrIncorrectPayment, required, payment))
	}

	err := e.ledger.Update(func(tx *ledger.Tx) error {
		prev := order.Remaining
		order.Remaining = safe.MustSub(prev, fillQuantity)
		tx.OnRollback(func() {
			order.Remaining = prev
		})

		if err := tx.Transfer(e.identity, e.identity, caller, order.AssetID, fillQuantity, releaseMemo); err != nil {
			return err
		}
		return tx.TransferFunds(caller, caller, order.Seller, payment)
	})
	if err != nil {
		return domain.NewOperationError(op, err)
	}

	slog.Info("Order filled",
		slog.Uint64("order_id", order.ID),
		slog.String("buyer", string(caller)),
		slog.String("seller", string(order.Seller)),
		slog.Uint64("fill", fillQuantity),
		slog.Uint64("remaining", order.Remaining),
		slog.String("payment", payment.String()))
	return nil
}

// GetOrderBook returns every order ever created in ascending id order,
// filled orders included.
func (e *Exchange) GetOrderBook() []domain.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()

	book := make([]domain.Order, len(e.orders))
	for i, o := range e.orders {
		book[i] = *o
	}
	return book
}

// OpenOrders returns only orders with remaining quantity.
func (e *Exchange) OpenOrders() []domain.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var open []domain.Order
	for _, o := range e.orders {
		if o.IsOpen() {
			open = append(open, *o)
		}
	}
	return open
}

// Order returns a copy of the order with the given id.
func (e *Exchange) Order(id uint64) (domain.Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	o, ok := e.lookup(id)
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// Escrowed sums the remaining quantity of asset across all open orders.
func (e *Exchange) Escrowed(asset domain.AssetID) uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.escrowed(asset)
}

func (e *Exchange) escrowed(asset domain.AssetID) uint64 {
	var total uint64
	for _, o := range e.orders {
		if o.AssetID == asset {
			total = safe.MustAdd(total, o.Remaining)
		}
	}
	return total
}

func (e *Exchange) lookup(id uint64) (*domain.Order, bool) {
	if id >= uint64(len(e.orders)) {
		return nil, false
	}
	return e.orders[id], true
}

// The exchange identity never trades with itself.
func (e *Exchange) requireParticipant(caller domain.Identity) error {
	if !caller.Valid() {
		return domain.ErrInvalidIdentity
	}
	if caller == e.identity {
		return domain.ErrUnauthorized
	}
	return nil
}
