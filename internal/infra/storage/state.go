package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"token_market/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	metaLastSeq       = "last_seq"
	metaNextOrderID   = "next_order_id"
	metaAdministrator = "administrator"
)

var snapshotModels = []interface{}{
	&domain.BalanceRecord{},
	&domain.SupplyRecord{},
	&domain.ApprovalRecord{},
	&domain.FundsRecord{},
	&domain.OrderRecord{},
}

// ======================================================================================
// Snapshot Operations
// ======================================================================================

// SaveState replaces the stored snapshot with state in one transaction.
func (s *Storage) SaveState(ctx context.Context, state *domain.State) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range snapshotModels {
			if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
				return fmt.Errorf("clear %T: %w", m, err)
			}
		}

		balances := make([]domain.BalanceRecord, 0, len(state.Ledger.Balances))
		for _, b := range state.Ledger.Balances {
			balances = append(balances, domain.BalanceRecord{
				Holder:   string(b.Holder),
				AssetID:  formatUint(uint64(b.AssetID)),
				Quantity: formatUint(b.Quantity),
			})
		}
		supplies := make([]domain.SupplyRecord, 0, len(state.Ledger.Supplies))
		for _, sp := range state.Ledger.Supplies {
			supplies = append(supplies, domain.SupplyRecord{AssetID: formatUint(uint64(sp.AssetID)), Quantity: formatUint(sp.Quantity)})
		}
		approvals := make([]domain.ApprovalRecord, 0, len(state.Ledger.Approvals))
		for _, g := range state.Ledger.Approvals {
			approvals = append(approvals, domain.ApprovalRecord{Owner: string(g.Owner), Operator: string(g.Operator)})
		}
		funds := make([]domain.FundsRecord, 0, len(state.Ledger.Funds))
		for _, f := range state.Ledger.Funds {
			funds = append(funds, domain.FundsRecord{Holder: string(f.Holder), Value: f.Value.String()})
		}
		orders := make([]domain.OrderRecord, 0, len(state.Book.Orders))
		for _, o := range state.Book.Orders {
			orders = append(orders, domain.OrderRecord{
				ID:           o.ID,
				Seller:       string(o.Seller),
				AssetID:      formatUint(uint64(o.AssetID)),
				UnitPrice:    o.UnitPrice.String(),
				Quantity:     formatUint(o.Quantity),
				Remaining:    formatUint(o.Remaining),
				CreatedUnixM: o.CreatedUnixM,
			})
		}

		if err := createAll(tx, balances); err != nil {
			return err
		}
		if err := createAll(tx, supplies); err != nil {
			return err
		}
		if err := createAll(tx, approvals); err != nil {
			return err
		}
		if err := createAll(tx, funds); err != nil {
			return err
		}
		if err := createAll(tx, orders); err != nil {
			return err
		}

		now := time.Now()
		meta := []domain.StateMeta{
			{Key: metaLastSeq, Value: formatUint(state.LastSeq), UpdatedAt: now},
			{Key: metaNextOrderID, Value: formatUint(state.Book.NextOrderID), UpdatedAt: now},
			{Key: metaAdministrator, Value: string(state.Ledger.Administrator), UpdatedAt: now},
		}
		for i := range meta {
			if err := tx.Save(&meta[i]).Error; err != nil {
				return fmt.Errorf("save meta %s: %w", meta[i].Key, err)
			}
		}
		return nil
	})
	return Error.Wrap(err)
}

// LoadState reads the stored snapshot. ok is false when none was saved yet.
func (s *Storage) LoadState(ctx context.Context) (state *domain.State, ok bool, err error) {
	defer func() { err = Error.Wrap(err) }()

	db := s.db.WithContext(ctx)

	lastSeq, found, err := s.getMeta(db, metaLastSeq)
	if err != nil || !found {
		return nil, false, err
	}

	state = &domain.State{}
	if state.LastSeq, err = parseUint(metaLastSeq, lastSeq); err != nil {
		return nil, false, err
	}

	nextID, _, err := s.getMeta(db, metaNextOrderID)
	if err != nil {
		return nil, false, err
	}
	if state.Book.NextOrderID, err = parseUint(metaNextOrderID, nextID); err != nil {
		return nil, false, err
	}

	admin, _, err := s.getMeta(db, metaAdministrator)
	if err != nil {
		return nil, false, err
	}
	state.Ledger.Administrator = domain.Identity(admin)

	// Asset ids are text columns; numeric order is restored after parsing.
	var balances []domain.BalanceRecord
	if err := db.Find(&balances).Error; err != nil {
		return nil, false, err
	}
	for _, b := range balances {
		asset, err := parseUint("balance asset", b.AssetID)
		if err != nil {
			return nil, false, err
		}
		q, err := parseUint("balance", b.Quantity)
		if err != nil {
			return nil, false, err
		}
		state.Ledger.Balances = append(state.Ledger.Balances, domain.BalanceEntry{
			Holder: domain.Identity(b.Holder), AssetID: domain.AssetID(asset), Quantity: q,
		})
	}
	sort.Slice(state.Ledger.Balances, func(i, j int) bool {
		a, b := state.Ledger.Balances[i], state.Ledger.Balances[j]
		if a.AssetID != b.AssetID {
			return a.AssetID < b.AssetID
		}
		return a.Holder < b.Holder
	})

	var supplies []domain.SupplyRecord
	if err := db.Find(&supplies).Error; err != nil {
		return nil, false, err
	}
	for _, sp := range supplies {
		asset, err := parseUint("supply asset", sp.AssetID)
		if err != nil {
			return nil, false, err
		}
		q, err := parseUint("supply", sp.Quantity)
		if err != nil {
			return nil, false, err
		}
		state.Ledger.Supplies = append(state.Ledger.Supplies, domain.SupplyEntry{AssetID: domain.AssetID(asset), Quantity: q})
	}
	sort.Slice(state.Ledger.Supplies, func(i, j int) bool {
		return state.Ledger.Supplies[i].AssetID < state.Ledger.Supplies[j].AssetID
	})

	var approvals []domain.ApprovalRecord
	if err := db.Order("owner ASC, operator ASC").Find(&approvals).Error; err != nil {
		return nil, false, err
	}
	for _, g := range approvals {
		state.Ledger.Approvals = append(state.Ledger.Approvals, domain.ApprovalGrant{
			Owner: domain.Identity(g.Owner), Operator: domain.Identity(g.Operator),
		})
	}

	var funds []domain.FundsRecord
	if err := db.Order("holder ASC").Find(&funds).Error; err != nil {
		return nil, false, err
	}
	for _, f := range funds {
		v, err := decimal.NewFromString(f.Value)
		if err != nil {
			return nil, false, fmt.Errorf("parse funds for %s: %w", f.Holder, err)
		}
		state.Ledger.Funds = append(state.Ledger.Funds, domain.FundsEntry{Holder: domain.Identity(f.Holder), Value: v})
	}

	var orders []domain.OrderRecord
	if err := db.Order("id ASC").Find(&orders).Error; err != nil {
		return nil, false, err
	}
	for _, o := range orders {
		order, err := orderFromRecord(o)
		if err != nil {
			return nil, false, err
		}
		state.Book.Orders = append(state.Book.Orders, order)
	}

	return state, true, nil
}

func orderFromRecord(r domain.OrderRecord) (domain.Order, error) {
	price, err := decimal.NewFromString(r.UnitPrice)
	if err != nil {
		return domain.Order{}, fmt.Errorf("parse order %d price: %w", r.ID, err)
	}
	asset, err := parseUint("order asset", r.AssetID)
	if err != nil {
		return domain.Order{}, err
	}
	qty, err := parseUint("order quantity", r.Quantity)
	if err != nil {
		return domain.Order{}, err
	}
	remaining, err := parseUint("order remaining", r.Remaining)
	if err != nil {
		return domain.Order{}, err
	}
	return domain.Order{
		ID:           r.ID,
		Seller:       domain.Identity(r.Seller),
		AssetID:      domain.AssetID(asset),
		UnitPrice:    price,
		Quantity:     qty,
		Remaining:    remaining,
		CreatedUnixM: r.CreatedUnixM,
	}, nil
}

func createAll[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(&rows, 500).Error; err != nil {
		return fmt.Errorf("insert %T: %w", rows, err)
	}
	return nil
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseUint(field, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return v, nil
}
