package storage

import (
	"context"

	"token_market/internal/domain"
)

// ======================================================================================
// Journal Operations
// ======================================================================================

// Append stores one journal entry. Sequence numbers are unique.
func (s *Storage) Append(ctx context.Context, entry *domain.JournalEntry) error {
	return Error.Wrap(s.db.WithContext(ctx).Create(entry).Error)
}

// Since returns journal entries after seq in ascending order.
func (s *Storage) Since(ctx context.Context, seq uint64) ([]domain.JournalEntry, error) {
	var entries []domain.JournalEntry
	err := s.db.WithContext(ctx).
		Where("seq > ?", seq).
		Order("seq ASC").
		Find(&entries).Error
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return entries, nil
}

// LastSeq returns the highest journaled sequence, or 0 for an empty journal.
func (s *Storage) LastSeq(ctx context.Context) (uint64, error) {
	var entry domain.JournalEntry
	res := s.db.WithContext(ctx).Order("seq DESC").Limit(1).Find(&entry)
	if res.Error != nil {
		return 0, Error.Wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, nil
	}
	return entry.Seq, nil
}
