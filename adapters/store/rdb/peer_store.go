// Package rdb persists the peer store in a relational database so it
// survives unit restarts and is shared between co-located processes.
package rdb

import (
	"context"

	"gorm.io/gorm"

	"github.com/canonical/grafana-k8s-operator/domain"
	"github.com/canonical/grafana-k8s-operator/domain/model"
)

type PeerStore struct{ db *gorm.DB }

func NewPeerStore(db *gorm.DB) *PeerStore { return &PeerStore{db: db} }

func (s *PeerStore) Get(ctx context.Context, key string) (*domain.PeerEntry, error) {
	var rec PeerEntryRecord
	if err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, model.ErrPeerKeyNotFound
		}
		return nil, err
	}
	return &domain.PeerEntry{Value: rec.Value, Revision: rec.Revision}, nil
}

func (s *PeerStore) Put(ctx context.Context, key, value string) (int64, error) {
	var rev int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec PeerEntryRecord
		err := tx.First(&rec, "key = ?", key).Error
		switch err {
		case nil:
			rec.Value = value
			rec.Revision++
			rev = rec.Revision
			return tx.Save(&rec).Error
		case gorm.ErrRecordNotFound:
			rev = 1
			return tx.Create(&PeerEntryRecord{Key: key, Value: value, Revision: 1}).Error
		default:
			return err
		}
	})
	if err != nil {
		return 0, err
	}
	return rev, nil
}

func (s *PeerStore) List(ctx context.Context, prefix string) (map[string]domain.PeerEntry, error) {
	var recs []PeerEntryRecord
	q := s.db.WithContext(ctx)
	if prefix != "" {
		// Keys are path-like ascii without LIKE metacharacters.
		q = q.Where("key LIKE ?", prefix+"%")
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make(map[string]domain.PeerEntry, len(recs))
	for _, rec := range recs {
		out[rec.Key] = domain.PeerEntry{Value: rec.Value, Revision: rec.Revision}
	}
	return out, nil
}

func (s *PeerStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&PeerEntryRecord{}, "key = ?", key).Error
}

var _ domain.PeerStore = (*PeerStore)(nil)
