package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"evercart/internal/domain"
)

// sessionRecord строка таблицы sessions
type sessionRecord struct {
	ID              string              `gorm:"primaryKey;size:36"`
	AccessToken     string              `gorm:"type:text"`
	RefreshToken    string              `gorm:"type:text"`
	User            *domain.User        `gorm:"serializer:json;type:jsonb"`
	IsAdmin         bool                `gorm:"not null;default:false"`
	Cart            domain.CartSnapshot `gorm:"serializer:json;type:jsonb"`
	ConfirmedOrders []int64             `gorm:"serializer:json;type:jsonb"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time `gorm:"index"`
}

func (sessionRecord) TableName() string { return "sessions" }

func toRecord(s *domain.Session) sessionRecord {
	return sessionRecord{
		ID:              s.ID,
		AccessToken:     s.AccessToken,
		RefreshToken:    s.RefreshToken,
		User:            s.User,
		IsAdmin:         s.IsAdmin,
		Cart:            s.Cart,
		ConfirmedOrders: s.ConfirmedOrders,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		ExpiresAt:       s.ExpiresAt,
	}
}

func (r sessionRecord) toDomain() *domain.Session {
	return &domain.Session{
		ID:              r.ID,
		AccessToken:     r.AccessToken,
		RefreshToken:    r.RefreshToken,
		User:            r.User,
		IsAdmin:         r.IsAdmin,
		Cart:            r.Cart,
		ConfirmedOrders: r.ConfirmedOrders,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}

// GormStore хранилище сессий в Postgres
type GormStore struct {
	db *gorm.DB
}

var _ SessionRepository = (*GormStore)(nil)

// OpenPostgres connects to dsn and migrates the sessions table.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return NewGormStore(db)
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (g *GormStore) Create(ctx context.Context, s *domain.Session) error {
	rec := toRecord(s)
	if err := g.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return err
	}
	s.CreatedAt, s.UpdatedAt = rec.CreatedAt, rec.UpdatedAt
	return nil
}

func (g *GormStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	var rec sessionRecord
	err := g.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, time.Now().UTC()).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

func (g *GormStore) Update(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error) {
	var out *domain.Session
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec sessionRecord
		if err := lockByID(tx, id, &rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		s := rec.toDomain()
		if expired(s, time.Now().UTC()) {
			return ErrNotFound
		}
		if err := fn(s); err != nil {
			return err
		}
		s.ID = id
		next := toRecord(s)
		if err := tx.Save(&next).Error; err != nil {
			return err
		}
		s.UpdatedAt = next.UpdatedAt
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockByID loads the row with SELECT ... FOR UPDATE so concurrent updates of
// one session are serialized.
func lockByID(tx *gorm.DB, id string, rec *sessionRecord) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(rec, "id = ?", id)
}

func (g *GormStore) Delete(ctx context.Context, id string) error {
	res := g.db.WithContext(ctx).Delete(&sessionRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *GormStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := g.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&sessionRecord{})
	return res.RowsAffected, res.Error
}
