// Package account provides the data store operations on profiles.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/memberportal/memberportal/internal/db/models"
)

const (
	whereID    = "id = ?"
	whereEmail = "email = ?"
)

// minimalColumns are the fields needed to authorize a session.
var minimalColumns = []string{ //nolint:gochecknoglobals
	"id", "first_name", "last_name", "email", "role", "user_group", "status",
}

// Store reads and writes profiles.
type Store struct {
	db *gorm.DB
}

// New returns a Store on db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) conn(ctx context.Context) (*gorm.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrDBNil
	}

	return s.db.WithContext(ctx), nil
}

// FindMinimal loads the authorization columns of the profile with id.
// At most two rows are read so callers can tell a duplicate from a hit.
func (s *Store) FindMinimal(ctx context.Context, id string) ([]models.Profile, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []models.Profile
	if err = db.Select(minimalColumns).Where(whereID, id).Limit(2).Find(&rows).Error; err != nil { //nolint:mnd
		return nil, upstream("find minimal profile", err)
	}

	return rows, nil
}

// GroupRows returns the group label of every profile.
func (s *Store) GroupRows(ctx context.Context) ([]models.GroupRow, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []models.GroupRow
	if err = db.Model(&models.Profile{}).Select("user_group").Find(&rows).Error; err != nil {
		return nil, upstream("list group labels", err)
	}

	return rows, nil
}

// Get retrieves a full profile by id.
func (s *Store) Get(ctx context.Context, id string) (*models.Profile, error) {
	if id == "" {
		return nil, ErrProfileIDEmpty
	}

	return s.first(ctx, whereID, id)
}

// FindByEmail retrieves a full profile by email, compared case-insensitively.
func (s *Store) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return s.first(ctx, whereEmail, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) first(ctx context.Context, query string, arg any) (*models.Profile, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var p models.Profile

	err = db.Where(query, arg).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}

	if err != nil {
		return nil, upstream("get profile", err)
	}

	return &p, nil
}

// List returns every profile, newest first.
func (s *Store) List(ctx context.Context) ([]models.Profile, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var profiles []models.Profile
	if err = db.Order("created_at DESC").Find(&profiles).Error; err != nil {
		return nil, upstream("list profiles", err)
	}

	return profiles, nil
}

// Create inserts p. The email is stored lower case.
func (s *Store) Create(ctx context.Context, p *models.Profile) error {
	if p == nil || p.ID == "" {
		return ErrProfileIDEmpty
	}

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	p.Email = strings.ToLower(strings.TrimSpace(p.Email))

	var count int64
	if err = db.Model(&models.Profile{}).Where("id = ? OR email = ?", p.ID, p.Email).Count(&count).Error; err != nil {
		return upstream("check existing profile", err)
	}

	if count > 0 {
		return ErrProfileAlreadyExists
	}

	if p.NotificationPreferences == nil {
		p.NotificationPreferences = models.DefaultNotificationPreferences()
	}

	if err = db.Create(p).Error; err != nil {
		return upstream("create profile", err)
	}

	return nil
}

// Update loads the profile with id, lets apply change it and saves the result
// in one transaction. The saved profile is returned.
func (s *Store) Update(ctx context.Context, id string, apply func(p *models.Profile)) (*models.Profile, error) {
	if id == "" {
		return nil, ErrProfileIDEmpty
	}

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var p models.Profile

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(whereID, id).First(&p).Error; err != nil {
			return err
		}

		apply(&p)
		p.ID = id
		p.UpdatedAt = time.Now()

		return tx.Save(&p).Error
	})

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrProfileNotFound
	case err != nil:
		return nil, upstream("update profile", err)
	}

	return &p, nil
}

// SetStatus changes the lifecycle status of the profile with id.
func (s *Store) SetStatus(ctx context.Context, id string, status models.Status) error {
	if id == "" {
		return ErrProfileIDEmpty
	}

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&models.Profile{}).Where(whereID, id).Updates(map[string]any{
		"status":     status,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return upstream("set profile status", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrProfileNotFound
	}

	return nil
}

// DeleteWithStatus deletes the profile with id only while it has status.
func (s *Store) DeleteWithStatus(ctx context.Context, id string, status models.Status) error {
	if id == "" {
		return ErrProfileIDEmpty
	}

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	result := db.Where("id = ? AND status = ?", id, status).Delete(&models.Profile{})
	if result.Error != nil {
		return upstream("delete profile", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrProfileNotFound
	}

	return nil
}
