package repository

import (
	"context"
	"errors"

	"advisorledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, tx *gorm.DB, user *model.User) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	return err
}

// GetByID loads a user. forUpdate locks the row so plan creation for the same
// owner is serialized.
func (r *UserRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64, forUpdate bool) (*model.User, error) {
	if tx == nil {
		tx = r.db
	}
	q := tx.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var user model.User
	err := q.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) SetActive(ctx context.Context, tx *gorm.DB, id int64, active bool) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// MySQL reports zero rows when the flag already had the requested value
		var count int64
		if err := tx.WithContext(ctx).Model(&model.User{}).
			Where("id = ? AND is_deleted = ?", id, false).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrUserNotFound
		}
	}
	return nil
}

func (r *UserRepository) CountActiveClients(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("role = ? AND is_active = ? AND is_deleted = ?", model.RoleClient, true, false).
		Count(&count).Error
	return count, err
}
