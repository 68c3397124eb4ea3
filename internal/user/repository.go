package user

import (
	"errors"

	"gorm.io/gorm"

	"chat-service/internal/apperr"
	"chat-service/internal/shared/db"
)

type Repository interface {
	Create(u *User) error
	GetByID(id uint) (*User, error)
	GetByIDs(ids []uint) ([]User, error)
	GetByEmail(email string) (*User, error)
}

type repo struct{ store *db.Store }

func NewRepository(s *db.Store) Repository { return &repo{store: s} }

func (r *repo) Create(u *User) error {
	return r.store.Base.Create(u).Error
}

func (r *repo) GetByID(id uint) (*User, error) {
	var u User
	if err := r.store.Base.First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}
	return &u, nil
}

func (r *repo) GetByIDs(ids []uint) ([]User, error) {
	var out []User
	if len(ids) == 0 {
		return out, nil
	}
	err := r.store.Base.Where("id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *repo) GetByEmail(email string) (*User, error) {
	var u User
	if err := r.store.Base.First(&u, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}
	return &u, nil
}
