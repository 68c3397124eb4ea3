package user

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"chat-service/internal/apperr"
)

type Service interface {
	Register(email, password, name string) (*User, error)
	Login(email, password string) (*User, error)
	GetByID(id uint) (*User, error)
	GetByIDs(ids []uint) ([]User, error)
}

type service struct {
	repo Repository
}

func NewService(r Repository) Service {
	return &service{repo: r}
}

func (s *service) Register(email, password, name string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{Email: email, Password: string(hash), Name: name}
	if err := s.repo.Create(u); err != nil {
		return nil, apperr.Wrap(apperr.CodeAlreadyExists, "email already registered", err)
	}
	return u, nil
}

func (s *service) Login(email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(email)
	if err != nil {
		var ae *apperr.AppError
		if errors.As(err, &ae) && ae.Code == apperr.CodeNotFound {
			return nil, apperr.Unauthorized("wrong email/password")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, apperr.Unauthorized("wrong email/password")
	}
	return u, nil
}

func (s *service) GetByID(id uint) (*User, error)      { return s.repo.GetByID(id) }
func (s *service) GetByIDs(ids []uint) ([]User, error) { return s.repo.GetByIDs(ids) }
