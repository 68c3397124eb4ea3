package user

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-service/internal/apperr"
)

type memRepo struct {
	byEmail map[string]*User
	nextID  uint
}

func newMemRepo() *memRepo {
	return &memRepo{byEmail: map[string]*User{}, nextID: 1}
}

func (r *memRepo) Create(u *User) error {
	if _, ok := r.byEmail[u.Email]; ok {
		return errors.New("duplicate key value violates unique constraint")
	}
	u.ID = r.nextID
	r.nextID++
	cp := *u
	r.byEmail[u.Email] = &cp
	return nil
}

func (r *memRepo) GetByID(id uint) (*User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (r *memRepo) GetByIDs(ids []uint) ([]User, error) {
	var out []User
	for _, id := range ids {
		if u, err := r.GetByID(id); err == nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *memRepo) GetByEmail(email string) (*User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func TestRegisterHashesPassword(t *testing.T) {
	svc := NewService(newMemRepo())

	u, err := svc.Register("a@example.com", "secret123", "Alice")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", u.Password)
	assert.NotEmpty(t, u.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.Register("a@example.com", "secret123", "Alice")
	require.NoError(t, err)

	_, err = svc.Register("a@example.com", "other456", "Impostor")
	var ae *apperr.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeAlreadyExists, ae.Code)
}

func TestLogin(t *testing.T) {
	svc := NewService(newMemRepo())
	_, err := svc.Register("a@example.com", "secret123", "Alice")
	require.NoError(t, err)

	u, err := svc.Login("a@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)

	_, err = svc.Login("a@example.com", "wrong")
	var ae *apperr.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeUnauthenticated, ae.Code)

	// Unknown email gets the same answer as a wrong password.
	_, err = svc.Login("nobody@example.com", "secret123")
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeUnauthenticated, ae.Code)
	assert.Equal(t, "wrong email/password", ae.Message)
}
