package services

import (
	"testing"
	"time"

	"github.com/appdiversa/diversa-server/internal/models"
)

type stubAuthStore struct {
	users map[string]*models.User
}

func (s *stubAuthStore) FindUserByEmail(email string) (*models.User, error) {
	return s.users[email], nil
}

func (s *stubAuthStore) AddUser(u *models.User) error {
	s.users[u.Email] = u
	return nil
}

func stubSigner(uid, email string, ttl time.Duration) (string, error) {
	return "token-" + uid, nil
}

func TestRegisterAndLogin(t *testing.T) {
	store := &stubAuthStore{users: map[string]*models.User{}}
	svc := NewAuthService(store, stubSigner, time.Hour)

	reg, err := svc.Register("  Someone@Example.COM ", "hunter22", "Someone")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.Token == "" || reg.UserID == "" {
		t.Fatalf("register result incomplete: %+v", reg)
	}
	if store.users["someone@example.com"] == nil {
		t.Fatalf("email must be stored lower-cased")
	}

	if _, err := svc.Register("someone@example.com", "other", ""); err == nil {
		t.Fatalf("duplicate email must conflict")
	}

	login, err := svc.Login("someone@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.UserID != reg.UserID {
		t.Fatalf("login should resolve the registered user")
	}

	_, err = svc.Login("someone@example.com", "wrong")
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorUnauthorized {
		t.Fatalf("wrong password: want unauthorized, got %v", err)
	}

	_, err = svc.Login("nobody@example.com", "hunter22")
	se, ok = AsServiceError(err)
	if !ok || se.Code != ErrorUnauthorized {
		t.Fatalf("unknown user: want unauthorized, got %v", err)
	}

	if _, err := svc.Register("", "", ""); err == nil {
		t.Fatalf("blank credentials must be rejected")
	}
}
