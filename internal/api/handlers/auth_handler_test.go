package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/queryforge/queryforge/internal/core"
	"github.com/queryforge/queryforge/internal/models"
)

type authDB struct {
	core.DbClient

	created []*models.User
}

func (m *authDB) CreateUser(ctx context.Context, user *models.User) error {
	m.created = append(m.created, user)
	return nil
}

func TestSignupStoresHashedPassword(t *testing.T) {
	db := &authDB{}
	h := NewAuthHandler(db)

	req := httptest.NewRequest(http.MethodPost, "/api/signup",
		strings.NewReader(`{"email":"a@b.c","password":"hunter22"}`))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(db.created) != 1 {
		t.Fatalf("created %d users, want 1", len(db.created))
	}
	if db.created[0].PasswordHash == "" || db.created[0].PasswordHash == "hunter22" {
		t.Errorf("password hash = %q, want a bcrypt hash", db.created[0].PasswordHash)
	}
}

func TestSignupHashFailureDoesNotCreateUser(t *testing.T) {
	db := &authDB{}
	h := NewAuthHandler(db)

	// bcrypt rejects passwords longer than 72 bytes.
	long := strings.Repeat("x", 100)
	req := httptest.NewRequest(http.MethodPost, "/api/signup",
		strings.NewReader(`{"email":"a@b.c","password":"`+long+`"}`))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if len(db.created) != 0 {
		t.Errorf("created %d users, want none on hash failure", len(db.created))
	}
}

func TestSignupMissingFieldsRejected(t *testing.T) {
	db := &authDB{}
	h := NewAuthHandler(db)

	req := httptest.NewRequest(http.MethodPost, "/api/signup",
		strings.NewReader(`{"email":"a@b.c"}`))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
