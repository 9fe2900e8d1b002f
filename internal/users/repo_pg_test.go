package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoUpsertReturnsStoredFlags(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}

	joined := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("google:42", "42", "ada@example.com", "Ada", nil).
		WillReturnRows(sqlmock.NewRows([]string{"email", "is_premium", "joined_at", "updated_at"}).
			AddRow("ada@example.com", true, joined, joined))

	user, err := repo.Upsert(context.Background(), User{ID: "google:42", GoogleID: "42", Email: "ada@example.com", Name: "Ada"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !user.IsPremium || !user.JoinedAt.Equal(joined) {
		t.Fatalf("unexpected user %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}

	mock.ExpectQuery("SELECT id, google_id, email, name, picture, is_premium, joined_at, updated_at").
		WithArgs("google:1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "google_id", "email", "name", "picture", "is_premium", "joined_at", "updated_at"}))

	if _, err := repo.GetByID(context.Background(), "google:1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoSetPremium(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE users SET is_premium").
		WithArgs(true, "google:1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET is_premium").
		WithArgs(true, "google:2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.SetPremium(context.Background(), "google:1", true); err != nil {
		t.Fatalf("SetPremium: %v", err)
	}
	if err := repo.SetPremium(context.Background(), "google:2", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
