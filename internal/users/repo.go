package users

import "context"

var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "user not found" }

// Repo persists users. Upsert keeps IsPremium and JoinedAt of an existing row
// and returns the stored user.
type Repo interface {
	Upsert(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, userID string) (User, error)
	SetPremium(ctx context.Context, userID string, premium bool) error
}
