package database

import (
	"fmt"
)

var _ UserRepository = (*UserRepositoryImpl)(nil)

type UserRepositoryImpl struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepositoryImpl {
	return &UserRepositoryImpl{db: db}
}

// EnsureUser returns the id for the given email, creating the row when it
// does not exist yet. Used by the seed loader; account provisioning proper
// is handled by the external auth service.
func (r *UserRepositoryImpl) EnsureUser(email string) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO users (email) VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id
	`, email).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to ensure user: %w", err)
	}

	return id, nil
}
