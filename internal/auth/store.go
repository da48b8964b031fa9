package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type UserStore interface {
	Create(ctx context.Context, email, passwordHash string) (string, error)
	Credentials(ctx context.Context, email string) (string, string, error)
	Get(ctx context.Context, id string) (User, error)
}

type PgUserStore struct {
	pool *pgxpool.Pool
}

func NewPgUserStore(pool *pgxpool.Pool) *PgUserStore {
	return &PgUserStore{pool: pool}
}

func (s *PgUserStore) Create(ctx context.Context, email, passwordHash string) (string, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)
	var userID string
	err = tx.QueryRow(ctx, "insert into users (email) values ($1) returning id", email).Scan(&userID)
	if err != nil {
		return "", err
	}
	_, err = tx.Exec(ctx, "insert into user_credentials (user_id, password_hash) values ($1, $2)", userID, passwordHash)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PgUserStore) Credentials(ctx context.Context, email string) (string, string, error) {
	var userID, hash string
	err := s.pool.QueryRow(ctx, "select u.id, c.password_hash from users u join user_credentials c on c.user_id = u.id where u.email = $1", email).Scan(&userID, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", ErrUserNotFound
		}
		return "", "", err
	}
	return userID, hash, nil
}

func (s *PgUserStore) Get(ctx context.Context, id string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, "select id, email from users where id = $1", id).Scan(&u.ID, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

type memUser struct {
	user User
	hash string
}

// MemUserStore backs paper mode and tests.
type MemUserStore struct {
	mu      sync.Mutex
	byEmail map[string]memUser
	byID    map[string]memUser
}

func NewMemUserStore() *MemUserStore {
	return &MemUserStore{byEmail: make(map[string]memUser), byID: make(map[string]memUser)}
}

func (s *MemUserStore) Create(ctx context.Context, email, passwordHash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return "", errors.New("email already registered")
	}
	u := memUser{user: User{ID: uuid.NewString(), Email: email}, hash: passwordHash}
	s.byEmail[email] = u
	s.byID[u.user.ID] = u
	return u.user.ID, nil
}

func (s *MemUserStore) Credentials(ctx context.Context, email string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[email]
	if !ok {
		return "", "", ErrUserNotFound
	}
	return u.user.ID, u.hash, nil
}

func (s *MemUserStore) Get(ctx context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u.user, nil
}
