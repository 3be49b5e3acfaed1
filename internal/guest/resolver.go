package guest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tuturuuu/meetsync/libs/auth"
)

// Store is the persistence seam for guest credentials. Implementations must
// enforce a uniqueness constraint on (plan_id, name) and surface it as
// ErrDuplicateName so concurrent first-time logins resolve deterministically.
type Store interface {
	GetByName(ctx context.Context, planID, name string) (Credentials, error)
	Create(ctx context.Context, planID, name, passwordHash, passwordSalt string) (string, error)
}

var (
	ErrNotFound      = errors.New("guest not found")
	ErrDuplicateName = errors.New("guest name already taken")
)

type Credentials struct {
	ID           string
	PasswordHash string
	PasswordSalt string
}

// AuthenticationError is returned on a password mismatch. The message never
// says which field was wrong.
type AuthenticationError struct{}

func (e *AuthenticationError) Error() string {
	return "invalid name or password"
}

// ConflictError is returned when the create/login race cannot be resolved and
// the caller should retry as a login.
type ConflictError struct{}

func (e *ConflictError) Error() string {
	return "guest name conflict, retry as login"
}

type Session struct {
	GuestID   string
	Token     string
	ExpiresAt time.Time
}

// Resolver reconciles a guest's display name and password against stored
// credentials for one plan, issuing a session token scoped to that plan.
// Passwords are fixed at first use; there is no rotation or claim flow.
type Resolver struct {
	store  Store
	secret string
	ttl    time.Duration
}

func NewResolver(store Store, secret string, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Resolver{store: store, secret: secret, ttl: ttl}
}

// ResolveOrCreate implements the guest login state machine. Unknown name:
// create a record with a fresh salt and return a session. Known name with the
// right password: return a session for the existing guest. Known name with the
// wrong password: AuthenticationError, nothing created. The reported bool is
// true when a new guest record was created.
func (r *Resolver) ResolveOrCreate(ctx context.Context, planID, name, password string) (Session, bool, error) {
	creds, err := r.store.GetByName(ctx, planID, name)
	if err == nil {
		if !verifyPassword(creds, password) {
			return Session{}, false, &AuthenticationError{}
		}
		session, err := r.newSession(planID, creds.ID)
		return session, false, err
	}
	if !errors.Is(err, ErrNotFound) {
		return Session{}, false, err
	}

	salt, err := newSalt()
	if err != nil {
		return Session{}, false, err
	}
	hash, err := hashPassword(password, salt)
	if err != nil {
		return Session{}, false, err
	}
	id, err := r.store.Create(ctx, planID, name, hash, salt)
	if err == nil {
		session, err := r.newSession(planID, id)
		return session, true, err
	}
	if !errors.Is(err, ErrDuplicateName) {
		return Session{}, false, err
	}

	// Lost the first-login race: someone else created the record between our
	// read and write. Retry as a login against the winner's credentials.
	creds, err = r.store.GetByName(ctx, planID, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, false, &ConflictError{}
		}
		return Session{}, false, err
	}
	if !verifyPassword(creds, password) {
		return Session{}, false, &AuthenticationError{}
	}
	session, err := r.newSession(planID, creds.ID)
	return session, false, err
}

func (r *Resolver) newSession(planID, guestID string) (Session, error) {
	now := time.Now()
	expires := now.Add(r.ttl)
	token, err := auth.SignHS256(auth.Claims{
		Sub:    guestID,
		PlanID: planID,
		Kind:   auth.KindGuest,
		Iat:    now.Unix(),
		Exp:    expires.Unix(),
	}, r.secret)
	if err != nil {
		return Session{}, err
	}
	return Session{GuestID: guestID, Token: token, ExpiresAt: expires}, nil
}

func hashPassword(password, salt string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(salt+password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(creds Credentials, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(creds.PasswordSalt+password)) == nil
}

func newSalt() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
