package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"chatlibrary/internal/model"
	"chatlibrary/internal/pkg/jwtutil"
	"chatlibrary/internal/pkg/passhash"
	"chatlibrary/internal/repository"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrInvalidCredential = errors.New("invalid username or password")

	// ErrUnauthenticated is the rejection ResolveIdentity reports for
	// any bad token. Bad signature, expired token, garbage token and
	// unknown subject are indistinguishable to the caller on purpose.
	// Store failures are reported separately and never as this error.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// UserStore is the persistence surface AuthService needs.
type UserStore interface {
	Create(user *model.User) error
	GetByUsername(username string) (*model.User, error)
	GetByID(id uint) (*model.User, error)
}

type AuthService struct {
	users     UserStore
	hasher    *passhash.Hasher
	jwtSecret string
	jwtTTL    time.Duration

	// dummyDigest is compared against when the username does not exist,
	// so login does the same bcrypt work on both branches and response
	// time does not reveal whether an account exists.
	dummyDigest string
}

type RegisterInput struct {
	Username string
	Password string
}

type LoginInput struct {
	Username string
	Password string
}

type LoginResult struct {
	Token string
	User  *model.User
}

func NewAuthService(users UserStore, hasher *passhash.Hasher, jwtSecret string, jwtTTL time.Duration) *AuthService {
	if jwtTTL <= 0 {
		jwtTTL = 30 * time.Minute
	}
	dummy, err := hasher.Hash("chatlibrary-placeholder-credential")
	if err != nil {
		// Hashing a fixed short string only fails on a broken cost
		// setting, which NewHasher already clamps away.
		panic(err)
	}
	return &AuthService{
		users:       users,
		hasher:      hasher,
		jwtSecret:   jwtSecret,
		jwtTTL:      jwtTTL,
		dummyDigest: dummy,
	}
}

// Register creates a user with a hashed password. Only the digest is
// ever stored; the user record is immutable afterwards.
func (s *AuthService) Register(input RegisterInput) (*model.User, error) {
	username := strings.TrimSpace(input.Username)
	password := input.Password

	if username == "" || len(password) < 8 || len(password) > 72 {
		return nil, ErrInvalidInput
	}

	existing, err := s.users.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.users.Create(user); err != nil {
		// Concurrent registration of the same name loses the race at the
		// unique index, not at the read above.
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrUsernameExists
		}
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and issues a bearer token. The failure is
// the same whether the username is unknown or the password is wrong.
func (s *AuthService) Login(input LoginInput) (*LoginResult, error) {
	username := strings.TrimSpace(input.Username)
	password := input.Password
	if username == "" || password == "" {
		return nil, ErrInvalidCredential
	}

	user, err := s.users.GetByUsername(username)
	if err != nil {
		return nil, err
	}

	// Always run exactly one bcrypt compare, even for an unknown
	// username, so both failures cost the same.
	digest := s.dummyDigest
	if user != nil {
		digest = user.PasswordHash
	}
	if !s.hasher.Verify(password, digest) || user == nil {
		return nil, ErrInvalidCredential
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtTTL, user.Username)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: user}, nil
}

// ResolveIdentity maps a bearer token to the persisted user it names.
// Pure lookup, no side effects; called once per authenticated request.
func (s *AuthService) ResolveIdentity(tokenString string) (*model.User, error) {
	claims, err := jwtutil.ParseToken(s.jwtSecret, tokenString)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	user, err := s.users.GetByUsername(claims.Username())
	if err != nil {
		// A store failure is not an authentication verdict. Callers must
		// be able to tell it apart from a rejected token.
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}
