package engine

import (
	"context"
	"errors"
	"strings"

	"tasktrail/internal/apperr"
	"tasktrail/internal/domain"
	"tasktrail/internal/engine/auth"
	"tasktrail/internal/policy"
	"tasktrail/internal/store"
)

const minPasswordLen = 6

// NewUser describes an account to create.
type NewUser struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// Session is the result of a successful register or login.
type Session struct {
	Token string
	User  domain.User
}

// AddUser creates an account with the given role. Used by registration and the CLI.
func (e Engine) AddUser(ctx context.Context, in NewUser) (domain.User, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	switch {
	case name == "":
		return domain.User{}, apperr.Invalid("name is required")
	case email == "" || !strings.Contains(email, "@"):
		return domain.User{}, apperr.Invalid("a valid email is required")
	case len(in.Password) < minPasswordLen:
		return domain.User{}, apperr.Invalidf("password must be at least %d characters", minPasswordLen)
	}
	role := in.Role
	if role == "" {
		role = domain.RoleMember
	}
	if _, err := domain.ParseRole(string(role)); err != nil {
		return domain.User{}, apperr.Invalid(err.Error())
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	now := e.now()
	u := domain.User{
		ID:           e.newID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.Store.InsertUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.User{}, apperr.Conflict("User already exists")
		}
		return domain.User{}, apperr.Storage(err)
	}
	return u, nil
}

// Register creates a Member account and signs the caller in.
func (e Engine) Register(ctx context.Context, name, email, password string) (Session, error) {
	u, err := e.AddUser(ctx, NewUser{Name: name, Email: email, Password: password, Role: domain.RoleMember})
	if err != nil {
		return Session{}, err
	}
	return e.session(u)
}

func (e Engine) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := e.Store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, apperr.Unauthorized("Invalid credentials")
		}
		return Session{}, apperr.Storage(err)
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return Session{}, apperr.Unauthorized("Invalid credentials")
	}
	return e.session(u)
}

func (e Engine) session(u domain.User) (Session, error) {
	token, err := e.Tokens.Issue(u)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: u}, nil
}

// Authenticate resolves a bearer token into the caller's identity.
func (e Engine) Authenticate(token string) (domain.Identity, error) {
	id, err := e.Tokens.Parse(token)
	if err != nil {
		return domain.Identity{}, apperr.Unauthorized("invalid credentials")
	}
	return id, nil
}

func (e Engine) Me(ctx context.Context, actor domain.Identity) (domain.User, error) {
	u, err := e.Store.GetUser(ctx, actor.ID)
	if err != nil {
		return domain.User{}, storeErr(err, "User not found")
	}
	return u, nil
}

// ListUsers returns every account. Admin only.
func (e Engine) ListUsers(ctx context.Context, actor domain.Identity) ([]domain.UserSummary, error) {
	if !policy.CanListUsers(actor) {
		return nil, apperr.Denied()
	}
	users, err := e.Store.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	out := make([]domain.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out, nil
}
