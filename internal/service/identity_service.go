package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"tnf-api/internal/auth"
	"tnf-api/internal/ikas"
	"tnf-api/internal/models"
	"tnf-api/internal/store"
	"tnf-api/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxUsernameAttempts = 10

var usernameUnsafe = regexp.MustCompile(`[^a-z0-9._]`)

// IdentityService bridges commerce platform customers and local accounts.
// The commerce platform is always tried first; any failure there falls
// back to local bcrypt credentials.
type IdentityService struct {
	store   IdentityStore
	gateway CommerceGateway
	tokens  *auth.JWTService
	admins  map[string]bool
	rand    func(n int) int
	logger  *zap.Logger
}

func NewIdentityService(store IdentityStore, gateway CommerceGateway, tokens *auth.JWTService, adminEmails []string) *IdentityService {
	admins := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			admins[email] = true
		}
	}
	return &IdentityService{
		store:   store,
		gateway: gateway,
		tokens:  tokens,
		admins:  admins,
		rand:    rand.Intn,
		logger:  util.Named("identity"),
	}
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Phone     string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Session is returned by register, login and refresh.
type Session struct {
	User   *models.User    `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
	// Linked is false when the commerce platform could not be reached and
	// the account only exists locally.
	Linked bool `json:"linked"`
}

func (s *IdentityService) Register(ctx context.Context, req *RegisterRequest) (*Session, error) {
	ctx, span := util.StartSpan(ctx, "IdentityService.Register")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, util.RecordError(span, invalid("email is required"))
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, util.RecordError(span, invalid("%s", err.Error()))
		}
		return nil, util.RecordError(span, err)
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, util.RecordError(span, conflict("email already registered"))
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, util.RecordError(span, err)
	}

	var shadow *models.IkasUser
	customer, err := s.gateway.SaveCustomer(ctx, ikas.CustomerInput{
		Email:     email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Password:  req.Password,
	})
	if err != nil {
		s.logger.Warn("Commerce registration failed; creating local-only account",
			zap.String("email", email), zap.Error(err))
	} else {
		shadow = shadowOf(customer, "", nil)
		if err := s.store.UpsertIkasUser(ctx, shadow); err != nil {
			return nil, util.RecordError(span, fmt.Errorf("failed to store customer shadow: %w", err))
		}
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
	}
	if shadow != nil {
		user.IkasUserID = &shadow.ID
	}
	if err := s.createUser(ctx, user); err != nil {
		return nil, util.RecordError(span, err)
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()), zap.Bool("linked", shadow != nil))
	return s.session(user, shadow != nil)
}

func (s *IdentityService) Login(ctx context.Context, req *LoginRequest) (*Session, error) {
	ctx, span := util.StartSpan(ctx, "IdentityService.Login")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(req.Email))

	result, err := s.gateway.CustomerLogin(ctx, email, req.Password)
	if err == nil && result.Customer != nil {
		session, err := s.loginLinked(ctx, result, req.Password)
		return session, util.RecordError(span, err)
	}
	if err == nil {
		err = errors.New("login response without customer")
	}
	s.logger.Warn("Commerce login failed; trying local credentials", zap.String("email", email), zap.Error(err))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, util.RecordError(span, unauthorized("invalid email or password"))
		}
		return nil, util.RecordError(span, err)
	}
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		return nil, util.RecordError(span, unauthorized("invalid email or password"))
	}
	return s.session(user, user.IkasUserID != nil)
}

// loginLinked refreshes the customer shadow and finds or creates the
// matching local account.
func (s *IdentityService) loginLinked(ctx context.Context, result *ikas.CustomerLoginResult, password string) (*Session, error) {
	var expiry *time.Time
	if result.TokenExpiry > 0 {
		t := time.UnixMilli(result.TokenExpiry).UTC()
		expiry = &t
	}
	shadow := shadowOf(result.Customer, result.Token, expiry)
	if err := s.store.UpsertIkasUser(ctx, shadow); err != nil {
		return nil, fmt.Errorf("failed to store customer shadow: %w", err)
	}

	user, err := s.store.GetUserByEmail(ctx, shadow.Email)
	switch {
	case err == nil:
		if user.IkasUserID == nil || *user.IkasUserID != shadow.ID {
			if err := s.store.LinkIkasUser(ctx, user.ID, shadow.ID); err != nil {
				return nil, fmt.Errorf("failed to link customer: %w", err)
			}
			user.IkasUserID = &shadow.ID
		}
	case errors.Is(err, store.ErrNotFound):
		hash, err := auth.HashPassword(password)
		if err != nil {
			// the commerce platform accepted a password shorter than ours
			hash = ""
		}
		user = &models.User{
			Email:        shadow.Email,
			PasswordHash: hash,
			FirstName:    shadow.FirstName,
			LastName:     shadow.LastName,
			Phone:        shadow.Phone,
			IkasUserID:   &shadow.ID,
		}
		if err := s.createUser(ctx, user); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return s.session(user, true)
}

// Refresh exchanges a refresh token for a new pair.
func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, unauthorized("invalid refresh token")
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, unauthorized("invalid refresh token")
	}
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, unauthorized("account no longer exists")
		}
		return nil, err
	}
	return s.session(user, user.IkasUserID != nil)
}

func (s *IdentityService) Me(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	return s.Profile(ctx, userID, nil)
}

func (s *IdentityService) Profile(ctx context.Context, userID uuid.UUID, viewer *uuid.UUID) (*models.UserProfile, error) {
	profile, err := s.store.GetUserProfile(ctx, userID, viewer)
	if err != nil {
		return nil, storeErr(err, "", "user not found")
	}
	return profile, nil
}

func (s *IdentityService) Followers(ctx context.Context, userID uuid.UUID, viewer *uuid.UUID) ([]models.UserProfile, error) {
	return s.store.ListFollowers(ctx, userID, viewer)
}

func (s *IdentityService) Followings(ctx context.Context, userID uuid.UUID, viewer *uuid.UUID) ([]models.UserProfile, error) {
	return s.store.ListFollowings(ctx, userID, viewer)
}

// createUser picks a free username and inserts the user, retrying on a
// username race.
func (s *IdentityService) createUser(ctx context.Context, user *models.User) error {
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		username, err := s.uniqueUsername(ctx, user.Email)
		if err != nil {
			return err
		}
		user.Username = username

		err = s.store.CreateUser(ctx, user)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("failed to create user: %w", err)
		}
		if strings.Contains(err.Error(), "email") {
			return conflict("email already registered")
		}
	}
	return conflict("could not allocate a username")
}

// uniqueUsername derives a username from the email's local part, appending
// a random four-digit suffix until it is free.
func (s *IdentityService) uniqueUsername(ctx context.Context, email string) (string, error) {
	base := strings.ToLower(email)
	if i := strings.IndexByte(base, '@'); i >= 0 {
		base = base[:i]
	}
	base = usernameUnsafe.ReplaceAllString(base, "")
	if base == "" {
		base = "user"
	}

	candidate := base
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		exists, err := s.store.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%04d", base, s.rand(10000))
	}
	return "", conflict("could not allocate a username")
}

func (s *IdentityService) session(user *models.User, linked bool) (*Session, error) {
	id := auth.Identity{
		UserID:   user.ID.String(),
		Username: user.Username,
		Admin:    s.admins[strings.ToLower(user.Email)],
	}
	if user.IkasUserID != nil {
		id.IkasUserID = user.IkasUserID.String()
	}
	pair, err := s.tokens.IssuePair(id)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: pair, Linked: linked}, nil
}

func shadowOf(c *ikas.Customer, token string, expiry *time.Time) *models.IkasUser {
	addresses := make(models.CustomerAddresses, 0, len(c.Addresses))
	for i := range c.Addresses {
		addr := fromIkasAddress(&c.Addresses[i].Address)
		addresses = append(addresses, addr)
	}
	return &models.IkasUser{
		IkasCustomerID: c.ID,
		Email:          strings.ToLower(c.Email),
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Phone:          c.Phone,
		Addresses:      addresses,
		AccessToken:    token,
		TokenExpiry:    expiry,
	}
}
