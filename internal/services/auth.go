package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/marketplace/internal/logging"
	"github.com/example/marketplace/internal/models"
	"github.com/example/marketplace/internal/utils"
)

const minPasswordLength = 6

// AuthConfig carries the token settings.
type AuthConfig struct {
	Secret           string
	TokenTTL         time.Duration
	SessionRetention time.Duration
}

// AuthService manages accounts and server-tracked sessions.
type AuthService struct {
	db      *gorm.DB
	cfg     AuthConfig
	clock   clock.Clock
	metrics *Metrics
	logger  zerolog.Logger
}

// NewAuthService constructs AuthService.
func NewAuthService(db *gorm.DB, cfg AuthConfig, clk clock.Clock, metrics *Metrics) *AuthService {
	return &AuthService{
		db:      db,
		cfg:     cfg,
		clock:   clk,
		metrics: metrics,
		logger:  logging.Component("auth"),
	}
}

// RoleData holds the role-specific registration attributes. Only the fields
// of the registering role are used.
type RoleData struct {
	DateOfBirth  *time.Time      `json:"date_of_birth"`
	BusinessName string          `json:"business_name"`
	BusinessType string          `json:"business_type"`
	Description  string          `json:"description"`
	Address      string          `json:"address"`
	Latitude     float64         `json:"latitude"`
	Longitude    float64         `json:"longitude"`
	OpeningHours string          `json:"opening_hours"`
	DeliveryFee  decimal.Decimal `json:"delivery_fee"`
	VehicleType  string          `json:"vehicle_type"`
	LicensePlate string          `json:"license_plate"`
	AccessLevel  string          `json:"access_level"`
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
	Role     models.Role
	RoleData RoleData
}

// AuthResult is returned by login and session extension.
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	SessionID uuid.UUID    `json:"session_id"`
	User      *models.User `json:"user"`
}

// Register creates a self-service account. Admin accounts cannot be
// registered publicly.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if in.Role == "" {
		in.Role = models.RoleClient
	}
	if in.Role == models.RoleAdmin {
		return nil, errors.Forbiddenf("admin accounts cannot be self-registered")
	}

	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = s.createUser(tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", user.ID.String()).Str("role", string(user.Role)).Msg("user registered")
	return user, nil
}

// CreateUser lets an admin create an account of any role.
func (s *AuthService) CreateUser(ctx context.Context, actor Actor, in RegisterInput, ip string) (*models.User, error) {
	if actor.Role != models.RoleAdmin {
		return nil, errors.Forbiddenf("only admins can create users")
	}

	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if user, err = s.createUser(tx, in); err != nil {
			return err
		}
		return writeAudit(tx, &actor.ID, auditUserCreated, "user", user.ID.String(),
			fmt.Sprintf("role=%s email=%s", user.Role, user.Email), ip)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func validateRegistration(in *RegisterInput) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)

	if in.Email == "" || in.Password == "" || in.FullName == "" {
		return errors.BadRequestf("email, password and full_name are required")
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return errors.NotValidf("email %q", in.Email)
	}
	if len(in.Password) < minPasswordLength {
		return errors.BadRequestf("password must be at least %d characters", minPasswordLength)
	}
	if !in.Role.Valid() {
		return errors.NotValidf("role %q", in.Role)
	}
	if in.Role == models.RoleSupplier && strings.TrimSpace(in.RoleData.BusinessName) == "" {
		return errors.BadRequestf("business_name is required for suppliers")
	}
	if in.RoleData.DeliveryFee.IsNegative() {
		return errors.BadRequestf("delivery_fee must not be negative")
	}
	return nil
}

// createUser inserts the user row and exactly one satellite profile row.
func (s *AuthService) createUser(tx *gorm.DB, in RegisterInput) (*models.User, error) {
	if err := validateRegistration(&in); err != nil {
		return nil, err
	}

	var count int64
	if err := tx.Model(&models.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
		return nil, errors.Trace(err)
	}
	if count > 0 {
		return nil, errors.AlreadyExistsf("user with email %q", in.Email)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, errors.Annotate(err, "hash password")
	}

	user := &models.User{
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Phone:        in.Phone,
		Role:         in.Role,
		Status:       models.UserStatusActive,
	}
	if err := tx.Omit(clause.Associations).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.AlreadyExistsf("user with email %q", in.Email)
		}
		return nil, errors.Annotate(err, "create user")
	}

	rd := in.RoleData
	switch in.Role {
	case models.RoleClient:
		user.ClientProfile = &models.ClientProfile{UserID: user.ID, DateOfBirth: rd.DateOfBirth}
		err = tx.Create(user.ClientProfile).Error
	case models.RoleSupplier:
		user.SupplierProfile = &models.SupplierProfile{
			UserID:       user.ID,
			BusinessName: strings.TrimSpace(rd.BusinessName),
			BusinessType: rd.BusinessType,
			Description:  rd.Description,
			Address:      rd.Address,
			Latitude:     rd.Latitude,
			Longitude:    rd.Longitude,
			OpeningHours: rd.OpeningHours,
			IsOpen:       true,
			DeliveryFee:  rd.DeliveryFee,
		}
		err = tx.Create(user.SupplierProfile).Error
	case models.RoleCourier:
		user.CourierProfile = &models.CourierProfile{
			UserID:       user.ID,
			VehicleType:  rd.VehicleType,
			LicensePlate: rd.LicensePlate,
			IsAvailable:  true,
		}
		err = tx.Create(user.CourierProfile).Error
	case models.RoleAdmin:
		level := rd.AccessLevel
		if level == "" {
			level = "standard"
		}
		user.AdminProfile = &models.AdminProfile{UserID: user.ID, AccessLevel: level}
		err = tx.Create(user.AdminProfile).Error
	}
	if err != nil {
		return nil, errors.Annotatef(err, "create %s profile", in.Role)
	}
	return user, nil
}

// LoginInput carries credentials and client metadata for the session row.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// Login checks credentials and opens a new session. Unknown emails, wrong
// passwords and non-active accounts all fail with the same error.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Trace(err)
	}
	if err != nil {
		utils.BurnPasswordCheck(in.Password)
	}
	if err != nil || !utils.CheckPassword(user.PasswordHash, in.Password) || !user.IsActive() {
		s.countLogin("failure")
		return nil, errors.Unauthorizedf("invalid credentials")
	}

	now := s.clock.Now().UTC()
	session := models.Session{
		UserID:         user.ID,
		IPAddress:      in.IPAddress,
		UserAgent:      truncate(in.UserAgent, 255),
		ExpiresAt:      now.Add(s.cfg.TokenTTL),
		LastActivityAt: now,
		IsActive:       true,
	}
	session.ID = uuid.New()
	session.CreatedAt = now

	token, err := utils.GenerateToken(s.cfg.Secret, user.ID, string(user.Role), session.ID, now, session.ExpiresAt)
	if err != nil {
		return nil, errors.Annotate(err, "sign token")
	}
	session.TokenHash = utils.HashToken(token)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&session).Error; err != nil {
			return errors.Annotate(err, "create session")
		}
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
			UpdateColumn("last_login_at", now).Error; err != nil {
			return errors.Trace(err)
		}
		return writeAudit(tx, &user.ID, auditLogin, "session", session.ID.String(), in.UserAgent, in.IPAddress)
	})
	if err != nil {
		return nil, err
	}

	user.LastLoginAt = &now
	s.countLogin("success")
	return &AuthResult{Token: token, ExpiresAt: session.ExpiresAt, SessionID: session.ID, User: &user}, nil
}

func (s *AuthService) countLogin(result string) {
	if s.metrics != nil {
		s.metrics.Logins.WithLabelValues(result).Inc()
	}
}

// VerifySession validates a bearer token against its signature and its
// session row and returns the current user snapshot.
func (s *AuthService) VerifySession(ctx context.Context, token string) (*SessionContext, error) {
	now := s.clock.Now().UTC()
	claims, err := utils.ParseToken(s.cfg.Secret, token, now)
	if err != nil {
		return nil, errors.Unauthorizedf("invalid or expired token")
	}

	var session models.Session
	if err := s.db.WithContext(ctx).First(&session, "id = ?", claims.SessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Unauthorizedf("session not found")
		}
		return nil, errors.Trace(err)
	}
	if !session.IsActive || !session.ExpiresAt.After(now) || session.TokenHash != utils.HashToken(token) {
		return nil, errors.Unauthorizedf("session expired or revoked")
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Unauthorizedf("user no longer exists")
		}
		return nil, errors.Trace(err)
	}
	if !user.IsActive() {
		return nil, errors.Unauthorizedf("account is %s", user.Status)
	}

	if err := s.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", session.ID).
		UpdateColumn("last_activity_at", now).Error; err != nil {
		s.logger.Warn().Err(err).Msg("failed to touch session")
	}

	return &SessionContext{User: &user, SessionID: session.ID, ExpiresAt: session.ExpiresAt}, nil
}

// Logout deactivates the session; its token stops verifying immediately.
func (s *AuthService) Logout(ctx context.Context, sc *SessionContext, ip string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Session{}).Where("id = ?", sc.SessionID).
			UpdateColumn("is_active", false).Error; err != nil {
			return errors.Trace(err)
		}
		uid := sc.UserID()
		return writeAudit(tx, &uid, auditLogout, "session", sc.SessionID.String(), "", ip)
	})
}

// ExtendSession slides the session expiry forward by the token TTL and
// issues a replacement token carrying the same expiry. The previous token
// of the session stops verifying.
func (s *AuthService) ExtendSession(ctx context.Context, sc *SessionContext) (*AuthResult, error) {
	now := s.clock.Now().UTC()
	expiresAt := now.Add(s.cfg.TokenTTL)

	token, err := utils.GenerateToken(s.cfg.Secret, sc.UserID(), string(sc.Role()), sc.SessionID, now, expiresAt)
	if err != nil {
		return nil, errors.Annotate(err, "sign token")
	}

	res := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND is_active = ?", sc.SessionID, true).
		UpdateColumns(map[string]interface{}{
			"token_hash":       utils.HashToken(token),
			"expires_at":       expiresAt,
			"last_activity_at": now,
		})
	if res.Error != nil {
		return nil, errors.Trace(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errors.Unauthorizedf("session expired or revoked")
	}

	return &AuthResult{Token: token, ExpiresAt: expiresAt, SessionID: sc.SessionID, User: sc.User}, nil
}

// ListSessions returns the user's live sessions, most recently used first.
func (s *AuthService) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, s.clock.Now().UTC()).
		Order("last_activity_at desc").
		Find(&sessions).Error
	return sessions, errors.Trace(err)
}

// RevokeSession ends one of the user's own sessions.
func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND user_id = ? AND is_active = ?", sessionID, userID, true).
		UpdateColumn("is_active", false)
	if res.Error != nil {
		return errors.Trace(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundf("session %s", sessionID)
	}
	return nil
}

// ChangePassword replaces the password and ends every other session of the user.
func (s *AuthService) ChangePassword(ctx context.Context, sc *SessionContext, oldPassword, newPassword, ip string) error {
	if len(newPassword) < minPasswordLength {
		return errors.BadRequestf("password must be at least %d characters", minPasswordLength)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", sc.UserID()).Error; err != nil {
		return errors.Trace(err)
	}
	if !utils.CheckPassword(user.PasswordHash, oldPassword) {
		return errors.Unauthorizedf("invalid credentials")
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return errors.Annotate(err, "hash password")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
			Update("password_hash", hash).Error; err != nil {
			return errors.Trace(err)
		}
		if err := tx.Model(&models.Session{}).
			Where("user_id = ? AND id <> ? AND is_active = ?", user.ID, sc.SessionID, true).
			UpdateColumn("is_active", false).Error; err != nil {
			return errors.Trace(err)
		}
		return writeAudit(tx, &user.ID, auditPasswordChanged, "user", user.ID.String(), "", ip)
	})
}

// CleanupResult reports what a session cleanup did.
type CleanupResult struct {
	Expired int64 `json:"expired"`
	Purged  int64 `json:"purged"`
}

// CleanupExpiredSessions deactivates sessions past their expiry and deletes
// inactive rows that expired longer ago than the retention window.
func (s *AuthService) CleanupExpiredSessions(ctx context.Context, actorID *uuid.UUID) (*CleanupResult, error) {
	now := s.clock.Now().UTC()
	result := &CleanupResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Session{}).
			Where("is_active = ? AND expires_at <= ?", true, now).
			UpdateColumn("is_active", false)
		if res.Error != nil {
			return errors.Trace(res.Error)
		}
		result.Expired = res.RowsAffected

		res = tx.Where("is_active = ? AND expires_at < ?", false, now.Add(-s.cfg.SessionRetention)).
			Delete(&models.Session{})
		if res.Error != nil {
			return errors.Trace(res.Error)
		}
		result.Purged = res.RowsAffected

		return writeAudit(tx, actorID, auditSessionCleanup, "session", "",
			fmt.Sprintf("expired=%d purged=%d", result.Expired, result.Purged), "")
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SessionsSwept.Add(float64(result.Expired))
	}
	s.logger.Info().Int64("expired", result.Expired).Int64("purged", result.Purged).Msg("session cleanup")
	return result, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
