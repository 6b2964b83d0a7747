package identities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/atlasfin/atlasbank/pkg/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidTOTP        = errors.New("invalid one-time code")
	ErrMFANotEnrolled     = errors.New("mfa not enrolled")
)

// IdentityService defines registration, login, MFA and token validation
type IdentityService interface {
	Start() error
	Stop() error
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	Verify2FA(ctx context.Context, userID, token string) (*models.LoginResponse, error)
	Enable2FA(ctx context.Context, userID string) (string, error)
	Confirm2FA(ctx context.Context, userID, token string) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ValidateToken(tokenString string) (string, error)
}

// Service implements IdentityService
type Service struct {
	logger             *zap.Logger
	db                 *gorm.DB
	jwtSecret          string
	jwtExpirationHours int
}

// NewService creates a new IdentityService
func NewService(logger *zap.Logger, db *gorm.DB, jwtSecret string, jwtExpirationHours int) (IdentityService, error) {
	if jwtSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if jwtExpirationHours <= 0 {
		jwtExpirationHours = 24
	}
	return &Service{
		logger:             logger,
		db:                 db,
		jwtSecret:          jwtSecret,
		jwtExpirationHours: jwtExpirationHours,
	}, nil
}

// Start starts the identity service
func (s *Service) Start() error {
	s.logger.Info("Identity service started")
	return nil
}

// Stop stops the identity service
func (s *Service) Stop() error {
	s.logger.Info("Identity service stopped")
	return nil
}

// Register creates a new user with a bcrypt password hash
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR username = ?", req.Email, req.Username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &models.User{
		ID:           uuid.New(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         "user",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Login verifies credentials and either issues a JWT or requests MFA
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Where("email = ? OR username = ?", req.Login, req.Login).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.MFAEnabled {
		return &models.LoginResponse{Requires2FA: true, UserID: user.ID}, nil
	}

	token, err := s.generateToken(user.ID.String())
	if err != nil {
		return nil, err
	}

	user.LastLogin = time.Now()
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		s.logger.Warn("Failed to update last login", zap.Error(err))
	}

	return &models.LoginResponse{User: &user, Token: token}, nil
}

// Verify2FA completes a login for an MFA-enabled user
func (s *Service) Verify2FA(ctx context.Context, userID, token string) (*models.LoginResponse, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.MFAEnabled || user.TOTPSecret == "" {
		return nil, ErrMFANotEnrolled
	}
	if !totp.Validate(token, user.TOTPSecret) {
		return nil, ErrInvalidTOTP
	}

	jwtToken, err := s.generateToken(user.ID.String())
	if err != nil {
		return nil, err
	}

	user.LastLogin = time.Now()
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		s.logger.Warn("Failed to update last login", zap.Error(err))
	}

	return &models.LoginResponse{User: user, Token: jwtToken}, nil
}

// Enable2FA provisions a TOTP secret; it is pending until Confirm2FA succeeds.
// Returns the otpauth:// URL for enrollment.
func (s *Service) Enable2FA(ctx context.Context, userID string) (string, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "AtlasBank",
		AccountName: user.Email,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate totp secret: %w", err)
	}

	user.TOTPSecret = key.Secret()
	user.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return "", fmt.Errorf("failed to save totp secret: %w", err)
	}

	return key.URL(), nil
}

// Confirm2FA verifies the first code and switches MFA on
func (s *Service) Confirm2FA(ctx context.Context, userID, token string) error {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.TOTPSecret == "" {
		return ErrMFANotEnrolled
	}
	if !totp.Validate(token, user.TOTPSecret) {
		return ErrInvalidTOTP
	}

	user.MFAEnabled = true
	user.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("failed to enable mfa: %w", err)
	}

	s.logger.Info("MFA enabled", zap.String("user_id", userID))
	return nil
}

// GetUser returns a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.findUser(ctx, userID)
}

// ValidateToken parses and validates a JWT, returning the subject user ID
func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

func (s *Service) findUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (s *Service) generateToken(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour * time.Duration(s.jwtExpirationHours)).Unix(),
		"iat": time.Now().Unix(),
	})
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
