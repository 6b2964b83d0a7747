package bookkeeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/atlasfin/atlasbank/pkg/models"
)

// Sentinel errors surfaced to callers and mapped to HTTP codes at the API layer.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInsufficientLock  = errors.New("insufficient locked funds")
)

// BookkeeperService defines cash account and ledger operations
type BookkeeperService interface {
	Start() error
	Stop() error
	GetAccounts(ctx context.Context, userID string) ([]*models.Account, error)
	GetAccount(ctx context.Context, userID, currency string) (*models.Account, error)
	CreateAccount(ctx context.Context, userID, currency string) (*models.Account, error)
	Deposit(ctx context.Context, userID, currency string, amount decimal.Decimal, reference string) error
	LockFunds(ctx context.Context, userID, currency string, amount decimal.Decimal) error
	UnlockFunds(ctx context.Context, userID, currency string, amount decimal.Decimal) error
	SettleTrade(ctx context.Context, userID, currency string, cashDelta, commission decimal.Decimal, reference string) error
	GetTransactions(ctx context.Context, userID, currency string, limit, offset int) ([]*models.Transaction, int64, error)
}

// Service implements BookkeeperService
type Service struct {
	logger *zap.Logger
	db     *gorm.DB
}

// NewService creates a new BookkeeperService
func NewService(logger *zap.Logger, db *gorm.DB) (BookkeeperService, error) {
	return &Service{logger: logger, db: db}, nil
}

// Start starts the bookkeeper service
func (s *Service) Start() error {
	s.logger.Info("Bookkeeper service started")
	return nil
}

// Stop stops the bookkeeper service
func (s *Service) Stop() error {
	s.logger.Info("Bookkeeper service stopped")
	return nil
}

// GetAccounts gets all cash accounts for a user
func (s *Service) GetAccounts(ctx context.Context, userID string) ([]*models.Account, error) {
	var accounts []*models.Account
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to find accounts: %w", err)
	}
	return accounts, nil
}

// GetAccount gets a single cash account
func (s *Service) GetAccount(ctx context.Context, userID, currency string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Where("user_id = ? AND currency = ?", userID, currency).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return &account, nil
}

// CreateAccount creates a zero-balance account for a user and currency
func (s *Service) CreateAccount(ctx context.Context, userID, currency string) (*models.Account, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("user_id = ? AND currency = ?", userID, currency).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check account: %w", err)
	}
	if count > 0 {
		return nil, ErrAccountExists
	}

	now := time.Now()
	account := &models.Account{
		ID:        uuid.New(),
		UserID:    uuid.MustParse(userID),
		Currency:  currency,
		Balance:   decimal.Zero,
		Available: decimal.Zero,
		Locked:    decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// Deposit credits an account and writes a completed ledger entry
func (s *Service) Deposit(ctx context.Context, userID, currency string, amount decimal.Decimal, reference string) error {
	if amount.IsNegative() || amount.IsZero() {
		return fmt.Errorf("deposit amount must be positive")
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	account, err := findAccount(tx, userID, currency)
	if err != nil {
		tx.Rollback()
		return err
	}

	account.Balance = account.Balance.Add(amount)
	account.Available = account.Available.Add(amount)
	account.UpdatedAt = time.Now()
	if err := tx.Save(account).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to save account: %w", err)
	}

	if err := writeEntry(tx, account.UserID, "deposit", "credit", amount, currency, reference, "cash deposit"); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LockFunds moves funds from available to locked
func (s *Service) LockFunds(ctx context.Context, userID, currency string, amount decimal.Decimal) error {
	if amount.IsNegative() || amount.IsZero() {
		return fmt.Errorf("lock amount must be positive")
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	account, err := findAccount(tx, userID, currency)
	if err != nil {
		tx.Rollback()
		return err
	}

	if account.Available.LessThan(amount) {
		tx.Rollback()
		return ErrInsufficientFunds
	}

	account.Available = account.Available.Sub(amount)
	account.Locked = account.Locked.Add(amount)
	account.UpdatedAt = time.Now()
	if err := tx.Save(account).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to save account: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UnlockFunds moves funds from locked back to available
func (s *Service) UnlockFunds(ctx context.Context, userID, currency string, amount decimal.Decimal) error {
	if amount.IsNegative() || amount.IsZero() {
		return fmt.Errorf("unlock amount must be positive")
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	account, err := findAccount(tx, userID, currency)
	if err != nil {
		tx.Rollback()
		return err
	}

	if account.Locked.LessThan(amount) {
		tx.Rollback()
		return ErrInsufficientLock
	}

	account.Available = account.Available.Add(amount)
	account.Locked = account.Locked.Sub(amount)
	account.UpdatedAt = time.Now()
	if err := tx.Save(account).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to save account: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SettleTrade applies the cash movement of a fill: cashDelta is signed
// (negative for buys), commission is always debited separately so it shows
// as its own ledger entry.
func (s *Service) SettleTrade(ctx context.Context, userID, currency string, cashDelta, commission decimal.Decimal, reference string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return SettleTradeTx(tx, userID, currency, cashDelta, commission, reference)
	})
}

// SettleTradeTx is SettleTrade inside a caller-owned transaction, so fill
// settlement can commit atomically with the trade and position records.
func SettleTradeTx(tx *gorm.DB, userID, currency string, cashDelta, commission decimal.Decimal, reference string) error {
	account, err := findAccount(tx, userID, currency)
	if err != nil {
		return err
	}

	total := cashDelta.Sub(commission)
	newAvailable := account.Available.Add(total)
	if newAvailable.IsNegative() {
		return ErrInsufficientFunds
	}

	account.Balance = account.Balance.Add(total)
	account.Available = newAvailable
	account.UpdatedAt = time.Now()
	if err := tx.Save(account).Error; err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	direction := "credit"
	if cashDelta.IsNegative() {
		direction = "debit"
	}
	if err := writeEntry(tx, account.UserID, "trade", direction, cashDelta.Abs(), currency, reference, "trade settlement"); err != nil {
		return err
	}
	if commission.IsPositive() {
		if err := writeEntry(tx, account.UserID, "commission", "debit", commission, currency, reference, "trade commission"); err != nil {
			return err
		}
	}
	return nil
}

// GetTransactions returns the ledger history for an account with paging
func (s *Service) GetTransactions(ctx context.Context, userID, currency string, limit, offset int) ([]*models.Transaction, int64, error) {
	if _, err := s.GetAccount(ctx, userID, currency); err != nil {
		return nil, 0, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("user_id = ? AND currency = ?", userID, currency).Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	var transactions []*models.Transaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND currency = ?", userID, currency).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find transactions: %w", err)
	}
	return transactions, count, nil
}

func findAccount(tx *gorm.DB, userID, currency string) (*models.Account, error) {
	var account models.Account
	if err := tx.Where("user_id = ? AND currency = ?", userID, currency).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return &account, nil
}

func writeEntry(tx *gorm.DB, userID uuid.UUID, entryType, direction string, amount decimal.Decimal, currency, reference, description string) error {
	now := time.Now()
	entry := &models.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        entryType,
		Direction:   direction,
		Amount:      amount,
		Currency:    currency,
		Status:      "completed",
		Reference:   reference,
		Description: description,
		CreatedAt:   now,
		CompletedAt: &now,
	}
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return nil
}
