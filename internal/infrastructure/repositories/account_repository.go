package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/captionly/metering/internal/core/domain/account"
	"github.com/captionly/metering/internal/core/ports"
	"github.com/captionly/metering/internal/infrastructure/db"
)

// AccountRepository implements the account repository interface on Postgres.
// Row locks taken by GetForUpdate serialize concurrent writers on the same
// customer; writers to different customers never contend.
type AccountRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(database *db.Database, logger *logrus.Logger) ports.AccountRepository {
	return &AccountRepository{
		db:     database,
		logger: logger,
	}
}

func (r *AccountRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.DB.DB.BeginTx(ctx, nil)
}

const accountColumns = `customer_id, tier, last_request_at, period_start, period_end, requests_used, tokens_used, created_at, updated_at`

// GetForUpdate locks and returns the account row for the duration of tx.
func (r *AccountRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, customerID string) (*account.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE customer_id = $1
		FOR UPDATE`

	a, err := scanAccount(tx.QueryRowContext(ctx, query, customerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, account.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock account %s: %w", customerID, err)
	}
	return a, nil
}

// Insert creates the account row (first-touch provisioning).
func (r *AccountRepository) Insert(ctx context.Context, tx *sql.Tx, a *account.Account) error {
	query := `
		INSERT INTO accounts (customer_id, tier, last_request_at, period_start, period_end, requests_used, tokens_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.ExecContext(ctx, query,
		a.CustomerID, a.Tier, a.LastRequestAt, a.PeriodStart, a.PeriodEnd, a.RequestsUsed, a.TokensUsed)
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", a.CustomerID, err)
	}
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"customer_id": a.CustomerID, "tier": a.Tier}).Debug("db: account provisioned")
	}
	return nil
}

// UpdateLastRequest advances last_request_at for the locked row.
func (r *AccountRepository) UpdateLastRequest(ctx context.Context, tx *sql.Tx, customerID string, at time.Time) error {
	query := `
		UPDATE accounts
		SET last_request_at = $2, updated_at = NOW()
		WHERE customer_id = $1`

	_, err := tx.ExecContext(ctx, query, customerID, at)
	if err != nil {
		return fmt.Errorf("failed to update last request for account %s: %w", customerID, err)
	}
	return nil
}

// UpdateUsage writes the usage counters and period window for the locked row.
func (r *AccountRepository) UpdateUsage(ctx context.Context, tx *sql.Tx, a *account.Account) error {
	query := `
		UPDATE accounts
		SET requests_used = $2, tokens_used = $3, period_start = $4, period_end = $5, updated_at = NOW()
		WHERE customer_id = $1`

	_, err := tx.ExecContext(ctx, query,
		a.CustomerID, a.RequestsUsed, a.TokensUsed, a.PeriodStart, a.PeriodEnd)
	if err != nil {
		return fmt.Errorf("failed to update usage for account %s: %w", a.CustomerID, err)
	}
	return nil
}

// UpdateSubscription writes tier and period end for the locked row.
func (r *AccountRepository) UpdateSubscription(ctx context.Context, tx *sql.Tx, customerID string, tier account.Tier, periodEnd time.Time) error {
	query := `
		UPDATE accounts
		SET tier = $2, period_end = $3, updated_at = NOW()
		WHERE customer_id = $1`

	_, err := tx.ExecContext(ctx, query, customerID, tier, periodEnd)
	if err != nil {
		return fmt.Errorf("failed to update subscription for account %s: %w", customerID, err)
	}
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"customer_id": customerID, "tier": tier}).Debug("db: subscription updated")
	}
	return nil
}

// GetByID retrieves an account outside any transaction.
func (r *AccountRepository) GetByID(ctx context.Context, customerID string) (*account.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE customer_id = $1`

	a, err := scanAccount(r.db.DB.QueryRowContext(ctx, query, customerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, account.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account %s: %w", customerID, err)
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*account.Account, error) {
	var a account.Account
	err := row.Scan(
		&a.CustomerID, &a.Tier, &a.LastRequestAt, &a.PeriodStart, &a.PeriodEnd,
		&a.RequestsUsed, &a.TokensUsed, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
