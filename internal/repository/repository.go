package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lottoloop/chain-custody/internal/domain"
	"github.com/lottoloop/chain-custody/internal/models"
)

// Repository is the account store: creation, lookup, and the balance
// mutation path. Balances only change through AdjustBalance.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (id, deposit_address, derivation_index, fun_balance, token_balance, created_at)
		VALUES ($1, lower($2), $3, $4, $5, NOW()) RETURNING created_at`
	err := r.db.QueryRow(ctx, query,
		account.ID, account.DepositAddress, account.DerivationIndex,
		account.FunBalance, account.TokenBalance,
	).Scan(&account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account := &models.Account{}
	query := `SELECT id, deposit_address, derivation_index, fun_balance, token_balance, created_at
		FROM accounts WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&account.ID, &account.DepositAddress, &account.DerivationIndex,
		&account.FunBalance, &account.TokenBalance, &account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListDepositAccounts returns every account that owns a deposit address.
// The scanner rebuilds its address directory from this snapshot each cycle.
func (r *Repository) ListDepositAccounts(ctx context.Context) ([]models.Account, error) {
	query := `SELECT id, deposit_address, derivation_index, fun_balance, token_balance, created_at
		FROM accounts WHERE deposit_address <> '' ORDER BY derivation_index`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposit accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.DepositAddress, &a.DerivationIndex,
			&a.FunBalance, &a.TokenBalance, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// AdjustBalance applies a signed delta to one of the account's balances.
// The credit path is unguarded; debit callers do their own sufficiency
// checks before calling.
func (r *Repository) AdjustBalance(ctx context.Context, accountID uuid.UUID, currency string, delta decimal.Decimal) error {
	var column string
	switch currency {
	case domain.CurrencyFun:
		column = "fun_balance"
	case domain.CurrencyToken:
		column = "token_balance"
	default:
		return fmt.Errorf("unsupported currency: %s", currency)
	}

	query := fmt.Sprintf(`UPDATE accounts SET %s = %s + $1 WHERE id = $2`, column, column)
	tag, err := r.db.Exec(ctx, query, delta, accountID)
	if err != nil {
		return fmt.Errorf("failed to adjust %s balance: %w", currency, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}
