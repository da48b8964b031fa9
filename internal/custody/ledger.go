package custody

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LedgerVault is the live-mode vault: a hash-chained double-entry ledger
// in Postgres. Pull moves owner/available -> system/custody, Push moves
// system/custody -> recipient/available, always as one serializable
// transaction writing both legs.
type LedgerVault struct {
	pool *pgxpool.Pool
}

func NewLedgerVault(pool *pgxpool.Pool) *LedgerVault {
	return &LedgerVault{pool: pool}
}

func (v *LedgerVault) Pull(ctx context.Context, owner, asset string, amount decimal.Decimal, entryType types.LedgerEntryType, ref string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	tx, err := v.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	from, err := v.ensureAccount(ctx, tx, owner, asset, types.AccountKindAvailable)
	if err != nil {
		return err
	}
	to, err := v.ensureSystemAccount(ctx, tx, asset, types.AccountKindCustody)
	if err != nil {
		return err
	}
	balance, err := v.accountBalance(ctx, tx, from)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	if err := v.transfer(ctx, tx, from, to, amount, entryType, ref); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (v *LedgerVault) Push(ctx context.Context, recipient, asset string, amount decimal.Decimal, entryType types.LedgerEntryType, ref string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	tx, err := v.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	from, err := v.ensureSystemAccount(ctx, tx, asset, types.AccountKindCustody)
	if err != nil {
		return err
	}
	to, err := v.ensureAccount(ctx, tx, recipient, asset, types.AccountKindAvailable)
	if err != nil {
		return err
	}
	balance, err := v.accountBalance(ctx, tx, from)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	if err := v.transfer(ctx, tx, from, to, amount, entryType, ref); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Deposit books value in from the external world: system/external is
// debited without a balance check so the external account runs negative
// by exactly the venue's total inflow.
func (v *LedgerVault) Deposit(ctx context.Context, owner, asset string, amount decimal.Decimal, ref string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	tx, err := v.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	from, err := v.ensureSystemAccount(ctx, tx, asset, types.AccountKindExternal)
	if err != nil {
		return err
	}
	to, err := v.ensureAccount(ctx, tx, owner, asset, types.AccountKindAvailable)
	if err != nil {
		return err
	}
	if err := v.transfer(ctx, tx, from, to, amount, types.LedgerEntryTypeDeposit, ref); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (v *LedgerVault) Withdraw(ctx context.Context, owner, asset string, amount decimal.Decimal, ref string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	tx, err := v.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	from, err := v.ensureAccount(ctx, tx, owner, asset, types.AccountKindAvailable)
	if err != nil {
		return err
	}
	to, err := v.ensureSystemAccount(ctx, tx, asset, types.AccountKindExternal)
	if err != nil {
		return err
	}
	balance, err := v.accountBalance(ctx, tx, from)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	if err := v.transfer(ctx, tx, from, to, amount, types.LedgerEntryTypeWithdraw, ref); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (v *LedgerVault) Balance(ctx context.Context, owner, asset string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := v.pool.QueryRow(ctx, "select coalesce(sum(le.amount), 0) from accounts a left join ledger_entries le on le.account_id = a.id where a.owner_type = 'user' and a.owner_ref = $1 and a.asset = $2 and a.kind = $3", owner, asset, string(types.AccountKindAvailable)).Scan(&sum)
	return sum, err
}

func (v *LedgerVault) ensureAccount(ctx context.Context, tx pgx.Tx, owner, asset string, kind types.AccountKind) (string, error) {
	var id string
	err := tx.QueryRow(ctx, "select id from accounts where owner_type = 'user' and owner_ref = $1 and asset = $2 and kind = $3", owner, asset, string(kind)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	err = tx.QueryRow(ctx, "insert into accounts (owner_type, owner_ref, asset, kind) values ('user', $1, $2, $3) returning id", owner, asset, string(kind)).Scan(&id)
	return id, err
}

func (v *LedgerVault) ensureSystemAccount(ctx context.Context, tx pgx.Tx, asset string, kind types.AccountKind) (string, error) {
	var id string
	err := tx.QueryRow(ctx, "select id from accounts where owner_type = 'system' and owner_ref is null and asset = $1 and kind = $2", asset, string(kind)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	err = tx.QueryRow(ctx, "insert into accounts (owner_type, owner_ref, asset, kind) values ('system', null, $1, $2) returning id", asset, string(kind)).Scan(&id)
	return id, err
}

func (v *LedgerVault) accountBalance(ctx context.Context, tx pgx.Tx, accountID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := tx.QueryRow(ctx, "select coalesce(sum(amount), 0) from ledger_entries where account_id = $1", accountID).Scan(&sum)
	return sum, err
}

func (v *LedgerVault) transfer(ctx context.Context, tx pgx.Tx, fromID, toID string, amount decimal.Decimal, entryType types.LedgerEntryType, ref string) error {
	var txID string
	err := tx.QueryRow(ctx, "insert into ledger_txs (ref, created_at) values ($1, $2) returning id", ref, time.Now().UTC()).Scan(&txID)
	if err != nil {
		return err
	}
	if err := v.appendEntry(ctx, tx, txID, fromID, amount.Neg(), entryType); err != nil {
		return err
	}
	return v.appendEntry(ctx, tx, txID, toID, amount, entryType)
}

func (v *LedgerVault) appendEntry(ctx context.Context, tx pgx.Tx, txID, accountID string, amount decimal.Decimal, entryType types.LedgerEntryType) error {
	// Advisory lock serializes the hash chain across concurrent writers.
	if _, err := tx.Exec(ctx, "select pg_advisory_xact_lock(1)"); err != nil {
		return err
	}
	var prevHash *string
	err := tx.QueryRow(ctx, "select encode(hash, 'hex') from ledger_entries order by sequence desc limit 1").Scan(&prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var entryID string
	var seq int64
	err = tx.QueryRow(ctx, "insert into ledger_entries (tx_id, account_id, amount, entry_type, prev_hash, created_at) values ($1, $2, $3, $4, decode(nullif($5,''), 'hex'), $6) returning id, sequence", txID, accountID, amount, string(entryType), nullable(prevHash), time.Now().UTC()).Scan(&entryID, &seq)
	if err != nil {
		return err
	}
	hash := computeHash(entryID, txID, accountID, amount, entryType, seq, prevHash)
	_, err = tx.Exec(ctx, "update ledger_entries set hash = decode($1, 'hex') where id = $2", hash, entryID)
	return err
}

func computeHash(entryID, txID, accountID string, amount decimal.Decimal, entryType types.LedgerEntryType, seq int64, prevHash *string) string {
	buf := entryID + "|" + txID + "|" + accountID + "|" + amount.String() + "|" + string(entryType) + "|" + strconv.FormatInt(seq, 10) + "|"
	if prevHash != nil {
		buf += *prevHash
	}
	sum := sha256.Sum256([]byte(buf))
	return hex.EncodeToString(sum[:])
}

func nullable(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
