package solana

import (
	"context"
	"errors"
	"fmt"
)

// PumpSwapProgramID owns PumpSwap AMM pool accounts.
const PumpSwapProgramID = "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"

// Account lookup errors
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidOwner    = errors.New("account has unexpected owner")
)

// AccountError ties a lookup error to the account it concerns.
type AccountError struct {
	Pubkey string
	Owner  string // set for ErrInvalidOwner
	Err    error
}

func (e *AccountError) Error() string {
	if e.Owner != "" {
		return fmt.Sprintf("account %s: %v (owner %s)", e.Pubkey, e.Err, e.Owner)
	}
	return fmt.Sprintf("account %s: %v", e.Pubkey, e.Err)
}

func (e *AccountError) Unwrap() error { return e.Err }

// AccountFetcher reads raw account state. Missing accounts are nil entries.
type AccountFetcher interface {
	GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*Account, error)
}

// AccountResolver derives the token accounts a swap needs.
type AccountResolver struct {
	rpc         AccountFetcher
	poolProgram string
}

// NewAccountResolver creates a resolver. rpc may be nil, in which case
// addresses are derived under the classic token program without
// confirming anything on chain.
func NewAccountResolver(rpc AccountFetcher) *AccountResolver {
	return &AccountResolver{rpc: rpc, poolProgram: PumpSwapProgramID}
}

// PoolVaults returns the pool's token accounts for the base and quote mints.
// Vaults are the associated token accounts owned by the pool. With an RPC
// endpoint the pool must be owned by the AMM program, and each vault is
// derived under the token program that owns its mint.
func (r *AccountResolver) PoolVaults(ctx context.Context, pool, baseMint, quoteMint string) (base, quote string, err error) {
	baseProgram, quoteProgram := TokenProgramID, TokenProgramID
	if r.rpc != nil {
		accounts, err := r.rpc.GetMultipleAccounts(ctx, []string{pool, baseMint, quoteMint})
		if err != nil {
			return "", "", fmt.Errorf("pool %s: %w", pool, err)
		}
		if len(accounts) != 3 {
			return "", "", fmt.Errorf("pool %s: %d accounts returned for 3 keys", pool, len(accounts))
		}
		if err := checkOwner(pool, accounts[0], r.poolProgram); err != nil {
			return "", "", err
		}
		if baseProgram, err = mintProgram(baseMint, accounts[1]); err != nil {
			return "", "", err
		}
		if quoteProgram, err = mintProgram(quoteMint, accounts[2]); err != nil {
			return "", "", err
		}
	}

	base, err = AssociatedTokenAddress(pool, baseMint, baseProgram)
	if err != nil {
		return "", "", fmt.Errorf("base vault: %w", err)
	}
	quote, err = AssociatedTokenAddress(pool, quoteMint, quoteProgram)
	if err != nil {
		return "", "", fmt.Errorf("quote vault: %w", err)
	}
	return base, quote, nil
}

// BondingCurve returns the bonding curve account of a pump.fun mint.
func (r *AccountResolver) BondingCurve(mint string) (string, error) {
	return BondingCurveAddress(mint)
}

func checkOwner(pubkey string, acc *Account, owner string) error {
	if acc == nil {
		return &AccountError{Pubkey: pubkey, Err: ErrAccountNotFound}
	}
	if acc.Owner != owner {
		return &AccountError{Pubkey: pubkey, Owner: acc.Owner, Err: ErrInvalidOwner}
	}
	return nil
}

// mintProgram returns the token program owning a mint account.
func mintProgram(mint string, acc *Account) (string, error) {
	if acc == nil {
		return "", &AccountError{Pubkey: mint, Err: ErrAccountNotFound}
	}
	switch acc.Owner {
	case TokenProgramID, Token2022ProgramID:
		return acc.Owner, nil
	default:
		return "", &AccountError{Pubkey: mint, Owner: acc.Owner, Err: ErrInvalidOwner}
	}
}
