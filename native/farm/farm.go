// Package farm defines the external collaborators a strategy calls into: the
// yield farm holding the staked want token and the converter turning reward
// tokens into want. The simulated implementations in this package model a
// MasterChef-style farm and a fixed-rate swap for tests and local runs.
package farm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// RewardAmount pairs a reward token with an amount.
type RewardAmount struct {
	Token  common.Address
	Amount *uint256.Int
}

// Farm is the external yield source keyed by pool identifier.
type Farm interface {
	// Deposit stakes amount of the pool's want token owned by from.
	Deposit(poolID uint64, from common.Address, amount *uint256.Int) error
	// Withdraw unstakes amount and returns it to the staker.
	Withdraw(poolID uint64, to common.Address, amount *uint256.Int) error
	// Staked returns the amount currently staked by account.
	Staked(poolID uint64, account common.Address) *uint256.Int
	// Pending returns the rewards claimable by account without mutating state.
	Pending(poolID uint64, account common.Address) ([]RewardAmount, error)
	// Claim pays pending rewards to account and returns what was paid.
	Claim(poolID uint64, account common.Address) ([]RewardAmount, error)
}

// Converter turns reward tokens into want-token profit.
type Converter interface {
	// Quote is the deterministic want output for amount of token.
	Quote(token common.Address, amount *uint256.Int) (*uint256.Int, error)
	// Convert pulls amount of token from holder and pays the quoted want back.
	Convert(token, holder common.Address, amount *uint256.Int) (*uint256.Int, error)
}
