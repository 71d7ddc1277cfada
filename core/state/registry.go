package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrUnknownContract is returned when an address has no registered contract.
	ErrUnknownContract = errors.New("registry: unknown contract")
	// ErrAddressInUse is returned when registering over an existing contract.
	ErrAddressInUse = errors.New("registry: address already in use")
)

// Registry is the address-keyed directory of deployed contracts. Contracts
// refer to each other only through addresses resolved here, never through
// owning references.
type Registry struct {
	contracts map[common.Address]any
	nonces    map[common.Address]uint64
}

type registrySnapshot struct {
	contracts map[common.Address]any
	nonces    map[common.Address]uint64
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		contracts: make(map[common.Address]any),
		nonces:    make(map[common.Address]uint64),
	}
}

// NextAddress derives the address of the next contract created by deployer
// using the CREATE rule (keccak(rlp(deployer, nonce))) and bumps the nonce.
func (r *Registry) NextAddress(deployer common.Address) common.Address {
	nonce := r.nonces[deployer]
	r.nonces[deployer] = nonce + 1
	return ethcrypto.CreateAddress(deployer, nonce)
}

// Nonce returns the number of contracts created by deployer.
func (r *Registry) Nonce(deployer common.Address) uint64 {
	return r.nonces[deployer]
}

// Register binds contract to addr.
func (r *Registry) Register(addr common.Address, contract any) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("registry: zero address")
	}
	if _, exists := r.contracts[addr]; exists {
		return fmt.Errorf("%w: %s", ErrAddressInUse, addr.Hex())
	}
	r.contracts[addr] = contract
	return nil
}

// Lookup resolves the contract registered at addr.
func (r *Registry) Lookup(addr common.Address) (any, error) {
	contract, ok := r.contracts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, addr.Hex())
	}
	return contract, nil
}

// Snapshot implements Journaled.
func (r *Registry) Snapshot() any {
	snap := registrySnapshot{
		contracts: make(map[common.Address]any, len(r.contracts)),
		nonces:    make(map[common.Address]uint64, len(r.nonces)),
	}
	for k, v := range r.contracts {
		snap.contracts[k] = v
	}
	for k, v := range r.nonces {
		snap.nonces[k] = v
	}
	return snap
}

// Revert implements Journaled.
func (r *Registry) Revert(snapshot any) {
	snap, ok := snapshot.(registrySnapshot)
	if !ok {
		return
	}
	r.contracts = snap.contracts
	r.nonces = snap.nonces
}
