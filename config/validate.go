package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/deploy"
)

func parseAddress(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("%w: %s", deploy.ErrMissingConfiguration, field)
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid %s: %q is not a hex address", field, raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAddresses(field string, raw []string) ([]common.Address, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]common.Address, 0, len(raw))
	for i, value := range raw {
		addr, err := parseAddress(fmt.Sprintf("%s[%d]", field, i), value)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func parseAmount(field, raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return amount, nil
}
