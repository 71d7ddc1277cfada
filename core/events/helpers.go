package events

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func formatAddress(addr common.Address) string {
	return addr.Hex()
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
