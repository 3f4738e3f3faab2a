package types

import (
	"github.com/ethereum/go-ethereum/common"
)

const modulePrefix = "modl"

// ModuleAccount derives the sovereign account of a module from its id:
// "modl" followed by the id bytes, zero padded to the address length.
func ModuleAccount(id string) common.Address {
	var addr common.Address
	raw := append([]byte(modulePrefix), []byte(id)...)
	copy(addr[:], raw)
	return addr
}
