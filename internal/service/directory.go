package service

import (
	"strings"

	"github.com/lottoloop/chain-custody/internal/models"
)

// AddressDirectory is an in-memory snapshot mapping a custodial deposit
// address to its owning account. The scanner rebuilds it from account
// storage at the start of every cycle, so accounts created mid-cycle are
// picked up on the next one.
type AddressDirectory struct {
	byAddress map[string]models.Account
}

func BuildAddressDirectory(accounts []models.Account) *AddressDirectory {
	byAddress := make(map[string]models.Account, len(accounts))
	for _, a := range accounts {
		if a.DepositAddress == "" {
			continue
		}
		byAddress[strings.ToLower(a.DepositAddress)] = a
	}
	return &AddressDirectory{byAddress: byAddress}
}

// Lookup resolves a recipient address to its owning account. A miss means
// the transfer is not for us and is silently discarded by the caller.
func (d *AddressDirectory) Lookup(address string) (models.Account, bool) {
	account, ok := d.byAddress[strings.ToLower(address)]
	return account, ok
}

func (d *AddressDirectory) Len() int {
	return len(d.byAddress)
}
