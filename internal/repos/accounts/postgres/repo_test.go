package postgres

import (
	"testing"

	"github.com/fastprodman/casinoledger/internal/infra/pgtestutil"
	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/fastprodman/casinoledger/internal/repos/accounts/storetest"
)

func TestAccountsRepo_Contract(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T) accounts.Store {
		db, _ := pgtestutil.NewTestDB(t)
		return New(db)
	})
}
