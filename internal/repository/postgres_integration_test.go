//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.WalletTransaction{},
		&models.WalletAccount{},
		&models.CompensationRequest{},
		&models.DamagedItemClaim{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(cleanupModels...); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestPostgresClaimKeywordIsCaseInsensitive(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewClaimRepository(db)

	claims := []models.DamagedItemClaim{
		{PackageID: 1, UserID: 1, Description: "Cracked SCREEN", Status: constants.ClaimStatusPending},
		{PackageID: 2, UserID: 1, Description: "dented", AdminNotes: "screen ok", Status: constants.ClaimStatusRejected},
		{PackageID: 3, UserID: 1, Description: "wet_box", Status: constants.ClaimStatusPending},
	}
	for i := range claims {
		if err := repo.CreateDamaged(&claims[i]); err != nil {
			t.Fatalf("create damaged claim failed: %v", err)
		}
	}

	_, total, err := repo.ListDamaged(ClaimListFilter{Keyword: "Screen"})
	if err != nil {
		t.Fatalf("keyword list failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("ILIKE keyword want 2 got %d", total)
	}

	_, total, err = repo.ListDamaged(ClaimListFilter{Keyword: "t_b"})
	if err != nil {
		t.Fatalf("underscore keyword failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("underscore must match literally, got %d", total)
	}
}

func TestPostgresWalletTransactionsRoundTripMoney(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewWalletRepository(db)

	err := repo.Transaction(func(tx *gorm.DB) error {
		txRepo := repo.WithTx(tx)
		if err := txRepo.CreateAccount(&models.WalletAccount{UserID: 1, Balance: models.Yen(5000)}); err != nil {
			return err
		}
		account, err := txRepo.GetAccountByUserIDForUpdate(1)
		if err != nil {
			return err
		}
		before := account.Balance
		account.Balance = account.Balance.Sub(models.Yen(1200))
		if err := txRepo.UpdateAccount(account); err != nil {
			return err
		}
		return txRepo.CreateTransaction(&models.WalletTransaction{
			UserID:        1,
			Type:          constants.WalletTxnTypeShipping,
			Direction:     constants.WalletTxnDirectionOut,
			Amount:        models.Yen(1200),
			BalanceBefore: before,
			BalanceAfter:  account.Balance,
			Currency:      "JPY",
			Reference:     "shipping:1",
			CreatedAt:     time.Now(),
		})
	})
	if err != nil {
		t.Fatalf("wallet transaction failed: %v", err)
	}

	account, err := repo.GetAccountByUserID(1)
	if err != nil {
		t.Fatalf("reload account failed: %v", err)
	}
	if account.Balance.Int64() != 3800 {
		t.Fatalf("balance want 3800 got %s", account.Balance.String())
	}
	rows, total, err := repo.ListTransactions(WalletTransactionListFilter{UserID: 1, Type: constants.WalletTxnTypeShipping})
	if err != nil {
		t.Fatalf("list transactions failed: %v", err)
	}
	if total != 1 || rows[0].BalanceAfter.Int64() != 3800 {
		t.Fatalf("transaction mismatch: total=%d rows=%v", total, rows)
	}
}
