package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupWalletRepositoryTest(t *testing.T) (*GormWalletRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:wallet_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.WalletAccount{},
		&models.WalletTransaction{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewWalletRepository(db), db
}

func seedWalletTransactions(t *testing.T, db *gorm.DB, now time.Time) {
	t.Helper()
	pkgA := uint(11)
	pkgB := uint(12)
	rows := []models.WalletTransaction{
		{
			UserID:        1,
			PackageID:     &pkgA,
			Type:          constants.WalletTxnTypeShipping,
			Direction:     constants.WalletTxnDirectionOut,
			Amount:        models.Yen(1800),
			BalanceBefore: models.Yen(5000),
			BalanceAfter:  models.Yen(3200),
			Currency:      "JPY",
			Reference:     "shipping:11",
			CreatedAt:     now.Add(-3 * time.Hour),
		},
		{
			UserID:        1,
			PackageID:     &pkgA,
			Type:          constants.WalletTxnTypeRefund,
			Direction:     constants.WalletTxnDirectionIn,
			Amount:        models.Yen(1800),
			BalanceBefore: models.Yen(3200),
			BalanceAfter:  models.Yen(5000),
			Currency:      "JPY",
			Reference:     "refund:damaged:4",
			CreatedAt:     now.Add(-2 * time.Hour),
		},
		{
			UserID:        1,
			PackageID:     &pkgB,
			Type:          constants.WalletTxnTypeStorage,
			Direction:     constants.WalletTxnDirectionOut,
			Amount:        models.Yen(300),
			BalanceBefore: models.Yen(5000),
			BalanceAfter:  models.Yen(4700),
			Currency:      "JPY",
			Reference:     "storage:12",
			CreatedAt:     now.Add(-time.Hour),
		},
		{
			UserID:        2,
			Type:          constants.WalletTxnTypeAdminAdjust,
			Direction:     constants.WalletTxnDirectionIn,
			Amount:        models.Yen(1000),
			BalanceBefore: models.Yen(0),
			BalanceAfter:  models.Yen(1000),
			Currency:      "JPY",
			Reference:     "admin:1:adjust",
			Remark:        "goodwill",
			CreatedAt:     now,
		},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("create wallet transaction failed: %v", err)
		}
	}
}

func TestWalletRepositoryListTransactionsFilters(t *testing.T) {
	repo, db := setupWalletRepositoryTest(t)
	now := time.Now().UTC().Truncate(time.Second)
	seedWalletTransactions(t, db, now)

	rows, total, err := repo.ListTransactions(WalletTransactionListFilter{UserID: 1, Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("list by user failed: %v", err)
	}
	if total != 3 || len(rows) != 3 {
		t.Fatalf("user filter want 3 got total=%d len=%d", total, len(rows))
	}
	if rows[0].Reference != "storage:12" {
		t.Fatalf("rows must be newest first, got %s", rows[0].Reference)
	}

	rows, total, err = repo.ListTransactions(WalletTransactionListFilter{UserID: 1, PackageID: 11})
	if err != nil {
		t.Fatalf("list by package failed: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("package filter want 2 got total=%d len=%d", total, len(rows))
	}

	rows, total, err = repo.ListTransactions(WalletTransactionListFilter{
		UserID:    1,
		Type:      constants.WalletTxnTypeRefund,
		Direction: constants.WalletTxnDirectionIn,
	})
	if err != nil {
		t.Fatalf("list by type failed: %v", err)
	}
	if total != 1 || rows[0].Reference != "refund:damaged:4" {
		t.Fatalf("type filter mismatch: total=%d rows=%v", total, rows)
	}

	from := now.Add(-150 * time.Minute)
	to := now.Add(-30 * time.Minute)
	rows, total, err = repo.ListTransactions(WalletTransactionListFilter{CreatedFrom: &from, CreatedTo: &to})
	if err != nil {
		t.Fatalf("list by time range failed: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("time range want 2 got total=%d len=%d", total, len(rows))
	}
}

func TestWalletRepositoryListTransactionsPagination(t *testing.T) {
	repo, db := setupWalletRepositoryTest(t)
	seedWalletTransactions(t, db, time.Now().UTC().Truncate(time.Second))

	rows, total, err := repo.ListTransactions(WalletTransactionListFilter{Page: 2, PageSize: 3})
	if err != nil {
		t.Fatalf("list page failed: %v", err)
	}
	if total != 4 {
		t.Fatalf("total want 4 got %d", total)
	}
	if len(rows) != 1 || rows[0].Reference != "shipping:11" {
		t.Fatalf("second page want oldest row, got %v", rows)
	}
}

func TestWalletRepositoryGetTransactionByReference(t *testing.T) {
	repo, db := setupWalletRepositoryTest(t)
	seedWalletTransactions(t, db, time.Now().UTC().Truncate(time.Second))

	txn, err := repo.GetTransactionByReference(" refund:damaged:4 ")
	if err != nil {
		t.Fatalf("get by reference failed: %v", err)
	}
	if txn == nil || txn.Amount.Int64() != 1800 {
		t.Fatalf("reference lookup mismatch: %+v", txn)
	}

	txn, err = repo.GetTransactionByReference("missing")
	if err != nil || txn != nil {
		t.Fatalf("missing reference want nil,nil got %+v,%v", txn, err)
	}
	txn, err = repo.GetTransactionByReference("")
	if err != nil || txn != nil {
		t.Fatalf("blank reference want nil,nil got %+v,%v", txn, err)
	}
}

func TestWalletRepositoryAccountLookup(t *testing.T) {
	repo, _ := setupWalletRepositoryTest(t)

	account, err := repo.GetAccountByUserID(9)
	if err != nil || account != nil {
		t.Fatalf("missing account want nil,nil got %+v,%v", account, err)
	}
	if err := repo.CreateAccount(&models.WalletAccount{UserID: 9, Balance: models.Yen(700)}); err != nil {
		t.Fatalf("create account failed: %v", err)
	}
	account, err = repo.GetAccountByUserIDForUpdate(9)
	if err != nil {
		t.Fatalf("get account for update failed: %v", err)
	}
	if account == nil || account.Balance.Int64() != 700 {
		t.Fatalf("account balance mismatch: %+v", account)
	}
}
