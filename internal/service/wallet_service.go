package service

import (
	"strings"
	"time"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"
	"github.com/parcel-relay/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletService 余额账户服务，所有包裹费用都从余额扣除
type WalletService struct {
	walletRepo repository.WalletRepository
}

// WalletChargeInput 事务内扣款/入账输入
type WalletChargeInput struct {
	UserID    uint
	Amount    models.Money
	TxnType   string
	Reference string
	Remark    string
	PackageID *uint
}

// WalletAdjustInput 管理员余额调整输入
type WalletAdjustInput struct {
	UserID uint
	Delta  models.Money
	Remark string
}

// NewWalletService 创建钱包服务
func NewWalletService(walletRepo repository.WalletRepository) *WalletService {
	return &WalletService{walletRepo: walletRepo}
}

// GetAccount 获取钱包账户（不存在时自动创建）
func (s *WalletService) GetAccount(userID uint) (*models.WalletAccount, error) {
	if userID == 0 {
		return nil, invalid("user_id", "required")
	}
	account, err := s.walletRepo.GetAccountByUserID(userID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}
	now := time.Now()
	account = &models.WalletAccount{UserID: userID, Balance: models.Yen(0), CreatedAt: now, UpdatedAt: now}
	if err := s.walletRepo.CreateAccount(account); err != nil {
		created, queryErr := s.walletRepo.GetAccountByUserID(userID)
		if queryErr == nil && created != nil {
			return created, nil
		}
		return nil, err
	}
	return account, nil
}

// ListTransactions 查询钱包流水
func (s *WalletService) ListTransactions(filter repository.WalletTransactionListFilter) ([]models.WalletTransaction, int64, error) {
	return s.walletRepo.ListTransactions(filter)
}

// AdminAdjustBalance 管理员增减用户余额
func (s *WalletService) AdminAdjustBalance(input WalletAdjustInput, reference string) (*models.WalletTransaction, error) {
	if input.UserID == 0 {
		return nil, invalid("user_id", "required")
	}
	if input.Delta.IsZero() {
		return nil, ErrWalletInvalidAmount
	}
	var txn *models.WalletTransaction
	err := s.walletRepo.Transaction(func(tx *gorm.DB) error {
		charge := WalletChargeInput{
			UserID:    input.UserID,
			Amount:    models.NewMoneyFromDecimal(input.Delta.Decimal.Abs()),
			TxnType:   constants.WalletTxnTypeAdminAdjust,
			Reference: reference,
			Remark:    cleanWalletRemark(input.Remark, "管理员调整余额"),
		}
		var err error
		if input.Delta.IsPositive() {
			txn, err = s.CreditTx(tx, charge)
		} else {
			txn, err = s.DebitTx(tx, charge)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// BalanceForUpdate 事务内加锁读取余额
func (s *WalletService) BalanceForUpdate(tx *gorm.DB, userID uint) (models.Money, error) {
	account, err := s.ensureAccountForUpdate(s.walletRepo.WithTx(tx), userID, time.Now())
	if err != nil {
		return models.Yen(0), err
	}
	return account.Balance, nil
}

// DebitTx 在事务内扣款；同一参考号只扣一次，余额不足时不写任何记录
func (s *WalletService) DebitTx(tx *gorm.DB, input WalletChargeInput) (*models.WalletTransaction, error) {
	return s.changeBalanceTx(tx, input, constants.WalletTxnDirectionOut)
}

// CreditTx 在事务内入账；同一参考号只入一次
func (s *WalletService) CreditTx(tx *gorm.DB, input WalletChargeInput) (*models.WalletTransaction, error) {
	return s.changeBalanceTx(tx, input, constants.WalletTxnDirectionIn)
}

func (s *WalletService) changeBalanceTx(tx *gorm.DB, input WalletChargeInput, direction string) (*models.WalletTransaction, error) {
	if input.UserID == 0 {
		return nil, invalid("user_id", "required")
	}
	if !input.Amount.IsPositive() {
		return nil, ErrWalletInvalidAmount
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return nil, ErrWalletReferenceRequired
	}
	repo := s.walletRepo.WithTx(tx)
	exists, err := repo.GetTransactionByReference(reference)
	if err != nil {
		return nil, err
	}
	if exists != nil {
		return exists, nil
	}

	now := time.Now()
	account, err := s.ensureAccountForUpdate(repo, input.UserID, now)
	if err != nil {
		return nil, err
	}
	before := account.Balance
	var after models.Money
	if direction == constants.WalletTxnDirectionOut {
		if before.LessThan(input.Amount.Decimal) {
			return nil, &InsufficientBalanceError{Required: input.Amount, Available: before}
		}
		after = before.Sub(input.Amount)
	} else {
		after = before.Add(input.Amount)
	}
	account.Balance = after
	account.UpdatedAt = now
	if err := repo.UpdateAccount(account); err != nil {
		return nil, ErrWalletAccountUpdateFailed
	}

	txn := &models.WalletTransaction{
		UserID:        input.UserID,
		PackageID:     input.PackageID,
		Type:          strings.TrimSpace(input.TxnType),
		Direction:     direction,
		Amount:        input.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Currency:      constants.WalletCurrency,
		Reference:     reference,
		Remark:        cleanWalletRemark(input.Remark, "余额变动"),
		CreatedAt:     now,
	}
	if err := repo.CreateTransaction(txn); err != nil {
		return nil, ErrWalletTransactionCreateFailed
	}
	return txn, nil
}

func (s *WalletService) ensureAccountForUpdate(repo *repository.GormWalletRepository, userID uint, now time.Time) (*models.WalletAccount, error) {
	account, err := repo.GetAccountByUserIDForUpdate(userID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}
	account = &models.WalletAccount{
		UserID:    userID,
		Balance:   models.NewMoneyFromDecimal(decimal.Zero),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateAccount(account); err != nil {
		created, queryErr := repo.GetAccountByUserIDForUpdate(userID)
		if queryErr == nil && created != nil {
			return created, nil
		}
		return nil, ErrWalletAccountUpdateFailed
	}
	return account, nil
}

func cleanWalletRemark(raw string, fallback string) string {
	remark := strings.TrimSpace(raw)
	if remark == "" {
		return fallback
	}
	return remark
}
