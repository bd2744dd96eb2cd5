package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/logger"
	"github.com/parcel-relay/internal/models"
	"github.com/parcel-relay/internal/repository"

	"gorm.io/gorm"
)

// DamagedClaimInput 客户提交仓库内损坏申请
type DamagedClaimInput struct {
	Description string
	// Photos 作为证据的照片，为空时使用拍照服务的全部照片
	Photos []string
}

// RefundInput 选择退款方式
type RefundInput struct {
	Method       string
	PaymentEmail string
	CardLast4    string
}

// ClaimReviewInput 仓库审核
type ClaimReviewInput struct {
	Approve bool
	Notes   string
}

// DamagedClaimService 仓库内损坏申请与退款
type DamagedClaimService struct {
	fulfillmentCore
}

// NewDamagedClaimService 创建损坏申请服务
func NewDamagedClaimService(deps FulfillmentDeps) *DamagedClaimService {
	return &DamagedClaimService{fulfillmentCore: newFulfillmentCore(deps)}
}

// FileDamagedItemClaim 提交损坏申请，需已完成拍照服务且包裹上没有其他未结束申请
func (s *DamagedClaimService) FileDamagedItemClaim(ctx context.Context, userID, packageID uint, input DamagedClaimInput) (*models.DamagedItemClaim, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, invalid("description", "required")
	}

	var claim *models.DamagedItemClaim
	err := s.run(ctx, []uint{packageID}, func(tx *gorm.DB, changes *ChangeSet) error {
		pkg, err := s.loadOwned(tx, userID, packageID)
		if err != nil {
			return err
		}
		open, err := s.ClaimRepo.WithTx(tx).FindOpenDamagedByPackage(pkg.ID)
		if err != nil {
			return err
		}
		var reasons reasonSet
		reasons.merge(statusReasons(pkg))
		reasons.add(pkg.ShippingRequested, ReasonShippingRequested)
		reasons.add(pkg.CancelPurchaseOpen(), ReasonCancelPurchaseActive)
		reasons.add(!pkg.PhotoService || pkg.PhotoServiceStatus != constants.ServiceStatusCompleted, ReasonPhotoNotCompleted)
		reasons.add(len(pkg.Photos) == 0, ReasonNoPhotos)
		reasons.add(open != nil, ReasonClaimExists)
		if len(reasons) > 0 {
			return &IneligibleTransitionError{Action: ActionFileDamagedClaim, Reasons: reasons}
		}

		photos, err := selectEvidencePhotos(pkg.Photos, input.Photos)
		if err != nil {
			return err
		}
		claim = &models.DamagedItemClaim{
			PackageID:   pkg.ID,
			UserID:      pkg.UserID,
			Description: description,
			Photos:      photos,
			Status:      constants.ClaimStatusPending,
		}
		if err := s.ClaimRepo.WithTx(tx).CreateDamaged(claim); err != nil {
			return fmt.Errorf("create damaged claim failed: %w", err)
		}
		if err := changes.Record(tx, pkg.UserID, constants.ChangeEntityClaim, claim.ID, ActionFileDamagedClaim, 0); err != nil {
			return err
		}
		if err := changes.Package(tx, pkg, ActionFileDamagedClaim); err != nil {
			return err
		}
		return changes.Notify(tx, pkg.UserID, constants.NotificationKindClaim,
			"Damage report received",
			fmt.Sprintf("We are reviewing the damage report for package #%d.", pkg.ID),
			uintPtr(pkg.ID))
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("damaged_claim_filed", "claim_id", claim.ID, "package_id", packageID, "user_id", userID)
	return claim, nil
}

// RequestDamagedItemRefund 审核通过后选择退款方式
// balance 立即退到余额，replace 生成补发订单，stripe/paypal 待人工确认
func (s *DamagedClaimService) RequestDamagedItemRefund(ctx context.Context, userID, claimID uint, input RefundInput) (*models.DamagedItemClaim, error) {
	payout, err := normalizeRefundInput(input, true)
	if err != nil {
		return nil, err
	}
	current, err := s.ClaimRepo.GetDamagedByID(claimID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.UserID != userID {
		return nil, ErrClaimNotFound
	}

	var claim *models.DamagedItemClaim
	err = s.run(ctx, []uint{current.PackageID}, func(tx *gorm.DB, changes *ChangeSet) error {
		claim, err = s.ClaimRepo.WithTx(tx).GetDamagedByIDForUpdate(claimID)
		if err != nil {
			return err
		}
		if claim == nil || claim.UserID != userID {
			return ErrClaimNotFound
		}
		var reasons reasonSet
		reasons.add(claim.Status != constants.ClaimStatusApproved, ReasonClaimNotApproved)
		reasons.add(claim.RefundRequested || claim.RefundProcessed, ReasonRefundAlreadyRequested)
		if len(reasons) > 0 {
			return &IneligibleTransitionError{Action: ActionDamagedRefund, Reasons: reasons}
		}
		pkg, err := s.loadOwned(tx, userID, claim.PackageID)
		if err != nil {
			return err
		}
		if pkg.Status == constants.PackageStatusCancelled {
			return ineligible(ActionDamagedRefund, ReasonPurchaseCancelled)
		}

		now := s.now()
		claim.RefundRequested = true
		claim.RefundRequestedAt = &now
		claim.RefundMethod = payout.Method
		claim.PaymentEmail = payout.PaymentEmail
		claim.CardLast4 = payout.CardLast4

		body := ""
		switch payout.Method {
		case constants.RefundMethodBalance:
			amount, err := s.itemValue(tx, pkg)
			if err != nil {
				return err
			}
			reference := fmt.Sprintf("damaged_claim:%d:refund", claim.ID)
			if err := s.refund(tx, pkg.UserID, uintPtr(pkg.ID), reference, amount, "Damaged item refund"); err != nil {
				return err
			}
			if err := changes.Record(tx, pkg.UserID, constants.ChangeEntityWallet, pkg.UserID, ActionDamagedRefund, 0); err != nil {
				return err
			}
			claim.RefundProcessed = true
			claim.RefundProcessedAt = &now
			body = fmt.Sprintf("¥%s has been refunded to your balance.", amount.String())
		case constants.RefundMethodReplace:
			order, err := s.createReplacementOrder(tx, pkg, claim)
			if err != nil {
				return err
			}
			claim.ReplacementOrderID = uintPtr(order.ID)
			claim.RefundProcessed = true
			claim.RefundProcessedAt = &now
			body = fmt.Sprintf("Replacement order #%d has been created.", order.ID)
		default:
			body = fmt.Sprintf("Your %s refund will settle within %s business days.", payout.Method, constants.SettlementWindowBusiness)
		}
		if err := s.ClaimRepo.WithTx(tx).UpdateDamaged(claim); err != nil {
			return fmt.Errorf("update damaged claim failed: %w", err)
		}
		if err := changes.Record(tx, pkg.UserID, constants.ChangeEntityClaim, claim.ID, ActionDamagedRefund, 0); err != nil {
			return err
		}
		if err := changes.Package(tx, pkg, ActionDamagedRefund); err != nil {
			return err
		}
		return changes.Notify(tx, pkg.UserID, constants.NotificationKindClaim, "Damage refund requested", body, uintPtr(pkg.ID))
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("damaged_refund_requested",
		"claim_id", claimID,
		"user_id", userID,
		"method", payout.Method,
		"processed", claim.RefundProcessed,
	)
	return claim, nil
}

// ReviewDamagedClaim 仓库审核损坏申请
func (s *DamagedClaimService) ReviewDamagedClaim(ctx context.Context, claimID uint, input ClaimReviewInput) (*models.DamagedItemClaim, error) {
	return s.adminUpdate(ctx, claimID, ActionReviewClaim, func(claim *models.DamagedItemClaim) ([]BlockReason, string) {
		if claim.Status != constants.ClaimStatusPending {
			return []BlockReason{ReasonClaimNotPending}, ""
		}
		claim.AdminNotes = strings.TrimSpace(input.Notes)
		if input.Approve {
			claim.Status = constants.ClaimStatusApproved
			return nil, "Your damage report was approved. Choose a refund method to continue."
		}
		claim.Status = constants.ClaimStatusRejected
		return nil, "Your damage report was rejected."
	})
}

// ConfirmDamagedRefund 人工确认 stripe/paypal 退款已完成
func (s *DamagedClaimService) ConfirmDamagedRefund(ctx context.Context, claimID uint) (*models.DamagedItemClaim, error) {
	return s.adminUpdate(ctx, claimID, ActionConfirmRefund, func(claim *models.DamagedItemClaim) ([]BlockReason, string) {
		var reasons reasonSet
		reasons.add(!claim.RefundRequested, ReasonRefundNotRequested)
		reasons.add(claim.RefundProcessed, ReasonRefundProcessed)
		if len(reasons) > 0 {
			return reasons, ""
		}
		now := s.now()
		claim.RefundProcessed = true
		claim.RefundProcessedAt = &now
		return nil, fmt.Sprintf("Your %s refund has been sent.", claim.RefundMethod)
	})
}

// ListDamagedClaims 分页查询损坏申请
func (s *DamagedClaimService) ListDamagedClaims(filter repository.ClaimListFilter) ([]models.DamagedItemClaim, int64, error) {
	return s.ClaimRepo.ListDamaged(filter)
}

func (s *DamagedClaimService) adminUpdate(ctx context.Context, claimID uint, action Action, mutate func(claim *models.DamagedItemClaim) ([]BlockReason, string)) (*models.DamagedItemClaim, error) {
	current, err := s.ClaimRepo.GetDamagedByID(claimID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrClaimNotFound
	}
	var claim *models.DamagedItemClaim
	err = s.run(ctx, []uint{current.PackageID}, func(tx *gorm.DB, changes *ChangeSet) error {
		claim, err = s.ClaimRepo.WithTx(tx).GetDamagedByIDForUpdate(claimID)
		if err != nil {
			return err
		}
		if claim == nil {
			return ErrClaimNotFound
		}
		reasons, message := mutate(claim)
		if len(reasons) > 0 {
			return &IneligibleTransitionError{Action: action, Reasons: reasons}
		}
		if err := s.ClaimRepo.WithTx(tx).UpdateDamaged(claim); err != nil {
			return fmt.Errorf("update damaged claim failed: %w", err)
		}
		if err := changes.Record(tx, claim.UserID, constants.ChangeEntityClaim, claim.ID, action, 0); err != nil {
			return err
		}
		if err := changes.Record(tx, claim.UserID, constants.ChangeEntityPackage, claim.PackageID, action, 0); err != nil {
			return err
		}
		return changes.Notify(tx, claim.UserID, constants.NotificationKindClaim, "Damage report updated", message, uintPtr(claim.PackageID))
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("damaged_claim_admin_update", "claim_id", claimID, "action", string(action), "status", claim.Status)
	return claim, nil
}

// createReplacementOrder 以原商品生成补发订单
func (s *DamagedClaimService) createReplacementOrder(tx *gorm.DB, pkg *models.Package, claim *models.DamagedItemClaim) (*models.Order, error) {
	snapshots := pkg.OriginalItems
	if len(snapshots) == 0 {
		if pkg.OrderItemID == nil {
			return nil, ErrOrderItemNotFound
		}
		item, err := s.OrderRepo.WithTx(tx).GetItemByID(*pkg.OrderItemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, ErrOrderItemNotFound
		}
		snapshots = models.ItemSnapshots{{
			OrderItemID: item.ID,
			Title:       item.Title,
			Variant:     item.Variant,
			Price:       item.Price,
			Quantity:    item.Quantity,
		}}
	}
	order := &models.Order{
		UserID:      pkg.UserID,
		AddressID:   pkg.ShippingAddressID,
		Status:      constants.OrderStatusPending,
		TotalAmount: models.Yen(0),
		Note:        fmt.Sprintf("Replacement for damaged item claim #%d", claim.ID),
		SourceClaim: uintPtr(claim.ID),
	}
	for _, snapshot := range snapshots {
		order.Items = append(order.Items, models.OrderItem{
			Title:    constants.ReplacementTitlePrefix + snapshot.Title,
			Variant:  snapshot.Variant,
			Price:    models.Yen(0),
			Quantity: snapshot.Quantity,
		})
	}
	if err := s.OrderRepo.WithTx(tx).Create(order); err != nil {
		return nil, fmt.Errorf("create replacement order failed: %w", err)
	}
	return order, nil
}

// selectEvidencePhotos 证据照片必须来自拍照服务
func selectEvidencePhotos(available []string, selected []string) (models.StringArray, error) {
	if len(selected) == 0 {
		return append(models.StringArray{}, available...), nil
	}
	allowed := make(map[string]struct{}, len(available))
	for _, photo := range available {
		allowed[photo] = struct{}{}
	}
	out := make(models.StringArray, 0, len(selected))
	for _, photo := range selected {
		photo = strings.TrimSpace(photo)
		if _, ok := allowed[photo]; !ok {
			return nil, invalid("photos", "must come from the package photo service")
		}
		out = append(out, photo)
	}
	return out, nil
}

// normalizeRefundInput 校验退款方式；stripe/paypal 需要收款邮箱与卡号后四位
func normalizeRefundInput(input RefundInput, allowReplace bool) (RefundInput, error) {
	out := RefundInput{
		Method:       strings.ToLower(strings.TrimSpace(input.Method)),
		PaymentEmail: strings.TrimSpace(input.PaymentEmail),
		CardLast4:    strings.TrimSpace(input.CardLast4),
	}
	switch out.Method {
	case constants.RefundMethodBalance:
		out.PaymentEmail, out.CardLast4 = "", ""
		return out, nil
	case constants.RefundMethodReplace:
		if !allowReplace {
			return out, invalid("refund_method", "unsupported")
		}
		out.PaymentEmail, out.CardLast4 = "", ""
		return out, nil
	case constants.RefundMethodStripe, constants.RefundMethodPaypal:
		if out.PaymentEmail == "" {
			return out, invalid("payment_email", "required")
		}
		if _, err := mail.ParseAddress(out.PaymentEmail); err != nil {
			return out, invalid("payment_email", "invalid format")
		}
		if !isDigits(out.CardLast4, constants.CardLast4Length) {
			return out, invalid("card_last4", "must be 4 digits")
		}
		return out, nil
	case "":
		return out, invalid("refund_method", "required")
	default:
		return out, invalid("refund_method", "unsupported")
	}
}

func isDigits(value string, length int) bool {
	if len(value) != length {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
