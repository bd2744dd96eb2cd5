package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/parcel-relay/internal/carrier"
	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/logger"
	"github.com/parcel-relay/internal/models"
	"github.com/parcel-relay/internal/repository"

	"gorm.io/gorm"
)

// CompensationInput 客户提交运输理赔
type CompensationInput struct {
	PackageID uint
	// Carrier 可选，必须与包裹实际发货方式一致
	Carrier            string
	CompensationType   string
	Description        string
	Files              []string
	DamageCertificate  string
	SelectedPackageIDs []uint
}

// CompensationResubmitInput 驳回后重新提交；Files 为空时保留原文件
type CompensationResubmitInput struct {
	Description       string
	Files             []string
	DamageCertificate string
}

// CompensationReviewInput 仓库审核理赔
type CompensationReviewInput struct {
	Status string
	Notes  string
}

// CompensationService 运输途中丢失/损坏理赔
type CompensationService struct {
	fulfillmentCore
}

// NewCompensationService 创建理赔服务
func NewCompensationService(deps FulfillmentDeps) *CompensationService {
	return &CompensationService{fulfillmentCore: newFulfillmentCore(deps)}
}

// FileCompensationRequest 提交理赔，EMS 需要承运商损坏证明
func (s *CompensationService) FileCompensationRequest(ctx context.Context, userID uint, input CompensationInput) (*models.CompensationRequest, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, invalid("description", "required")
	}
	files := cleanFiles(input.Files)
	if len(files) == 0 {
		return nil, invalid("files", "required")
	}
	compensationType := strings.ToLower(strings.TrimSpace(input.CompensationType))
	if compensationType == "" {
		compensationType = constants.CompensationTypeReplace
	}
	if compensationType != constants.CompensationTypeReplace && compensationType != constants.CompensationTypeRefund {
		return nil, invalid("compensation_type", "unsupported")
	}

	var req *models.CompensationRequest
	err := s.run(ctx, []uint{input.PackageID}, func(tx *gorm.DB, changes *ChangeSet) error {
		pkg, err := s.loadOwned(tx, userID, input.PackageID)
		if err != nil {
			return err
		}
		method := pkg.ShippingMethod
		if claimed := strings.ToLower(strings.TrimSpace(input.Carrier)); claimed != "" && claimed != method {
			return invalid("carrier", "does not match the shipment")
		}
		if !carrier.ValidMethod(method) {
			return invalid("carrier", "unsupported")
		}
		certificate := strings.TrimSpace(input.DamageCertificate)
		if method == carrier.EMS && certificate == "" {
			return invalid("damage_certificate", "required for EMS")
		}

		active, err := s.ClaimRepo.WithTx(tx).FindActiveCompensationByPackage(pkg.ID)
		if err != nil {
			return err
		}
		var reasons reasonSet
		reasons.add(pkg.Status != constants.PackageStatusShipped && pkg.Status != constants.PackageStatusDelivered, ReasonNotShippedYet)
		reasons.add(active != nil, ReasonClaimExists)
		if len(reasons) > 0 {
			return &IneligibleTransitionError{Action: ActionFileCompensation, Reasons: reasons}
		}
		selected, err := s.selectPackages(tx, pkg, input.SelectedPackageIDs)
		if err != nil {
			return err
		}

		req = &models.CompensationRequest{
			PackageID:          pkg.ID,
			UserID:             pkg.UserID,
			Carrier:            method,
			CompensationType:   compensationType,
			Description:        description,
			Files:              files,
			DamageCertificate:  certificate,
			SelectedPackageIDs: selected,
			Status:             constants.CompensationStatusPending,
			AdminNotesHistory:  models.StringArray{},
		}
		if err := s.ClaimRepo.WithTx(tx).CreateCompensation(req); err != nil {
			return fmt.Errorf("create compensation request failed: %w", err)
		}
		if err := changes.Record(tx, pkg.UserID, constants.ChangeEntityCompensation, req.ID, ActionFileCompensation, 0); err != nil {
			return err
		}
		if err := changes.Package(tx, pkg, ActionFileCompensation); err != nil {
			return err
		}
		return changes.Notify(tx, pkg.UserID, constants.NotificationKindCompensation,
			"Compensation request received",
			fmt.Sprintf("We are reviewing your %s compensation request for package #%d.", strings.ToUpper(method), pkg.ID),
			uintPtr(pkg.ID))
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("compensation_filed", "request_id", req.ID, "package_id", input.PackageID, "user_id", userID)
	return req, nil
}

// ResubmitCompensationRequest 驳回的理赔重新提交：备注移入历史，状态回到待审核
func (s *CompensationService) ResubmitCompensationRequest(ctx context.Context, userID, requestID uint, input CompensationResubmitInput) (*models.CompensationRequest, error) {
	current, err := s.loadRequest(userID, requestID)
	if err != nil {
		return nil, err
	}
	var req *models.CompensationRequest
	err = s.run(ctx, []uint{current.PackageID}, func(tx *gorm.DB, changes *ChangeSet) error {
		req, err = s.lockRequest(tx, userID, requestID)
		if err != nil {
			return err
		}
		active, err := s.ClaimRepo.WithTx(tx).FindActiveCompensationByPackage(req.PackageID)
		if err != nil {
			return err
		}
		var reasons reasonSet
		reasons.add(req.Status != constants.CompensationStatusRejected, ReasonNotRejected)
		reasons.add(active != nil && active.ID != req.ID, ReasonClaimExists)
		if len(reasons) > 0 {
			return &IneligibleTransitionError{Action: ActionResubmitCompensation, Reasons: reasons}
		}

		if description := strings.TrimSpace(input.Description); description != "" {
			req.Description = description
		}
		if files := cleanFiles(input.Files); len(files) > 0 {
			req.Files = files
		}
		if certificate := strings.TrimSpace(input.DamageCertificate); certificate != "" {
			req.DamageCertificate = certificate
		}
		if req.Carrier == carrier.EMS && req.DamageCertificate == "" {
			return invalid("damage_certificate", "required for EMS")
		}
		if notes := strings.TrimSpace(req.AdminNotes); notes != "" {
			req.AdminNotesHistory = append(req.AdminNotesHistory, notes)
		}
		now := s.now()
		req.AdminNotes = ""
		req.Status = constants.CompensationStatusPending
		req.ApprovedForRefund = false
		req.ResubmittedAt = &now
		if err := s.ClaimRepo.WithTx(tx).UpdateCompensation(req); err != nil {
			return fmt.Errorf("update compensation request failed: %w", err)
		}
		if err := changes.Record(tx, req.UserID, constants.ChangeEntityCompensation, req.ID, ActionResubmitCompensation, 0); err != nil {
			return err
		}
		if err := changes.Record(tx, req.UserID, constants.ChangeEntityPackage, req.PackageID, ActionResubmitCompensation, 0); err != nil {
			return err
		}
		return changes.Notify(tx, req.UserID, constants.NotificationKindCompensation,
			"Compensation request resubmitted",
			fmt.Sprintf("Compensation request #%d is back under review.", req.ID),
			uintPtr(req.PackageID))
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("compensation_resubmitted", "request_id", requestID, "user_id", userID)
	return req, nil
}

// RequestCompensationRefund 资金确认后选择退款方式；余额退款按所选包裹的商品金额累加
func (s *CompensationService) RequestCompensationRefund(ctx context.Context, userID, requestID uint, input RefundInput) (*models.CompensationRequest, error) {
	payout, err := normalizeRefundInput(input, false)
	if err != nil {
		return nil, err
	}
	current, err := s.loadRequest(userID, requestID)
	if err != nil {
		return nil, err
	}
	var req *models.CompensationRequest
	lockIDs := append([]uint{current.PackageID}, current.SelectedPackageIDs...)
	err = s.run(ctx, lockIDs, func(tx *gorm.DB, changes *ChangeSet) error {
		req, err = s.lockRequest(tx, userID, requestID)
		if err != nil {
			return err
		}
		var reasons reasonSet
		reasons.add(!req.ApprovedForRefund, ReasonNotApprovedForRefund)
		reasons.add(req.RefundRequested || req.RefundProcessed, ReasonRefundAlreadyRequested)
		if len(reasons) > 0 {
			return &IneligibleTransitionError{Action: ActionCompensationRefund, Reasons: reasons}
		}

		req.RefundRequested = true
		req.RefundMethod = payout.Method
		req.PaymentEmail = payout.PaymentEmail
		req.CardLast4 = payout.CardLast4
		body := fmt.Sprintf("Your %s refund will settle within %s business days.", payout.Method, constants.SettlementWindowBusiness)
		if payout.Method == constants.RefundMethodBalance {
			amount, err := s.selectedValue(tx, req)
			if err != nil {
				return err
			}
			reference := fmt.Sprintf("compensation:%d:refund", req.ID)
			if err := s.refund(tx, req.UserID, uintPtr(req.PackageID), reference, amount, "Compensation refund"); err != nil {
				return err
			}
			if err := changes.Record(tx, req.UserID, constants.ChangeEntityWallet, req.UserID, ActionCompensationRefund, 0); err != nil {
				return err
			}
			req.RefundProcessed = true
			body = fmt.Sprintf("¥%s has been refunded to your balance.", amount.String())
		} else {
			req.Status = constants.CompensationStatusProcessing
		}
		if err := s.ClaimRepo.WithTx(tx).UpdateCompensation(req); err != nil {
			return fmt.Errorf("update compensation request failed: %w", err)
		}
		if err := changes.Record(tx, req.UserID, constants.ChangeEntityCompensation, req.ID, ActionCompensationRefund, 0); err != nil {
			return err
		}
		return changes.Notify(tx, req.UserID, constants.NotificationKindCompensation, "Compensation refund requested", body, uintPtr(req.PackageID))
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("compensation_refund_requested",
		"request_id", requestID,
		"user_id", userID,
		"method", payout.Method,
		"processed", req.RefundProcessed,
	)
	return req, nil
}

// ReviewCompensation 仓库审核理赔
func (s *CompensationService) ReviewCompensation(ctx context.Context, requestID uint, input CompensationReviewInput) (*models.CompensationRequest, error) {
	status := strings.ToLower(strings.TrimSpace(input.Status))
	switch status {
	case constants.CompensationStatusApproved, constants.CompensationStatusRejected, constants.CompensationStatusProcessing:
	default:
		return nil, invalid("status", "unsupported")
	}
	return s.adminUpdate(ctx, requestID, ActionReviewClaim, func(req *models.CompensationRequest) ([]BlockReason, string) {
		if req.RefundProcessed {
			return []BlockReason{ReasonRefundProcessed}, ""
		}
		req.Status = status
		req.AdminNotes = strings.TrimSpace(input.Notes)
		if status == constants.CompensationStatusRejected {
			req.ApprovedForRefund = false
			return nil, "Your compensation request was rejected. You may update it and resubmit."
		}
		return nil, fmt.Sprintf("Your compensation request is now %s.", status)
	})
}

// ApproveCompensationForRefund 承运商赔付到账后允许客户选择退款方式
func (s *CompensationService) ApproveCompensationForRefund(ctx context.Context, requestID uint) (*models.CompensationRequest, error) {
	return s.adminUpdate(ctx, requestID, ActionApproveForRefund, func(req *models.CompensationRequest) ([]BlockReason, string) {
		var reasons reasonSet
		reasons.add(req.Status != constants.CompensationStatusApproved, ReasonClaimNotApproved)
		reasons.add(req.ApprovedForRefund, ReasonRefundAlreadyRequested)
		if len(reasons) > 0 {
			return reasons, ""
		}
		req.ApprovedForRefund = true
		return nil, "Your compensation is ready. Choose a refund method to continue."
	})
}

// ConfirmCompensationRefund 人工确认 stripe/paypal 退款已完成
func (s *CompensationService) ConfirmCompensationRefund(ctx context.Context, requestID uint) (*models.CompensationRequest, error) {
	return s.adminUpdate(ctx, requestID, ActionConfirmRefund, func(req *models.CompensationRequest) ([]BlockReason, string) {
		var reasons reasonSet
		reasons.add(!req.RefundRequested, ReasonRefundNotRequested)
		reasons.add(req.RefundProcessed, ReasonRefundProcessed)
		if len(reasons) > 0 {
			return reasons, ""
		}
		req.RefundProcessed = true
		req.Status = constants.CompensationStatusApproved
		return nil, fmt.Sprintf("Your %s refund has been sent.", req.RefundMethod)
	})
}

// ListCompensations 分页查询理赔申请
func (s *CompensationService) ListCompensations(filter repository.ClaimListFilter) ([]models.CompensationRequest, int64, error) {
	return s.ClaimRepo.ListCompensations(filter)
}

func (s *CompensationService) adminUpdate(ctx context.Context, requestID uint, action Action, mutate func(req *models.CompensationRequest) ([]BlockReason, string)) (*models.CompensationRequest, error) {
	current, err := s.loadRequest(0, requestID)
	if err != nil {
		return nil, err
	}
	var req *models.CompensationRequest
	err = s.run(ctx, []uint{current.PackageID}, func(tx *gorm.DB, changes *ChangeSet) error {
		req, err = s.lockRequest(tx, 0, requestID)
		if err != nil {
			return err
		}
		reasons, message := mutate(req)
		if len(reasons) > 0 {
			return &IneligibleTransitionError{Action: action, Reasons: reasons}
		}
		if err := s.ClaimRepo.WithTx(tx).UpdateCompensation(req); err != nil {
			return fmt.Errorf("update compensation request failed: %w", err)
		}
		if err := changes.Record(tx, req.UserID, constants.ChangeEntityCompensation, req.ID, action, 0); err != nil {
			return err
		}
		if err := changes.Record(tx, req.UserID, constants.ChangeEntityPackage, req.PackageID, action, 0); err != nil {
			return err
		}
		return changes.Notify(tx, req.UserID, constants.NotificationKindCompensation, "Compensation request updated", message, uintPtr(req.PackageID))
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("compensation_admin_update", "request_id", requestID, "action", string(action), "status", req.Status)
	return req, nil
}

// loadRequest userID 为 0 表示后台操作
func (s *CompensationService) loadRequest(userID, requestID uint) (*models.CompensationRequest, error) {
	req, err := s.ClaimRepo.GetCompensationByID(requestID)
	if err != nil {
		return nil, err
	}
	if req == nil || (userID != 0 && req.UserID != userID) {
		return nil, ErrCompensationNotFound
	}
	return req, nil
}

func (s *CompensationService) lockRequest(tx *gorm.DB, userID, requestID uint) (*models.CompensationRequest, error) {
	req, err := s.ClaimRepo.WithTx(tx).GetCompensationByIDForUpdate(requestID)
	if err != nil {
		return nil, err
	}
	if req == nil || (userID != 0 && req.UserID != userID) {
		return nil, ErrCompensationNotFound
	}
	return req, nil
}

// selectPackages 理赔涉及的包裹：主包裹本身或已并入它的成员
func (s *CompensationService) selectPackages(tx *gorm.DB, pkg *models.Package, ids []uint) (models.IDSet, error) {
	selected := models.NewIDSet(ids...)
	if len(selected) == 0 {
		return models.IDSet{pkg.ID}, nil
	}
	members, err := s.PackageRepo.WithTx(tx).ListMembers(pkg.ID)
	if err != nil {
		return nil, err
	}
	allowed := map[uint]struct{}{pkg.ID: {}}
	for _, member := range members {
		allowed[member.ID] = struct{}{}
	}
	for _, id := range selected {
		if _, ok := allowed[id]; !ok {
			return nil, invalid("selected_package_ids", fmt.Sprintf("package %d is not part of this shipment", id))
		}
	}
	return selected, nil
}

// selectedValue 所选包裹的商品金额合计，未选择时按主包裹计算
func (s *CompensationService) selectedValue(tx *gorm.DB, req *models.CompensationRequest) (models.Money, error) {
	ids := req.SelectedPackageIDs
	if len(ids) == 0 {
		ids = models.IDSet{req.PackageID}
	}
	pkgs, err := s.PackageRepo.WithTx(tx).ListByIDs(ids)
	if err != nil {
		return models.Yen(0), err
	}
	total := models.Yen(0)
	for i := range pkgs {
		p := pkgs[i]
		if p.UserID != req.UserID {
			continue
		}
		// 同时选择了成员时主包裹只计自身商品，避免与成员重复
		if p.ID == req.PackageID && len(ids) > 1 {
			p.OriginalItems = nil
		}
		value, err := s.itemValue(tx, &p)
		if err != nil {
			return models.Yen(0), err
		}
		total = total.Add(value)
	}
	return total, nil
}

func cleanFiles(files []string) models.StringArray {
	out := make(models.StringArray, 0, len(files))
	for _, file := range files {
		if file = strings.TrimSpace(file); file != "" {
			out = append(out, file)
		}
	}
	return out
}
