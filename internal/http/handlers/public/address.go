package public

import (
	"github.com/parcel-relay/internal/http/response"
	"github.com/parcel-relay/internal/service"

	"github.com/gin-gonic/gin"
)

// AddressRequest 收货地址
type AddressRequest struct {
	Name         string `json:"name" binding:"required"`
	Address      string `json:"address" binding:"required"`
	Apartment    string `json:"apartment"`
	City         string `json:"city" binding:"required"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country" binding:"required"`
	PhoneNumber  string `json:"phone_number"`
	IsCommercial bool   `json:"is_commercial"`
	SSNNumber    string `json:"ssn_number"`
	TaxIDType    string `json:"tax_id_type"`
	TaxIDNumber  string `json:"tax_id_number"`
	CompanyName  string `json:"company_name"`
}

func (r AddressRequest) toInput() service.AddressInput {
	return service.AddressInput{
		Name:         r.Name,
		Address:      r.Address,
		Apartment:    r.Apartment,
		City:         r.City,
		State:        r.State,
		PostalCode:   r.PostalCode,
		Country:      r.Country,
		PhoneNumber:  r.PhoneNumber,
		IsCommercial: r.IsCommercial,
		SSNNumber:    r.SSNNumber,
		TaxIDType:    r.TaxIDType,
		TaxIDNumber:  r.TaxIDNumber,
		CompanyName:  r.CompanyName,
	}
}

// ListAddresses 地址列表，附带锁定与占用状态
func (h *Handler) ListAddresses(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	views, err := h.AddressService.ListAddresses(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "error.address_fetch_failed", err)
		return
	}
	response.Success(c, views)
}

// CreateAddress 新增地址
func (h *Handler) CreateAddress(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req AddressRequest
	if !bindJSON(c, &req) {
		return
	}
	address, err := h.AddressService.CreateAddress(c.Request.Context(), uid, req.toInput())
	if err != nil {
		respondWithMappedError(c, err, "error.address_save_failed")
		return
	}
	response.Success(c, address)
}

// UpdateAddress 修改地址，在途发货占用时拒绝
func (h *Handler) UpdateAddress(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req AddressRequest
	if !bindJSON(c, &req) {
		return
	}
	address, err := h.AddressService.UpdateAddress(c.Request.Context(), uid, id, req.toInput())
	if err != nil {
		respondWithMappedError(c, err, "error.address_save_failed")
		return
	}
	response.Success(c, address)
}

// DeleteAddress 删除地址
func (h *Handler) DeleteAddress(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.AddressService.DeleteAddress(c.Request.Context(), uid, id); err != nil {
		respondWithMappedError(c, err, "error.address_delete_failed")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
