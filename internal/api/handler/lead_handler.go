package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/energosales/portal/internal/core/ports"
)

type LeadHandler struct {
	leadService ports.LeadService
}

func NewLeadHandler(leadService ports.LeadService) *LeadHandler {
	return &LeadHandler{leadService: leadService}
}

// Submit relays an apps panel form to the spreadsheet webhook and reports
// whether it arrived.
//
// @Summary      Submit lead
// @Tags         apps
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      leadRequest  true  "Call outcome"
// @Success      200   {object}  leadResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /apps/leads [post]
func (h *LeadHandler) Submit(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req leadRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	err = h.leadService.Submit(c.Request().Context(), claims, ports.LeadInput{
		FullName:  req.FullName,
		Phone:     req.Phone,
		BirthDate: req.BirthDate,
		Region:    req.Region,
		Document:  req.Document,
		Message:   req.Message,
		Telephony: req.Telephony,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, leadResponse{Status: "delivered"})
}
