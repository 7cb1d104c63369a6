package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/internal/authz"
	"github.com/angelmondragon/marketplace-backend/internal/catalog"
	"github.com/angelmondragon/marketplace-backend/internal/ingestion"
	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

type partnerUpdateRequest struct {
	URL string `json:"url" validate:"required"`
}

type partnerStateRequest struct {
	State *validators.FlexBool `json:"state"`
}

// PartnerUpdate replaces the caller's catalog with the document at the given URL.
func PartnerUpdate(svc ingestion.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(r *http.Request, p *authz.Principal) (*ingestion.Result, error) {
		req, err := decode[partnerUpdateRequest](r)
		if err != nil {
			return nil, err
		}
		return svc.Update(r.Context(), p, req.URL)
	})
}

func PartnerState(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(r *http.Request, p *authz.Principal) (map[string]bool, error) {
		return svc.PartnerState(r.Context(), p)
	})
}

// PartnerSetState toggles order acceptance for all of the caller's shops.
func PartnerSetState(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(r *http.Request, p *authz.Principal) (map[string]bool, error) {
		req, err := decode[partnerStateRequest](r)
		if err != nil {
			return nil, err
		}
		if req.State == nil {
			return nil, missing(map[string]string{"state": "is required"})
		}
		return svc.SetPartnerState(r.Context(), p, bool(*req.State))
	})
}

// PartnerOrders lists confirmed orders containing the caller's listings.
func PartnerOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(r *http.Request, p *authz.Principal) ([]orders.OrderView, error) {
		return svc.ListOrdersForSupplier(r.Context(), p)
	})
}
