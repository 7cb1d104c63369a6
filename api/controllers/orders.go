package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/internal/authz"
	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

type checkoutRequest struct {
	ID      *validators.FlexInt64 `json:"id"`
	Contact *validators.FlexInt64 `json:"contact"`
}

type orderStateRequest struct {
	State string `json:"state" validate:"required"`
}

// OrdersList returns the caller's placed orders, newest first.
func OrdersList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(r *http.Request, p *authz.Principal) ([]orders.OrderView, error) {
		return svc.ListOrders(r.Context(), p.UserID)
	})
}

// OrdersCheckout turns the caller's basket into a new order.
func OrdersCheckout(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(r *http.Request, p *authz.Principal) (*orders.CheckoutResult, error) {
		req, err := decode[checkoutRequest](r)
		if err != nil {
			return nil, err
		}
		details := map[string]string{}
		if req.ID == nil {
			details["id"] = "is required"
		}
		if req.Contact == nil {
			details["contact"] = "is required"
		}
		if err := missing(details); err != nil {
			return nil, err
		}
		return svc.Checkout(r.Context(), p.UserID, int64(*req.ID), int64(*req.Contact))
	})
}

// AdminUpdateOrderState sets an administrative state on a placed order.
func AdminUpdateOrderState(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(r *http.Request, p *authz.Principal) (*orders.OrderView, error) {
		orderID, err := parsePathID(r, "orderId")
		if err != nil {
			return nil, err
		}
		req, err := decode[orderStateRequest](r)
		if err != nil {
			return nil, err
		}
		state, err := enums.ParseOrderState(strings.ToLower(strings.TrimSpace(req.State)))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order state").
				WithDetails(map[string]string{"state": "unknown order state"})
		}
		return svc.UpdateState(r.Context(), p, orders.StateUpdate{OrderID: orderID, State: state})
	})
}
