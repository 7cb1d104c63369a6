package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/internal/auth"
	"github.com/angelmondragon/marketplace-backend/internal/authz"
	"github.com/angelmondragon/marketplace-backend/internal/users"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// AccountRegister creates an inactive account and queues the confirmation mail.
func AccountRegister(svc auth.AccountService, logg *logger.Logger) http.HandlerFunc {
	return endpoint(logg, http.StatusCreated, func(r *http.Request) (*users.UserDTO, error) {
		req, err := decode[auth.RegisterRequest](r)
		if err != nil {
			return nil, err
		}
		return svc.Register(r.Context(), req)
	})
}

// AccountConfirm activates the account owning the mailed token.
func AccountConfirm(svc auth.AccountService, logg *logger.Logger) http.HandlerFunc {
	return endpoint(logg, http.StatusOK, func(r *http.Request) (map[string]string, error) {
		req, err := decode[auth.ConfirmRequest](r)
		if err != nil {
			return nil, err
		}
		if err := svc.Confirm(r.Context(), req); err != nil {
			return nil, err
		}
		return ack("confirmed"), nil
	})
}

// AccountLogin also echoes the access token in AccessTokenHeader.
func AccountLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[auth.LoginRequest](r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp, err := svc.Login(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set(AccessTokenHeader, resp.AccessToken)
		responses.WriteSuccess(w, resp)
	}
}

func AccountDetails(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(r *http.Request, p *authz.Principal) (*users.UserDTO, error) {
		return svc.Details(r.Context(), p.UserID)
	})
}

// AccountUpdateDetails applies a partial profile update for the caller.
func AccountUpdateDetails(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(r *http.Request, p *authz.Principal) (*users.UserDTO, error) {
		req, err := decode[auth.DetailsUpdateRequest](r)
		if err != nil {
			return nil, err
		}
		return svc.UpdateDetails(r.Context(), p.UserID, req)
	})
}

// AccountPasswordReset answers the same way whether or not the email is known.
func AccountPasswordReset(svc auth.AccountService, logg *logger.Logger) http.HandlerFunc {
	return endpoint(logg, http.StatusOK, func(r *http.Request) (map[string]string, error) {
		req, err := decode[auth.PasswordResetRequest](r)
		if err != nil {
			return nil, err
		}
		if err := svc.RequestPasswordReset(r.Context(), req); err != nil {
			return nil, err
		}
		return ack("reset_requested"), nil
	})
}

func AccountPasswordResetConfirm(svc auth.AccountService, logg *logger.Logger) http.HandlerFunc {
	return endpoint(logg, http.StatusOK, func(r *http.Request) (map[string]string, error) {
		req, err := decode[auth.PasswordResetConfirmRequest](r)
		if err != nil {
			return nil, err
		}
		if err := svc.ConfirmPasswordReset(r.Context(), req); err != nil {
			return nil, err
		}
		return ack("password_updated"), nil
	})
}
