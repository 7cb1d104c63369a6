package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketplace-backend/internal/authz"
	"github.com/angelmondragon/marketplace-backend/internal/contacts"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// ContactsList returns the caller's contacts; staff see every contact.
func ContactsList(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(r *http.Request, p *authz.Principal) ([]contacts.ContactDTO, error) {
		return svc.List(r.Context(), p)
	})
}

func ContactsCreate(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusCreated, func(r *http.Request, p *authz.Principal) (*contacts.ContactDTO, error) {
		req, err := decode[contacts.CreateRequest](r)
		if err != nil {
			return nil, err
		}
		return svc.Create(r.Context(), p, req)
	})
}

func ContactsUpdate(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(r *http.Request, p *authz.Principal) (*contacts.ContactDTO, error) {
		id, err := parsePathID(r, "contactId")
		if err != nil {
			return nil, err
		}
		req, err := decode[contacts.UpdateRequest](r)
		if err != nil {
			return nil, err
		}
		return svc.Update(r.Context(), p, id, req)
	})
}

func ContactsDelete(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(r *http.Request, p *authz.Principal) (map[string]int64, error) {
		id, err := parsePathID(r, "contactId")
		if err != nil {
			return nil, err
		}
		if err := svc.Delete(r.Context(), p, id); err != nil {
			return nil, err
		}
		return map[string]int64{"deleted": id}, nil
	})
}
