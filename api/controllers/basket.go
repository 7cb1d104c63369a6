package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/internal/authz"
	"github.com/angelmondragon/marketplace-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// basketItemsRequest carries items as a JSON array or a string holding one.
type basketItemsRequest struct {
	Items json.RawMessage `json:"items"`
}

type basketAddItem struct {
	ProductInfo validators.FlexInt64 `json:"product_info"`
	Quantity    validators.FlexInt64 `json:"quantity"`
}

// BasketGet answers with null data when the caller has no basket yet.
func BasketGet(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(r *http.Request, p *authz.Principal) (*orders.OrderView, error) {
		return svc.GetBasket(r.Context(), p.UserID)
	})
}

// BasketAdd inserts every item or none of them.
func BasketAdd(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusCreated, func(r *http.Request, p *authz.Principal) (map[string]int, error) {
		req, err := decode[basketItemsRequest](r)
		if err != nil {
			return nil, err
		}
		items, err := parseAddItems(req.Items)
		if err != nil {
			return nil, err
		}
		created, err := svc.AddItems(r.Context(), p.UserID, items)
		if err != nil {
			return nil, err
		}
		return map[string]int{"created": created}, nil
	})
}

// BasketUpdate changes quantities; malformed entries are skipped and counted.
func BasketUpdate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(r *http.Request, p *authz.Principal) (orders.UpdateResult, error) {
		req, err := decode[basketItemsRequest](r)
		if err != nil {
			return orders.UpdateResult{}, err
		}
		raw, err := validators.DecodeList("items", req.Items)
		if err != nil {
			return orders.UpdateResult{}, err
		}
		updates := make([]orders.RawItemUpdate, len(raw))
		for i, entry := range raw {
			updates[i] = orders.RawItemUpdate(entry)
		}
		return svc.UpdateItems(r.Context(), p.UserID, updates)
	})
}

// BasketRemove deletes lines named by a comma separated id list.
func BasketRemove(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(r *http.Request, p *authz.Principal) (map[string]int, error) {
		req, err := decode[basketItemsRequest](r)
		if err != nil {
			return nil, err
		}
		ids := validators.ParseIDList(idListText(req.Items))
		if len(ids) == 0 {
			return nil, missing(map[string]string{"items": "must list at least one id"})
		}
		deleted, err := svc.RemoveItems(r.Context(), p.UserID, ids)
		if err != nil {
			return nil, err
		}
		return map[string]int{"deleted": deleted}, nil
	})
}

func parseAddItems(raw json.RawMessage) ([]orders.ItemInput, error) {
	list, err := validators.DecodeList("items", raw)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"items": "must not be empty"})
	}

	items := make([]orders.ItemInput, 0, len(list))
	details := map[string]string{}
	for i, entry := range list {
		var item basketAddItem
		if err := json.Unmarshal(entry, &item); err != nil {
			details[fmt.Sprintf("items[%d]", i)] = err.Error()
			continue
		}
		if item.Quantity > orders.MaxQuantity {
			details[fmt.Sprintf("items[%d]", i)] = fmt.Sprintf("quantity must not exceed %d", orders.MaxQuantity)
			continue
		}
		items = append(items, orders.ItemInput{
			ProductInfoID: int64(item.ProductInfo),
			Quantity:      int(item.Quantity),
		})
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid basket items").WithDetails(details)
	}
	return items, nil
}

// idListText accepts "1,2,3", a bare number, or an array of ids.
func idListText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return strings.Trim(string(raw), "[]")
}
