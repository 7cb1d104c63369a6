// Package ingestion imports supplier price lists into the catalog.
package ingestion

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/authz"
	pkgdb "github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

// Result summarizes one import.
type Result struct {
	ShopID            int64  `json:"shop_id"`
	ShopName          string `json:"shop_name"`
	CategoriesLinked  int    `json:"categories_linked"`
	GoodsCreated      int    `json:"goods_created"`
	ParametersCreated int    `json:"parameters_created"`
}

// Service replaces a shop manager's catalog with the document at a URL.
type Service interface {
	Update(ctx context.Context, principal *authz.Principal, rawURL string) (*Result, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups the ingestion dependencies.
type ServiceParams struct {
	Repo    *Repository
	TX      txRunner
	Fetcher Fetcher
	Outbox  outboxPublisher
	Metrics *metrics.IngestionMetrics
	Logger  *logger.Logger
}

type service struct {
	repo     *Repository
	tx       txRunner
	fetcher  Fetcher
	outbox   outboxPublisher
	metrics  *metrics.IngestionMetrics
	logg     *logger.Logger
	validate *validator.Validate
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ingestion repository required")
	}
	if params.TX == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Fetcher == nil {
		return nil, fmt.Errorf("fetcher required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.TX,
		fetcher:  params.Fetcher,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
		validate: validator.New(),
	}, nil
}

func (s *service) Update(ctx context.Context, principal *authz.Principal, rawURL string) (result *Result, err error) {
	started := time.Now()
	outcome := metrics.OutcomeFailure
	defer func() {
		goods := 0
		if result != nil {
			goods = result.GoodsCreated
		}
		s.metrics.ObserveRun(outcome, goods, time.Since(started))
	}()

	if err := authz.RequireRole(principal, enums.RoleShop); err != nil {
		outcome = metrics.OutcomeForbidden
		return nil, err
	}
	if err := s.validate.Var(rawURL, "required,http_url"); err != nil {
		outcome = metrics.OutcomeValidation
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "url is invalid").
			WithDetails(map[string]any{"url": rawURL})
	}

	body, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		outcome = metrics.OutcomeFetch
		s.logError(ctx, "ingestion.fetch_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "catalog document unreachable")
	}

	catalog, err := Decode(body)
	if err != nil {
		outcome = metrics.OutcomeValidation
		return nil, pkgerrors.Combine(pkgerrors.CodeValidation, err, "catalog document is invalid")
	}

	result, err = s.apply(ctx, principal, catalog)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			outcome = metrics.OutcomeValidation
		}
		return nil, err
	}
	outcome = metrics.OutcomeSuccess

	if s.logg != nil {
		logCtx := s.logg.WithShopID(ctx, result.ShopID)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"goods":      result.GoodsCreated,
			"categories": result.CategoriesLinked,
		})
		s.logg.Info(logCtx, "ingestion.completed")
	}
	return result, nil
}

func (s *service) apply(ctx context.Context, principal *authz.Principal, catalog *Catalog) (*Result, error) {
	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		shop, err := repo.GetOrCreateShop(ctx, catalog.Shop, principal.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shop")
		}
		res := &Result{ShopID: shop.ID, ShopName: shop.Name}

		for _, category := range catalog.Categories {
			if err := repo.UpsertCategory(ctx, *category.ID, category.Name); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert category")
			}
			if err := repo.LinkCategory(ctx, shop.ID, *category.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "link category")
			}
			res.CategoriesLinked++
		}

		if _, err := repo.DeleteListings(ctx, shop.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete listings")
		}

		parameterIDs := map[string]int64{}
		for i, good := range catalog.Goods {
			product, err := repo.GetOrCreateProduct(ctx, good.Name, good.CategoryID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
			}
			info := models.ProductInfo{
				ProductID:  product.ID,
				ShopID:     shop.ID,
				ExternalID: good.ExternalID,
				Model:      good.Model,
				Quantity:   good.Quantity,
				Price:      good.Price,
				PriceRRC:   good.PriceRRC,
			}
			if err := repo.CreateListing(ctx, &info); err != nil {
				if pkgdb.IsUniqueViolation(err, "") {
					return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "duplicate good in document").
						WithDetails([]string{fmt.Sprintf("goods[%d]: id %d repeats for %q", i, good.ExternalID, good.Name)})
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create listing")
			}
			res.GoodsCreated++

			for _, param := range good.Parameters {
				paramID, ok := parameterIDs[param.Name]
				if !ok {
					stored, err := repo.GetOrCreateParameter(ctx, param.Name)
					if err != nil {
						return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load parameter")
					}
					paramID = stored.ID
					parameterIDs[param.Name] = paramID
				}
				pp := models.ProductParameter{ProductInfoID: info.ID, ParameterID: paramID, Value: param.Value}
				if err := repo.CreateProductParameter(ctx, &pp); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product parameter")
				}
				res.ParametersCreated++
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventCatalogIngested,
			AggregateType: enums.AggregateShop,
			AggregateID:   strconv.FormatInt(shop.ID, 10),
			Actor:         &outbox.ActorRef{UserID: principal.UserID, Role: string(principal.Role)},
			Data: payloads.CatalogIngestedEvent{
				ShopID:            shop.ID,
				ShopName:          shop.Name,
				UserID:            principal.UserID,
				CategoriesLinked:  res.CategoriesLinked,
				GoodsCreated:      res.GoodsCreated,
				ParametersCreated: res.ParametersCreated,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit catalog event")
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) logError(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Error(ctx, msg, err)
}
