package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/plan-configurator/internal/cache"
	"github.com/noah-isme/plan-configurator/internal/common"
	dbgen "github.com/noah-isme/plan-configurator/internal/db/gen"
	"github.com/noah-isme/plan-configurator/internal/pricing"
)

// ErrNotFound is returned when a product does not exist or is inactive.
var ErrNotFound = errors.New("catalog: product not found")

type queryProvider interface {
	ListProducts(ctx context.Context, arg dbgen.ListProductsParams) ([]dbgen.Product, error)
	GetProduct(ctx context.Context, id pgtype.UUID) (dbgen.Product, error)
	ProductsUpdatedAt(ctx context.Context) (pgtype.Timestamptz, error)
	CreateProduct(ctx context.Context, arg dbgen.CreateProductParams) (dbgen.Product, error)
	UpdateProduct(ctx context.Context, arg dbgen.UpdateProductParams) (dbgen.Product, error)
	DeleteProduct(ctx context.Context, id pgtype.UUID) (int64, error)
}

// Service serves plan products backed by Postgres with a Redis read-through cache.
type Service struct {
	queries queryProvider
	cache   *cache.Cache
	now     func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries queryProvider
	Cache   *cache.Cache
	Now     func() time.Time
}

// Product is a plan as offered in the catalog. The embedded selection is the snapshot a
// configurator session stores when the plan is chosen.
type Product struct {
	ID string `json:"id"`
	pricing.PlanSelection
	Categories []string  `json:"categories"`
	SortOrder  int       `json:"sortOrder"`
	Active     bool      `json:"active"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ProductList is the public listing payload.
type ProductList struct {
	Products  []Product `json:"products"`
	UpdatedAt string    `json:"updatedAt"`
}

// ProductInput is the admin create/update payload.
type ProductInput struct {
	Title              string           `json:"title" validate:"required,max=200"`
	Subtitle           string           `json:"subtitle" validate:"max=200"`
	ActualPrice        *decimal.Decimal `json:"actualPrice"`
	DiscountPrice      *decimal.Decimal `json:"discountPrice"`
	Speed              string           `json:"speed" validate:"max=100"`
	TermsAndConditions []string         `json:"termsAndConditions" validate:"max=50,dive,max=1000"`
	Recommendation     string           `json:"recommendation" validate:"max=200"`
	Categories         []string         `json:"categories" validate:"max=20,dive,required,max=32"`
	SortOrder          int              `json:"sortOrder" validate:"gte=0"`
	Active             *bool            `json:"active"`
}

// NewService constructs a catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{queries: cfg.Queries, cache: cfg.Cache, now: now}, nil
}

// ListProducts returns active products, optionally filtered by technology category.
func (s *Service) ListProducts(ctx context.Context, category string) (ProductList, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	return cache.Load(ctx, s.cache, cache.KeyCatalogList(category), func(ctx context.Context) (ProductList, error) {
		return s.loadProducts(ctx, category)
	})
}

func (s *Service) loadProducts(ctx context.Context, category string) (ProductList, error) {
	rows, err := s.queries.ListProducts(ctx, dbgen.ListProductsParams{
		ActiveOnly: true,
		Category:   common.Text(category),
	})
	if err != nil {
		return ProductList{}, fmt.Errorf("list products: %w", err)
	}
	updated, err := s.queries.ProductsUpdatedAt(ctx)
	if err != nil {
		return ProductList{}, fmt.Errorf("products updated at: %w", err)
	}
	updatedAt := common.Time(updated)
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}

	list := ProductList{
		Products:  make([]Product, 0, len(rows)),
		UpdatedAt: updatedAt.UTC().Format(time.RFC3339),
	}
	for _, row := range rows {
		list.Products = append(list.Products, toProduct(row))
	}
	return list, nil
}

// GetProduct returns an active product by id.
func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	pid, err := common.ParseUUID("id", id)
	if err != nil {
		return Product{}, err
	}
	return cache.Load(ctx, s.cache, cache.KeyProduct(common.UUIDString(pid)), func(ctx context.Context) (Product, error) {
		row, err := s.queries.GetProduct(ctx, pid)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && !row.Active) {
			return Product{}, ErrNotFound
		}
		if err != nil {
			return Product{}, fmt.Errorf("get product: %w", err)
		}
		return toProduct(row), nil
	})
}

// AdminListProducts returns every product including inactive ones. It bypasses the cache.
func (s *Service) AdminListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.queries.ListProducts(ctx, dbgen.ListProductsParams{})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, toProduct(row))
	}
	return out, nil
}

// CreateProduct stores a new product and invalidates cached listings.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := validateInput(in); err != nil {
		return Product{}, err
	}
	row, err := s.queries.CreateProduct(ctx, dbgen.CreateProductParams{
		Title:              strings.TrimSpace(in.Title),
		Subtitle:           common.Text(in.Subtitle),
		ActualPrice:        common.Numeric(in.ActualPrice),
		DiscountPrice:      common.Numeric(in.DiscountPrice),
		Speed:              common.Text(in.Speed),
		TermsAndConditions: nonNil(in.TermsAndConditions),
		Recommendation:     common.Text(in.Recommendation),
		Categories:         normalizeCategories(in.Categories),
		SortOrder:          int32(in.SortOrder),
		Active:             in.Active == nil || *in.Active,
	})
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	s.invalidate(ctx)
	return toProduct(row), nil
}

// UpdateProduct replaces a product's fields and invalidates cached listings.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (Product, error) {
	pid, err := common.ParseUUID("id", id)
	if err != nil {
		return Product{}, err
	}
	if err := validateInput(in); err != nil {
		return Product{}, err
	}
	row, err := s.queries.UpdateProduct(ctx, dbgen.UpdateProductParams{
		ID:                 pid,
		Title:              strings.TrimSpace(in.Title),
		Subtitle:           common.Text(in.Subtitle),
		ActualPrice:        common.Numeric(in.ActualPrice),
		DiscountPrice:      common.Numeric(in.DiscountPrice),
		Speed:              common.Text(in.Speed),
		TermsAndConditions: nonNil(in.TermsAndConditions),
		Recommendation:     common.Text(in.Recommendation),
		Categories:         normalizeCategories(in.Categories),
		SortOrder:          int32(in.SortOrder),
		Active:             in.Active == nil || *in.Active,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	s.invalidate(ctx)
	return toProduct(row), nil
}

// DeleteProduct removes a product and invalidates cached listings.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	pid, err := common.ParseUUID("id", id)
	if err != nil {
		return err
	}
	n, err := s.queries.DeleteProduct(ctx, pid)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	_ = s.cache.DeletePrefix(ctx, cache.CatalogPrefix())
}

func validateInput(in ProductInput) error {
	if err := common.ValidateStruct(in); err != nil {
		return err
	}
	if in.ActualPrice != nil && in.ActualPrice.IsNegative() {
		return badRequest("actualPrice", "price must not be negative", nil)
	}
	if in.DiscountPrice != nil && in.DiscountPrice.IsNegative() {
		return badRequest("discountPrice", "price must not be negative", nil)
	}
	return nil
}

func toProduct(row dbgen.Product) Product {
	return Product{
		ID: common.UUIDString(row.ID),
		PlanSelection: pricing.PlanSelection{
			Title:              row.Title,
			Subtitle:           common.TextValue(row.Subtitle),
			ActualPrice:        common.Decimal(row.ActualPrice),
			DiscountPrice:      common.Decimal(row.DiscountPrice),
			Speed:              common.TextValue(row.Speed),
			TermsAndConditions: row.TermsAndConditions,
			Recommendation:     common.TextValue(row.Recommendation),
		},
		Categories: nonNil(row.Categories),
		SortOrder:  int(row.SortOrder),
		Active:     row.Active,
		UpdatedAt:  common.Time(row.UpdatedAt),
	}
}

func normalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}
