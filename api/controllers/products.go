package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/storefront/api/responses"
	"github.com/example/storefront/api/validators"
	productsvc "github.com/example/storefront/internal/products"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/example/storefront/pkg/logger"
)

// ListProducts serves the public catalog with optional filters.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := productsvc.ListFilter{
			ActiveOnly: true,
			Search:     validators.SanitizeString(r.URL.Query().Get("search"), 100),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("category_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category id"))
				return
			}
			filter.CategoryID = &id
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("featured")); raw != "" {
			featured := raw == "true"
			filter.Featured = &featured
		}

		page, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"products":    page.Products,
			"next_cursor": page.NextCursor,
		})
	}
}

func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(chi.URLParam(r, "productId"), "product id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func GetProductBySlug(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := validators.SanitizeString(chi.URLParam(r, "slug"), 200)
		if slug == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "slug required"))
			return
		}
		product, err := svc.GetBySlug(r.Context(), slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ListCategories(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := svc.ListCategories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}

type variantRequest struct {
	SKU             string  `json:"sku" validate:"required"`
	Size            *string `json:"size,omitempty"`
	Color           *string `json:"color,omitempty"`
	Price           string  `json:"price" validate:"required"`
	DiscountPrice   *string `json:"discount_price,omitempty"`
	InitialQuantity int     `json:"initial_quantity" validate:"min=0"`
	ReorderLevel    int     `json:"reorder_level" validate:"min=0"`
}

type createProductRequest struct {
	CategoryID  string           `json:"category_id" validate:"required,uuid"`
	Name        string           `json:"name" validate:"required"`
	Slug        string           `json:"slug" validate:"required"`
	Description *string          `json:"description,omitempty"`
	Brand       *string          `json:"brand,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty"`
	IsFeatured  bool             `json:"is_featured"`
	Variants    []variantRequest `json:"variants" validate:"required,min=1,dive"`
}

func (req createProductRequest) toInput() (productsvc.CreateProductInput, error) {
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return productsvc.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category id")
	}

	variants := make([]productsvc.VariantInput, 0, len(req.Variants))
	for _, v := range req.Variants {
		price, err := parseAmount(v.Price, "price")
		if err != nil {
			return productsvc.CreateProductInput{}, err
		}
		discountPrice, err := parseOptionalAmount(v.DiscountPrice, "discount_price")
		if err != nil {
			return productsvc.CreateProductInput{}, err
		}
		variants = append(variants, productsvc.VariantInput{
			SKU:             validators.SanitizeString(v.SKU, 64),
			Size:            v.Size,
			Color:           v.Color,
			Price:           price,
			DiscountPrice:   discountPrice,
			InitialQuantity: v.InitialQuantity,
			ReorderLevel:    v.ReorderLevel,
		})
	}

	return productsvc.CreateProductInput{
		CategoryID:  categoryID,
		Name:        validators.SanitizeString(req.Name, 200),
		Slug:        validators.SanitizeString(req.Slug, 200),
		Description: req.Description,
		Brand:       req.Brand,
		ImageURL:    req.ImageURL,
		IsFeatured:  req.IsFeatured,
		Variants:    variants,
	}, nil
}

// AdminCreateProduct creates a listing with its variants and opening stock.
func AdminCreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type updateProductRequest struct {
	CategoryID  string  `json:"category_id" validate:"required,uuid"`
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
	Brand       *string `json:"brand,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	IsActive    bool    `json:"is_active"`
	IsFeatured  bool    `json:"is_featured"`
}

func AdminUpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(chi.URLParam(r, "productId"), "product id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		categoryID, err := uuid.Parse(req.CategoryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category id"))
			return
		}

		product, err := svc.Update(r.Context(), id, productsvc.UpdateProductInput{
			CategoryID:  categoryID,
			Name:        validators.SanitizeString(req.Name, 200),
			Description: req.Description,
			Brand:       req.Brand,
			ImageURL:    req.ImageURL,
			IsActive:    req.IsActive,
			IsFeatured:  req.IsFeatured,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func AdminDeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(chi.URLParam(r, "productId"), "product id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type createCategoryRequest struct {
	Name        string  `json:"name" validate:"required"`
	Slug        string  `json:"slug" validate:"required"`
	Description *string `json:"description,omitempty"`
	ParentID    *string `json:"parent_id,omitempty" validate:"omitempty,uuid"`
}

func AdminCreateCategory(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCategoryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var parentID *uuid.UUID
		if req.ParentID != nil {
			id, err := uuid.Parse(*req.ParentID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid parent id"))
				return
			}
			parentID = &id
		}
		category, err := svc.CreateCategory(r.Context(),
			validators.SanitizeString(req.Name, 100),
			validators.SanitizeString(req.Slug, 100),
			req.Description, parentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, category)
	}
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return value, nil
}

func parseOptionalAmount(raw *string, field string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	value, err := parseAmount(*raw, field)
	if err != nil {
		return nil, err
	}
	return &value, nil
}
