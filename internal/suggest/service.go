package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/storefront/internal/products"
	"github.com/example/storefront/pkg/db/models"
	pkgerrors "github.com/example/storefront/pkg/errors"
)

const (
	catalogSampleSize  = 50
	defaultSuggestions = 5
	maxSuggestions     = 10
	maxQueryLength     = 500
)

const systemPrompt = `You are a shopping assistant for an online store.
You are given a catalog of products as a JSON array of {"slug", "name", "description"}.
Pick the products most relevant to the customer's request.
Respond with ONLY a JSON array of slugs from the catalog, best match first.
If nothing fits, respond with [].`

// Completer produces a chat completion. Satisfied by *Client.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Suggestion pairs a recommended product with its rank.
type Suggestion struct {
	Rank    int
	Product models.Product
}

// Service recommends catalog products for a free-text customer request.
type Service interface {
	Suggest(ctx context.Context, query string, limit int) ([]Suggestion, error)
}

type service struct {
	model   Completer
	catalog *products.Repository
}

// NewService builds the suggestion service.
func NewService(model Completer, catalog *products.Repository) (Service, error) {
	if model == nil {
		return nil, fmt.Errorf("completion client required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{model: model, catalog: catalog}, nil
}

type catalogEntry struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Suggest asks the model to rank active products against the query, then maps
// the returned slugs back onto catalog rows. Slugs the model invents are
// dropped, so the response only ever contains real products.
func (s *service) Suggest(ctx context.Context, query string, limit int) ([]Suggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query required")
	}
	if len(query) > maxQueryLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query too long").
			WithDetail("max_length", maxQueryLength)
	}
	if limit <= 0 {
		limit = defaultSuggestions
	}
	if limit > maxSuggestions {
		limit = maxSuggestions
	}

	rows, err := s.catalog.List(ctx, products.ListFilter{ActiveOnly: true}, nil, catalogSampleSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog sample")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	bySlug := make(map[string]models.Product, len(rows))
	entries := make([]catalogEntry, 0, len(rows))
	for _, product := range rows {
		bySlug[product.Slug] = product
		entry := catalogEntry{Slug: product.Slug, Name: product.Name}
		if product.Description != nil {
			entry.Description = *product.Description
		}
		entries = append(entries, entry)
	}
	catalogJSON, err := json.Marshal(entries)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode catalog sample")
	}

	reply, err := s.model.Complete(ctx, []Message{
		{Role: roleSystem, Content: systemPrompt},
		{Role: roleUser, Content: "Catalog: " + string(catalogJSON) + "\nRequest: " + query},
	})
	if err != nil {
		return nil, err
	}

	slugs, err := parseSlugs(reply)
	if err != nil {
		return nil, err
	}

	suggestions := make([]Suggestion, 0, limit)
	seen := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		if seen[slug] {
			continue
		}
		seen[slug] = true
		product, ok := bySlug[slug]
		if !ok {
			continue
		}
		suggestions = append(suggestions, Suggestion{Rank: len(suggestions) + 1, Product: product})
		if len(suggestions) == limit {
			break
		}
	}
	return suggestions, nil
}

// parseSlugs tolerates a fenced code block around the JSON array, which chat
// models emit even when told not to.
func parseSlugs(reply string) ([]string, error) {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")
	reply = strings.TrimSpace(reply)

	var slugs []string
	if err := json.Unmarshal([]byte(reply), &slugs); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "model reply is not a slug array")
	}
	return slugs, nil
}
