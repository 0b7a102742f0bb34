package responses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/example/storefront/pkg/types"
)

func TestWriteSuccessEnvelope(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"status": "ok"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data["status"] != "ok" {
		t.Errorf("data = %v", envelope.Data)
	}
}

func TestWriteErrorUsesMetadataStatus(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	WriteError(context.Background(), nil, rec, err)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var envelope types.ErrorEnvelope
	if decodeErr := json.Unmarshal(rec.Body.Bytes(), &envelope); decodeErr != nil {
		t.Fatalf("decode: %v", decodeErr)
	}
	if envelope.Error.Code != string(pkgerrors.CodeNotFound) {
		t.Errorf("code = %s", envelope.Error.Code)
	}
	if envelope.Error.Message != "order not found" {
		t.Errorf("message = %s", envelope.Error.Message)
	}
}

func TestWriteErrorHidesInternalMessage(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeInternal, "db password wrong")
	WriteError(context.Background(), nil, rec, err)

	var envelope types.ErrorEnvelope
	if decodeErr := json.Unmarshal(rec.Body.Bytes(), &envelope); decodeErr != nil {
		t.Fatalf("decode: %v", decodeErr)
	}
	if envelope.Error.Message == "db password wrong" {
		t.Error("internal details leaked to client")
	}
}

func TestWriteErrorIncludesReasonDetails(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	err := pkgerrors.NewWithReason(pkgerrors.CodeConflict, pkgerrors.ReasonInsufficientStock, "not enough stock").
		WithDetail("sku", "SKU-1")
	WriteError(context.Background(), nil, rec, err)

	var envelope struct {
		Error struct {
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if decodeErr := json.Unmarshal(rec.Body.Bytes(), &envelope); decodeErr != nil {
		t.Fatalf("decode: %v", decodeErr)
	}
	if envelope.Error.Details["reason"] != pkgerrors.ReasonInsufficientStock {
		t.Errorf("reason = %v", envelope.Error.Details["reason"])
	}
	if envelope.Error.Details["sku"] != "SKU-1" {
		t.Errorf("sku = %v", envelope.Error.Details["sku"])
	}
}

func TestWriteErrorWrapsPlainErrors(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, context.DeadlineExceeded)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
