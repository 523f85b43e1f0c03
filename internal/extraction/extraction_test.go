package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
)

func ptr[T any](v T) *T { return &v }

func TestNormalize(t *testing.T) {
	t.Parallel()

	fields := []model.FieldSpec{
		{Name: "price", Type: model.FieldTypeNumber, Required: true},
		{Name: "quantity", Type: model.FieldTypeInteger},
		{Name: "inStock", Type: model.FieldTypeBoolean},
		{Name: "name", Type: model.FieldTypeString, Required: true},
	}

	raw := &Result{
		Data: map[string]any{
			"name":     "  Desk Lamp ",
			"price":    "1,299.50",
			"quantity": "12",
			"inStock":  "yes",
			"color":    "   ",
			"tags":     []any{"", " led "},
			" ":        "ignored",
			"category": " Home / Lighting ",
		},
		Confidence:  ptr(140.0),
		FieldErrors: []string{" price unclear ", ""},
	}

	got := Normalize(raw, fields)

	expected := map[string]any{
		"name":     "Desk Lamp",
		"price":    1299.5,
		"quantity": int64(12),
		"inStock":  true,
		"tags":     []any{"led"},
		"category": "home_lighting",
	}
	if !reflect.DeepEqual(got.Data, expected) {
		t.Errorf("expected %v, got %v", expected, got.Data)
	}
	if got.Confidence == nil || *got.Confidence != 100 {
		t.Errorf("expected confidence clamped to 100, got %v", got.Confidence)
	}
	if !reflect.DeepEqual(got.FieldErrors, []string{"price unclear"}) {
		t.Errorf("expected trimmed field errors, got %v", got.FieldErrors)
	}
	if got.Category == nil || *got.Category != "home_lighting" {
		t.Errorf("expected category home_lighting, got %v", got.Category)
	}
}

func TestNormalizeKeepsUncoercibleValues(t *testing.T) {
	t.Parallel()

	fields := []model.FieldSpec{
		{Name: "price", Type: model.FieldTypeNumber},
		{Name: "quantity", Type: model.FieldTypeInteger},
		{Name: "inStock", Type: model.FieldTypeBoolean},
	}
	got := Normalize(&Result{Data: map[string]any{
		"price":    "call us",
		"quantity": 2.5,
		"inStock":  "maybe",
	}}, fields)

	if got.Data["price"] != "call us" {
		t.Errorf("expected price kept as string, got %v", got.Data["price"])
	}
	if got.Data["quantity"] != 2.5 {
		t.Errorf("expected fractional quantity kept, got %v", got.Data["quantity"])
	}
	if got.Data["inStock"] != "maybe" {
		t.Errorf("expected inStock kept, got %v", got.Data["inStock"])
	}
	if got.Category != nil {
		t.Errorf("expected no category, got %v", *got.Category)
	}
}

func TestNormalizeNil(t *testing.T) {
	t.Parallel()

	got := Normalize(nil, nil)
	if len(got.Data) != 0 || got.Confidence != nil || len(got.FieldErrors) != 0 {
		t.Errorf("expected empty result, got %+v", got)
	}
}

func TestHTTPClient(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.SubmissionID != id || req.TemplateID != "T1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(Result{
			Data:       map[string]any{"name": "Lamp"},
			Confidence: ptr(88.0),
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, WithToken("secret"))
	res, err := client.Extract(context.TODO(), Request{SubmissionID: id, TemplateID: "T1", ContentType: model.ContentTypeText})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Data["name"] != "Lamp" || res.Confidence == nil || *res.Confidence != 88 {
		t.Errorf("unexpected result %+v", res)
	}

	unauthorized := NewHTTPClient(srv.URL)
	if _, err := unauthorized.Extract(context.TODO(), Request{SubmissionID: id}); err == nil {
		t.Errorf("expected error on non 200 status")
	}
}
