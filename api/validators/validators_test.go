package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/bleu-ims/ims-gateway/pkg/errors"
)

type sessionBody struct {
	Token    string `json:"token" validate:"required"`
	Username string `json:"username"`
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token":"x","extra":1}`))
	var dest sessionBody
	err := DecodeJSONBody(req, &dest)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyReportsJSONFieldNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"ana"}`))
	var dest sessionBody
	err := DecodeJSONBody(req, &dest)
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["token"] != "is required" {
		t.Fatalf("unexpected details %#v", typed.Details())
	}
}

func TestReadBodyReportsLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 32)))
	req.Body = http.MaxBytesReader(httptest.NewRecorder(), req.Body, 8)
	if _, err := ReadBody(req); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&refresh=true&sort=DESC", nil)

	page, err := ParseQueryInt(req, "page", 1, 1, 100)
	if err != nil || page != 3 {
		t.Fatalf("page = %d, %v", page, err)
	}
	perPage, err := ParseQueryInt(req, "per_page", 25, 1, 200)
	if err != nil || perPage != 25 {
		t.Fatalf("per_page default = %d, %v", perPage, err)
	}
	refresh, err := ParseQueryBool(req, "refresh")
	if err != nil || !refresh {
		t.Fatalf("refresh = %v, %v", refresh, err)
	}
	sort, err := ParseQueryEnum(req, "sort", "asc", "desc")
	if err != nil || sort != "desc" {
		t.Fatalf("sort = %q, %v", sort, err)
	}
}

func TestParseQueryRejectsBadValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=zero&per_page=900&refresh=maybe&sort=up", nil)

	if _, err := ParseQueryInt(req, "page", 1, 1, 100); err == nil {
		t.Fatalf("expected numeric error")
	}
	if _, err := ParseQueryInt(req, "per_page", 25, 1, 200); err == nil {
		t.Fatalf("expected range error")
	}
	if _, err := ParseQueryBool(req, "refresh"); err == nil {
		t.Fatalf("expected boolean error")
	}
	if _, err := ParseQueryEnum(req, "sort", "asc", "desc"); err == nil {
		t.Fatalf("expected enum error")
	}
}

func TestSanitizeStringKeepsRunesWhole(t *testing.T) {
	if got := SanitizeString("  Ámbar  ", 2); got != "Á" {
		t.Fatalf("got %q", got)
	}
	if got := SanitizeString(" harina ", 0); got != "harina" {
		t.Fatalf("got %q", got)
	}
}
