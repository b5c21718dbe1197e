package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"expanse/internal/types"
)

func TestJSON_WritesEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	JSON(rec, req, http.StatusOK, map[string]any{"success": true})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"success":true}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestError_AppErrorMapsStatus(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantField  string
	}{
		{
			name:       "validation error with field",
			err:        types.NewFieldError(types.ErrCodeValidationUnknownPlan, "planName", `unknown plan "64GB Ram"`),
			wantStatus: http.StatusBadRequest,
			wantError:  `unknown plan "64GB Ram"`,
			wantField:  "planName",
		},
		{
			name:       "auth error",
			err:        types.NewAppError(types.ErrCodeAuthKeyInvalid, "invalid API key", nil),
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid API key",
		},
		{
			name:       "upstream error",
			err:        types.NewAppError(types.ErrCodeUpstreamWebhook, "webhook returned status 500", nil),
			wantStatus: http.StatusBadGateway,
			wantError:  "webhook returned status 500",
		},
		{
			name:       "internal error",
			err:        types.NewAppError(types.ErrCodeInternalConfig, "catalog misconfigured", nil),
			wantStatus: http.StatusInternalServerError,
			wantError:  "catalog misconfigured",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			rec := httptest.NewRecorder()

			Error(rec, req, tc.err)

			if rec.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}

			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid JSON response: %v", err)
			}
			if resp.Success {
				t.Error("expected success=false")
			}
			if resp.Error != tc.wantError {
				t.Errorf("expected error %q, got %q", tc.wantError, resp.Error)
			}
			if resp.Field != tc.wantField {
				t.Errorf("expected field %q, got %q", tc.wantField, resp.Field)
			}
		})
	}
}

func TestError_GenericErrorHidesDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	Error(rec, req, errors.New("pq: connection reset by peer"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Error("internal error details leaked to client")
	}

	// The 500 envelope carries an explicit empty data object.
	if !strings.Contains(rec.Body.String(), `"data":{}`) {
		t.Errorf("expected data member in 500 envelope, got: %s", rec.Body.String())
	}
}

func TestError_InternalAppErrorCarriesDataMember(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	Error(rec, req, types.NewAppError(types.ErrCodeInternalConfig, "catalog misconfigured", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"data":{}`) {
		t.Errorf("expected data member in 500 envelope, got: %s", rec.Body.String())
	}
}

// Client errors carry no data member; the empty object is a 5xx-only shape.
func TestError_ClientErrorOmitsDataMember(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	Error(rec, req, types.NewAppError(types.ErrCodeAuthKeyMissing, "API key is required", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"data"`) {
		t.Errorf("unexpected data member in 401 envelope: %s", rec.Body.String())
	}
}

func TestDecodeJSON_ValidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"name":"Steve"}`))
	rec := httptest.NewRecorder()

	var dst struct {
		Name string `json:"name"`
	}
	if err := DecodeJSON(rec, req, &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.Name != "Steve" {
		t.Errorf("expected name Steve, got %q", dst.Name)
	}
}

func TestDecodeJSON_Failures(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed", `{"name":`},
		{"unknown field", `{"nope":1}`},
		{"wrong type", `{"name":42}`},
		{"trailing garbage", `{"name":"a"}{"name":"b"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			var dst struct {
				Name string `json:"name"`
			}
			err := DecodeJSON(rec, req, &dst)
			if err == nil {
				t.Fatal("expected error")
			}

			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *types.AppError, got %T", err)
			}
			if appErr.HTTPStatus() != http.StatusBadRequest {
				t.Errorf("expected 400 status mapping, got %d", appErr.HTTPStatus())
			}
		})
	}
}
