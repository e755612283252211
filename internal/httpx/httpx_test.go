package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"authcore/internal/autherr"
)

type loginBody struct {
	Email string `json:"email"`
}

func TestDecodeJSON(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"email":"a@b.co"}`, false},
		{"unknown field", `{"email":"a@b.co","admin":true}`, true},
		{"malformed", `{"email":`, true},
		{"trailing object", `{"email":"a"}{"email":"b"}`, true},
		{"empty", ``, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dest loginBody
			err := DecodeJSON(httptest.NewRecorder(), req, &dest)
			if tc.wantErr {
				if autherr.KindOf(err) != autherr.InvalidInput {
					t.Fatalf("err = %v, want InvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeJSON: %v", err)
			}
			if dest.Email != "a@b.co" {
				t.Errorf("Email = %q, want %q", dest.Email, "a@b.co")
			}
		})
	}
}

func TestDecodeJSON_NoBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if err := DecodeJSON(httptest.NewRecorder(), req, &loginBody{}); autherr.KindOf(err) != autherr.InvalidInput {
		t.Fatalf("err = %v, want InvalidInput", err)
	}
}

func TestRespondError(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantAuth   bool
	}{
		{"expired collapses to unauthorized", autherr.ErrTokenExpired, http.StatusUnauthorized, "unauthorized", true},
		{"blacklisted collapses to unauthorized", autherr.ErrTokenBlacklisted, http.StatusUnauthorized, "unauthorized", true},
		{"forbidden", autherr.ErrInsufficientRole, http.StatusForbidden, "insufficient_role", false},
		{"reset token", autherr.ErrResetTokenInvalid, http.StatusBadRequest, "reset_token_invalid", false},
		{"unavailable", autherr.Unavailable("redis", errors.New("dial tcp: refused")), http.StatusServiceUnavailable, "dependency_unavailable", false},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var body ErrorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tc.wantCode {
				t.Errorf("error = %q, want %q", body.Error, tc.wantCode)
			}
			if strings.Contains(body.Message, "refused") || strings.Contains(body.Message, "boom") {
				t.Errorf("message leaks internal detail: %q", body.Message)
			}
			if got := rec.Header().Get("WWW-Authenticate") != ""; got != tc.wantAuth {
				t.Errorf("WWW-Authenticate set = %v, want %v", got, tc.wantAuth)
			}
		})
	}
}

func TestRespondJSON_NilPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondJSON(rec, http.StatusNoContent, nil)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Errorf("got %d %q, want 204 with empty body", rec.Code, rec.Body.String())
	}
}
