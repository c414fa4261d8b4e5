package integration

import (
	"net/http"
	"testing"
)

func TestSettingsFlow_SearchHistory(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "settings@test.com", "password123")

	// Fresh account starts with an empty history
	rec := app.request("GET", "/api/v1/settings/search-history", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	history := parseJSON(t, rec)["search_history"].([]interface{})
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %v", history)
	}

	// Record two searches; the newest comes first
	for _, term := range []string{"rewe", "miete"} {
		rec = app.request("POST", "/api/v1/settings/search-history", `{"term":"`+term+`"}`, token)
		if rec.Code != http.StatusOK {
			t.Fatalf("add term failed: %d %s", rec.Code, rec.Body.String())
		}
	}
	rec = app.request("GET", "/api/v1/settings/search-history", "", token)
	history = parseJSON(t, rec)["search_history"].([]interface{})
	if len(history) != 2 || history[0] != "miete" || history[1] != "rewe" {
		t.Errorf("expected [miete rewe], got %v", history)
	}

	// Reset clears the history along with the rest of the settings
	rec = app.request("POST", "/api/v1/settings/reset", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset failed: %d %s", rec.Code, rec.Body.String())
	}
	rec = app.request("GET", "/api/v1/settings/search-history", "", token)
	if history = parseJSON(t, rec)["search_history"].([]interface{}); len(history) != 0 {
		t.Errorf("expected empty history after reset, got %v", history)
	}
}
