package integration

import (
	"fmt"
	"net/http"
	"testing"
)

func TestSyncFlow_ApplyRemoteTransaction(t *testing.T) {
	app := setupApp(t)
	token, _ := app.setupWorkspace(t, "sync@test.com")
	accountID := app.createAccount(t, token, "Giro")

	// A remote peer pushes a transaction this instance has never seen
	txID := "0d9e4b6a-3c2d-4e5f-8a9b-102938475601"
	payload := fmt.Sprintf(`{"date":"2026-06-01T00:00:00Z","value_date":"2026-06-01T00:00:00Z","account_id":%q,"type":"INCOME","amount":7500}`, accountID)
	body := fmt.Sprintf(`{"changes":[{"entity_type":"transaction","entity_id":%q,"operation":"CREATE","revision":"00000000f000-0001","updated_at":"2026-06-01T12:00:00Z","payload":%s}]}`, txID, payload)

	rec := app.syncRequest("/api/v1/sync/changes", body, token, testSyncKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("apply changes failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	if result["applied"].(float64) != 1 || result["discarded"].(float64) != 0 {
		t.Fatalf("expected applied=1 discarded=0, got %s", rec.Body.String())
	}

	// The merged transaction is readable through the normal API
	rec = app.request("GET", "/api/v1/transactions/"+txID, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching merged transaction, got %d: %s", rec.Code, rec.Body.String())
	}
	txn := parseJSON(t, rec)["transaction"].(map[string]interface{})
	if txn["amount"].(float64) != 7500 {
		t.Errorf("expected amount 7500, got %v", txn["amount"])
	}

	// The account balance reflects the merged booking
	rec = app.request("GET", "/api/v1/stats/balance?kind=account&id="+accountID, "", token)
	if balance := parseJSON(t, rec)["balance"].(float64); balance != 7500 {
		t.Errorf("expected balance 7500, got %.0f", balance)
	}

	// Re-applying the identical batch is idempotent
	rec = app.syncRequest("/api/v1/sync/changes", body, token, testSyncKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("re-apply failed: %d %s", rec.Code, rec.Body.String())
	}
	result = parseJSON(t, rec)
	if result["applied"].(float64) != 0 || result["discarded"].(float64) != 1 {
		t.Errorf("expected applied=0 discarded=1 on replay, got %s", rec.Body.String())
	}
}

func TestSyncFlow_StaleUpdateDiscarded(t *testing.T) {
	app := setupApp(t)
	token, _ := app.setupWorkspace(t, "stale@test.com")
	accountID := app.createAccount(t, token, "Giro")

	// Book a transaction locally; its revision comes from the local clock,
	// which has already observed every applied remote revision.
	body := fmt.Sprintf(`{"date":"2026-06-10T00:00:00Z","account_id":%q,"type":"EXPENSE","amount":-2000,"note":"local"}`, accountID)
	rec := app.request("POST", "/api/v1/transactions", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction failed: %d %s", rec.Code, rec.Body.String())
	}
	txID := parseJSON(t, rec)["transaction"].(map[string]interface{})["id"].(string)

	// A remote update with an older revision loses the merge
	payload := fmt.Sprintf(`{"date":"2026-06-10T00:00:00Z","account_id":%q,"type":"EXPENSE","amount":-9999,"note":"stale"}`, accountID)
	body = fmt.Sprintf(`{"changes":[{"entity_type":"transaction","entity_id":%q,"operation":"UPDATE","revision":"000000000001-0000","updated_at":"2020-01-01T00:00:00Z","payload":%s}]}`, txID, payload)
	rec = app.syncRequest("/api/v1/sync/changes", body, token, testSyncKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("apply changes failed: %d %s", rec.Code, rec.Body.String())
	}
	if discarded := parseJSON(t, rec)["discarded"].(float64); discarded != 1 {
		t.Errorf("expected 1 discarded, got %.0f", discarded)
	}

	// Local state untouched
	rec = app.request("GET", "/api/v1/transactions/"+txID, "", token)
	txn := parseJSON(t, rec)["transaction"].(map[string]interface{})
	if txn["note"] != "local" {
		t.Errorf("expected local note to survive, got %v", txn["note"])
	}
}

func TestSyncFlow_LocalMutationsQueue(t *testing.T) {
	app := setupApp(t)
	token, _ := app.setupWorkspace(t, "queue@test.com")
	accountID := app.createAccount(t, token, "Giro")

	body := fmt.Sprintf(`{"date":"2026-06-01T00:00:00Z","account_id":%q,"type":"INCOME","amount":5000}`, accountID)
	rec := app.request("POST", "/api/v1/transactions", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction failed: %d %s", rec.Code, rec.Body.String())
	}

	// Group, account and transaction creates are all queued for publication
	rec = app.request("GET", "/api/v1/sync/queue", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("queue fetch failed: %d %s", rec.Code, rec.Body.String())
	}
	queue := parseJSON(t, rec)["queue"].([]interface{})
	if len(queue) < 3 {
		t.Errorf("expected at least 3 queued entries, got %d", len(queue))
	}
}

func TestSyncFlow_RejectsWithoutSyncKey(t *testing.T) {
	app := setupApp(t)
	token, _ := app.setupWorkspace(t, "nokey@test.com")

	body := `{"changes":[{"entity_type":"transaction","entity_id":"0d9e4b6a-3c2d-4e5f-8a9b-102938475601","operation":"CREATE"}]}`
	rec := app.syncRequest("/api/v1/sync/changes", body, token, "wrong-key")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong sync key, got %d: %s", rec.Code, rec.Body.String())
	}
	errObj := parseJSON(t, rec)["error"].(map[string]interface{})
	if errObj["code"] != "INVALID_SYNC_KEY" {
		t.Errorf("expected INVALID_SYNC_KEY, got %v", errObj["code"])
	}
}
