package handler

import (
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/eduardopventura/demandflow/internal/demand/repository"
	"github.com/eduardopventura/demandflow/internal/demand/service"
	"github.com/eduardopventura/demandflow/internal/demand/testutil"
)

func setupDemandTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	logger := zap.NewNop()
	notifier := service.NewNotificationService(repos.User, logger)
	demandSvc := service.NewDemandService(repos, notifier, logger)
	actionSvc := service.NewActionService(repos, nil, nil, notifier, logger)
	h := NewDemandHandler(demandSvc, actionSvc)

	api := testutil.AuthGroup(router, "/api/v1")
	api.POST("/demands", h.Create)
	api.GET("/demands", h.List)
	api.GET("/demands/:id", h.Get)
	api.PATCH("/demands/:id", h.Update)
	api.POST("/demands/:id/start", h.StartProgress)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func TestDemandCreateAndGet(t *testing.T) {
	env := setupDemandTest(t)
	token := testutil.DefaultTestToken()
	testutil.SeedUser(t, env.DB, "test-user-001", "Test Admin", "admin@test.com")
	testutil.SeedTemplate(t, env.DB, "tpl1", 7)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/demands", map[string]interface{}{
		"template_id": "tpl1",
		"field_values": map[string]string{
			"tpl1-f1": "Office chairs",
		},
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["status"] != "created" {
		t.Errorf("Expected status created, got %v", data["status"])
	}
	demandID := data["id"].(string)

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/demands/"+demandID, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	data = resp["data"].(map[string]interface{})
	if tasks := data["task_statuses"].([]interface{}); len(tasks) != 2 {
		t.Errorf("Expected 2 task statuses, got %d", len(tasks))
	}
}

func TestDemandCreateValidationError(t *testing.T) {
	env := setupDemandTest(t)
	token := testutil.DefaultTestToken()
	testutil.SeedTemplate(t, env.DB, "tpl1", 7)

	// required field tpl1-f1 missing
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/demands", map[string]interface{}{
		"template_id": "tpl1",
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDemandGetNotFound(t *testing.T) {
	env := setupDemandTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/demands/missing", nil, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDemandRequiresAuth(t *testing.T) {
	env := setupDemandTest(t)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/demands", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDemandTaskPatchDerivesStatus(t *testing.T) {
	env := setupDemandTest(t)
	token := testutil.DefaultTestToken()
	testutil.SeedUser(t, env.DB, "test-user-001", "Test Admin", "admin@test.com")
	testutil.SeedTemplate(t, env.DB, "tpl1", 7)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/demands", map[string]interface{}{
		"template_id":  "tpl1",
		"field_values": map[string]string{"tpl1-f1": "Chairs"},
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	demandID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(env.Router, "PATCH", "/api/v1/demands/"+demandID, map[string]interface{}{
		"tasks": []map[string]interface{}{
			{"task_id": "tpl1-t1", "completed": true},
		},
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != "in_progress" {
		t.Errorf("Expected in_progress after one task, got %v", data["status"])
	}
}
