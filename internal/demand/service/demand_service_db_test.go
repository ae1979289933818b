package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eduardopventura/demandflow/internal/demand/entity"
	"github.com/eduardopventura/demandflow/internal/demand/repository"
	"github.com/eduardopventura/demandflow/internal/demand/testutil"
	"github.com/eduardopventura/demandflow/internal/shared/callback"
)

type dbEnv struct {
	repos    *repository.Repositories
	demand   *DemandService
	notifier *NotificationService
	email    *recordingSender
}

func setupDemandEnv(t *testing.T) *dbEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	notifier := NewNotificationService(repos.User, zap.NewNop())
	email := &recordingSender{}
	notifier.SetEmailSender(email)
	return &dbEnv{
		repos:    repos,
		demand:   NewDemandService(repos, notifier, zap.NewNop()),
		notifier: notifier,
		email:    email,
	}
}

func boolPtr(b bool) *bool { return &b }

func TestCreateDemandFromTemplate(t *testing.T) {
	env := setupDemandEnv(t)
	ctx := context.Background()
	db := env.repos.User.DB()
	testutil.SeedUser(t, db, "u1", "Ana", "ana@test.com")
	tpl := testutil.SeedTemplate(t, db, "tpl1", 7)

	responsible := "u1"
	d, err := env.demand.CreateDemand(ctx, CreateDemandInput{
		TemplateID:        tpl.ID,
		ResponsibleUserID: &responsible,
		FieldValues:       map[string]string{"tpl1-f1": "Office chairs"},
	}, "u1")
	if err != nil {
		t.Fatalf("CreateDemand: %v", err)
	}

	if d.Status != entity.DemandStatusCreated {
		t.Errorf("status = %q, want created", d.Status)
	}
	if len(d.TaskStatuses) != 2 {
		t.Fatalf("task statuses = %d, want 2", len(d.TaskStatuses))
	}
	wantDue := d.CreatedAt.AddDate(0, 0, 7)
	if !d.ExpectedAt.Equal(wantDue) {
		t.Errorf("expectedAt = %v, want %v", d.ExpectedAt, wantDue)
	}
	// the responsible is notified of the new demand
	if len(env.email.sent) == 0 {
		t.Error("responsible should have been notified on creation")
	}
}

func TestCreateDemandMissingRequiredField(t *testing.T) {
	env := setupDemandEnv(t)
	tpl := testutil.SeedTemplate(t, env.repos.User.DB(), "tpl1", 7)

	_, err := env.demand.CreateDemand(context.Background(), CreateDemandInput{
		TemplateID: tpl.ID,
	}, "u1")
	if !IsValidation(err) {
		t.Fatalf("want validation error for missing required field, got %v", err)
	}
}

func TestTwoTaskFlowFinalizesOnTime(t *testing.T) {
	env := setupDemandEnv(t)
	ctx := context.Background()
	db := env.repos.User.DB()
	testutil.SeedUser(t, db, "u1", "Ana", "ana@test.com")
	tpl := testutil.SeedTemplate(t, db, "tpl1", 7)

	responsible := "u1"
	d, err := env.demand.CreateDemand(ctx, CreateDemandInput{
		TemplateID:        tpl.ID,
		ResponsibleUserID: &responsible,
		FieldValues:       map[string]string{"tpl1-f1": "Chairs"},
	}, "u1")
	if err != nil {
		t.Fatalf("CreateDemand: %v", err)
	}

	d, err = env.demand.ApplyDemandUpdate(ctx, d.ID, DemandUpdate{
		Tasks: []TaskStatusPatch{{TaskID: "tpl1-t1", Completed: boolPtr(true)}},
	}, "u1")
	if err != nil {
		t.Fatalf("complete first task: %v", err)
	}
	if d.Status != entity.DemandStatusInProgress {
		t.Fatalf("status after first task = %q, want in_progress", d.Status)
	}

	d, err = env.demand.ApplyDemandUpdate(ctx, d.ID, DemandUpdate{
		Tasks: []TaskStatusPatch{{TaskID: "tpl1-t2", Completed: boolPtr(true)}},
	}, "u1")
	if err != nil {
		t.Fatalf("complete second task: %v", err)
	}
	if d.Status != entity.DemandStatusFinalized {
		t.Fatalf("status after all tasks = %q, want finalized", d.Status)
	}
	if d.FinalizedAt == nil {
		t.Fatal("finalizedAt must be stamped")
	}
	if !d.OnTime {
		t.Error("finalizing well before the 7 day deadline must be on time")
	}

	reloaded, err := env.demand.GetDemand(ctx, d.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != entity.DemandStatusFinalized || reloaded.FinalizedAt == nil {
		t.Error("finalization must be persisted")
	}
}

func TestBlockedTaskRejected(t *testing.T) {
	env := setupDemandEnv(t)
	ctx := context.Background()
	tpl := testutil.SeedTemplate(t, env.repos.User.DB(), "tpl1", 7)

	d, err := env.demand.CreateDemand(ctx, CreateDemandInput{
		TemplateID:  tpl.ID,
		FieldValues: map[string]string{"tpl1-f1": "Chairs"},
	}, "u1")
	if err != nil {
		t.Fatalf("CreateDemand: %v", err)
	}

	// t2 depends on t1, which is still open
	_, err = env.demand.ApplyDemandUpdate(ctx, d.ID, DemandUpdate{
		Tasks: []TaskStatusPatch{{TaskID: "tpl1-t2", Completed: boolPtr(true)}},
	}, "u1")
	if !IsValidation(err) {
		t.Fatalf("want validation error for blocked task, got %v", err)
	}

	// both in the same batch is fine
	_, err = env.demand.ApplyDemandUpdate(ctx, d.ID, DemandUpdate{
		Tasks: []TaskStatusPatch{
			{TaskID: "tpl1-t1", Completed: boolPtr(true)},
			{TaskID: "tpl1-t2", Completed: boolPtr(true)},
		},
	}, "u1")
	if err != nil {
		t.Fatalf("parent and child in one batch should pass: %v", err)
	}
}

func TestManualRegressionToCreatedRejected(t *testing.T) {
	env := setupDemandEnv(t)
	ctx := context.Background()
	tpl := testutil.SeedTemplate(t, env.repos.User.DB(), "tpl1", 7)

	d, err := env.demand.CreateDemand(ctx, CreateDemandInput{
		TemplateID:  tpl.ID,
		FieldValues: map[string]string{"tpl1-f1": "Chairs"},
	}, "u1")
	if err != nil {
		t.Fatalf("CreateDemand: %v", err)
	}
	if _, err = env.demand.StartProgress(ctx, d.ID, "u1"); err != nil {
		t.Fatalf("StartProgress: %v", err)
	}

	status := entity.DemandStatusCreated
	_, err = env.demand.ApplyDemandUpdate(ctx, d.ID, DemandUpdate{Status: &status}, "u1")
	if !IsValidation(err) {
		t.Fatalf("want validation error for regression to created, got %v", err)
	}
}

func TestReopenClearsFinalization(t *testing.T) {
	env := setupDemandEnv(t)
	ctx := context.Background()
	tpl := testutil.SeedTemplate(t, env.repos.User.DB(), "tpl1", 7)

	d, err := env.demand.CreateDemand(ctx, CreateDemandInput{
		TemplateID:  tpl.ID,
		FieldValues: map[string]string{"tpl1-f1": "Chairs"},
	}, "u1")
	if err != nil {
		t.Fatalf("CreateDemand: %v", err)
	}
	if _, err = env.demand.Finish(ctx, d.ID, "u1"); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	d, err = env.demand.Reopen(ctx, d.ID, "u1")
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if d.Status != entity.DemandStatusInProgress || d.FinalizedAt != nil {
		t.Errorf("after reopen: status=%q finalizedAt=%v", d.Status, d.FinalizedAt)
	}
}

// countingInvoker pretends the callback endpoint accepted every call.
type countingInvoker struct {
	calls int
}

func (i *countingInvoker) Invoke(_ context.Context, _ string, _ callback.Payload) (int, error) {
	i.calls++
	return 200, nil
}

func TestExecuteActionGuardsAgainstDoubleRun(t *testing.T) {
	env := setupDemandEnv(t)
	ctx := context.Background()
	db := env.repos.User.DB()
	tpl := testutil.SeedTemplate(t, db, "tpl1", 7)

	action := &entity.Action{
		ID:          "a1",
		Name:        "Notify supplier",
		CallbackURL: "http://automation.test/hook",
		InputFields: []entity.ActionInput{
			{ID: "in1", Label: "Item", Kind: entity.FieldKindText, Required: true},
		},
		CreatedBy: "seed",
	}
	if err := db.Create(action).Error; err != nil {
		t.Fatalf("seed action: %v", err)
	}
	var task entity.TemplateTask
	if err := db.Where("id = ?", "tpl1-t1").First(&task).Error; err != nil {
		t.Fatalf("load task: %v", err)
	}
	actionID := "a1"
	task.ActionID = &actionID
	task.FieldMapping = map[string]string{"in1": "tpl1-f1"}
	if err := db.Save(&task).Error; err != nil {
		t.Fatalf("bind action to task: %v", err)
	}

	d, err := env.demand.CreateDemand(ctx, CreateDemandInput{
		TemplateID:  tpl.ID,
		FieldValues: map[string]string{"tpl1-f1": "Chairs"},
	}, "u1")
	if err != nil {
		t.Fatalf("CreateDemand: %v", err)
	}

	invoker := &countingInvoker{}
	actionSvc := NewActionService(env.repos, invoker, nil, env.notifier, zap.NewNop())

	result, err := actionSvc.ExecuteAction(ctx, d.ID, "tpl1-t1", "u1")
	if err != nil {
		t.Fatalf("ExecuteAction: %v", err)
	}
	if result.StatusCode != 200 {
		t.Errorf("status code = %d", result.StatusCode)
	}
	if result.Demand.Status != entity.DemandStatusInProgress {
		t.Errorf("demand status after action = %q, want in_progress", result.Demand.Status)
	}

	_, err = actionSvc.ExecuteAction(ctx, d.ID, "tpl1-t1", "u1")
	if !IsValidation(err) {
		t.Fatalf("second execution must be rejected, got %v", err)
	}
	if invoker.calls != 1 {
		t.Errorf("external calls = %d, want exactly 1", invoker.calls)
	}
}

func TestExecuteActionRejectsBlockedTask(t *testing.T) {
	env := setupDemandEnv(t)
	ctx := context.Background()
	db := env.repos.User.DB()
	tpl := testutil.SeedTemplate(t, db, "tpl1", 7)

	action := &entity.Action{
		ID:          "a1",
		Name:        "Notify supplier",
		CallbackURL: "http://automation.test/hook",
		InputFields: []entity.ActionInput{
			{ID: "in1", Label: "Item", Kind: entity.FieldKindText, Required: true},
		},
		CreatedBy: "seed",
	}
	if err := db.Create(action).Error; err != nil {
		t.Fatalf("seed action: %v", err)
	}
	// bind the action to t2, whose parent t1 starts open
	var task entity.TemplateTask
	if err := db.Where("id = ?", "tpl1-t2").First(&task).Error; err != nil {
		t.Fatalf("load task: %v", err)
	}
	actionID := "a1"
	task.ActionID = &actionID
	task.FieldMapping = map[string]string{"in1": "tpl1-f1"}
	if err := db.Save(&task).Error; err != nil {
		t.Fatalf("bind action to task: %v", err)
	}

	d, err := env.demand.CreateDemand(ctx, CreateDemandInput{
		TemplateID:  tpl.ID,
		FieldValues: map[string]string{"tpl1-f1": "Chairs"},
	}, "u1")
	if err != nil {
		t.Fatalf("CreateDemand: %v", err)
	}

	invoker := &countingInvoker{}
	actionSvc := NewActionService(env.repos, invoker, nil, env.notifier, zap.NewNop())

	_, err = actionSvc.ExecuteAction(ctx, d.ID, "tpl1-t2", "u1")
	if !IsValidation(err) {
		t.Fatalf("action on a blocked task must be rejected, got %v", err)
	}
	if invoker.calls != 0 {
		t.Fatalf("external calls = %d, want 0 before the parent completes", invoker.calls)
	}

	_, err = env.demand.ApplyDemandUpdate(ctx, d.ID, DemandUpdate{
		Tasks: []TaskStatusPatch{{TaskID: "tpl1-t1", Completed: boolPtr(true)}},
	}, "u1")
	if err != nil {
		t.Fatalf("complete parent: %v", err)
	}
	if _, err = actionSvc.ExecuteAction(ctx, d.ID, "tpl1-t2", "u1"); err != nil {
		t.Fatalf("action after parent completed: %v", err)
	}
	if invoker.calls != 1 {
		t.Errorf("external calls = %d, want 1", invoker.calls)
	}
}

func TestExportDemandsIncludesTaskProgress(t *testing.T) {
	env := setupDemandEnv(t)
	ctx := context.Background()
	tpl := testutil.SeedTemplate(t, env.repos.User.DB(), "tpl1", 7)

	d, err := env.demand.CreateDemand(ctx, CreateDemandInput{
		TemplateID:  tpl.ID,
		FieldValues: map[string]string{"tpl1-f1": "Chairs"},
	}, "u1")
	if err != nil {
		t.Fatalf("CreateDemand: %v", err)
	}

	f, name, err := env.demand.ExportDemands(ctx, nil)
	if err != nil {
		t.Fatalf("ExportDemands: %v", err)
	}
	if name == "" {
		t.Error("export must suggest a file name")
	}
	if got, _ := f.GetCellValue("Demands", "A2"); got != d.Name {
		t.Errorf("name cell = %q, want %q", got, d.Name)
	}
	if got, _ := f.GetCellValue("Demands", "H2"); got != "0/2" {
		t.Errorf("tasks done cell = %q, want 0/2", got)
	}
}

func TestInteractiveSaveKeepsDeadlineClaim(t *testing.T) {
	env := setupDemandEnv(t)
	ctx := context.Background()
	tpl := testutil.SeedTemplate(t, env.repos.User.DB(), "tpl1", 1)

	d, err := env.demand.CreateDemand(ctx, CreateDemandInput{
		TemplateID:  tpl.ID,
		FieldValues: map[string]string{"tpl1-f1": "Chairs"},
	}, "u1")
	if err != nil {
		t.Fatalf("CreateDemand: %v", err)
	}

	// a writer holding a copy loaded before the sweep claims the flag
	stale, err := env.repos.Demand.FindByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("load stale copy: %v", err)
	}
	claimed, err := env.repos.Demand.ClaimDeadlineNotification(ctx, d.ID)
	if err != nil || !claimed {
		t.Fatalf("claim: claimed=%v err=%v", claimed, err)
	}

	if err := env.repos.Demand.CompleteTask(ctx, stale, "tpl1-t1", "u1", time.Now()); err != nil {
		t.Fatalf("CompleteTask with stale copy: %v", err)
	}
	reloaded, err := env.demand.GetDemand(ctx, d.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.DeadlineNotified {
		t.Fatal("CompleteTask must not undo a claimed deadline notification")
	}

	if err := env.repos.Demand.SaveWithChildren(ctx, stale, nil, nil); err != nil {
		t.Fatalf("SaveWithChildren with stale copy: %v", err)
	}
	reloaded, err = env.demand.GetDemand(ctx, d.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.DeadlineNotified {
		t.Fatal("SaveWithChildren must not undo a claimed deadline notification")
	}
}

func TestDeadlineSweepAtMostOnce(t *testing.T) {
	env := setupDemandEnv(t)
	ctx := context.Background()
	db := env.repos.User.DB()
	testutil.SeedUser(t, db, "u1", "Ana", "ana@test.com")
	tpl := testutil.SeedTemplate(t, db, "tpl1", 1)

	responsible := "u1"
	d, err := env.demand.CreateDemand(ctx, CreateDemandInput{
		TemplateID:        tpl.ID,
		ResponsibleUserID: &responsible,
		FieldValues:       map[string]string{"tpl1-f1": "Chairs"},
	}, "u1")
	if err != nil {
		t.Fatalf("CreateDemand: %v", err)
	}

	env.email.sent = nil // drop the creation notifications
	sweep := NewSweepService(env.repos, env.notifier, nil, zap.NewNop())

	if err := sweep.RunDeadlineSweep(ctx); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if err := sweep.RunDeadlineSweep(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}

	if len(env.email.sent) != 1 {
		t.Fatalf("deadline notifications = %d, want exactly 1", len(env.email.sent))
	}
	reloaded, err := env.demand.GetDemand(ctx, d.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.DeadlineNotified {
		t.Error("deadlineNotified must be set after the first sweep")
	}
}
