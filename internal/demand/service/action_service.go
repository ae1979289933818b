package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduardopventura/demandflow/internal/demand/entity"
	"github.com/eduardopventura/demandflow/internal/demand/fieldvalue"
	"github.com/eduardopventura/demandflow/internal/demand/repository"
	"github.com/eduardopventura/demandflow/internal/shared/callback"
	"github.com/eduardopventura/demandflow/internal/shared/storage"
)

// ActionInvoker is the callback transport. Satisfied by *callback.Client.
type ActionInvoker interface {
	Invoke(ctx context.Context, endpoint string, payload callback.Payload) (int, error)
}

// ActionService runs a task's bound automation: it resolves the payload from
// the demand's field values, POSTs it to the action endpoint, and on success
// completes the task. The three phases are strictly ordered so no store
// transaction is ever open while the HTTP call is in flight.
type ActionService struct {
	repos    *repository.Repositories
	invoker  ActionInvoker
	files    storage.FileStore
	notifier *NotificationService
	logger   *zap.Logger
	now      func() time.Time
}

func NewActionService(repos *repository.Repositories, invoker ActionInvoker, files storage.FileStore, notifier *NotificationService, logger *zap.Logger) *ActionService {
	return &ActionService{
		repos:    repos,
		invoker:  invoker,
		files:    files,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// ExecutionResult outcome of one action execution.
type ExecutionResult struct {
	StatusCode int            `json:"status_code"`
	Demand     *entity.Demand `json:"demand"`
}

// ExecuteAction invokes the automation bound to one task of a demand.
// A task already marked complete is rejected before anything is sent; this
// guard is the only protection against double execution, so a caller whose
// previous call had an unknown outcome must re-check the task first.
func (s *ActionService) ExecuteAction(ctx context.Context, demandID, taskID, actorID string) (*ExecutionResult, error) {
	d, err := s.repos.Demand.FindByID(ctx, demandID)
	if err != nil {
		return nil, err
	}
	var status *entity.DemandTaskStatus
	for i := range d.TaskStatuses {
		if d.TaskStatuses[i].TaskID == taskID {
			status = &d.TaskStatuses[i]
			break
		}
	}
	if status == nil {
		return nil, repository.ErrNotFound
	}
	if status.Completed {
		return nil, Validationf("task %s is already completed", taskID)
	}

	task, err := s.repos.Template.FindTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.ActionID == nil || *task.ActionID == "" {
		return nil, Validationf("task %q has no automation configured", task.Name)
	}
	if task.ParentTaskID != nil && *task.ParentTaskID != "" {
		for i := range d.TaskStatuses {
			if d.TaskStatuses[i].TaskID == *task.ParentTaskID && !d.TaskStatuses[i].Completed {
				return nil, Validationf("task %q is blocked: its parent task is not complete", task.Name)
			}
		}
	}
	action, err := s.repos.Action.FindByID(ctx, *task.ActionID)
	if err != nil {
		return nil, err
	}

	resolved, err := BuildActionPayload(action, task, demandEntries(d))
	if err != nil {
		return nil, err
	}
	payload, closeFile, err := s.attachFile(ctx, resolved)
	if err != nil {
		return nil, err
	}
	defer closeFile()

	code, err := s.invoker.Invoke(ctx, action.CallbackURL, payload)
	if err != nil {
		return &ExecutionResult{StatusCode: code, Demand: d}, err
	}

	now := s.now()
	completed, total := countCompleted(d.TaskStatuses)
	completed++ // this task flips inside the transaction below
	ApplyDerivedStatus(d, completed, total, now)
	if err := s.repos.Demand.CompleteTask(ctx, d, taskID, actorID, now); err != nil {
		return nil, fmt.Errorf("record action completion: %w", err)
	}
	status.Completed = true
	status.CompletedAt = &now
	status.CompletedBy = actorID
	s.logger.Info("action executed",
		zap.String("demand_id", d.ID),
		zap.String("task_id", taskID),
		zap.String("action_id", action.ID),
		zap.Int("status_code", code))

	if target := d.Responsible(); !target.IsZero() && !s.notifier.isEffectiveResponsible(ctx, actorID, target) {
		s.notifier.Notify(ctx, target, Event{
			Kind:       EventTaskCompleted,
			DemandName: d.Name,
			TaskName:   task.Name,
			ActorName:  s.actorName(ctx, actorID),
		})
	}
	return &ExecutionResult{StatusCode: code, Demand: d}, nil
}

func (s *ActionService) GetAction(ctx context.Context, id string) (*entity.Action, error) {
	return s.repos.Action.FindByID(ctx, id)
}

func (s *ActionService) ListActions(ctx context.Context) ([]entity.Action, error) {
	return s.repos.Action.List(ctx)
}

func (s *ActionService) CreateAction(ctx context.Context, action *entity.Action, actorID string) error {
	if err := validateAction(action); err != nil {
		return err
	}
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	action.CreatedBy = actorID
	return s.repos.Action.Create(ctx, action)
}

func (s *ActionService) UpdateAction(ctx context.Context, action *entity.Action) error {
	if _, err := s.repos.Action.FindByID(ctx, action.ID); err != nil {
		return err
	}
	if err := validateAction(action); err != nil {
		return err
	}
	return s.repos.Action.Update(ctx, action)
}

func (s *ActionService) DeleteAction(ctx context.Context, id string) error {
	return s.repos.Action.Delete(ctx, id)
}

func validateAction(action *entity.Action) error {
	if action.Name == "" {
		return Validationf("action name is required")
	}
	if action.CallbackURL == "" {
		return Validationf("callback URL is required")
	}
	seen := make(map[string]bool, len(action.InputFields))
	for _, in := range action.InputFields {
		if in.ID == "" || in.Label == "" {
			return Validationf("action inputs need an id and a label")
		}
		if seen[in.ID] {
			return Validationf("duplicate action input id %q", in.ID)
		}
		seen[in.ID] = true
	}
	return nil
}

func (s *ActionService) actorName(ctx context.Context, actorID string) string {
	user, err := s.repos.User.FindUser(ctx, actorID)
	if err != nil {
		return actorID
	}
	return user.Name
}

// attachFile turns a resolved payload into the wire payload, opening the
// stored file when one is referenced. The returned closer is a no-op when
// there is no file.
func (s *ActionService) attachFile(ctx context.Context, resolved *ResolvedPayload) (callback.Payload, func(), error) {
	payload := callback.Payload{Fields: resolved.Fields}
	if resolved.FileRef == "" {
		return payload, func() {}, nil
	}
	if s.files == nil {
		return callback.Payload{}, nil, Validationf("file storage is not configured")
	}
	content, name, err := s.files.Resolve(ctx, resolved.FileRef)
	if err != nil {
		return callback.Payload{}, nil, fmt.Errorf("resolve file %s: %w", resolved.FileRef, err)
	}
	payload.File = &callback.FilePart{
		Field:   resolved.FileField,
		Name:    name,
		Content: content,
	}
	return payload, func() { content.Close() }, nil
}

// demandEntries converts the stored field values into resolver entries.
func demandEntries(d *entity.Demand) []fieldvalue.Entry {
	entries := make([]fieldvalue.Entry, 0, len(d.FieldValues))
	for _, fv := range d.FieldValues {
		entries = append(entries, fieldvalue.Entry{
			Key:   fieldvalue.Key{FieldID: fv.FieldID, Replica: fv.ReplicaIndex},
			Value: fv.Value,
		})
	}
	fieldvalue.SortEntries(entries)
	return entries
}
