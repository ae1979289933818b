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
)

// DemandService owns the demand lifecycle: creation from a template,
// partial updates with status derivation, and the manual transition
// entry points. Notifications are dispatched after the write commits.
type DemandService struct {
	repos    *repository.Repositories
	notifier *NotificationService
	logger   *zap.Logger
	now      func() time.Time
}

func NewDemandService(repos *repository.Repositories, notifier *NotificationService, logger *zap.Logger) *DemandService {
	return &DemandService{
		repos:    repos,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateDemandInput demand creation request. FieldValues is keyed by the
// external key format, so group replicas arrive as "{fieldId}__{n}".
type CreateDemandInput struct {
	TemplateID        string            `json:"template_id" binding:"required"`
	Name              string            `json:"name"`
	ResponsibleUserID *string           `json:"responsible_user_id"`
	ResponsibleRoleID *string           `json:"responsible_role_id"`
	FieldValues       map[string]string `json:"field_values"`
	Notes             string            `json:"notes"`
}

// CreateDemand instantiates a demand from a template: the template's task
// list is copied into per-demand task statuses with the template defaults as
// each task's responsible, and the deadline is the creation date plus the
// template's expected duration.
func (s *DemandService) CreateDemand(ctx context.Context, in CreateDemandInput, actorID string) (*entity.Demand, error) {
	tpl, err := s.repos.Template.FindByID(ctx, in.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}

	entries := entriesFromMap(in.FieldValues)
	if err := validateRequiredOnCreate(tpl, entries); err != nil {
		return nil, err
	}

	now := s.now()
	d := &entity.Demand{
		ID:                   uuid.NewString(),
		TemplateID:           tpl.ID,
		Name:                 demandName(tpl, in.Name, entries),
		Status:               entity.DemandStatusCreated,
		ResponsibleUserID:    in.ResponsibleUserID,
		ResponsibleRoleID:    in.ResponsibleRoleID,
		ExpectedDurationDays: tpl.ExpectedDurationDays,
		CreatedAt:            now,
		ExpectedAt:           now.AddDate(0, 0, tpl.ExpectedDurationDays),
		OnTime:               true,
		Notes:                in.Notes,
		LastModifiedBy:       actorID,
		FieldValues:          buildFieldValues("", tpl, entries),
		TaskStatuses:         instantiateTasks(tpl),
	}
	for i := range d.FieldValues {
		d.FieldValues[i].DemandID = d.ID
	}
	for i := range d.TaskStatuses {
		d.TaskStatuses[i].DemandID = d.ID
	}

	if err := s.repos.Demand.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create demand: %w", err)
	}

	s.notifyCreation(ctx, d, tpl)
	return d, nil
}

// GetDemand loads a demand with its children.
func (s *DemandService) GetDemand(ctx context.Context, id string) (*entity.Demand, error) {
	return s.repos.Demand.FindByID(ctx, id)
}

// ListDemands returns demands matching the filters, newest first.
func (s *DemandService) ListDemands(ctx context.Context, filters map[string]interface{}, page, pageSize int) ([]entity.Demand, int64, error) {
	return s.repos.Demand.List(ctx, filters, page, pageSize)
}

// TaskStatusPatch partial update for one task status row. Nil fields are
// left untouched.
type TaskStatusPatch struct {
	TaskID            string  `json:"task_id" binding:"required"`
	Completed         *bool   `json:"completed"`
	ResponsibleUserID *string `json:"responsible_user_id"`
	ResponsibleRoleID *string `json:"responsible_role_id"`
}

// DemandUpdate partial demand update. Nil fields are left untouched.
// FieldValues merges by external key; ReplaceFieldValues makes it the full
// new value set instead.
type DemandUpdate struct {
	Status             *string           `json:"status"`
	ResponsibleUserID  *string           `json:"responsible_user_id"`
	ResponsibleRoleID  *string           `json:"responsible_role_id"`
	ExpectedAt         *time.Time        `json:"expected_at"`
	Notes              *string           `json:"notes"`
	FieldValues        map[string]string `json:"field_values"`
	ReplaceFieldValues bool              `json:"replace_field_values"`
	Tasks              []TaskStatusPatch `json:"tasks"`
}

// ApplyDemandUpdate applies a partial update as one atomic write. Task
// completion changes re-derive the demand status; a manual status in the
// update is validated against the monotonicity rule and wins over the
// derived one.
func (s *DemandService) ApplyDemandUpdate(ctx context.Context, demandID string, upd DemandUpdate, actorID string) (*entity.Demand, error) {
	d, err := s.repos.Demand.FindByID(ctx, demandID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.repos.Template.FindByID(ctx, d.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	now := s.now()

	var events []pendingEvent

	if upd.ResponsibleUserID != nil || upd.ResponsibleRoleID != nil {
		before := d.Responsible()
		d.ResponsibleUserID = upd.ResponsibleUserID
		d.ResponsibleRoleID = upd.ResponsibleRoleID
		if after := d.Responsible(); !after.IsZero() && after != before {
			events = append(events, pendingEvent{after, Event{
				Kind:       EventDemandAssigned,
				DemandName: d.Name,
				DueDate:    dueDate(d.ExpectedAt),
			}})
		}
	}
	if upd.ExpectedAt != nil {
		d.ExpectedAt = *upd.ExpectedAt
	}
	if upd.Notes != nil {
		d.Notes = *upd.Notes
	}

	var taskStatuses []entity.DemandTaskStatus
	if len(upd.Tasks) > 0 {
		taskStatuses, events, err = s.applyTaskPatches(ctx, d, tpl, upd.Tasks, actorID, now, events)
		if err != nil {
			return nil, err
		}
		completed, total := countCompleted(taskStatuses)
		d.TaskStatuses = taskStatuses
		ApplyDerivedStatus(d, completed, total, now)
	}

	if upd.Status != nil && *upd.Status != d.Status {
		if err := ValidateManualStatus(d, *upd.Status); err != nil {
			return nil, err
		}
		switch *upd.Status {
		case entity.DemandStatusFinalized:
			Finish(d, now)
		case entity.DemandStatusInProgress:
			if d.Status == entity.DemandStatusCreated {
				if err := StartProgress(d); err != nil {
					return nil, err
				}
			} else if err := Reopen(d); err != nil {
				return nil, err
			}
		}
	}

	var fieldValues []entity.DemandFieldValue
	if upd.FieldValues != nil {
		fieldValues = s.mergeFieldValues(d, tpl, upd.FieldValues, upd.ReplaceFieldValues)
		d.FieldValues = fieldValues
	}

	d.LastModifiedBy = actorID
	if err := s.repos.Demand.SaveWithChildren(ctx, d, fieldValues, taskStatuses); err != nil {
		return nil, fmt.Errorf("save demand: %w", err)
	}

	s.dispatchPending(ctx, events)
	return d, nil
}

// StartProgress moves a created demand into progress.
func (s *DemandService) StartProgress(ctx context.Context, demandID, actorID string) (*entity.Demand, error) {
	return s.transition(ctx, demandID, actorID, StartProgress)
}

// Finish finalizes a demand regardless of task completion. Idempotent.
func (s *DemandService) Finish(ctx context.Context, demandID, actorID string) (*entity.Demand, error) {
	now := s.now()
	return s.transition(ctx, demandID, actorID, func(d *entity.Demand) error {
		Finish(d, now)
		return nil
	})
}

// Reopen moves a finalized demand back to in progress. The finalization
// timestamp is cleared; the recorded on-time flag is kept.
func (s *DemandService) Reopen(ctx context.Context, demandID, actorID string) (*entity.Demand, error) {
	return s.transition(ctx, demandID, actorID, Reopen)
}

func (s *DemandService) transition(ctx context.Context, demandID, actorID string, apply func(*entity.Demand) error) (*entity.Demand, error) {
	d, err := s.repos.Demand.FindByID(ctx, demandID)
	if err != nil {
		return nil, err
	}
	if err := apply(d); err != nil {
		return nil, err
	}
	d.LastModifiedBy = actorID
	if err := s.repos.Demand.SaveWithChildren(ctx, d, nil, nil); err != nil {
		return nil, fmt.Errorf("save demand: %w", err)
	}
	return d, nil
}

// pendingEvent a notification queued during the mutation, dispatched only
// after the write commits.
type pendingEvent struct {
	target entity.Responsible
	event  Event
}

// dispatchPending sends queued events, at most one per responsible entity
// per event kind for the whole operation.
func (s *DemandService) dispatchPending(ctx context.Context, events []pendingEvent) {
	type dedupKey struct {
		target entity.Responsible
		kind   EventKind
	}
	seen := make(map[dedupKey]bool)
	for _, p := range events {
		k := dedupKey{p.target, p.event.Kind}
		if p.target.IsZero() || seen[k] {
			continue
		}
		seen[k] = true
		s.notifier.Notify(ctx, p.target, p.event)
	}
}

func (s *DemandService) notifyCreation(ctx context.Context, d *entity.Demand, tpl *entity.Template) {
	due := dueDate(d.ExpectedAt)
	var events []pendingEvent
	events = append(events, pendingEvent{d.Responsible(), Event{
		Kind:       EventDemandAssigned,
		DemandName: d.Name,
		DueDate:    due,
	}})
	taskNames := taskNameIndex(tpl)
	for i := range d.TaskStatuses {
		ts := &d.TaskStatuses[i]
		events = append(events, pendingEvent{ts.Responsible(d), Event{
			Kind:       EventTaskAssigned,
			DemandName: d.Name,
			TaskName:   taskNames[ts.TaskID],
			DueDate:    due,
		}})
	}
	s.dispatchPending(ctx, events)
}

// applyTaskPatches merges the patches into the current task-status set and
// returns the full replacement set plus the notification events the changes
// imply. Completing a task whose parent is still open is rejected; the check
// runs against the post-patch state so a parent and child completed in the
// same batch are accepted.
func (s *DemandService) applyTaskPatches(ctx context.Context, d *entity.Demand, tpl *entity.Template, patches []TaskStatusPatch, actorID string, now time.Time, events []pendingEvent) ([]entity.DemandTaskStatus, []pendingEvent, error) {
	statuses := make([]entity.DemandTaskStatus, len(d.TaskStatuses))
	copy(statuses, d.TaskStatuses)
	byTask := make(map[string]*entity.DemandTaskStatus, len(statuses))
	for i := range statuses {
		byTask[statuses[i].TaskID] = &statuses[i]
	}
	taskNames := taskNameIndex(tpl)
	parents := make(map[string]*string, len(tpl.Tasks))
	for _, t := range tpl.Tasks {
		parents[t.ID] = t.ParentTaskID
	}

	due := dueDate(d.ExpectedAt)
	var completedTasks []string
	for _, p := range patches {
		ts, ok := byTask[p.TaskID]
		if !ok {
			return nil, nil, Validationf("task %s does not belong to demand %s", p.TaskID, d.ID)
		}
		if p.ResponsibleUserID != nil || p.ResponsibleRoleID != nil {
			ts.ResponsibleUserID = p.ResponsibleUserID
			ts.ResponsibleRoleID = p.ResponsibleRoleID
			if target := ts.Responsible(d); !target.IsZero() {
				events = append(events, pendingEvent{target, Event{
					Kind:       EventTaskAssigned,
					DemandName: d.Name,
					TaskName:   taskNames[p.TaskID],
					DueDate:    due,
				}})
			}
		}
		if p.Completed != nil && *p.Completed != ts.Completed {
			ts.Completed = *p.Completed
			if *p.Completed {
				t := now
				ts.CompletedAt = &t
				ts.CompletedBy = actorID
				completedTasks = append(completedTasks, p.TaskID)
			} else {
				ts.CompletedAt = nil
				ts.CompletedBy = ""
			}
		}
	}

	for _, taskID := range completedTasks {
		parent := parents[taskID]
		if parent == nil || *parent == "" {
			continue
		}
		pts, ok := byTask[*parent]
		if !ok || !pts.Completed {
			return nil, nil, Validationf("task %q is blocked: its parent task is not complete", taskNames[taskID])
		}
	}

	if len(completedTasks) > 0 {
		target := d.Responsible()
		if !target.IsZero() && !s.notifier.isEffectiveResponsible(ctx, actorID, target) {
			for _, taskID := range completedTasks {
				events = append(events, pendingEvent{target, Event{
					Kind:       EventTaskCompleted,
					DemandName: d.Name,
					TaskName:   taskNames[taskID],
					ActorName:  s.actorName(ctx, actorID),
				}})
			}
		}
	}
	return statuses, events, nil
}

func (s *DemandService) actorName(ctx context.Context, actorID string) string {
	user, err := s.repos.User.FindUser(ctx, actorID)
	if err != nil {
		return actorID
	}
	return user.Name
}

// mergeFieldValues builds the replacement field-value set. With replace=true
// the incoming map is the whole new set; otherwise incoming keys overwrite
// the stored ones and the rest are kept, including values whose field no
// longer exists on the template.
func (s *DemandService) mergeFieldValues(d *entity.Demand, tpl *entity.Template, incoming map[string]string, replace bool) []entity.DemandFieldValue {
	merged := make(map[string]string)
	if !replace {
		for _, fv := range d.FieldValues {
			k := fieldvalue.Key{FieldID: fv.FieldID, Replica: fv.ReplicaIndex}
			merged[k.External()] = fv.Value
		}
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return buildFieldValues(d.ID, tpl, entriesFromMap(merged))
}

// entriesFromMap converts the external key→value map into resolver entries.
func entriesFromMap(values map[string]string) []fieldvalue.Entry {
	entries := make([]fieldvalue.Entry, 0, len(values))
	for k, v := range values {
		entries = append(entries, fieldvalue.Entry{Key: fieldvalue.ParseKey(k), Value: v})
	}
	fieldvalue.SortEntries(entries)
	return entries
}

// buildFieldValues materializes resolver entries as stored rows. The value
// kind comes from the template field definition; unknown field ids (orphaned
// or ad hoc) are stored as scalars.
func buildFieldValues(demandID string, tpl *entity.Template, entries []fieldvalue.Entry) []entity.DemandFieldValue {
	kinds := make(map[string]string)
	var walk func(fields []entity.TemplateField)
	walk = func(fields []entity.TemplateField) {
		for _, f := range fields {
			kinds[f.ID] = f.Kind
			walk(f.Children)
		}
	}
	walk(tpl.Fields)

	out := make([]entity.DemandFieldValue, 0, len(entries))
	for _, e := range entries {
		kind := entity.ValueKindScalar
		if kinds[e.Key.FieldID] == entity.FieldKindFile {
			kind = entity.ValueKindFile
		}
		out = append(out, entity.DemandFieldValue{
			ID:           uuid.NewString(),
			DemandID:     demandID,
			FieldID:      e.Key.FieldID,
			ReplicaIndex: e.Key.Replica,
			Kind:         kind,
			Value:        e.Value,
		})
	}
	return out
}

// instantiateTasks copies the template task list into fresh task-status rows
// carrying the template's default responsibles.
func instantiateTasks(tpl *entity.Template) []entity.DemandTaskStatus {
	out := make([]entity.DemandTaskStatus, 0, len(tpl.Tasks))
	for _, t := range tpl.Tasks {
		out = append(out, entity.DemandTaskStatus{
			ID:                uuid.NewString(),
			TaskID:            t.ID,
			ResponsibleUserID: t.DefaultResponsibleUserID,
			ResponsibleRoleID: t.DefaultResponsibleRoleID,
		})
	}
	return out
}

// validateRequiredOnCreate rejects creation when a required field that is
// visible under the submitted values resolves to nothing.
func validateRequiredOnCreate(tpl *entity.Template, entries []fieldvalue.Entry) error {
	var check func(fields []entity.TemplateField) error
	check = func(fields []entity.TemplateField) error {
		for _, f := range fields {
			if f.RequiredOnCreate && fieldvalue.EvaluateVisibility(condition(f.Visibility), entries) {
				if fieldvalue.ResolveValue(f.ID, entries) == "" {
					return Validationf("field %q is required", f.Label)
				}
			}
			if err := check(f.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return check(tpl.Fields)
}

func condition(v *entity.VisibilityCondition) *fieldvalue.Condition {
	if v == nil {
		return nil
	}
	return &fieldvalue.Condition{FieldID: v.FieldID, Operator: v.Operator, Value: v.Value}
}

// demandName picks the demand's display name: the caller's explicit name or
// the template name, suffixed with the template's name-complement field value
// when one is filled.
func demandName(tpl *entity.Template, explicit string, entries []fieldvalue.Entry) string {
	name := explicit
	if name == "" {
		name = tpl.Name
	}
	for _, f := range tpl.Fields {
		if f.ComplementsName {
			if v := fieldvalue.ResolveValue(f.ID, entries); v != "" {
				name = name + " - " + v
			}
			break
		}
	}
	return name
}

func taskNameIndex(tpl *entity.Template) map[string]string {
	names := make(map[string]string, len(tpl.Tasks))
	for _, t := range tpl.Tasks {
		names[t.ID] = t.Name
	}
	return names
}

func dueDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
