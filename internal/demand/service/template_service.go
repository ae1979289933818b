package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduardopventura/demandflow/internal/demand/entity"
	"github.com/eduardopventura/demandflow/internal/demand/repository"
)

// TemplateService manages template definitions. Templates referenced by
// existing demands stay editable; the demands keep pointing at the template
// id, so edits only change what newly created demands see.
type TemplateService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

func NewTemplateService(repos *repository.Repositories, logger *zap.Logger) *TemplateService {
	return &TemplateService{repos: repos, logger: logger}
}

func (s *TemplateService) GetTemplate(ctx context.Context, id string) (*entity.Template, error) {
	return s.repos.Template.FindByID(ctx, id)
}

func (s *TemplateService) ListTemplates(ctx context.Context) ([]entity.Template, error) {
	return s.repos.Template.List(ctx)
}

func (s *TemplateService) CreateTemplate(ctx context.Context, tpl *entity.Template, actorID string) error {
	assignTemplateIDs(tpl)
	tpl.CreatedBy = actorID
	if err := ValidateTemplate(tpl); err != nil {
		return err
	}
	if err := s.repos.Template.Create(ctx, tpl); err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	s.logger.Info("template created", zap.String("template_id", tpl.ID), zap.String("name", tpl.Name))
	return nil
}

// UpdateTemplate replaces the template definition. Field values already
// stored on demands for removed fields are retained but no longer rendered.
func (s *TemplateService) UpdateTemplate(ctx context.Context, tpl *entity.Template) error {
	if _, err := s.repos.Template.FindByID(ctx, tpl.ID); err != nil {
		return err
	}
	assignTemplateIDs(tpl)
	if err := ValidateTemplate(tpl); err != nil {
		return err
	}
	if err := s.repos.Template.Save(ctx, tpl); err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

// DeleteTemplate removes a template. Templates still referenced by demands
// cannot be deleted.
func (s *TemplateService) DeleteTemplate(ctx context.Context, id string) error {
	n, err := s.repos.Demand.CountByTemplate(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return Validationf("template is referenced by %d demand(s) and cannot be deleted", n)
	}
	return s.repos.Template.Delete(ctx, id)
}

// assignTemplateIDs fills missing ids on the template and its children and
// stamps the children with the template id.
func assignTemplateIDs(tpl *entity.Template) {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	for i := range tpl.Tabs {
		if tpl.Tabs[i].ID == "" {
			tpl.Tabs[i].ID = uuid.NewString()
		}
		tpl.Tabs[i].TemplateID = tpl.ID
	}
	var walk func(fields []entity.TemplateField, parent *string)
	walk = func(fields []entity.TemplateField, parent *string) {
		for i := range fields {
			if fields[i].ID == "" {
				fields[i].ID = uuid.NewString()
			}
			fields[i].TemplateID = tpl.ID
			fields[i].ParentFieldID = parent
			walk(fields[i].Children, &fields[i].ID)
		}
	}
	walk(tpl.Fields, nil)
	for i := range tpl.Tasks {
		if tpl.Tasks[i].ID == "" {
			tpl.Tasks[i].ID = uuid.NewString()
		}
		tpl.Tasks[i].TemplateID = tpl.ID
	}
}

// ValidateTemplate checks the structural rules a template must satisfy:
// at most one name-complement field, visibility conditions and task field
// mappings referencing real fields, task parents referencing real tasks
// without cycles, and group fields actually having children.
func ValidateTemplate(tpl *entity.Template) error {
	if tpl.Name == "" {
		return Validationf("template name is required")
	}
	if tpl.ExpectedDurationDays < 0 {
		return Validationf("expected duration cannot be negative")
	}

	fieldIDs := make(map[string]bool)
	complementCount := 0
	var walkErr error
	var walk func(fields []entity.TemplateField, inGroup bool)
	walk = func(fields []entity.TemplateField, inGroup bool) {
		for i := range fields {
			f := &fields[i]
			if walkErr != nil {
				return
			}
			if fieldIDs[f.ID] {
				walkErr = Validationf("duplicate field id %q", f.ID)
				return
			}
			fieldIDs[f.ID] = true
			if f.ComplementsName {
				complementCount++
			}
			switch f.Kind {
			case entity.FieldKindGroup:
				if inGroup {
					walkErr = Validationf("field %q: groups cannot be nested", f.Label)
					return
				}
				if len(f.Children) == 0 {
					walkErr = Validationf("group field %q has no child fields", f.Label)
					return
				}
			case entity.FieldKindDropdown:
				if len(f.Options) == 0 {
					walkErr = Validationf("dropdown field %q has no options", f.Label)
					return
				}
			}
			walk(f.Children, true)
		}
	}
	walk(tpl.Fields, false)
	if walkErr != nil {
		return walkErr
	}
	if complementCount > 1 {
		return Validationf("only one field may complement the demand name, found %d", complementCount)
	}

	var checkVisibility func(fields []entity.TemplateField) error
	checkVisibility = func(fields []entity.TemplateField) error {
		for i := range fields {
			f := &fields[i]
			if f.Visibility != nil && !fieldIDs[f.Visibility.FieldID] {
				return Validationf("field %q: visibility condition references unknown field %q", f.Label, f.Visibility.FieldID)
			}
			if err := checkVisibility(f.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := checkVisibility(tpl.Fields); err != nil {
		return err
	}

	taskIDs := make(map[string]bool, len(tpl.Tasks))
	for i := range tpl.Tasks {
		t := &tpl.Tasks[i]
		if t.Name == "" {
			return Validationf("task name is required")
		}
		if taskIDs[t.ID] {
			return Validationf("duplicate task id %q", t.ID)
		}
		taskIDs[t.ID] = true
	}
	for i := range tpl.Tasks {
		t := &tpl.Tasks[i]
		if t.ParentTaskID != nil && *t.ParentTaskID != "" {
			if *t.ParentTaskID == t.ID {
				return Validationf("task %q cannot be its own parent", t.Name)
			}
			if !taskIDs[*t.ParentTaskID] {
				return Validationf("task %q references unknown parent task %q", t.Name, *t.ParentTaskID)
			}
		}
		for inputID, fieldID := range t.FieldMapping {
			if fieldID == "" {
				continue
			}
			if !fieldIDs[fieldID] {
				return Validationf("task %q maps input %q to unknown field %q", t.Name, inputID, fieldID)
			}
		}
	}
	if err := checkTaskCycles(tpl.Tasks); err != nil {
		return err
	}
	return nil
}

// checkTaskCycles rejects parent chains that loop. The parent graph must be
// a forest for the dependency gating to terminate.
func checkTaskCycles(tasks []entity.TemplateTask) error {
	parent := make(map[string]string, len(tasks))
	name := make(map[string]string, len(tasks))
	for _, t := range tasks {
		name[t.ID] = t.Name
		if t.ParentTaskID != nil && *t.ParentTaskID != "" {
			parent[t.ID] = *t.ParentTaskID
		}
	}
	for _, t := range tasks {
		seen := map[string]bool{t.ID: true}
		cur := t.ID
		for {
			next, ok := parent[cur]
			if !ok {
				break
			}
			if seen[next] {
				return Validationf("task %q is part of a dependency cycle", name[t.ID])
			}
			seen[next] = true
			cur = next
		}
	}
	return nil
}
