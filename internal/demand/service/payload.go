package service

import (
	"github.com/eduardopventura/demandflow/internal/demand/entity"
	"github.com/eduardopventura/demandflow/internal/demand/fieldvalue"
)

// ResolvedPayload action inputs resolved against a demand's field values.
// Keys are sanitized input labels. When the mapping includes exactly one
// file-kind input, FileRef carries the stored-file reference and FileField
// the form field name it must be attached under.
type ResolvedPayload struct {
	Fields    map[string]string
	FileRef   string
	FileField string
}

// BuildActionPayload resolves each action input through the task's field
// mapping. Required inputs without a mapping are rejected before any network
// activity. The function is pure: it reads the entries and mutates nothing.
func BuildActionPayload(action *entity.Action, task *entity.TemplateTask, entries []fieldvalue.Entry) (*ResolvedPayload, error) {
	out := &ResolvedPayload{Fields: make(map[string]string, len(action.InputFields))}
	fileInputs := 0
	for _, input := range action.InputFields {
		demandFieldID, mapped := task.FieldMapping[input.ID]
		if !mapped || demandFieldID == "" {
			if input.Required {
				return nil, Validationf("action %q: required input %q has no field mapping on task %q",
					action.Name, input.Label, task.Name)
			}
			continue
		}
		value := fieldvalue.ResolveValue(demandFieldID, entries)
		name := fieldvalue.SanitizeName(input.Label)
		if input.Kind == entity.FieldKindFile {
			fileInputs++
			if fileInputs > 1 {
				return nil, Validationf("action %q maps more than one file input; at most one is supported", action.Name)
			}
			out.FileRef = value
			out.FileField = name
			continue
		}
		out.Fields[name] = value
	}
	if out.FileRef == "" {
		out.FileField = ""
	}
	return out, nil
}
