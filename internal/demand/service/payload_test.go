package service

import (
	"testing"

	"github.com/eduardopventura/demandflow/internal/demand/entity"
	"github.com/eduardopventura/demandflow/internal/demand/fieldvalue"
)

func payloadFixtures() (*entity.Action, *entity.TemplateTask, []fieldvalue.Entry) {
	action := &entity.Action{
		ID:   "a1",
		Name: "Issue purchase order",
		InputFields: []entity.ActionInput{
			{ID: "in-supplier", Label: "Supplier Name", Kind: entity.FieldKindText, Required: true},
			{ID: "in-qty", Label: "Quantity", Kind: entity.FieldKindNumber},
			{ID: "in-doc", Label: "Quote Document", Kind: entity.FieldKindFile},
		},
	}
	task := &entity.TemplateTask{
		ID:   "t1",
		Name: "Send order",
		FieldMapping: map[string]string{
			"in-supplier": "f-supplier",
			"in-qty":      "f-qty",
			"in-doc":      "f-doc",
		},
	}
	entries := []fieldvalue.Entry{
		{Key: fieldvalue.NewKey("f-supplier"), Value: "Acme"},
		{Key: fieldvalue.NewKey("f-qty"), Value: "12"},
		{Key: fieldvalue.NewKey("f-doc"), Value: "demand-files/abc.pdf"},
	}
	return action, task, entries
}

func TestBuildActionPayload(t *testing.T) {
	action, task, entries := payloadFixtures()

	p, err := BuildActionPayload(action, task, entries)
	if err != nil {
		t.Fatalf("BuildActionPayload: %v", err)
	}
	if p.Fields["Supplier_Name"] != "Acme" || p.Fields["Quantity"] != "12" {
		t.Errorf("fields = %v", p.Fields)
	}
	if p.FileRef != "demand-files/abc.pdf" || p.FileField != "Quote_Document" {
		t.Errorf("file = %q under %q", p.FileRef, p.FileField)
	}
	if _, ok := p.Fields["Quote_Document"]; ok {
		t.Error("file input must not appear among text fields")
	}
}

func TestBuildActionPayloadMissingRequiredMapping(t *testing.T) {
	action, task, entries := payloadFixtures()
	delete(task.FieldMapping, "in-supplier")

	if _, err := BuildActionPayload(action, task, entries); !IsValidation(err) {
		t.Fatalf("want validation error for unmapped required input, got %v", err)
	}
}

func TestBuildActionPayloadOptionalUnmappedSkipped(t *testing.T) {
	action, task, entries := payloadFixtures()
	delete(task.FieldMapping, "in-qty")

	p, err := BuildActionPayload(action, task, entries)
	if err != nil {
		t.Fatalf("BuildActionPayload: %v", err)
	}
	if _, ok := p.Fields["Quantity"]; ok {
		t.Error("unmapped optional input should be skipped")
	}
}

func TestBuildActionPayloadGroupValueJoined(t *testing.T) {
	action, task, _ := payloadFixtures()
	entries := []fieldvalue.Entry{
		{Key: fieldvalue.NewReplicaKey("f-supplier", 0), Value: "Acme"},
		{Key: fieldvalue.NewReplicaKey("f-supplier", 1), Value: "Globex"},
		{Key: fieldvalue.NewKey("f-doc"), Value: "ref"},
	}

	p, err := BuildActionPayload(action, task, entries)
	if err != nil {
		t.Fatalf("BuildActionPayload: %v", err)
	}
	if p.Fields["Supplier_Name"] != "Acme, Globex" {
		t.Errorf("group resolution = %q", p.Fields["Supplier_Name"])
	}
}

func TestBuildActionPayloadTwoFileInputsRejected(t *testing.T) {
	action, task, entries := payloadFixtures()
	action.InputFields = append(action.InputFields,
		entity.ActionInput{ID: "in-doc2", Label: "Second Doc", Kind: entity.FieldKindFile})
	task.FieldMapping["in-doc2"] = "f-doc"

	if _, err := BuildActionPayload(action, task, entries); !IsValidation(err) {
		t.Fatalf("want validation error for two file inputs, got %v", err)
	}
}
