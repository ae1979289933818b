package service

import (
	"testing"
	"time"

	"github.com/eduardopventura/demandflow/internal/demand/entity"
)

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name                       string
		completed, total           int
		current, want              string
	}{
		{"all complete", 3, 3, entity.DemandStatusInProgress, entity.DemandStatusFinalized},
		{"single task complete", 1, 1, entity.DemandStatusCreated, entity.DemandStatusFinalized},
		{"some complete", 1, 3, entity.DemandStatusCreated, entity.DemandStatusInProgress},
		{"none complete, never started", 0, 3, entity.DemandStatusCreated, entity.DemandStatusCreated},
		{"none complete, already started", 0, 3, entity.DemandStatusInProgress, entity.DemandStatusInProgress},
		{"empty task set stays created", 0, 0, entity.DemandStatusCreated, entity.DemandStatusCreated},
		{"empty task set keeps progress", 0, 0, entity.DemandStatusInProgress, entity.DemandStatusInProgress},
	}
	for _, c := range cases {
		if got := DeriveStatus(c.completed, c.total, c.current); got != c.want {
			t.Errorf("%s: DeriveStatus(%d, %d, %s) = %s, want %s", c.name, c.completed, c.total, c.current, got, c.want)
		}
	}
}

// Once a demand leaves created, no toggle sequence may derive it back.
func TestStatusMonotonicity(t *testing.T) {
	d := &entity.Demand{ID: "d1", Status: entity.DemandStatusCreated, ExpectedAt: time.Now().Add(48 * time.Hour)}
	now := time.Now()

	sequences := [][]int{ // completed counts out of 3 over time
		{1, 0, 2, 0, 3, 0},
		{3, 2, 1, 0},
		{1, 1, 0, 0, 1, 0},
	}
	for _, seq := range sequences {
		d.Status = entity.DemandStatusCreated
		d.FinalizedAt = nil
		d.OnTime = true
		left := false
		for _, completed := range seq {
			ApplyDerivedStatus(d, completed, 3, now)
			if d.Status != entity.DemandStatusCreated {
				left = true
			}
			if left && d.Status == entity.DemandStatusCreated {
				t.Fatalf("sequence %v regressed to created", seq)
			}
		}
	}
}

func TestFinalizationSideEffects(t *testing.T) {
	expected := time.Date(2025, 1, 10, 23, 0, 0, 0, time.UTC)
	d := &entity.Demand{ID: "d1", Status: entity.DemandStatusInProgress, ExpectedAt: expected}

	finalizedAt := time.Date(2025, 1, 9, 10, 0, 0, 0, time.UTC)
	ApplyDerivedStatus(d, 2, 2, finalizedAt)

	if d.Status != entity.DemandStatusFinalized {
		t.Fatalf("status = %s", d.Status)
	}
	if d.FinalizedAt == nil || !d.FinalizedAt.Equal(finalizedAt) {
		t.Fatalf("finalized_at = %v", d.FinalizedAt)
	}
	if !d.OnTime {
		t.Error("expected on_time")
	}

	// Finalizing again (all tasks still complete) must not move the stamp.
	later := finalizedAt.Add(5 * time.Hour)
	ApplyDerivedStatus(d, 2, 2, later)
	if !d.FinalizedAt.Equal(finalizedAt) {
		t.Errorf("finalized_at moved to %v on re-finalization", d.FinalizedAt)
	}

	// Unchecking a task leaves finalized and clears the stamp but keeps on_time.
	ApplyDerivedStatus(d, 1, 2, later)
	if d.Status != entity.DemandStatusInProgress {
		t.Errorf("status after uncheck = %s", d.Status)
	}
	if d.FinalizedAt != nil {
		t.Error("finalized_at not cleared after leaving finalized")
	}
	if !d.OnTime {
		t.Error("on_time should keep its last computed value")
	}
}

func TestOnTimeBoundary(t *testing.T) {
	expected := time.Date(2025, 1, 10, 23, 0, 0, 0, time.UTC)

	// Same calendar day, earlier clock time: on time.
	d := &entity.Demand{Status: entity.DemandStatusInProgress, ExpectedAt: expected}
	ApplyDerivedStatus(d, 1, 1, time.Date(2025, 1, 10, 0, 5, 0, 0, time.UTC))
	if !d.OnTime {
		t.Error("same-day finalization must be on time")
	}

	// One minute into the next day: late.
	d = &entity.Demand{Status: entity.DemandStatusInProgress, ExpectedAt: expected}
	ApplyDerivedStatus(d, 1, 1, time.Date(2025, 1, 11, 0, 1, 0, 0, time.UTC))
	if d.OnTime {
		t.Error("next-day finalization must be late")
	}
}

func TestBackToCreatedResetsFlags(t *testing.T) {
	// Toggling a task on and off while still in created keeps everything
	// pristine.
	d := &entity.Demand{Status: entity.DemandStatusCreated, ExpectedAt: time.Now(), OnTime: false}
	ApplyDerivedStatus(d, 0, 2, time.Now())
	if d.Status != entity.DemandStatusCreated || d.FinalizedAt != nil || !d.OnTime {
		t.Errorf("created reset: status=%s finalized=%v onTime=%v", d.Status, d.FinalizedAt, d.OnTime)
	}
}

func TestManualTransitions(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	d := &entity.Demand{ID: "d1", Status: entity.DemandStatusCreated, ExpectedAt: now.Add(24 * time.Hour)}

	if err := StartProgress(d); err != nil {
		t.Fatalf("start progress: %v", err)
	}
	if d.Status != entity.DemandStatusInProgress {
		t.Fatalf("status = %s", d.Status)
	}
	if err := StartProgress(d); err == nil {
		t.Error("starting progress twice should fail")
	}

	Finish(d, now)
	if d.Status != entity.DemandStatusFinalized || d.FinalizedAt == nil || !d.OnTime {
		t.Fatalf("finish: status=%s finalized=%v onTime=%v", d.Status, d.FinalizedAt, d.OnTime)
	}
	stamp := *d.FinalizedAt
	Finish(d, now.Add(time.Hour)) // idempotent
	if !d.FinalizedAt.Equal(stamp) {
		t.Error("finish moved finalized_at on an already finalized demand")
	}

	if err := Reopen(d); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if d.Status != entity.DemandStatusInProgress || d.FinalizedAt != nil {
		t.Errorf("reopen: status=%s finalized=%v", d.Status, d.FinalizedAt)
	}
	if err := Reopen(d); err == nil {
		t.Error("reopening a non-finalized demand should fail")
	}
}

func TestValidateManualStatus(t *testing.T) {
	started := &entity.Demand{ID: "d1", Status: entity.DemandStatusInProgress}
	if err := ValidateManualStatus(started, entity.DemandStatusCreated); !IsValidation(err) {
		t.Errorf("regression to created: got %v, want validation error", err)
	}
	if err := ValidateManualStatus(started, entity.DemandStatusFinalized); err != nil {
		t.Errorf("finalize: %v", err)
	}
	fresh := &entity.Demand{ID: "d2", Status: entity.DemandStatusCreated}
	if err := ValidateManualStatus(fresh, entity.DemandStatusCreated); err != nil {
		t.Errorf("created on created demand: %v", err)
	}
	if err := ValidateManualStatus(fresh, "archived"); !IsValidation(err) {
		t.Errorf("unknown status: got %v", err)
	}
}

func TestWholeDaysUntil(t *testing.T) {
	now := time.Date(2025, 5, 20, 23, 50, 0, 0, time.UTC)
	cases := []struct {
		expected time.Time
		want     int
	}{
		{time.Date(2025, 5, 21, 0, 10, 0, 0, time.UTC), 1},
		{time.Date(2025, 5, 20, 23, 59, 0, 0, time.UTC), 0},
		{time.Date(2025, 5, 22, 12, 0, 0, 0, time.UTC), 2},
		{time.Date(2025, 5, 19, 0, 0, 0, 0, time.UTC), -1},
	}
	for _, c := range cases {
		if got := wholeDaysUntil(now, c.expected); got != c.want {
			t.Errorf("wholeDaysUntil(_, %v) = %d, want %d", c.expected, got, c.want)
		}
	}
}
