package service

import (
	"time"

	"github.com/eduardopventura/demandflow/internal/demand/entity"
)

// DeriveStatus computes the demand status from task completion counts.
// Once a demand has left "created" the derivation never brings it back; with
// zero completed tasks the current status is kept instead, so unchecking
// every task cannot silently regress a demand that already started.
func DeriveStatus(completed, total int, current string) string {
	switch {
	case total > 0 && completed == total:
		return entity.DemandStatusFinalized
	case completed > 0:
		return entity.DemandStatusInProgress
	case current != entity.DemandStatusCreated:
		return current
	default:
		return entity.DemandStatusCreated
	}
}

// ApplyDerivedStatus runs the transition for the given completion counts and
// applies the bound side effects on the demand in place. It is called inside
// the same transaction that persists the task changes, keeping status,
// finalized_at and on_time consistent with the task set.
//
// Entering finalized for the first time stamps finalized_at and computes
// on_time; leaving it clears finalized_at but keeps the last computed
// on_time; landing back on created (only reachable when the demand never
// left it) resets both.
func ApplyDerivedStatus(d *entity.Demand, completed, total int, now time.Time) {
	next := DeriveStatus(completed, total, d.Status)

	switch {
	case next == entity.DemandStatusFinalized:
		if d.FinalizedAt == nil {
			finalized := now
			d.FinalizedAt = &finalized
			d.OnTime = onTime(finalized, d.ExpectedAt)
		}
	case next == entity.DemandStatusCreated:
		d.FinalizedAt = nil
		d.OnTime = true
	default:
		d.FinalizedAt = nil
	}
	d.Status = next
}

// StartProgress manual operator transition created → in_progress.
func StartProgress(d *entity.Demand) error {
	if d.Status != entity.DemandStatusCreated {
		return Validationf("demand %s is already %s; start progress only applies to created demands", d.ID, d.Status)
	}
	d.Status = entity.DemandStatusInProgress
	d.FinalizedAt = nil
	return nil
}

// Finish manual operator transition to finalized, independent of task
// completion. Finishing an already finalized demand is a no-op: neither
// finalized_at nor on_time move.
func Finish(d *entity.Demand, now time.Time) {
	if d.Status == entity.DemandStatusFinalized && d.FinalizedAt != nil {
		return
	}
	finalized := now
	d.FinalizedAt = &finalized
	d.OnTime = onTime(finalized, d.ExpectedAt)
	d.Status = entity.DemandStatusFinalized
}

// Reopen explicit, confirmed transition finalized → in_progress. Reopening
// clears finalized_at; on_time keeps its last computed value.
func Reopen(d *entity.Demand) error {
	if d.Status != entity.DemandStatusFinalized {
		return Validationf("demand %s is not finalized", d.ID)
	}
	d.Status = entity.DemandStatusInProgress
	d.FinalizedAt = nil
	return nil
}

// ValidateManualStatus rejects the one forbidden manual move: back to
// created after the demand has left it.
func ValidateManualStatus(d *entity.Demand, requested string) error {
	switch requested {
	case entity.DemandStatusCreated:
		if d.Status != entity.DemandStatusCreated {
			return Validationf("demand %s already left created status and cannot return to it", d.ID)
		}
		return nil
	case entity.DemandStatusInProgress, entity.DemandStatusFinalized:
		return nil
	default:
		return Validationf("unknown demand status %q", requested)
	}
}

// onTime compares calendar dates in UTC, so finalizing any time on the due
// day still counts as on time.
func onTime(finalizedAt, expectedAt time.Time) bool {
	return !dateOnly(finalizedAt).After(dateOnly(expectedAt))
}

// dateOnly truncates a timestamp to its UTC calendar date.
func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// wholeDaysUntil counts whole calendar days from now's date to the expected
// date, both in UTC. 1 means "due tomorrow", the deadline sweep's window.
func wholeDaysUntil(now, expectedAt time.Time) int {
	return int(dateOnly(expectedAt).Sub(dateOnly(now)) / (24 * time.Hour))
}

// countCompleted tallies task completion for the derivation.
func countCompleted(statuses []entity.DemandTaskStatus) (completed, total int) {
	for _, ts := range statuses {
		total++
		if ts.Completed {
			completed++
		}
	}
	return completed, total
}
