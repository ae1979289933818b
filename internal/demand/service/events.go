package service

import (
	"fmt"

	"github.com/eduardopventura/demandflow/internal/shared/notify"
)

// Notification event kinds. Nouns: they describe what happened, each one
// rendering a subject/body pair per channel.
type EventKind string

const (
	EventDemandAssigned      EventKind = "demand_assigned"
	EventTaskAssigned        EventKind = "task_assigned"
	EventTaskCompleted       EventKind = "task_completed"
	EventDeadlineApproaching EventKind = "deadline_approaching"
)

// Event one domain occurrence to notify about. Only the fields a given kind
// renders need to be filled.
type Event struct {
	Kind       EventKind
	DemandName string
	TaskName   string
	ActorName  string
	DueDate    string // already formatted, calendar date
}

// renderEmail builds the email variant of the event.
func renderEmail(e Event) notify.Message {
	switch e.Kind {
	case EventDemandAssigned:
		return notify.Message{
			Subject: fmt.Sprintf("New demand assigned: %s", e.DemandName),
			Body: fmt.Sprintf("The demand %q was assigned to you. It is expected to be completed by %s.",
				e.DemandName, e.DueDate),
		}
	case EventTaskAssigned:
		return notify.Message{
			Subject: fmt.Sprintf("Task assigned: %s", e.TaskName),
			Body: fmt.Sprintf("You are responsible for the task %q of demand %q, due %s.",
				e.TaskName, e.DemandName, e.DueDate),
		}
	case EventTaskCompleted:
		return notify.Message{
			Subject: fmt.Sprintf("Task completed on %s", e.DemandName),
			Body: fmt.Sprintf("%s completed the task %q of demand %q.",
				e.ActorName, e.TaskName, e.DemandName),
		}
	case EventDeadlineApproaching:
		return notify.Message{
			Subject: fmt.Sprintf("Deadline approaching: %s", e.DemandName),
			Body: fmt.Sprintf("The demand %q is due tomorrow (%s) and is not finalized yet.",
				e.DemandName, e.DueDate),
		}
	default:
		return notify.Message{Subject: string(e.Kind), Body: e.DemandName}
	}
}

// renderMessage builds the short message-channel variant.
func renderMessage(e Event) notify.Message {
	switch e.Kind {
	case EventDemandAssigned:
		return notify.Message{
			Subject: "New demand assigned",
			Body:    fmt.Sprintf("%s - due %s", e.DemandName, e.DueDate),
		}
	case EventTaskAssigned:
		return notify.Message{
			Subject: "Task assigned",
			Body:    fmt.Sprintf("%s (%s) - due %s", e.TaskName, e.DemandName, e.DueDate),
		}
	case EventTaskCompleted:
		return notify.Message{
			Subject: "Task completed",
			Body:    fmt.Sprintf("%s finished %s on %s", e.ActorName, e.TaskName, e.DemandName),
		}
	case EventDeadlineApproaching:
		return notify.Message{
			Subject: "Deadline tomorrow",
			Body:    fmt.Sprintf("%s is due %s", e.DemandName, e.DueDate),
		}
	default:
		return notify.Message{Subject: string(e.Kind), Body: e.DemandName}
	}
}
