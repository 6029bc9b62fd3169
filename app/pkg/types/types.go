package types

import "time"

// Domain identifies which external system a command targets.
type Domain string

const (
	DomainCalendar Domain = "calendar"
	DomainEmail    Domain = "email"
	DomainBooking  Domain = "booking"
)

func (d Domain) Valid() bool {
	switch d {
	case DomainCalendar, DomainEmail, DomainBooking:
		return true
	}
	return false
}

// Urgency is the parsed time pressure of a command.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Intent is the structured interpretation of a free-text command.
// All fields are populated at parse time; only Entities may be filled in
// later (e.g. entity resolution attaching an email id).
type Intent struct {
	Action       string                 `json:"action"`
	Domain       Domain                 `json:"domain"`
	Entities     map[string]interface{} `json:"entities"`
	Urgency      Urgency                `json:"urgency"`
	IsReversible bool                   `json:"isReversible"`
	Description  string                 `json:"description"`
	Confidence   float64                `json:"confidence"`
}

// Known actions. The action set is open: executors treat unrecognized
// domain/action pairs as unknown rather than failing parse.
const (
	ActionCancelMeeting     = "cancel_meeting"
	ActionRescheduleMeeting = "reschedule_meeting"
	ActionScheduleMeeting   = "schedule_meeting"
	ActionBlockTime         = "block_time"
	ActionSetReminder       = "set_reminder"
	ActionSummarizeInbox    = "summarize_inbox"
	ActionSendEmail         = "send_email"
	ActionReplyEmail        = "reply_email"
	ActionDraftEmail        = "draft_email"
	ActionFlagUrgent        = "flag_urgent"
	ActionBookRestaurant    = "book_restaurant"
	ActionSearchFlights     = "search_flights"
	ActionSearchHotels      = "search_hotels"
	ActionBookService       = "book_service"
	ActionUnknown           = "unknown"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPendingApproval TaskStatus = "pending_approval"
	StatusApproved        TaskStatus = "approved"
	StatusExecuting       TaskStatus = "executing"
	StatusCompleted       TaskStatus = "completed"
	StatusFailed          TaskStatus = "failed"
	StatusCancelled       TaskStatus = "cancelled"
)

// PreviewChange is one concrete mutation a task will perform.
type PreviewChange struct {
	Type   string `json:"type"` // create | update | delete | send
	Entity string `json:"entity"`
	Detail string `json:"detail"`
}

// EmailPreview is the drafted message shown at the approval gate.
type EmailPreview struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// CandidateEmail is a recent inbox item offered for reply-target selection.
type CandidateEmail struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	FromEmail string `json:"fromEmail"`
	Subject   string `json:"subject"`
	Snippet   string `json:"snippet"`
	Date      string `json:"date"`
}

// TaskPreview is what the user reviews before approving a task. It is
// frozen once the task leaves pending_approval.
type TaskPreview struct {
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Changes         []PreviewChange  `json:"changes"`
	Warnings        []string         `json:"warnings,omitempty"`
	ApprovalReasons []string         `json:"approvalReasons,omitempty"`
	EmailPreview    *EmailPreview    `json:"emailPreview,omitempty"`
	RecentEmails    []CandidateEmail `json:"recentEmails,omitempty"`
	SelectedEmailID string           `json:"selectedEmailId,omitempty"`
}

// TaskResult is the terminal outcome of an execution attempt.
type TaskResult struct {
	Success       bool                   `json:"success"`
	Message       string                 `json:"message"`
	SafetyReasons []string               `json:"safetyReasons,omitempty"`
	Data          map[string]interface{} `json:"data,omitempty"`
}

// Task is the unit of work tracked from command to terminal state.
type Task struct {
	ID               string       `json:"id"`
	UserID           string       `json:"userId"`
	RawCommand       string       `json:"rawCommand"`
	ParsedIntent     Intent       `json:"parsedIntent"`
	Status           TaskStatus   `json:"status"`
	RequiresApproval bool         `json:"requiresApproval"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
	ExecutedAt       *time.Time   `json:"executedAt,omitempty"`
	Preview          *TaskPreview `json:"preview,omitempty"`
	Result           *TaskResult  `json:"result,omitempty"`
}

// ActivityLogEntry is one append-only audit record per status transition.
type ActivityLogEntry struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"taskId"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	Domain      Domain    `json:"domain"`
	Status      string    `json:"status"` // success | failed | pending
}
