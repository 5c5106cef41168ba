package domain

import "time"

// SkippedAnswer is the answer text submitted when an optional node is skipped.
const SkippedAnswer = "SKIPPED"

// ConfirmedAnswer is the answer text submitted to acknowledge an Instruction node.
const ConfirmedAnswer = "Confirmed"

// UserSeparator joins the names of assignees picked on a checkbox-style user node.
const UserSeparator = "|"

// AnswerRecord is the payload committed to the remote authority for one node.
// Records are created at submission time and never mutated.
type AnswerRecord struct {
	QuestionID     int       `json:"question_id"`
	AnswerText     string    `json:"answer_text"`
	IsSkipped      bool      `json:"is_skipped"`
	IncidentNumber string    `json:"incident_number"`
	WorkflowID     int       `json:"workflow_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// Ack is the remote authority's acknowledgment of a committed answer.
type Ack struct {
	Message string `json:"message,omitempty"`
}

// PriorAnswer is one entry of the remote answer history for an incident.
type PriorAnswer struct {
	QuestionID int    `json:"question_id" yaml:"question_id" mapstructure:"question_id"`
	AnswerText string `json:"answer_text" yaml:"answer_text" mapstructure:"answer_text"`
}

// AnswerSource tells where a completed answer came from.
type AnswerSource string

const (
	SourceLocal  AnswerSource = "local"
	SourceRemote AnswerSource = "remote"
)

// CompletedAnswer is the metadata kept for every completed node.
type CompletedAnswer struct {
	Answer    string       `json:"answer"`
	IsSkipped bool         `json:"is_skipped,omitempty"`
	Source    AnswerSource `json:"source"`

	// NextQuestionID is the successor resolved when the answer was committed.
	// Nil for answers reconciled from the remote history; those are re-resolved.
	NextQuestionID *int `json:"next_question_id,omitempty"`

	SelectedOptions []string `json:"selected_options,omitempty"`
	SelectedUsers   []string `json:"selected_users,omitempty"`

	IncidentNumber string    `json:"incident_number"`
	WorkflowID     int       `json:"workflow_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// AnswerInput is what an operator hands to the engine for the current node.
type AnswerInput struct {
	// Text is the answer. For MultipleChoice it is the chosen option text.
	Text string
	// NextQuestionID is an explicit branch target chosen by the caller (rule 1).
	NextQuestionID *int
	// SelectedOptions lists the option texts ticked on a Checkbox node.
	SelectedOptions []string
	// SelectedUsers lists assignee names picked on a checkbox-style user node.
	SelectedUsers []string
}
