package models

import "time"

// ActionStatus is the outcome of a single login execution.
type ActionStatus string

const (
	StatusSuccess    ActionStatus = "SUCCESS"
	StatusFailed     ActionStatus = "FAILED"
	StatusInProgress ActionStatus = "IN_PROGRESS"
)

// Valid reports whether s is a known execution status.
func (s ActionStatus) Valid() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusInProgress:
		return true
	}
	return false
}

// FailedDetail is a machine-readable failure reason. Only meaningful when the
// execution status is FAILED.
type FailedDetail string

const (
	FailedFormDetection    FailedDetail = "AUTOMATIC_FORM_DETECTION_FAILED"
	FailedUsernameNotFound FailedDetail = "USERNAME_FIELD_NOT_FOUND"
	FailedPasswordNotFound FailedDetail = "PASSWORD_FIELD_NOT_FOUND"
	FailedPinNotFound      FailedDetail = "PIN_FIELD_NOT_FOUND"
	FailedSubmitNotFound   FailedDetail = "SUBMIT_BUTTON_NOT_FOUND"
	FailedSuccessURLMatch  FailedDetail = "SUCCESS_URL_DID_NOT_MATCH"
	FailedUnknownExecution FailedDetail = "UNKNOWN_EXECUTION_ERROR"
)

// ActionExecution is one record of the login execution history for a website.
// Records are immutable once ended; history is append-only.
type ActionExecution struct {
	ID                         int64         `json:"id"`
	WebsiteID                  int64         `json:"website_id"`
	ExecutionStarted           time.Time     `json:"execution_started"`
	ExecutionEnded             *time.Time    `json:"execution_ended"`
	ExecutionStatus            ActionStatus  `json:"execution_status"`
	FailedDetails              *FailedDetail `json:"failed_details"`
	CustomFailedDetailsMessage *string       `json:"custom_failed_details_message"`
	ScreenshotID               *string       `json:"screenshot_id"`
}

// ExecutionPage is one page of a website's execution history, most recent first.
type ExecutionPage struct {
	Items []ActionExecution `json:"items"`
	Total int               `json:"total"`
}
