// Package calendar defines the collaborator interface through which a
// finished recording session publishes a calendar event. The session treats
// a nil collaborator as "skip the step" and any failure as non-fatal.
package calendar

import (
	"context"
	"time"
)

// Event describes the recording session for the calendar backend.
type Event struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// Collaborator creates calendar events. Attachments are paths of saved
// session artifacts the backend may link or upload.
type Collaborator interface {
	CreateEvent(ctx context.Context, event Event, attachments []string) (eventID string, err error)
}
