package notes

import (
	"time"
)

// TimestampLayout is the persisted timestamp format: UTC, fixed width, so that
// lexical order equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Field limits, counted in characters (runes).
const (
	MaxTitleLength   = 200
	MaxContentLength = 10000

	// MaxIDBytes keeps notes/<id> within the 1024-byte S3 object key limit,
	// the tightest of the store backends.
	MaxIDBytes = 1000
)

// Note is the sole persisted entity. The JSON form is both the API shape and
// the stored document shape.
type Note struct {
	ID        string `json:"id"`
	OwnerID   string `json:"userId"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// NoteInput is the validated body of create and update requests.
type NoteInput struct {
	Title   string
	Content string
}

// CreateInput is a create request: the note fields plus an optional
// caller-supplied id. An empty ID means "generate one".
type CreateInput struct {
	ID string
	NoteInput
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Clock abstracts time for the service.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
