package notes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kuitang/notes-backend/internal/errs"
)

type rawNoteBody struct {
	ID      json.RawMessage `json:"id"`
	Title   json.RawMessage `json:"title"`
	Content json.RawMessage `json:"content"`
}

// DecodeCreateInput parses a create request body. Shape errors are bad_request.
// Length limits are checked by Service.Create.
func DecodeCreateInput(body []byte) (CreateInput, error) {
	raw, err := decodeRawBody(body)
	if err != nil {
		return CreateInput{}, err
	}
	in := CreateInput{}
	if in.NoteInput, err = noteInputFromRaw(raw); err != nil {
		return CreateInput{}, err
	}
	id, _, err := optionalString(raw.ID, "id")
	if err != nil {
		return CreateInput{}, err
	}
	in.ID = id
	return in, nil
}

// DecodeNoteInput parses an update request body. An "id" member is ignored;
// the target comes from the path.
func DecodeNoteInput(body []byte) (NoteInput, error) {
	raw, err := decodeRawBody(body)
	if err != nil {
		return NoteInput{}, err
	}
	return noteInputFromRaw(raw)
}

func decodeRawBody(body []byte) (rawNoteBody, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return rawNoteBody{}, errs.New(errs.BadRequest, "request body must be a JSON object")
	}
	var raw rawNoteBody
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return rawNoteBody{}, errs.Wrap(errs.BadRequest, "invalid JSON: "+err.Error(), err)
	}
	return raw, nil
}

func noteInputFromRaw(raw rawNoteBody) (NoteInput, error) {
	title, present, err := optionalString(raw.Title, "title")
	if err != nil {
		return NoteInput{}, err
	}
	if !present {
		return NoteInput{}, errs.New(errs.BadRequest, "title: field required")
	}
	content, _, err := optionalString(raw.Content, "content")
	if err != nil {
		return NoteInput{}, err
	}
	return NoteInput{Title: title, Content: content}, nil
}

// optionalString decodes a JSON string member. Absent and null both report
// present=false.
func optionalString(raw json.RawMessage, field string) (value string, present bool, err error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false, nil
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false, errs.New(errs.BadRequest, field+": input should be a valid string")
	}
	return value, true, nil
}

// ValidateInput enforces the title and content length bounds.
func ValidateInput(in NoteInput) error {
	titleLen := utf8.RuneCountInString(in.Title)
	if titleLen < 1 {
		return errs.New(errs.BadRequest, "title: string should have at least 1 character")
	}
	if titleLen > MaxTitleLength {
		return errs.New(errs.BadRequest, fmt.Sprintf("title: string should have at most %d characters", MaxTitleLength))
	}
	if utf8.RuneCountInString(in.Content) > MaxContentLength {
		return errs.New(errs.BadRequest, fmt.Sprintf("content: string should have at most %d characters", MaxContentLength))
	}
	return nil
}

// ValidateID checks a caller-supplied note id against the document-key rules
// every store backend shares.
func ValidateID(id string) error {
	switch {
	case id == "":
		return errs.New(errs.BadRequest, "id: must not be empty")
	case len(id) > MaxIDBytes:
		return errs.New(errs.BadRequest, fmt.Sprintf("id: must be at most %d bytes", MaxIDBytes))
	case strings.Contains(id, "/"):
		return errs.New(errs.BadRequest, "id: must not contain '/'")
	case id == "." || id == "..":
		return errs.New(errs.BadRequest, "id: must not be '.' or '..'")
	case !utf8.ValidString(id):
		return errs.New(errs.BadRequest, "id: must be valid UTF-8")
	case strings.IndexFunc(id, unicode.IsControl) >= 0:
		return errs.New(errs.BadRequest, "id: must not contain control characters")
	}
	return nil
}
