package client

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// scheduledAtLayouts are the timestamp shapes the editor forms submit
var scheduledAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// isoMillis matches the wire format of JavaScript's Date.toISOString
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// normalizeScheduledAt returns "" for a blank value, otherwise the value as a
// UTC timestamp with millisecond precision
func normalizeScheduledAt(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for _, layout := range scheduledAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(isoMillis), nil
		}
	}
	return "", errors.New("must be a valid date")
}

// ValidationErrors returns the per-field problems of input that was rejected
// before being sent to the API, keyed by JSON field name
func ValidationErrors(err error) (validation.Errors, bool) {
	var errs validation.Errors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}

var validScheduledAt = validation.By(func(value interface{}) error {
	value, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	s, _ := value.(string)
	_, err := normalizeScheduledAt(s)
	return err
})

var blogStatuses = []interface{}{BlogStatusDraft, BlogStatusPublic, BlogStatusScheduled}

func (in BlogInput) Validate() error {
	scheduledRules := []validation.Rule{validScheduledAt}
	if in.Status == BlogStatusScheduled {
		scheduledRules = append(scheduledRules, validation.Required.Error("is required for scheduled posts"))
	}

	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 300)),
		validation.Field(&in.Slug, validation.Required, validation.Length(1, 300)),
		validation.Field(&in.AuthorID, validation.Required),
		validation.Field(&in.Status, validation.Required, validation.In(blogStatuses...)),
		validation.Field(&in.ScheduledAt, scheduledRules...),
	)
}

func (in BlogUpdate) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.NilOrNotEmpty),
		validation.Field(&in.Slug, validation.NilOrNotEmpty),
		validation.Field(&in.Status, validation.In(blogStatuses...)),
		validation.Field(&in.ScheduledAt, validScheduledAt),
	)
}

func (in AuthorInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.ProfileImage, is.URL),
	)
}

func (in AuthorUpdate) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.NilOrNotEmpty),
		validation.Field(&in.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&in.ProfileImage, is.URL),
	)
}

func (in DocumentInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 300)),
	)
}

func (in DocumentUpdate) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.NilOrNotEmpty),
	)
}
