// Package timeline interleaves chat messages with day separators.
package timeline

import (
	"strconv"
	"time"

	"jobchat/internal/models"
)

const (
	LabelToday     = "Today"
	LabelYesterday = "Yesterday"
	dateLabel      = "Jan 2, 2006"
	dayKeyLayout   = "2006-01-02"
)

// Builder produces render lists for a fixed clock and timezone.
type Builder struct {
	now func() time.Time
	loc *time.Location
}

// NewBuilder returns a builder for the caller's timezone. A nil location means
// time.Local; a nil clock means time.Now.
func NewBuilder(loc *time.Location, now func() time.Time) *Builder {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Builder{now: now, loc: loc}
}

// Build walks messages in order and emits a date item before every message
// whose local calendar day differs from the previous dated message. Messages
// must already be ordered by createdAt; this is not checked. Messages whose
// createdAt does not parse are emitted without a separator and do not move
// the current day.
func (b *Builder) Build(messages []models.Message) []models.RenderItem {
	items := make([]models.RenderItem, 0, len(messages)+len(messages)/4+1)

	now := b.now().In(b.loc)
	today := now.Format(dayKeyLayout)
	yesterday := now.AddDate(0, 0, -1).Format(dayKeyLayout)

	lastDayKey := ""
	for i := range messages {
		msg := &messages[i]

		if ts, ok := msg.ParsedCreatedAt(); ok {
			local := ts.In(b.loc)
			dayKey := local.Format(dayKeyLayout)
			if dayKey != lastDayKey {
				items = append(items, models.RenderItem{
					Type:  models.RenderItemDate,
					Key:   "date-" + dayKey,
					Label: label(local, dayKey, today, yesterday),
				})
				lastDayKey = dayKey
			}
		}

		items = append(items, models.RenderItem{
			Type:    models.RenderItemMessage,
			Key:     messageKey(msg, i),
			Message: msg,
		})
	}
	return items
}

// Build is a convenience for a one-off render in loc at the current time.
func Build(messages []models.Message, loc *time.Location) []models.RenderItem {
	return NewBuilder(loc, nil).Build(messages)
}

func label(local time.Time, dayKey, today, yesterday string) string {
	switch dayKey {
	case today:
		return LabelToday
	case yesterday:
		return LabelYesterday
	default:
		return local.Format(dateLabel)
	}
}

func messageKey(msg *models.Message, index int) string {
	switch {
	case msg.ID != "":
		return "msg-" + msg.ID
	case msg.ClientID != "":
		return "local-" + msg.ClientID
	default:
		return "idx-" + strconv.Itoa(index)
	}
}
