package timeline

import (
	"testing"
	"time"

	"jobchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func msg(id, createdAt string) models.Message {
	return models.Message{ID: id, ChatID: "c1", Content: id, MessageType: models.MessageTypeText, CreatedAt: createdAt}
}

func TestBuild_LabelsAndOrder(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	b := NewBuilder(time.UTC, fixedClock(now))

	items := b.Build([]models.Message{
		msg("m1", "2026-03-01T09:00:00Z"),
		msg("m2", "2026-03-01T10:00:00Z"),
		msg("m3", "2026-03-09T23:59:59Z"),
		msg("m4", "2026-03-10T00:00:00Z"),
		msg("m5", "2026-03-10T14:00:00.123Z"),
	})

	var got []string
	for _, it := range items {
		if it.Type == models.RenderItemDate {
			got = append(got, "date:"+it.Label)
		} else {
			got = append(got, it.Message.ID)
		}
	}
	assert.Equal(t, []string{
		"date:Mar 1, 2026", "m1", "m2",
		"date:Yesterday", "m3",
		"date:Today", "m4", "m5",
	}, got)
}

func TestBuild_UsesCallerTimezone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, tokyo)
	b := NewBuilder(tokyo, fixedClock(now))

	// 16:00 UTC on the 9th is 01:00 on the 10th in Tokyo.
	items := b.Build([]models.Message{
		msg("m1", "2026-03-09T14:00:00Z"),
		msg("m2", "2026-03-09T16:00:00Z"),
	})

	require.Len(t, items, 4)
	assert.Equal(t, LabelYesterday, items[0].Label)
	assert.Equal(t, LabelToday, items[2].Label)
}

func TestBuild_UnparseableCreatedAt(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	b := NewBuilder(time.UTC, fixedClock(now))

	items := b.Build([]models.Message{
		msg("m1", "2026-03-10T09:00:00Z"),
		{Content: "legacy", CreatedAt: "not a date"},
		msg("m3", "2026-03-10T10:00:00Z"),
	})

	require.Len(t, items, 4)
	assert.Equal(t, models.RenderItemDate, items[0].Type)
	assert.Equal(t, "idx-1", items[2].Key)
	assert.Equal(t, "legacy", items[2].Message.Content)
	// Same day as m1, so no second separator.
	assert.Equal(t, models.RenderItemMessage, items[3].Type)
}

func TestBuild_EveryMessageOnceAfterItsSeparator(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, loc)
	b := NewBuilder(loc, fixedClock(now))

	start := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	var messages []models.Message
	for i := 0; i < 60; i++ {
		ts := start.Add(time.Duration(i*7) * time.Hour)
		messages = append(messages, msg(ts.Format("m-150405-02"), ts.Format(time.RFC3339)))
	}

	items := b.Build(messages)

	seen := map[string]int{}
	var currentDay string
	var lastSeparatorDay time.Time
	for _, it := range items {
		if it.Type == models.RenderItemDate {
			day, err := time.ParseInLocation("2006-01-02", it.Key[len("date-"):], loc)
			require.NoError(t, err)
			assert.True(t, day.After(lastSeparatorDay), "separators must increase")
			lastSeparatorDay = day
			currentDay = it.Key[len("date-"):]
			continue
		}
		seen[it.Message.ID]++
		ts, ok := it.Message.ParsedCreatedAt()
		require.True(t, ok)
		assert.Equal(t, currentDay, ts.In(loc).Format("2006-01-02"))
	}

	assert.Len(t, seen, len(messages))
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestBuild_Empty(t *testing.T) {
	assert.Empty(t, Build(nil, time.UTC))
}

func TestMessageKey(t *testing.T) {
	b := NewBuilder(time.UTC, fixedClock(time.Now()))
	items := b.Build([]models.Message{{ClientID: "abc", CreatedAt: "bad"}})
	require.Len(t, items, 1)
	assert.Equal(t, "local-abc", items[0].Key)
}
