package notification

import (
	"encoding/json"
	"strconv"
	"strings"

	"jobchat/internal/models"
)

// payloadKeys lists the accepted spellings of each payload field
var payloadKeys = struct {
	typ, relatedID, relatedType, chatID, notificationID, jobID []string
}{
	typ:            []string{"type", "notificationType"},
	relatedID:      []string{"relatedId", "related_id"},
	relatedType:    []string{"relatedType", "related_type"},
	chatID:         []string{"chatId", "chat_id"},
	notificationID: []string{"notificationId", "notification_id"},
	jobID:          []string{"jobId", "job_id"},
}

// ParsePayload converts an untyped push data block into a PushPayload. Values
// may be strings or numbers. Fields missing at the top level are looked up in
// a nested "data" object, which may also arrive as a JSON string. Anything
// unusable is treated as absent.
func ParsePayload(raw map[string]any) models.PushPayload {
	var nested map[string]any
	switch data := raw["data"].(type) {
	case map[string]any:
		nested = data
	case string:
		_ = json.Unmarshal([]byte(data), &nested)
	}

	lookup := func(keys []string) string {
		if v := firstString(raw, keys); v != "" {
			return v
		}
		return firstString(nested, keys)
	}

	return models.PushPayload{
		Type:           lookup(payloadKeys.typ),
		RelatedID:      lookup(payloadKeys.relatedID),
		RelatedType:    lookup(payloadKeys.relatedType),
		ChatID:         lookup(payloadKeys.chatID),
		NotificationID: lookup(payloadKeys.notificationID),
		JobID:          lookup(payloadKeys.jobID),
	}
}

func firstString(m map[string]any, keys []string) string {
	if m == nil {
		return ""
	}
	for _, key := range keys {
		if s := stringValue(m[key]); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}
