package privacy

import (
	"strconv"
	"strings"

	"jobchat/internal/constants"
)

// MaskToken masks a push token, keeping the last few characters so a token
// can still be matched against backend records.
func MaskToken(token string) string {
	return maskString(token, constants.DefaultTokenMaskLength)
}

// MaskID masks an opaque identifier (chat, user, notification)
// Example: "64f1c0ffee1234" -> "**********1234"
func MaskID(id string) string {
	return maskString(id, constants.DefaultIDMaskLength)
}

// MaskContent hides message content, keeping only its length and a scheme
// hint for URLs and data URIs.
// Example: "data:application/pdf;base64,JVBER..." -> "data:application/pdf[38 bytes]"
func MaskContent(content string) string {
	if content == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(content, "data:"):
		header, _, _ := strings.Cut(content, ";")
		return header + "[" + strconv.Itoa(len(content)) + " bytes]"
	case strings.HasPrefix(content, "https://"), strings.HasPrefix(content, "http://"):
		scheme, _, _ := strings.Cut(content, "://")
		return scheme + "://[" + strconv.Itoa(len(content)) + " bytes]"
	default:
		return "[" + strconv.Itoa(len(content)) + " bytes]"
	}
}

// MaskSensitiveFields applies masking to common logging fields
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		s, isString := v.(string)
		if !isString {
			masked[k] = v
			continue
		}
		switch k {
		case "token", "push_token":
			masked[k] = MaskToken(s)
		case "chat_id", "user_id", "sender_id", "notification_id":
			masked[k] = MaskID(s)
		case "content", "draft":
			masked[k] = MaskContent(s)
		default:
			masked[k] = v
		}
	}
	return masked
}

func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}
	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}
