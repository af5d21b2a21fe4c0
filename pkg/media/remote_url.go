package media

import (
	"fmt"
	"net/url"
)

// ValidateRemoteURL checks that an upload result is a durable, absolute
// http(s) URL. Anything else would leave a dangling reference in a message.
func ValidateRemoteURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("empty remote URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid remote URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("remote URL has no host")
	}
	return nil
}
