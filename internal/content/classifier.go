// Package content decides how a chat message body is rendered.
package content

import (
	"net/url"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"jobchat/internal/constants"
	"jobchat/internal/models"
)

type Variant string

const (
	VariantText          Variant = "text"
	VariantInlineImage   Variant = "inline_image"
	VariantRemoteImage   Variant = "remote_image"
	VariantRemoteFile    Variant = "remote_file"
	VariantLocalizedFile Variant = "localized_file"
	VariantUnsupported   Variant = "unsupported"
)

// Descriptor tells the renderer what to draw. Source is the text to show for
// VariantText, an image source for the image variants, and the URI to open
// for the file variants. It is empty for VariantUnsupported.
type Descriptor struct {
	Variant     Variant `json:"variant"`
	Source      string  `json:"source"`
	DisplayName string  `json:"displayName,omitempty"`
}

// IsOpenable reports whether the descriptor points at a document the OS
// viewer can open, possibly after decoding through the document cache.
func (d Descriptor) IsOpenable() bool {
	return d.Variant == VariantRemoteFile || d.Variant == VariantLocalizedFile
}

const rawBase64ImagePrefix = "data:image/jpeg;base64,"

// Classify maps a message type and raw content to a render descriptor. It is
// total: any string yields a descriptor.
func Classify(messageType models.MessageType, content string) Descriptor {
	switch messageType {
	case models.MessageTypeImage:
		return classifyImage(content)
	case models.MessageTypeFile:
		return classifyFile(content)
	default:
		return Descriptor{Variant: VariantText, Source: content}
	}
}

// ClassifyMessage is Classify applied to a message.
func ClassifyMessage(m models.Message) Descriptor {
	return Classify(m.MessageType, m.Content)
}

func classifyImage(content string) Descriptor {
	switch {
	case strings.HasPrefix(content, "data:image"):
		return Descriptor{Variant: VariantInlineImage, Source: content}
	case isRemote(content):
		return Descriptor{Variant: VariantRemoteImage, Source: content}
	case looksLikeRawBase64(content):
		// Legacy rows stored the bare payload without a data URI header.
		return Descriptor{Variant: VariantInlineImage, Source: rawBase64ImagePrefix + content}
	default:
		return Descriptor{Variant: VariantText, Source: content}
	}
}

func classifyFile(content string) Descriptor {
	switch {
	case isRemote(content):
		return Descriptor{Variant: VariantRemoteFile, Source: content, DisplayName: remoteFileName(content)}
	case strings.HasPrefix(content, "data:"):
		return Descriptor{Variant: VariantLocalizedFile, Source: content, DisplayName: dataURIFileName(content)}
	default:
		return Descriptor{Variant: VariantUnsupported}
	}
}

func isRemote(content string) bool {
	return strings.HasPrefix(content, "http://") || strings.HasPrefix(content, "https://")
}

// looksLikeRawBase64 is the legacy heuristic: strictly more than 100
// characters and no whitespace anywhere. It will also accept long opaque ids.
func looksLikeRawBase64(content string) bool {
	if utf8.RuneCountInString(content) <= constants.RawBase64MinLength {
		return false
	}
	return strings.IndexFunc(content, unicode.IsSpace) < 0
}

func remoteFileName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "Document"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "Document"
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}

func dataURIFileName(raw string) string {
	header, _, found := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !found {
		return "Document"
	}
	mimeType, _, _ := strings.Cut(header, ";")
	return "Document." + constants.DocumentExtension(mimeType)
}
