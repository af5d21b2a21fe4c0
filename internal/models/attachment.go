package models

type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
)

type AttachmentSource string

const (
	SourceCamera     AttachmentSource = "camera"
	SourceLibrary    AttachmentSource = "library"
	SourceFilePicker AttachmentSource = "file_picker"
)

// Attachment is a locally picked file that has not been uploaded yet.
type Attachment struct {
	Kind     AttachmentKind   `json:"kind"`
	Source   AttachmentSource `json:"source"`
	LocalURI string           `json:"localUri"`
	MimeType string           `json:"mimeType"`
	FileName string           `json:"fileName,omitempty"`
}

// MessageType is the message type an uploaded attachment is sent as.
func (a Attachment) MessageType() MessageType {
	if a.Kind == AttachmentImage {
		return MessageTypeImage
	}
	return MessageTypeFile
}

type AttachmentUploadResult struct {
	RemoteURL string `json:"url"`
	MimeType  string `json:"mimeType,omitempty"`
}
