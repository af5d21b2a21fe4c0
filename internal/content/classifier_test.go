package content

import (
	"strings"
	"testing"

	"jobchat/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	long := strings.Repeat("A", 150)

	tests := []struct {
		name        string
		messageType models.MessageType
		content     string
		want        Descriptor
	}{
		{
			name:        "plain text",
			messageType: models.MessageTypeText,
			content:     "Hello, are you available Monday?",
			want:        Descriptor{Variant: VariantText, Source: "Hello, are you available Monday?"},
		},
		{
			name:        "unknown type renders as text",
			messageType: models.MessageType("STICKER"),
			content:     "https://cdn.example.com/s.png",
			want:        Descriptor{Variant: VariantText, Source: "https://cdn.example.com/s.png"},
		},
		{
			name:        "inline image data uri",
			messageType: models.MessageTypeImage,
			content:     "data:image/png;base64,iVBORw0KGgo=",
			want:        Descriptor{Variant: VariantInlineImage, Source: "data:image/png;base64,iVBORw0KGgo="},
		},
		{
			name:        "remote image https",
			messageType: models.MessageTypeImage,
			content:     "https://cdn.example.com/a.jpg",
			want:        Descriptor{Variant: VariantRemoteImage, Source: "https://cdn.example.com/a.jpg"},
		},
		{
			name:        "remote image http",
			messageType: models.MessageTypeImage,
			content:     "http://cdn.example.com/a.jpg",
			want:        Descriptor{Variant: VariantRemoteImage, Source: "http://cdn.example.com/a.jpg"},
		},
		{
			name:        "raw base64 is wrapped as jpeg",
			messageType: models.MessageTypeImage,
			content:     long,
			want:        Descriptor{Variant: VariantInlineImage, Source: "data:image/jpeg;base64," + long},
		},
		{
			name:        "long image content with whitespace degrades to text",
			messageType: models.MessageTypeImage,
			content:     strings.Repeat("word ", 40),
			want:        Descriptor{Variant: VariantText, Source: strings.Repeat("word ", 40)},
		},
		{
			name:        "short image content degrades to text",
			messageType: models.MessageTypeImage,
			content:     "photo.jpg",
			want:        Descriptor{Variant: VariantText, Source: "photo.jpg"},
		},
		{
			name:        "remote file",
			messageType: models.MessageTypeFile,
			content:     "https://files.example.com/docs/My%20CV.pdf",
			want:        Descriptor{Variant: VariantRemoteFile, Source: "https://files.example.com/docs/My%20CV.pdf", DisplayName: "My CV.pdf"},
		},
		{
			name:        "data uri file needs the document cache",
			messageType: models.MessageTypeFile,
			content:     "data:application/pdf;base64,JVBERi0=",
			want:        Descriptor{Variant: VariantLocalizedFile, Source: "data:application/pdf;base64,JVBERi0=", DisplayName: "Document.pdf"},
		},
		{
			name:        "local path file is unsupported",
			messageType: models.MessageTypeFile,
			content:     "file:///var/mobile/cv.pdf",
			want:        Descriptor{Variant: VariantUnsupported},
		},
		{
			name:        "empty file is unsupported",
			messageType: models.MessageTypeFile,
			content:     "",
			want:        Descriptor{Variant: VariantUnsupported},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.messageType, tt.content))
		})
	}
}

func TestClassify_RawBase64Boundary(t *testing.T) {
	exactly100 := strings.Repeat("x", 100)
	exactly101 := strings.Repeat("x", 101)

	assert.Equal(t, VariantText, Classify(models.MessageTypeImage, exactly100).Variant)

	got := Classify(models.MessageTypeImage, exactly101)
	assert.Equal(t, VariantInlineImage, got.Variant)
	assert.Equal(t, "data:image/jpeg;base64,"+exactly101, got.Source)
}

func TestClassify_NeverPanics(t *testing.T) {
	inputs := []string{"", " ", "\x00\xff", "data:", "data:,", "http://", "https://%zz", strings.Repeat("é", 200)}
	types := []models.MessageType{models.MessageTypeText, models.MessageTypeImage, models.MessageTypeFile, ""}

	for _, mt := range types {
		for _, in := range inputs {
			assert.NotPanics(t, func() { Classify(mt, in) })
		}
	}
}

func TestDescriptor_IsOpenable(t *testing.T) {
	assert.True(t, Classify(models.MessageTypeFile, "https://x.test/a.pdf").IsOpenable())
	assert.True(t, Classify(models.MessageTypeFile, "data:application/pdf;base64,AA==").IsOpenable())
	assert.False(t, Classify(models.MessageTypeFile, "cv.pdf").IsOpenable())
	assert.False(t, Classify(models.MessageTypeImage, "https://x.test/a.png").IsOpenable())
}
