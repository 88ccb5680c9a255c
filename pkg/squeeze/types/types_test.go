package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_Equality(t *testing.T) {
	t.Parallel()

	a := Identity{Name: "a.jpg", Size: 10, Hash: "abc"}
	b := Identity{Name: "a.jpg", Size: 10, Hash: "abc"}
	renamed := Identity{Name: "b.jpg", Size: 10, Hash: "abc"}
	resized := Identity{Name: "a.jpg", Size: 11, Hash: "abc"}

	set := map[Identity]struct{}{a: {}}
	assert.Contains(t, set, b)
	assert.NotContains(t, set, renamed)
	assert.NotContains(t, set, resized)
}

func TestNewWorkItem(t *testing.T) {
	t.Parallel()

	fp := Fingerprint{
		Identity: Identity{Name: "clip.mp4", Size: 4096, Hash: "ff"},
		Path:     "/media/clip.mp4",
	}

	item := NewWorkItem(fp)
	assert.Equal(t, "/media/clip.mp4", item.Path)
	assert.Equal(t, uint64(4096), item.OriginalSize)
	assert.Equal(t, fp.Identity, item.Identity)
}

func TestParseMediaClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    MediaClass
		wantErr bool
	}{
		{input: "image", want: Image},
		{input: "IMAGE", want: Image},
		{input: "video", want: Video},
		{input: "doc", want: Document},
		{input: "document", want: Document},
		{input: " docs ", want: Document},
		{input: "audio", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseMediaClass(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMediaClass_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image", Image.String())
	assert.Equal(t, "video", Video.String())
	assert.Equal(t, "doc", Document.String())
	assert.Equal(t, "MediaClass(9)", MediaClass(9).String())
}

func TestMediaClass_JSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(map[string]MediaClass{"class": Document})
	require.NoError(t, err)
	assert.JSONEq(t, `{"class":"doc"}`, string(data))

	var got struct {
		Class MediaClass `json:"class"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"class":"video"}`), &got))
	assert.Equal(t, Video, got.Class)
}

func TestClassSpec_Matches(t *testing.T) {
	t.Parallel()

	images := DefaultClassSpec(Image)
	assert.True(t, images.Matches("photo.jpg"))
	assert.True(t, images.Matches("PHOTO.JPEG"))
	assert.True(t, images.Matches("logo.Png"))
	assert.False(t, images.Matches("clip.mp4"))
	assert.False(t, images.Matches("README"))

	docs := DefaultClassSpec(Document)
	assert.True(t, docs.Matches("report.PDF"))
	assert.False(t, docs.Matches("report.pdf.txt"))
}

func TestDefaultClassSpec(t *testing.T) {
	t.Parallel()

	for _, class := range AllClasses() {
		spec := DefaultClassSpec(class)
		assert.Equal(t, class, spec.Class)
		assert.NotEmpty(t, spec.Extensions)
		assert.Positive(t, spec.MinSize)
	}
}

func TestNormalizeExtensions(t *testing.T) {
	t.Parallel()

	got := NormalizeExtensions([]string{"JPG", ".png", " webp ", "", ".jpg"})
	assert.Equal(t, []string{".jpg", ".png", ".webp"}, got)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "plain bytes", input: "1024", want: 1024},
		{name: "zero bytes", input: "0", want: 0},
		{name: "bytes with B suffix", input: "512B", want: 512},
		{name: "kilobytes", input: "10K", want: 10 * 1024},
		{name: "kilobytes with iB", input: "10KiB", want: 10 * 1024},
		{name: "megabytes with B", input: "1MB", want: 1024 * 1024},
		{name: "gigabytes lowercase", input: "2g", want: 2 * 1024 * 1024 * 1024},
		{name: "terabytes", input: "1T", want: 1024 * 1024 * 1024 * 1024},
		{name: "surrounding whitespace", input: "  50K  ", want: 50 * 1024},
		{name: "decimal values truncated", input: "1.5G", want: 1610612736},

		{name: "empty string", input: "", wantErr: true},
		{name: "invalid suffix", input: "100X", wantErr: true},
		{name: "negative value", input: "-100M", wantErr: true},
		{name: "suffix only", input: "M", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{bytes: 0, want: "0 B"},
		{bytes: 1024, want: "1.0 KiB"},
		{bytes: 1536 * 1024, want: "1.5 MiB"},
		{bytes: -2048, want: "-2.0 KiB"},
	}

	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
