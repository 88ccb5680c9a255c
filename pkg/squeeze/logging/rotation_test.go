package logging

import "testing"

func TestRotationConfig_Megabytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		maxSize int64
		want    int
	}{
		{"zero uses default", 0, 10},
		{"negative uses default", -5, 10},
		{"exact megabytes", 20 * megabyte, 20},
		{"rounds up", 20*megabyte + 1, 21},
		{"below one megabyte", 512, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := RotationConfig{MaxSize: tt.maxSize}.megabytes()
			if got != tt.want {
				t.Errorf("megabytes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewRotatingWriter_CreatesDirectory(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/a/b/squeeze.log"
	w, err := newRotatingWriter(path, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("newRotatingWriter() error = %v", err)
	}
	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
