package makefile

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/makegraph/pkg/errors"
)

func TestAutoSource(t *testing.T) {
	path := writeMakefile(t)

	tests := []struct {
		name         string
		runErr       error
		fallback     bool
		wantMode     Mode
		wantCode     errors.Code
		wantFallback bool
	}{
		{name: "database works", wantMode: ModeDatabase},
		{name: "make missing, fallback on", runErr: fmt.Errorf("%w: make", ErrCommandNotFound), fallback: true, wantMode: ModeScan, wantFallback: true},
		{name: "make missing, fallback off", runErr: fmt.Errorf("%w: make", ErrCommandNotFound), wantCode: errors.ErrCodeSource},
		{name: "make fails, fallback on", runErr: &ExitError{Command: "make", Code: 2}, fallback: true, wantMode: ModeScan, wantFallback: true},
		{name: "timeout never falls back", runErr: context.DeadlineExceeded, fallback: true, wantCode: errors.ErrCodeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			src := &AutoSource{
				Database: &DatabaseSource{Runner: &MockRunner{MockOutput: []byte(sampleDump), MockError: tt.runErr}},
				Scan:     &ScanSource{},
				Fallback: tt.fallback,
				Logger:   log.New(&buf),
			}

			in, err := src.Load(context.Background(), path)
			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Fatalf("Load() error = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if in.Mode != tt.wantMode {
				t.Errorf("Mode = %s, want %s", in.Mode, tt.wantMode)
			}
			if got := in.FallbackReason != ""; got != tt.wantFallback {
				t.Errorf("FallbackReason = %q", in.FallbackReason)
			}
			if tt.wantFallback && !strings.Contains(buf.String(), "scanning Makefile directly") {
				t.Errorf("fallback not logged: %q", buf.String())
			}
		})
	}
}

func TestNewSource(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{"", "*makefile.AutoSource"},
		{SourceAuto, "*makefile.AutoSource"},
		{SourceDatabase, "*makefile.DatabaseSource"},
		{SourceScan, "*makefile.ScanSource"},
	}
	for _, tt := range tests {
		src, err := NewSource(SourceOptions{Mode: tt.mode})
		if err != nil {
			t.Fatalf("NewSource(%q) error: %v", tt.mode, err)
		}
		if got := fmt.Sprintf("%T", src); got != tt.want {
			t.Errorf("NewSource(%q) = %s, want %s", tt.mode, got, tt.want)
		}
	}

	if _, err := NewSource(SourceOptions{Mode: "magic"}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("NewSource(magic) error = %v, want INVALID_INPUT", err)
	}
}
