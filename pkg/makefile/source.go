package makefile

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/makegraph/pkg/errors"
)

// Source obtains the raw rule blocks of a Makefile. Implementations fail with
// a SOURCE_ERROR when the Makefile cannot be read or the external command is
// unusable.
type Source interface {
	Load(ctx context.Context, path string) (*Input, error)
}

var (
	_ Source = (*DatabaseSource)(nil)
	_ Source = (*ScanSource)(nil)
	_ Source = (*AutoSource)(nil)
)

// AutoSource prefers make's database and falls back to a direct scan when
// make cannot be used and Fallback is enabled.
type AutoSource struct {
	Database *DatabaseSource
	Scan     *ScanSource
	Fallback bool
	Logger   *log.Logger
}

// Load tries the database first. Timeouts and missing Makefiles are never
// retried by scanning: the first would hang the same way and the second
// would fail the same way.
func (s *AutoSource) Load(ctx context.Context, path string) (*Input, error) {
	in, err := s.Database.Load(ctx, path)
	if err == nil {
		return in, nil
	}
	if !s.Fallback || !fallbackAllowed(err) {
		return nil, err
	}

	reason := errors.UserMessage(err)
	if s.Logger != nil {
		s.Logger.Warn("make database unavailable, scanning Makefile directly", "reason", reason)
	}
	in, scanErr := s.Scan.Load(ctx, path)
	if scanErr != nil {
		return nil, scanErr
	}
	in.FallbackReason = reason
	return in, nil
}

func fallbackAllowed(err error) bool {
	if stderrors.Is(err, ErrCommandNotFound) {
		return true
	}
	var exitErr *ExitError
	return stderrors.As(err, &exitErr)
}

// SourceOptions selects and configures a Source.
type SourceOptions struct {
	Mode     string        // "auto" (default), "database" or "scan"
	Make     string        // make binary for database mode
	Runner   CommandRunner // process runner; ExecRunner when nil
	Fallback bool          // auto mode only
	Logger   *log.Logger
	Env      map[string]string // seeds scan-mode variables
}

// Source modes accepted by [NewSource].
const (
	SourceAuto     = "auto"
	SourceDatabase = "database"
	SourceScan     = "scan"
)

// NewSource builds the Source named by opts.Mode.
func NewSource(opts SourceOptions) (Source, error) {
	db := &DatabaseSource{Make: opts.Make, Runner: opts.Runner}
	scan := &ScanSource{Env: opts.Env}
	switch opts.Mode {
	case "", SourceAuto:
		return &AutoSource{Database: db, Scan: scan, Fallback: opts.Fallback, Logger: opts.Logger}, nil
	case SourceDatabase:
		return db, nil
	case SourceScan:
		return scan, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"unknown source %q (want %s, %s or %s)", opts.Mode, SourceAuto, SourceDatabase, SourceScan)
	}
}

// describe is used in log lines.
func describe(in *Input) string {
	if in.FallbackReason != "" {
		return fmt.Sprintf("%s (fallback: %s)", in.Mode, in.FallbackReason)
	}
	return string(in.Mode)
}
