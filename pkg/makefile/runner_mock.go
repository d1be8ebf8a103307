package makefile

import (
	"context"
)

// MockRunner is a mock implementation of CommandRunner for testing
type MockRunner struct {
	MockOutput []byte
	MockError  error

	// Calls records the arguments of every Run call.
	Calls []MockCall
}

// MockCall is one recorded MockRunner.Run invocation.
type MockCall struct {
	Dir  string
	Name string
	Args []string
}

func (m *MockRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	m.Calls = append(m.Calls, MockCall{Dir: dir, Name: name, Args: args})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.MockOutput, m.MockError
}
