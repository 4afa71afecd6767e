// Package prompt asks the operator for login codes in the terminal.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned when the operator aborts the prompt.
var ErrCancelled = errors.New("prompt cancelled")

// Terminal prompts on a terminal. Zero value uses stdin and stdout.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

func (t Terminal) Prompt(ctx context.Context, label string, secret bool) (string, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if t.In != nil {
		opts = append(opts, tea.WithInput(t.In))
	} else {
		opts = append(opts, tea.WithInput(os.Stdin))
	}
	if t.Out != nil {
		opts = append(opts, tea.WithOutput(t.Out))
	}

	final, err := tea.NewProgram(newModel(label, secret), opts...).Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("run prompt: %w", err)
	}

	m, ok := final.(*model)
	if !ok || m.cancelled || !m.submitted {
		return "", ErrCancelled
	}
	return m.input.Value(), nil
}
