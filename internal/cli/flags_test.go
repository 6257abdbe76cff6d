package cli

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

func TestIsValidOutputFormat(t *testing.T) {
	t.Parallel()

	assert.True(t, IsValidOutputFormat(OutputText))
	assert.True(t, IsValidOutputFormat(OutputJSON))
	assert.False(t, IsValidOutputFormat("yaml"))
	assert.False(t, IsValidOutputFormat(""))
}

func TestExitCodeForError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil error", err: nil, want: ExitSuccess},
		{name: "invalid argument sentinel", err: pipelineerrors.ErrInvalidArgument, want: ExitInvalidInput},
		{
			name: "wrapped invalid argument",
			err:  pipelineerrors.Wrap(pipelineerrors.ErrInvalidArgument, "bad priority"),
			want: ExitInvalidInput,
		},
		{name: "cobra unknown flag", err: stderrors.New("unknown flag: --bogus"), want: ExitInvalidInput},
		{name: "cobra unknown command", err: stderrors.New(`unknown command "frobnicate"`), want: ExitInvalidInput},
		{name: "general error", err: stderrors.New("disk full"), want: ExitError},
		{name: "not found", err: pipelineerrors.ErrArtifactNotFound, want: ExitError},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ExitCodeForError(tc.err))
		})
	}
}
