package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"biaslens/internal/analysis"
	"biaslens/internal/extract"
	"biaslens/internal/render"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"extraction", &extract.ExtractionError{Reason: "no article container found"}, exitExtraction},
		{"wrapped transport", fmt.Errorf("run: %w", &analysis.TransportError{StatusCode: 500}), exitTransport},
		{"render", &render.RenderError{Index: 1}, exitRender},
		{"other", errors.New("boom"), exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["analyze"])
	assert.True(t, names["history"])

	for _, flag := range []string{"format", "out", "enhanced", "browser", "sanitize", "no-cache"} {
		assert.NotNil(t, analyzeCmd.Flags().Lookup(flag), flag)
	}
	assert.NotNil(t, historyCmd.Flags().Lookup("limit"))
}
