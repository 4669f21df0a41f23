package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/app"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/ingest"
)

func TestGraph(t *testing.T) {
	var r *ingest.Runner
	assert.NoError(t, fx.ValidateApp(app.Core, ingest.Module, fx.Populate(&r)))
}

func TestCommands(t *testing.T) {
	root := rootCmd()

	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	assert.NotNil(t, run.Flags().Lookup("file"))

	schedule, _, err := root.Find([]string{"schedule"})
	require.NoError(t, err)
	assert.Equal(t, defaultSpec, schedule.Flags().Lookup("spec").DefValue)
}

func TestRun_RequiresFile(t *testing.T) {
	root := rootCmd()
	root.SetArgs([]string{"run"})
	root.SetOut(new(nopWriter))
	root.SetErr(new(nopWriter))

	assert.Error(t, root.Execute())
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
