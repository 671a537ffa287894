package toolchain

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bihealth/seahorse/pkg/config"
)

func testContext() context.Context {
	logger := zerolog.Nop()
	return WithLogger(context.Background(), &logger)
}

func testConfig(staging, prefix string) *config.Config {
	cfg := &config.Config{
		Staging: staging,
		Prefix:  prefix,
		Jobs:    8,
		Mode:    "resume",
	}
	cfg.Packages.Installer = "apt-get"

	return cfg
}

func namedStep(name string, err error, ran *[]string) Step {
	return Step{
		Name: name,
		Run: func(ctx context.Context, env *Env) error {
			*ran = append(*ran, name)
			return err
		},
	}
}

func TestRunStepsHaltsOnFirstFailure(t *testing.T) {
	ran := []string{}
	steps := []Step{
		namedStep("first", nil, &ran),
		namedStep("second", eris.New("boom"), &ran),
		namedStep("third", nil, &ran),
	}

	env := NewEnv(testConfig(t.TempDir(), t.TempDir()), &fakeRunner{})
	report, err := RunSteps(testContext(), env, steps)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Step second failed")
	assert.Equal(t, []string{"first", "second"}, ran)
	assert.Equal(t, []string{"first"}, report.Executed)
}

func TestRunStepsBestEffortContinues(t *testing.T) {
	ran := []string{}
	failing := namedStep("second", eris.New("boom"), &ran)
	failing.BestEffort = true

	steps := []Step{
		namedStep("first", nil, &ran),
		failing,
		namedStep("third", nil, &ran),
	}

	env := NewEnv(testConfig(t.TempDir(), t.TempDir()), &fakeRunner{})
	report, err := RunSteps(testContext(), env, steps)

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, ran)
	assert.Equal(t, []string{"first", "third"}, report.Executed)
	assert.Equal(t, []string{"second"}, report.BestEffortFailures)
}

func TestRunStepsRecordsSkips(t *testing.T) {
	ran := []string{}
	steps := []Step{
		namedStep("first", nil, &ran),
		namedStep("second", ErrSkipped, &ran),
		namedStep("third", nil, &ran),
	}

	env := NewEnv(testConfig(t.TempDir(), t.TempDir()), &fakeRunner{})
	report, err := RunSteps(testContext(), env, steps)

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "third"}, report.Executed)
	assert.Equal(t, []string{"second"}, report.Skipped)
}

func TestRunStepsStopsOnCancelledContext(t *testing.T) {
	ran := []string{}
	steps := []Step{namedStep("first", nil, &ran)}

	ctx, cancel := context.WithCancel(testContext())
	cancel()

	env := NewEnv(testConfig(t.TempDir(), t.TempDir()), &fakeRunner{})
	_, err := RunSteps(ctx, env, steps)

	require.Error(t, err)
	assert.Empty(t, ran)
}

func TestDefaultExists(t *testing.T) {
	dir := t.TempDir()

	exists, err := DefaultExists(dir)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = DefaultExists(dir + "/nope")
	require.NoError(t, err)
	assert.False(t, exists)
}
