package main

import (
	"errors"
	"flag"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/kotadb/kotadb/internal/config"
)

func TestExitCodeForStartupError(t *testing.T) {
	require.Equal(t, exitDataDirUnusable, exitCodeFor(&startupError{exitDataDirUnusable, errors.New("boom")}))
	require.Equal(t, exitConfigOrIO, exitCodeFor(errors.New("plain error")))
}

func TestApplyFlagOverrides(t *testing.T) {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.Int("port", 0, "")
	set.Bool("quiet", false, "")
	require.NoError(t, set.Set("port", "9090"))
	require.NoError(t, set.Set("quiet", "true"))
	c := cli.NewContext(cli.NewApp(), set, nil)

	cfg := config.Default(t.TempDir())
	applyFlagOverrides(c, &cfg)

	require.Equal(t, 9090, cfg.Server.Port)
	require.True(t, cfg.Server.Quiet)
}

func TestApplyFlagOverridesLeavesUnsetFieldsAtDefault(t *testing.T) {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.Int("port", 0, "")
	c := cli.NewContext(cli.NewApp(), set, nil)

	cfg := config.Default(t.TempDir())
	cfg.Server.Port = 8080
	applyFlagOverrides(c, &cfg)

	require.Equal(t, 8080, cfg.Server.Port)
}
