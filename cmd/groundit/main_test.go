package main

import (
	"flag"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findStringFlag(flags []cli.Flag, name string) *cli.StringFlag {
	for _, f := range flags {
		if sf, ok := f.(*cli.StringFlag); ok && sf.Name == name {
			return sf
		}
	}
	return nil
}

func findIntFlag(flags []cli.Flag, name string) *cli.IntFlag {
	for _, f := range flags {
		if intf, ok := f.(*cli.IntFlag); ok && intf.Name == name {
			return intf
		}
	}
	return nil
}

func TestServiceFlags(t *testing.T) {
	flags := serviceFlags()

	t.Run("db is required", func(t *testing.T) {
		dbFlag := findStringFlag(flags, "db")
		require.NotNil(t, dbFlag)
		assert.True(t, dbFlag.Required)
		assert.Contains(t, dbFlag.Aliases, "d")
	})

	t.Run("embedding-host has default value", func(t *testing.T) {
		hostFlag := findStringFlag(flags, "embedding-host")
		require.NotNil(t, hostFlag)
		assert.Equal(t, "http://localhost:11434/v1", hostFlag.Value)
	})

	t.Run("embedding-model has default value", func(t *testing.T) {
		modelFlag := findStringFlag(flags, "embedding-model")
		require.NotNil(t, modelFlag)
		assert.Equal(t, "embeddinggemma", modelFlag.Value)
	})

	t.Run("chunk-chars default matches service default", func(t *testing.T) {
		chunkFlag := findIntFlag(flags, "chunk-chars")
		require.NotNil(t, chunkFlag)
		assert.Equal(t, 500, chunkFlag.Value)
	})
}

func TestAddCommandFlags(t *testing.T) {
	app := &cli.App{
		Name: "groundit",
		Commands: []*cli.Command{
			{
				Name:   "add",
				Action: addCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Required: true,
					},
				),
			},
		},
	}

	t.Run("db is required", func(t *testing.T) {
		err := app.Run([]string{"groundit", "add", "--user", "alice", "notes.txt"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db")
	})

	t.Run("user is required", func(t *testing.T) {
		err := app.Run([]string{"groundit", "add", "--db", "/tmp/test", "notes.txt"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "user")
	})
}

func TestDocumentIDArg(t *testing.T) {
	buildContext := func(args ...string) *cli.Context {
		set := flag.NewFlagSet("test", flag.ContinueOnError)
		require.NoError(t, set.Parse(args))
		return cli.NewContext(nil, set, nil)
	}

	t.Run("valid ID", func(t *testing.T) {
		id, err := documentIDArg(buildContext("42"))
		require.NoError(t, err)
		assert.EqualValues(t, 42, id)
	})

	t.Run("missing argument", func(t *testing.T) {
		_, err := documentIDArg(buildContext())
		assert.Error(t, err)
	})

	t.Run("non-numeric argument", func(t *testing.T) {
		_, err := documentIDArg(buildContext("abc"))
		assert.Error(t, err)
	})

	t.Run("too many arguments", func(t *testing.T) {
		_, err := documentIDArg(buildContext("1", "2"))
		assert.Error(t, err)
	})
}

func TestSetupLogger(t *testing.T) {
	buildContext := func(level string) *cli.Context {
		set := flag.NewFlagSet("test", flag.ContinueOnError)
		set.String("log-level", level, "")
		return cli.NewContext(nil, set, nil)
	}

	t.Run("valid levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "Info"} {
			assert.NoError(t, setupLogger(buildContext(level)), "level %s", level)
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		err := setupLogger(buildContext("verbose"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("debug level enables debug logging", func(t *testing.T) {
		require.NoError(t, setupLogger(buildContext("debug")))
		assert.True(t, slog.Default().Enabled(nil, slog.LevelDebug))
	})
}
