package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cms "github.com/goliatone/go-cms"
	"github.com/goliatone/go-cms/persistence"
)

type recorded struct {
	command string
	opts    options
}

func recordingActions(got *recorded) actions {
	record := func(name string) action {
		return func(_ context.Context, opts options) error {
			got.command = name
			got.opts = opts
			return nil
		}
	}
	return actions{
		serve:     record("serve"),
		migrate:   record("migrate"),
		bootstrap: record("bootstrap"),
	}
}

func TestRootCommand_Flags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		command string
		want    options
	}{
		{
			name:    "serve with env file",
			args:    []string{"serve", "--env-file", "prod.env"},
			command: "serve",
			want:    options{envFile: "prod.env"},
		},
		{
			name:    "env file before the command",
			args:    []string{"--env-file", "prod.env", "serve", "--address", ":9000"},
			command: "serve",
			want:    options{envFile: "prod.env", address: ":9000"},
		},
		{
			name:    "migrate with env file",
			args:    []string{"migrate", "--env-file", "migrate.env"},
			command: "migrate",
			want:    options{envFile: "migrate.env"},
		},
		{
			name:    "bootstrap default env file",
			args:    []string{"bootstrap"},
			command: "bootstrap",
			want:    options{envFile: ".env"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got recorded
			root := newRootCommand(recordingActions(&got))
			root.SetArgs(tt.args)

			require.NoError(t, root.ExecuteContext(context.Background()))
			assert.Equal(t, tt.command, got.command)
			assert.Equal(t, tt.want, got.opts)
		})
	}
}

func TestRootCommand_AddressOnlyOnServe(t *testing.T) {
	var got recorded
	root := newRootCommand(recordingActions(&got))
	root.SetArgs([]string{"migrate", "--address", ":9000"})

	require.Error(t, root.ExecuteContext(context.Background()))
	assert.Empty(t, got.command)
}

func TestMigrateCommand_ReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cms.db")
	envFile := filepath.Join(dir, "test.env")

	env := "DB_DRIVER=sqlite\nDB_DSN=file:" + dbPath + "\nLOG_LEVEL=error\n"
	require.NoError(t, os.WriteFile(envFile, []byte(env), 0o600))

	// godotenv does not override variables that are already set
	for _, key := range []string{"DB_DRIVER", "DB_DSN", "LOG_LEVEL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	root := newRootCommand(defaultActions)
	root.SetArgs([]string{"migrate", "--env-file", envFile})
	require.NoError(t, root.ExecuteContext(context.Background()))

	ctx := context.Background()
	client, err := persistence.Open(ctx, persistence.Options{
		Driver: persistence.DriverSQLite,
		DSN:    "file:" + dbPath,
	})
	require.NoError(t, err)
	defer client.Close()

	count, err := client.DB().NewSelect().Model((*cms.User)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
