package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/repodeploy/pkg/pattern"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(EnvHome, home)
	t.Chdir(t.TempDir())
	return home
}

func TestLoadConfig_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "work"), cfg.WorkDir)
	assert.Equal(t, filepath.Join(home, "db.json"), cfg.DBPath)
	assert.Equal(t, filepath.Join(home, "logs"), cfg.Log.Dir)
	assert.Equal(t, 19, cfg.Log.Backups)
	assert.True(t, cfg.Log.File)
	assert.Equal(t, "at", cfg.At.Binary)
	assert.Equal(t, "repodeploy", cfg.Git.AuthorName)
	assert.Equal(t, "repodeploy@localhost", cfg.Git.AuthorEmail)
	assert.Equal(t, "Automated commit for event {{id}}", cfg.Git.CommitMessage)

	opts, err := cfg.ExpandOptions()
	require.NoError(t, err)
	assert.Equal(t, pattern.DirectoryMerge, opts.ExistingDirectory)
	assert.Equal(t, pattern.DuplicateOverwrite, opts.DuplicateDestination)
	assert.False(t, opts.Gitignore)
}

func TestLoadConfig_File(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
work_dir: /srv/repodeploy/work
git:
  author_name: Course Staff
  username: deployer
expand:
  existing_directory: error
  duplicate_destination: error
  gitignore: true
  exclude:
    - "*.pyc"
    - solutions/
`), 0o600))

	cfg, err := LoadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, "/srv/repodeploy/work", cfg.WorkDir)
	assert.Equal(t, "Course Staff", cfg.Git.AuthorName)
	assert.Equal(t, "repodeploy@localhost", cfg.Git.AuthorEmail)
	assert.Equal(t, "deployer", cfg.Git.Username)

	opts, err := cfg.ExpandOptions()
	require.NoError(t, err)
	assert.Equal(t, pattern.DirectoryReject, opts.ExistingDirectory)
	assert.Equal(t, pattern.DuplicateReject, opts.DuplicateDestination)
	assert.True(t, opts.Gitignore)
	assert.Equal(t, []string{"*.pyc", "solutions/"}, opts.Exclude)
}

func TestLoadConfig_SearchPath(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("repodeploy.yaml", []byte("at:\n  binary: /usr/local/bin/at\n"), 0o600))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/at", cfg.At.Binary)
}

func TestLoadConfig_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("REPODEPLOY_GIT_PASSWORD", "token")
	t.Setenv("REPODEPLOY_EXPAND_DUPLICATE_DESTINATION", "error")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "token", cfg.Git.Password)
	assert.Equal(t, "error", cfg.Expand.DuplicateDestination)
}

func TestLoadConfig_Errors(t *testing.T) {
	isolate(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrInvalidConfig, "an explicit config file must exist")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("expand:\n  existing_directory: replace\n"), 0o600))
	_, err = LoadConfig(bad)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "expand.existing_directory")
}

func TestValidate(t *testing.T) {
	valid := Config{WorkDir: "w", DBPath: "db.json"}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"zero policies default", func(*Config) {}, false},
		{"negative backups", func(c *Config) { c.Log.Backups = -1 }, true},
		{"empty work dir", func(c *Config) { c.WorkDir = "" }, true},
		{"empty db path", func(c *Config) { c.DBPath = "" }, true},
		{"unknown duplicate policy", func(c *Config) { c.Expand.DuplicateDestination = "skip" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDirectories_XDG(t *testing.T) {
	t.Setenv(EnvHome, "")
	assert.Contains(t, GetWorkDir(), filepath.Join(AppName, "work"))
	assert.Contains(t, GetLogDir(), filepath.Join(AppName, "logs"))
	assert.Equal(t, AppName, filepath.Base(GetConfigDir()))
	assert.Equal(t, AppName, filepath.Base(GetDataDir()))
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	got, err := EnsureDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.DirExists(t, dir)
}
