// ABOUTME: Tests for CLI helpers and end-to-end command execution.
// ABOUTME: Commands run against a temporary sqlite or flat store.
package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/harperreed/forma/internal/auth"
	"github.com/harperreed/forma/internal/models"
)

// setupCLI points the CLI at a fresh data directory.
func setupCLI(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	useDataDir(t, dir, backend)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("FORMA_SECURITY_BCRYPT_COST", "4")
	t.Setenv("FORMA_SEED_DISABLED", "false")

	disableColor()
	prev := now
	now = func() time.Time { return time.Date(2024, 2, 5, 6, 0, 0, 0, time.Local) }
	t.Cleanup(func() { now = prev })
	return dir
}

func useDataDir(t *testing.T, dir, backend string) {
	t.Helper()
	t.Setenv("FORMA_BACKEND", backend)
	t.Setenv("FORMA_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("FORMA_SESSION_DIR", filepath.Join(dir, "run"))
}

// runCLI executes the root command with args and returns its output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	if cerr := closeApp(); err == nil {
		err = cerr
	}
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("forma %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func loginAs(t *testing.T, email string) {
	t.Helper()
	mustRun(t, "login", email, "--password", "demo123")
}

func assertContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Errorf("output missing %q:\n%s", want, out)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string no truncation", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world this is a long string", 10, "hello w..."},
		{"empty string", "", 10, ""},
		{"very short maxLen", "hello", 3, "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestPadRight(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		length int
		want   string
	}{
		{"needs padding", "hi", 5, "hi   "},
		{"exact length", "hello", 5, "hello"},
		{"longer than length", "hello world", 5, "hello world"},
		{"empty string", "", 5, "     "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := padRight(tt.input, tt.length)
			if got != tt.want {
				t.Errorf("padRight(%q, %d) = %q, want %q", tt.input, tt.length, got, tt.want)
			}
		})
	}
}

func TestSubjectFor(t *testing.T) {
	trainer := &models.Session{UserID: "usr_t", Role: models.RoleTrainer}
	client := &models.Session{UserID: "usr_c", Role: models.RoleClient}

	if got, err := subjectFor(client, ""); err != nil || got != "usr_c" {
		t.Errorf("client default = %q, %v", got, err)
	}
	if got, err := subjectFor(trainer, "usr_c"); err != nil || got != "usr_c" {
		t.Errorf("trainer for client = %q, %v", got, err)
	}
	if _, err := subjectFor(client, "usr_other"); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("client for other user: err = %v, want ErrForbidden", err)
	}
}

func TestRootCmd(t *testing.T) {
	if rootCmd.Use != "forma" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "forma")
	}

	want := []string{
		"seed", "register", "login", "logout", "whoami", "users", "profile",
		"schedule", "progress", "plan", "message", "journal", "dashboard",
		"export", "import", "migrate", "sync", "mcp",
	}
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("expected command %q", name)
		}
	}
}

func TestSubcommands(t *testing.T) {
	tests := []struct {
		cmd  *cobra.Command
		subs []string
	}{
		{profileCmd, []string{"show", "set"}},
		{scheduleCmd, []string{"add", "list", "rm"}},
		{progressCmd, []string{"add", "list"}},
		{planCmd, []string{"add", "list", "rm"}},
		{messageCmd, []string{"send", "thread", "peers"}},
		{journalCmd, []string{"add", "list"}},
		{syncCmd, []string{"link", "unlink", "status", "now", "repair", "reset", "wipe"}},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			names := make(map[string]bool)
			for _, c := range tt.cmd.Commands() {
				names[c.Name()] = true
			}
			for _, sub := range tt.subs {
				if !names[sub] {
					t.Errorf("expected %s subcommand %q", tt.cmd.Name(), sub)
				}
			}
		})
	}
}

func TestMaintenanceCommandsSkipApp(t *testing.T) {
	for _, c := range []*cobra.Command{migrateCmd, syncLinkCmd, syncUnlinkCmd, syncRepairCmd, syncResetCmd, syncWipeCmd} {
		if c.Annotations[annotationNoApp] == "" {
			t.Errorf("%s should not open the store", c.CommandPath())
		}
	}
	if mcpCmd.Annotations[annotationMemorySession] == "" {
		t.Error("mcp should keep its session in memory")
	}
}

func TestExportCmdFlags(t *testing.T) {
	for _, name := range []string{"output", "s3-key", "s3"} {
		if exportCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag on export command", name)
		}
	}

	expected := map[string]bool{"json": false, "yaml": false, "markdown": false}
	for _, arg := range exportCmd.ValidArgs {
		expected[arg] = true
	}
	for arg, found := range expected {
		if !found {
			t.Errorf("expected valid arg %q for exportCmd", arg)
		}
	}
}

func TestSessionPersistsBetweenCommands(t *testing.T) {
	setupCLI(t, "sqlite")

	assertContains(t, mustRun(t, "whoami"), "Not signed in")

	out := mustRun(t, "login", "maya@forma.demo", "--password", "demo123")
	assertContains(t, out, "Signed in as Maya Torres (trainer)")

	out = mustRun(t, "whoami")
	assertContains(t, out, "maya@forma.demo")
	assertContains(t, out, "usr_trainer01")

	mustRun(t, "logout")
	assertContains(t, mustRun(t, "whoami"), "Not signed in")
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	setupCLI(t, "sqlite")

	_, err := runCLI(t, "login", "maya@forma.demo", "--password", "wrong")
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestCommandsRequireLogin(t *testing.T) {
	setupCLI(t, "sqlite")

	_, err := runCLI(t, "schedule", "list")
	if !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestRegister(t *testing.T) {
	setupCLI(t, "sqlite")

	out := mustRun(t, "register", "ana@example.com", "--name", "Ana Ruiz", "--password", "secret1")
	assertContains(t, out, "Registered Ana Ruiz (ana@example.com) as client")
	assertContains(t, mustRun(t, "whoami"), "Ana Ruiz")

	_, err := runCLI(t, "register", "ANA@example.com", "--name", "Other", "--password", "secret1")
	if !errors.Is(err, auth.ErrDuplicateEmail) {
		t.Errorf("err = %v, want ErrDuplicateEmail", err)
	}

	_, err = runCLI(t, "register", "bob@example.com", "--name", "Bob")
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("missing password: err = %v, want validation error", err)
	}
}

func TestScheduleCommands(t *testing.T) {
	setupCLI(t, "sqlite")
	loginAs(t, "maya@forma.demo")

	_, err := runCLI(t, "schedule", "add", "usr_client001", "2024-02-05", "07:00")
	if err == nil || !strings.Contains(err.Error(), "already has a session") {
		t.Fatalf("expected conflict, got %v", err)
	}

	out := mustRun(t, "schedule", "add", "usr_client001", "2024-02-09", "07:00", "--title", "Mobility")
	assertContains(t, out, "Booked 2024-02-09 07:00 Mobility for Leo Park")

	_, err = runCLI(t, "schedule", "add", "usr_nobody", "2024-02-09", "08:00")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("unknown client: err = %v", err)
	}

	out = mustRun(t, "schedule", "list", "--upcoming", "--limit", "2")
	assertContains(t, out, "2024-02-05  07:00")
	assertContains(t, out, "Sara Lind")
	if strings.Contains(out, "2024-02-09") {
		t.Errorf("limit not applied:\n%s", out)
	}

	mustRun(t, "schedule", "rm", "sess_seed001")
	out = mustRun(t, "schedule", "list")
	if strings.Contains(out, "2024-02-05") {
		t.Errorf("cancelled session still listed:\n%s", out)
	}
	assertContains(t, out, "Mobility")
}

func TestClientCannotSchedule(t *testing.T) {
	setupCLI(t, "sqlite")
	loginAs(t, "leo@forma.demo")

	_, err := runCLI(t, "schedule", "add", "usr_client001", "2024-03-01", "07:00")
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	out := mustRun(t, "schedule", "list")
	assertContains(t, out, "2024-02-08")
	if strings.Contains(out, "Sara Lind") {
		t.Errorf("client sees another client's session:\n%s", out)
	}
}

func TestProgressCommands(t *testing.T) {
	setupCLI(t, "sqlite")
	loginAs(t, "leo@forma.demo")

	out := mustRun(t, "progress", "add", "weightKg", "80.5", "--date", "2024-02-10")
	assertContains(t, out, "Logged weight-kg 80.5 kg on 2024-02-10")

	out = mustRun(t, "progress", "list", "--metric", "weight-kg")
	assertContains(t, out, "2024-02-10  weight-kg")
	if strings.Contains(out, "waist-cm") {
		t.Errorf("metric filter not applied:\n%s", out)
	}

	out = mustRun(t, "progress", "add", "waist-cm", "88")
	assertContains(t, out, "on 2024-02-05")

	if _, err := runCLI(t, "progress", "add", "biceps", "30"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("unknown metric: err = %v, want validation error", err)
	}
	if _, err := runCLI(t, "progress", "add", "weight-kg", "heavy"); err == nil {
		t.Error("expected error for non-numeric value")
	}
	if _, err := runCLI(t, "progress", "list", "--user", "usr_client002"); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestProfileCommands(t *testing.T) {
	setupCLI(t, "sqlite")
	loginAs(t, "leo@forma.demo")

	if _, err := runCLI(t, "profile", "set", "--age", "5"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}

	mustRun(t, "profile", "set", "--age", "30", "--goals", "Run a 10k")
	out := mustRun(t, "profile", "show")
	assertContains(t, out, "Leo Park")
	assertContains(t, out, "Age:    30")
	assertContains(t, out, "Goals:  Run a 10k")

	if _, err := runCLI(t, "profile", "show", "usr_client002"); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestPlanCommands(t *testing.T) {
	setupCLI(t, "sqlite")
	loginAs(t, "maya@forma.demo")

	out := mustRun(t, "plan", "add", "usr_client002", "Base building", "--type", "Nutrition", "--details", "More protein")
	assertContains(t, out, `Added nutrition plan "Base building" for Sara Lind`)

	if _, err := runCLI(t, "plan", "add", "usr_client002", "Oops", "--type", "yoga"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("err = %v, want validation error", err)
	}

	mustRun(t, "logout")
	loginAs(t, "sara@forma.demo")
	out = mustRun(t, "plan", "list")
	assertContains(t, out, "[nutrition] Base building")
	assertContains(t, out, "More protein")
}

func TestMessageCommands(t *testing.T) {
	setupCLI(t, "sqlite")
	loginAs(t, "sara@forma.demo")

	assertContains(t, mustRun(t, "message", "peers"), "Maya Torres")

	out := mustRun(t, "message", "send", "usr_trainer01", "Running", "late")
	assertContains(t, out, "Sent to Maya Torres")

	out = mustRun(t, "message", "thread", "usr_trainer01")
	assertContains(t, out, "You: Running late")

	if _, err := runCLI(t, "message", "send", "usr_nobody", "hi"); err == nil {
		t.Error("expected error for unknown recipient")
	}
}

func TestJournalCommands(t *testing.T) {
	setupCLI(t, "sqlite")
	loginAs(t, "sara@forma.demo")

	mustRun(t, "journal", "add", "workout", "Easy run", "--details", "5k")
	out := mustRun(t, "journal", "list", "workout")
	assertContains(t, out, "Easy run")

	if _, err := runCLI(t, "journal", "add", "sleep", "Nap"); err == nil {
		t.Error("expected error for unknown journal")
	}
}

func TestDashboard(t *testing.T) {
	setupCLI(t, "sqlite")

	loginAs(t, "maya@forma.demo")
	out := mustRun(t, "dashboard")
	assertContains(t, out, "Clients: 2")
	assertContains(t, out, "Today:   1 session(s)")
	assertContains(t, out, "Leo Park")

	mustRun(t, "logout")
	loginAs(t, "leo@forma.demo")
	out = mustRun(t, "dashboard")
	assertContains(t, out, "Next session: 2024-02-05 07:00")
}

func TestUsersCommand(t *testing.T) {
	setupCLI(t, "sqlite")
	loginAs(t, "maya@forma.demo")

	out := mustRun(t, "users", "sara")
	assertContains(t, out, "sara@forma.demo")
	if strings.Contains(out, "Leo Park") {
		t.Errorf("query not applied:\n%s", out)
	}
}

func TestSeedCommand(t *testing.T) {
	setupCLI(t, "flat")

	out := mustRun(t, "seed")
	assertContains(t, out, "Seeded 26 records")
	assertContains(t, out, "users:")

	assertContains(t, mustRun(t, "seed"), "Already seeded")
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := setupCLI(t, "sqlite")
	loginAs(t, "maya@forma.demo")

	backup := filepath.Join(dir, "backup.json")
	out := mustRun(t, "export", "json", "-o", backup)
	assertContains(t, out, "Exported 26 records")

	info, err := os.Stat(backup)
	if err != nil {
		t.Fatalf("backup not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("backup mode = %v, want 0600", info.Mode().Perm())
	}

	assertContains(t, mustRun(t, "export", "markdown"), "## users (3)")

	other := t.TempDir()
	useDataDir(t, other, "sqlite")
	t.Setenv("FORMA_SEED_DISABLED", "true")

	mustRun(t, "register", "coach@example.com", "--name", "Coach", "--role", "trainer", "--password", "secret1")
	out = mustRun(t, "import", backup)
	assertContains(t, out, "Imported 26 records")

	out = mustRun(t, "users")
	assertContains(t, out, "Leo Park")
	assertContains(t, out, "Sara Lind")

	mustRun(t, "logout")
	loginAs(t, "leo@forma.demo")
	if _, err := runCLI(t, "export", "json"); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("client export: err = %v, want ErrForbidden", err)
	}
}

func TestImportRejectsBadFile(t *testing.T) {
	dir := setupCLI(t, "sqlite")
	loginAs(t, "maya@forma.demo")

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"version": 99, "data": {}}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "import", bad); err == nil {
		t.Error("expected error for unsupported version")
	}
	if _, err := runCLI(t, "import", filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMigrateFlatToSQLite(t *testing.T) {
	dir := setupCLI(t, "flat")
	mustRun(t, "seed")

	out := mustRun(t, "migrate", "--from", "flat", "--to", "sqlite", "--dry-run")
	assertContains(t, out, "Would copy from flat to sqlite")
	if _, err := os.Stat(filepath.Join(dir, "data", "forma.db")); !os.IsNotExist(err) {
		t.Errorf("dry run created the destination: %v", err)
	}

	out = mustRun(t, "migrate", "--from", "flat", "--to", "sqlite")
	assertContains(t, out, "Migrated 26 records from flat to sqlite")

	t.Setenv("FORMA_BACKEND", "sqlite")
	assertContains(t, mustRun(t, "seed"), "Already seeded")
	loginAs(t, "leo@forma.demo")
	assertContains(t, mustRun(t, "schedule", "list"), "2024-02-08")
}

func TestMigrateRefusesUsedDestination(t *testing.T) {
	for _, to := range []string{"sqlite", "badger"} {
		t.Run(to, func(t *testing.T) {
			setupCLI(t, "flat")
			mustRun(t, "seed")
			mustRun(t, "migrate", "--from", "flat", "--to", to)

			out, err := runCLI(t, "migrate", "--from", "flat", "--to", to)
			if err == nil {
				t.Fatalf("second migrate into %s succeeded:\n%s", to, out)
			}
			assertContains(t, err.Error(), "--force")

			out = mustRun(t, "migrate", "--from", "flat", "--to", to, "--force")
			assertContains(t, out, "Migrated 26 records from flat to "+to)
		})
	}
}

func TestMigrateValidatesBackends(t *testing.T) {
	setupCLI(t, "flat")

	tests := [][]string{
		{"migrate", "--to", "sqlite"},
		{"migrate", "--from", "flat", "--to", "flat"},
		{"migrate", "--from", "flat", "--to", "postgres"},
	}
	for _, args := range tests {
		if _, err := runCLI(t, args...); err == nil {
			t.Errorf("forma %s: expected error", strings.Join(args, " "))
		}
	}
}

func TestSyncStatusWithoutCharm(t *testing.T) {
	setupCLI(t, "sqlite")

	out := mustRun(t, "sync", "status")
	assertContains(t, out, "Sync is off (backend: sqlite)")

	if _, err := runCLI(t, "sync", "now"); err == nil {
		t.Error("expected error syncing without the charm backend")
	}
}
