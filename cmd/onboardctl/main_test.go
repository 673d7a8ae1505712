package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ad/go-telegram-onboarding/internal/db"
	"github.com/ad/go-telegram-onboarding/internal/models"
)

func seedStore(t *testing.T) string {
	t.Helper()
	path := t.TempDir() + "/onboarding.db"
	ctx := context.Background()

	store, closeStore, err := db.Open(ctx, db.OpenOptions{Driver: db.DriverSQLite, SQLitePath: path})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer closeStore()

	for _, id := range []int64{1, 2} {
		if _, err := store.Create(ctx, id, "User", "user"); err != nil {
			t.Fatal(err)
		}
	}
	changes := []models.StepChange{
		{Step: 1, Completed: true},
		{Step: 2, Completed: true, Platform: models.PlatformTwitter, Handle: "john_crypto"},
	}
	for _, change := range changes {
		if err := store.ApplyStep(ctx, 1, change); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "sqlite")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStatsCommand(t *testing.T) {
	path := seedStore(t)

	out, err := run(t, "--db", path, "stats")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if !strings.Contains(out, "Total users: 2") || !strings.Contains(out, "Completed: 0") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestShowCommand_JSON(t *testing.T) {
	path := seedStore(t)

	out, err := run(t, "--db", path, "--json", "show", "1")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	var progress models.UserProgress
	if err := json.Unmarshal([]byte(out), &progress); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if progress.CurrentStep != 3 || progress.SocialHandle(models.PlatformTwitter) != "john_crypto" {
		t.Errorf("unexpected progress: %+v", progress)
	}
}

func TestShowCommand_Text(t *testing.T) {
	path := seedStore(t)

	out, err := run(t, "--db", path, "show", "1")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out, "Current step: 3/6 (Instagram Follow)") {
		t.Errorf("unexpected report: %s", out)
	}
}

func TestResetCommand(t *testing.T) {
	path := seedStore(t)

	if _, err := run(t, "--db", path, "reset", "1"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	out, err := run(t, "--db", path, "--json", "show", "1")
	if err != nil {
		t.Fatal(err)
	}
	var progress models.UserProgress
	if err := json.Unmarshal([]byte(out), &progress); err != nil {
		t.Fatal(err)
	}
	if progress.CurrentStep != 1 || len(progress.SocialHandles) != 0 {
		t.Errorf("reset did not clear progress: %+v", progress)
	}
}

func TestCommandErrors(t *testing.T) {
	path := seedStore(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing user", []string{"--db", path, "show", "404"}, "has not started onboarding"},
		{"reset missing user", []string{"--db", path, "reset", "404"}, "has not started onboarding"},
		{"bad id", []string{"--db", path, "show", "abc"}, "invalid user id"},
		{"no args", []string{"--db", path, "reset"}, "accepts 1 arg"},
		{"unknown driver", []string{"--driver", "cassandra", "stats"}, "unknown STORE_DRIVER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
