package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"fleetpilot/internal/app/audit"
	"fleetpilot/internal/domain/fleet"
)

func sampleAudit() audit.Response {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	recs := []fleet.AuditRecord{
		{LogID: "log-2", Timestamp: now, OperatorEmail: "ops@example.com", Action: "terminate_instance", Status: fleet.StatusPending, Reason: "awaiting_confirmation"},
		{LogID: "log-1", Timestamp: now.Add(-time.Minute), OperatorEmail: "ops@example.com", Action: "stop_instance", Status: fleet.StatusSuccess},
	}
	return audit.Response{Records: recs, Count: len(recs)}
}

func TestRenderAudit_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := renderAudit(&buf, sampleAudit(), false); err != nil {
		t.Fatalf("renderAudit error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"OPERATOR", "terminate_instance", "awaiting_confirmation", "log-1", "2026-03-10T09:00:00Z"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table:\n%s", want, out)
		}
	}
}

func TestRenderAudit_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := renderAudit(&buf, sampleAudit(), true); err != nil {
		t.Fatalf("renderAudit error: %v", err)
	}
	var got audit.Response
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Count != 2 || got.Records[0].LogID != "log-2" {
		t.Fatalf("unexpected json output: %+v", got)
	}
}

func TestRenderActions(t *testing.T) {
	actions := fleet.DefaultRegistry().Actions()

	var table bytes.Buffer
	if err := renderActions(&table, actions, false); err != nil {
		t.Fatalf("renderActions error: %v", err)
	}
	if !strings.Contains(table.String(), "terminate_instance") || !strings.Contains(table.String(), "instance_id*") {
		t.Fatalf("unexpected table:\n%s", table.String())
	}

	var js bytes.Buffer
	if err := renderActions(&js, actions, true); err != nil {
		t.Fatalf("renderActions error: %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(js.Bytes(), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != len(actions) {
		t.Fatalf("row count mismatch: got=%d want=%d", len(rows), len(actions))
	}
}

func TestAuditCommand_AgainstSQLite(t *testing.T) {
	dsn := "sqlite:" + t.TempDir() + "/fleet.db"
	rootCmd.SetArgs([]string{"--db-dsn", dsn, "--json", "audit", "recent"})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})
	addPersistentFlags()
	registerCommands()
	initConfig()

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	var got audit.Response
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", out.String(), err)
	}
	if got.Count != 0 {
		t.Fatalf("expected empty ledger, got %+v", got)
	}
}
