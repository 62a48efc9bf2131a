package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAccessGrantMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_access_grants.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no access grant migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS access_grants",
		"ux_access_grants_buyer_purchasable",
		"ON access_grants (buyer_id, purchasable_kind, purchasable_id)",
		"CREATE TABLE IF NOT EXISTS purchase_records",
		"ux_purchase_records_payment_ref",
		"FOREIGN KEY (grant_id) REFERENCES access_grants(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS access_grants",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestEnumMigrationListsAllGrantStates(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_enums.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no enum migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	states := []string{"'pending'", "'granted'", "'cancel_scheduled'", "'cancelled'", "'expired'", "'unpaid'"}
	for _, s := range states {
		if !strings.Contains(content, s) {
			t.Errorf("missing grant state %s", s)
		}
	}
}
