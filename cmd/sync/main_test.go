package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvOr(t *testing.T) {
	t.Setenv("DEVICEKB_TEST_VAR", "custom")
	if v := envOr("DEVICEKB_TEST_VAR", "default"); v != "custom" {
		t.Errorf("envOr = %q", v)
	}
	if v := envOr("DEVICEKB_UNSET_VAR", "fallback"); v != "fallback" {
		t.Errorf("envOr = %q", v)
	}
}

func TestLoadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.csv")
	csv := "device_name,submission_number,company,panel,product_code,decision_date\n" +
		"Stroke Triage,K251406,Acme Imaging,Radiology,QAS,2025-03-14\n" +
		",,,,,\n" +
		"ECG Monitor,DEN240047,Pulse Health,Cardiovascular,DQK,2024-11-02\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	snap, err := loadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Len() != 2 {
		t.Fatalf("rows = %d, want 2 (blank row skipped)", snap.Len())
	}
	meta, ok := snap.Get("K251406")
	if !ok {
		t.Fatal("K251406 missing")
	}
	if meta.DeviceName != "Stroke Triage" || meta.Panel != "Radiology" {
		t.Errorf("meta = %+v", meta)
	}
}

func TestLoadSnapshot_SkipsInvalidRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.csv")
	csv := "submission_number,device_name\n" +
		"K251406,Stroke Triage\n" +
		"K999999,\n" + // no device name
		",Orphan Device\n" // no submission number
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	snap, err := loadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Len() != 1 {
		t.Fatalf("rows = %d, want 1", snap.Len())
	}
	if _, ok := snap.Get("K999999"); ok {
		t.Error("row without device name accepted")
	}
}

func TestLoadSnapshot_MissingFile(t *testing.T) {
	_, err := loadSnapshot(filepath.Join(t.TempDir(), "absent.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestLoadSnapshot_MissingIDColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.csv")
	os.WriteFile(path, []byte("device_name,company\nfoo,bar\n"), 0o644)

	if _, err := loadSnapshot(path); err == nil {
		t.Fatal("header without submission_number accepted")
	}
}

func TestPromoteSnapshot(t *testing.T) {
	dir := t.TempDir()
	current := filepath.Join(dir, "current.csv")
	prior := filepath.Join(dir, "prior.csv")
	os.WriteFile(current, []byte("submission_number\nK251406\n"), 0o644)
	os.WriteFile(prior, []byte("submission_number\nK090001\n"), 0o644)

	if err := promoteSnapshot(current, prior); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(prior)
	if string(got) != "submission_number\nK251406\n" {
		t.Errorf("prior = %q", got)
	}
	if _, err := os.Stat(current); err != nil {
		t.Error("current snapshot removed by promotion")
	}
}
