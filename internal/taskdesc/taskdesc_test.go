package taskdesc

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInitCreatesJobDirAndRoundTrips(t *testing.T) {
	base := t.TempDir()
	q := Query{Product: "ls5_nbar_albers", Time: YearRange(2010)}
	desc, descPath, err := Init(base, "stacking", "abc123", q, PBSParams{Project: "u46", Queue: "normal"}, "config.yaml")
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if _, err := os.Stat(desc.LogDir()); err != nil {
		t.Fatalf("logs dir missing: %v", err)
	}
	if !filepath.IsAbs(desc.AppConfigPath) {
		t.Fatalf("config path not resolved absolute: %s", desc.AppConfigPath)
	}
	loaded, err := Load(descPath)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.JobType != "stacking" || loaded.Tag != "abc123" {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	if loaded.Query.Product != "ls5_nbar_albers" {
		t.Fatalf("query product lost: %+v", loaded.Query)
	}
	if !loaded.Query.Time.Start.Equal(q.Time.Start) {
		t.Fatalf("time range start mismatch: %v vs %v", loaded.Query.Time.Start, q.Time.Start)
	}
	if loaded.TaskFilePath != filepath.Join(desc.JobDir, "tasks.yaml") {
		t.Fatalf("unexpected task file path: %s", loaded.TaskFilePath)
	}
}

func TestLoadMissingDescription(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing description")
	}
}

func TestYearRange(t *testing.T) {
	r := YearRange(2015)
	if !r.Contains(time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("mid-year timestamp should be inside the range")
	}
	if r.Contains(time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("end of range should be exclusive")
	}
	if r.Contains(time.Date(2014, 12, 31, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("previous year should be outside the range")
	}
}

func TestZeroRangeContainsEverything(t *testing.T) {
	var r TimeRange
	if !r.Contains(time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("zero range should contain any timestamp")
	}
}

func TestLoadAppConfigDefaultsAndResolution(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "stack.yaml")
	doc := []byte("source_product: ls5_nbar_albers\nindex_path: datacube.db\noutput_dir: output\n")
	if err := os.WriteFile(cfgPath, doc, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadAppConfig(cfgPath)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.IndexPath != filepath.Join(dir, "datacube.db") {
		t.Fatalf("index path not resolved against config dir: %s", cfg.IndexPath)
	}
	if cfg.OutputDir != filepath.Join(dir, "output") {
		t.Fatalf("output dir not resolved: %s", cfg.OutputDir)
	}
	if cfg.JobsDir != filepath.Join(dir, "runs") {
		t.Fatalf("jobs dir default not resolved: %s", cfg.JobsDir)
	}
	if cfg.FilenameTemplate == "" || len(cfg.StackerCommand) == 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadAppConfigRejectsMissingFields(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(cfgPath, []byte("output_dir: out\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadAppConfig(cfgPath); err == nil {
		t.Fatalf("expected validation error for missing source_product")
	}
}
