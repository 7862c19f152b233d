package stacking

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/stackctl/internal/index"
	"github.com/example/stackctl/internal/taskdesc"
	_ "modernc.org/sqlite"
)

func seedIndex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datacube.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open seed db: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE datasets (
		id INTEGER PRIMARY KEY,
		product TEXT NOT NULL,
		cell_x INTEGER NOT NULL,
		cell_y INTEGER NOT NULL,
		acquired TEXT NOT NULL
	)`); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	for _, stmt := range []string{
		`INSERT INTO datasets (product, cell_x, cell_y, acquired) VALUES ('ls5_nbar_albers', 15, -40, '2010-03-01T00:12:00Z')`,
		`INSERT INTO datasets (product, cell_x, cell_y, acquired) VALUES ('ls5_nbar_albers', 15, -40, '2010-06-11T00:15:00Z')`,
		`INSERT INTO datasets (product, cell_x, cell_y, acquired) VALUES ('ls5_nbar_albers', 16, -40, '2010-07-02T00:30:00Z')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return path
}

func testConfig(t *testing.T) *taskdesc.AppConfig {
	t.Helper()
	return &taskdesc.AppConfig{
		SourceProduct:    "ls5_nbar_albers",
		OutputDir:        t.TempDir(),
		FilenameTemplate: "{product}_{x}_{y}_{start}.nc",
		StackerCommand:   []string{"datacube-stacker"},
	}
}

func TestGenerateTasks(t *testing.T) {
	ix, err := index.Open(seedIndex(t))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer ix.Close()
	cfg := testConfig(t)
	q := taskdesc.Query{Product: "ls5_nbar_albers", Time: taskdesc.YearRange(2010)}

	tasks, err := GenerateTasks(context.Background(), ix, cfg, q)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2: %+v", len(tasks), tasks)
	}
	if tasks[0].Cell != (index.Cell{X: 15, Y: -40}) || tasks[0].DatasetCount != 2 {
		t.Fatalf("first task unexpected: %+v", tasks[0])
	}
	wantName := filepath.Join(cfg.OutputDir, "ls5_nbar_albers_15_-40_20100101.nc")
	if tasks[0].Filename != wantName {
		t.Fatalf("filename: got %s, want %s", tasks[0].Filename, wantName)
	}
}

func TestGenerateTasksEmptyQuery(t *testing.T) {
	ix, err := index.Open(seedIndex(t))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer ix.Close()
	q := taskdesc.Query{Product: "ls5_nbar_albers", Time: taskdesc.YearRange(1999)}
	tasks, err := GenerateTasks(context.Background(), ix, testConfig(t), q)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks for empty year, got %d", len(tasks))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	tasks := []Task{
		{Product: "p", Cell: index.Cell{X: 1, Y: -2}, DatasetCount: 3, Filename: "/out/a.nc"},
		{Product: "p", Cell: index.Cell{X: 2, Y: -2}, DatasetCount: 1, Filename: "/out/b.nc"},
	}
	n, err := SaveTasks(path, tasks)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if n != 2 {
		t.Fatalf("saved count: got %d", n)
	}
	loaded, err := LoadTasks(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 || loaded[0] != tasks[0] || loaded[1] != tasks[1] {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestSaveTasksEmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	if _, err := SaveTasks(path, nil); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	loaded, err := LoadTasks(path)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty list, got %+v", loaded)
	}
}

func TestCheckExisting(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "have.nc")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	missing := filepath.Join(dir, "need.nc")
	report := CheckExisting([]Task{{Filename: present}, {Filename: missing}})
	if len(report.Present) != 1 || report.Present[0] != present {
		t.Fatalf("present: %v", report.Present)
	}
	if len(report.Missing) != 1 || report.Missing[0] != missing {
		t.Fatalf("missing: %v", report.Missing)
	}
}

func TestCommandIncludesTimeRange(t *testing.T) {
	cfg := testConfig(t)
	q := taskdesc.Query{Product: "p", Time: taskdesc.YearRange(2010)}
	task := Task{Product: "p", Cell: index.Cell{X: 5, Y: -9}, Filename: "/out/p_5_-9.nc"}
	argv := strings.Join(Command(cfg, q, task), " ")
	for _, want := range []string{"datacube-stacker", "--cell 5_-9", "--output /out/p_5_-9.nc", "--time-start 2010-01-01T00:00:00Z"} {
		if !strings.Contains(argv, want) {
			t.Fatalf("command missing %q: %s", want, argv)
		}
	}
}
