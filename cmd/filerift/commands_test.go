package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/filerift/internal/config"
	"github.com/JonMunkholm/filerift/internal/metrics"
	"github.com/JonMunkholm/filerift/internal/pgload"
)

type fakeCopier struct {
	columns []string
	rows    [][]any
}

func (f *fakeCopier) CopyFrom(_ context.Context, _ pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	f.columns = columns
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return int64(len(f.rows)), err
		}
		f.rows = append(f.rows, values)
	}
	return int64(len(f.rows)), src.Err()
}

func testApp(t *testing.T) (*app, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	reg := prometheus.NewRegistry()
	a := &app{
		cfg: &config.Config{
			Reader: config.ReaderConfig{Quote: '"', HasHeader: true, SampleSize: 20},
		},
		out:      &out,
		errOut:   &errOut,
		metrics:  metrics.New(reg),
		gatherer: reg,
	}
	return a, &out, &errOut
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no args", nil, exitUsage},
		{"unknown", []string{"frobnicate"}, exitUsage},
		{"detect without file", []string{"detect"}, exitUsage},
		{"bad flag", []string{"preview", "-bogus", "x.csv"}, exitUsage},
		{"load without table", []string{"load", "x.csv"}, exitUsage},
		{"help", []string{"help"}, exitOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, _ := testApp(t)
			if got := a.run(context.Background(), tt.args); got != tt.want {
				t.Errorf("run(%q) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"pipe", "a|b\n1|2\n", "delimiter='|' quote=none"},
		{"quoted comma", "a,b\n\"x,y\",2\n", `delimiter=',' quote='"'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, out, errOut := testApp(t)
			path := writeFile(t, "in.txt", tt.content)

			if code := a.run(context.Background(), []string{"detect", path}); code != exitOK {
				t.Fatalf("exit = %d, stderr = %s", code, errOut)
			}
			if got := strings.TrimSpace(out.String()); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetect_Undetermined(t *testing.T) {
	a, _, errOut := testApp(t)
	path := writeFile(t, "in.txt", "a,b;c\n1,2\n3;4\n")

	if code := a.run(context.Background(), []string{"detect", path}); code != exitError {
		t.Fatalf("exit = %d, want %d", code, exitError)
	}
	if !strings.Contains(errOut.String(), "unable to determine delimiter") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestPreview(t *testing.T) {
	path := writeFile(t, "people.csv", "id,name\n1,Ann\n2,\n3,Cy\n")

	t.Run("limit", func(t *testing.T) {
		a, out, errOut := testApp(t)
		if code := a.run(context.Background(), []string{"preview", "-n", "2", "-blank-null", path}); code != exitOK {
			t.Fatalf("exit = %d, stderr = %s", code, errOut)
		}

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("got %d lines, want header + 2 rows:\n%s", len(lines), out)
		}
		if !strings.HasPrefix(lines[0], "id") || !strings.Contains(lines[1], "Ann") || !strings.Contains(lines[2], "NULL") {
			t.Errorf("output:\n%s", out)
		}
	})

	t.Run("fixed width", func(t *testing.T) {
		a, out, errOut := testApp(t)
		fixed := writeFile(t, "people.dat", "01Ann  \n02Bob  \n")
		args := []string{"preview", "-widths", "2,5", "-header=false", "-trim", fixed}
		if code := a.run(context.Background(), args); code != exitOK {
			t.Fatalf("exit = %d, stderr = %s", code, errOut)
		}
		if !strings.Contains(out.String(), "02  Bob") {
			t.Errorf("output:\n%s", out)
		}
	})

	t.Run("bad widths", func(t *testing.T) {
		a, _, _ := testApp(t)
		if code := a.run(context.Background(), []string{"preview", "-widths", "2,0", path}); code != exitError {
			t.Errorf("exit = %d, want %d", code, exitError)
		}
	})
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "people.csv", "id,name\n1,Ann\n2,Bob\n")
	db := &fakeCopier{}

	a, out, errOut := testApp(t)
	a.cfg.Database.URL = "postgres://localhost/test"
	a.connect = func(context.Context, config.DatabaseConfig) (pgload.Copier, func(), error) {
		return db, func() {}, nil
	}

	args := []string{"load", "-table", "people", "-columns", "id:int,name", path}
	if code := a.run(context.Background(), args); code != exitOK {
		t.Fatalf("exit = %d, stderr = %s", code, errOut)
	}
	if len(db.rows) != 2 || db.rows[1][0] != 2 || db.rows[1][1] != "Bob" {
		t.Errorf("rows = %v", db.rows)
	}
	if !strings.Contains(out.String(), "loaded 2 rows into people") {
		t.Errorf("output = %q", out)
	}
}

func TestLoad_RowError(t *testing.T) {
	path := writeFile(t, "people.csv", "id,name\n1,Ann\nx,Bob\n")

	a, _, errOut := testApp(t)
	a.cfg.Database.URL = "postgres://localhost/test"
	a.connect = func(context.Context, config.DatabaseConfig) (pgload.Copier, func(), error) {
		return &fakeCopier{}, func() {}, nil
	}

	args := []string{"load", "-table", "people", "-columns", "id:int,name", path}
	if code := a.run(context.Background(), args); code != exitError {
		t.Fatalf("exit = %d, want %d", code, exitError)
	}
	if !strings.Contains(errOut.String(), "row 2, column id") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	a, _, errOut := testApp(t)
	path := writeFile(t, "people.csv", "id\n1\n")

	args := []string{"load", "-table", "people", "-columns", "id:int", path}
	if code := a.run(context.Background(), args); code != exitError {
		t.Fatalf("exit = %d, want %d", code, exitError)
	}
	if !strings.Contains(errOut.String(), "DATABASE_URL") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestSplitAddr(t *testing.T) {
	tests := []struct {
		addr     string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"127.0.0.1:9000", "127.0.0.1", 9000, false},
		{":8080", "", 8080, false},
		{"[::1]:443", "::1", 443, false},
		{"localhost", "", 0, true},
		{"localhost:0", "", 0, true},
	}

	for _, tt := range tests {
		host, port, err := splitAddr(tt.addr)
		if (err != nil) != tt.wantErr {
			t.Errorf("splitAddr(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (host != tt.wantHost || port != tt.wantPort) {
			t.Errorf("splitAddr(%q) = %q, %d", tt.addr, host, port)
		}
	}
}
