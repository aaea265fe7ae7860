package stems

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type countingLoader struct {
	calls atomic.Int32
	table Table
	err   error
}

func (l *countingLoader) Load(lang string) (Table, error) {
	l.calls.Add(1)
	return l.table, l.err
}

func TestParseTable(t *testing.T) {
	content := "run;running,ger;runs,3sg\n\nbe;was,past;\ngo;broken\n"

	table, err := ParseTable(strings.NewReader(content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := map[string]string{
		"running": "run",
		"runs":    "run",
		"was":     "be",
	}
	for inflection, want := range tests {
		if got := table[inflection]; got != want {
			t.Errorf("table[%q] = %q, want %q", inflection, got, want)
		}
	}
	if _, ok := table["broken"]; ok {
		t.Error("field without separator should be skipped")
	}
	if len(table) != 3 {
		t.Errorf("expected 3 entries, got %d: %v", len(table), table)
	}
}

func TestCache_Stem(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"canonical field with inflection", "run,running;run,runs"},
		{"inflections with features", "run;running,ger;runs,3sg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseTable(strings.NewReader(tt.line))
			if err != nil {
				t.Fatal(err)
			}
			for inflection, canonical := range table {
				if strings.Contains(canonical, ",") {
					t.Errorf("canonical form %q for %q contains a comma", canonical, inflection)
				}
			}

			cache := NewCache(&countingLoader{table: table}, nil)
			if got := cache.Stem("running", "en"); got != "run" {
				t.Errorf("Stem(running) = %q, want run", got)
			}
			if got := cache.Stem("runs", "en"); got != "run" {
				t.Errorf("Stem(runs) = %q, want run", got)
			}
			if got := cache.Stem("xyz", "en"); got != "xyz" {
				t.Errorf("Stem(xyz) = %q, want xyz", got)
			}
		})
	}
}

func TestCache_StemSentence(t *testing.T) {
	cache := NewCache(&countingLoader{table: Table{"running": "run", "went": "go"}}, nil)

	got := cache.StemSentence("  I   went running\tfast ", "en")
	if got != "I go run fast" {
		t.Errorf("StemSentence = %q", got)
	}
}

func TestCache_LoadsOncePerLanguage(t *testing.T) {
	loader := &countingLoader{table: Table{"ran": "run"}}
	cache := NewCache(loader, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.Stem("ran", "en")
		}()
	}
	wg.Wait()
	cache.Stem("ran", "en")

	if n := loader.calls.Load(); n != 1 {
		t.Errorf("expected 1 load, got %d", n)
	}

	cache.Stem("ran", "fr")
	if n := loader.calls.Load(); n != 2 {
		t.Errorf("expected 2 loads after a second language, got %d", n)
	}
}

func TestCache_FailedLoadCachesEmptyTable(t *testing.T) {
	loader := &countingLoader{err: errors.New("boom")}
	cache := NewCache(loader, nil)

	if got := cache.Stem("running", "en"); got != "running" {
		t.Errorf("expected unchanged token, got %q", got)
	}
	cache.Stem("running", "en")
	if n := loader.calls.Load(); n != 1 {
		t.Errorf("expected failed load not to be retried, got %d calls", n)
	}
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	enDir := filepath.Join(dir, "en")
	if err := os.MkdirAll(enDir, 0755); err != nil {
		t.Fatal(err)
	}
	resource := filepath.Join(enDir, "top_1000_verbs_conjugated.txt")
	if err := os.WriteFile(resource, []byte("run;running,ger;ran,past\n"), 0644); err != nil {
		t.Fatal(err)
	}

	loader := NewFileLoader(dir, "")
	table, err := loader.Load("en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table["ran"] != "run" {
		t.Errorf("expected ran -> run, got %v", table)
	}

	missing, err := loader.Load("de")
	if err != nil {
		t.Fatalf("unexpected error for missing language: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("expected empty table for missing language, got %v", missing)
	}
}
