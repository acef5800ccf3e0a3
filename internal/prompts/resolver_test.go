package prompts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestResolver() *Resolver {
	r := NewResolver(nil)
	r.Register(EmbeddedPrompt{Key: "phases.test.system", Text: "You chart things."})
	r.Register(EmbeddedPrompt{Key: "phases.test.user", Text: "Research: {{.Research}}"})
	return r
}

func TestExtractVariables(t *testing.T) {
	got := ExtractVariables("{{.Research}} then {{ .Chunk.Index }} and {{.Research}} again")
	want := []string{"Chunk.Index", "Research"}
	if len(got) != len(want) {
		t.Fatalf("ExtractVariables() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("var[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolver_Resolve(t *testing.T) {
	r := newTestResolver()

	p, err := r.Resolve("phases.test.user")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.IsOverride {
		t.Error("embedded prompt reported as override")
	}
	if p.Hash != HashText("Research: {{.Research}}") {
		t.Errorf("Hash = %s", p.Hash)
	}
	if len(p.Variables) != 1 || p.Variables[0] != "Research" {
		t.Errorf("Variables = %v", p.Variables)
	}

	if _, err := r.Resolve("phases.missing.user"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(missing) error = %v, want ErrNotFound", err)
	}
}

func TestResolver_Render(t *testing.T) {
	r := newTestResolver()

	got, err := r.Render("phases.test.user", struct{ Research string }{"notes"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "Research: notes" {
		t.Errorf("Render() = %q", got)
	}

	if _, err := r.Render("phases.test.user", map[string]string{}); err == nil {
		t.Error("Render() with missing variable should fail")
	}
}

func TestResolver_Overrides(t *testing.T) {
	r := newTestResolver()
	before := r.Fingerprint()

	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "phases.test.system.tmpl"), []byte("You chart carefully."), 0o644)
	os.WriteFile(filepath.Join(dir, "phases.unknown.tmpl"), []byte("ignored"), 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)

	n, err := r.LoadOverrides(dir)
	if err != nil {
		t.Fatalf("LoadOverrides() error = %v", err)
	}
	if n != 1 {
		t.Errorf("LoadOverrides() = %d, want 1", n)
	}

	p, _ := r.Resolve("phases.test.system")
	if !p.IsOverride || p.Text != "You chart carefully." {
		t.Errorf("override not applied: %+v", p)
	}
	if r.Fingerprint() == before {
		t.Error("Fingerprint unchanged after override")
	}

	t.Run("missing dir clears overrides", func(t *testing.T) {
		if _, err := r.LoadOverrides(filepath.Join(dir, "nope")); err != nil {
			t.Fatalf("LoadOverrides() error = %v", err)
		}
		p, _ := r.Resolve("phases.test.system")
		if p.IsOverride {
			t.Error("override survived reload")
		}
		if r.Fingerprint() != before {
			t.Error("Fingerprint did not return to the embedded value")
		}
	})
}

func TestResolver_AllSorted(t *testing.T) {
	r := newTestResolver()
	all := r.All()
	if len(all) != 2 || all[0].Key != "phases.test.system" || all[1].Key != "phases.test.user" {
		t.Errorf("All() = %+v", all)
	}
}
