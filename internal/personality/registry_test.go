package personality

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func writePersona(t *testing.T, dir, name string, platforms ...string) {
	t.Helper()
	ps := "{"
	for i, p := range platforms {
		if i > 0 {
			ps += ","
		}
		ps += `"` + p + `": {"interaction_style": "direct"}`
	}
	ps += "}"
	body := `{"name": "` + name + `", "bio": ["test persona"], "style": {"post": ["concise"], "chat": ["warm"]}, "platform_settings": ` + ps + `}`
	if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write persona %s: %v", name, err)
	}
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writePersona(t, dir, "alpha", "reddit")
	writePersona(t, dir, "beta", "reddit", "twitter")

	r, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	names := r.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestLoadFallsBackToEmbeddedDefaults(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "missing"), nil)
	if err != nil {
		t.Fatalf("load with missing dir: %v", err)
	}
	if len(r.Names()) == 0 {
		t.Fatalf("expected embedded defaults")
	}
	if r.Get("crypto_researcher") == nil {
		t.Fatalf("expected crypto_researcher default")
	}
}

func TestLoadSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	writePersona(t, dir, "good", "reddit")
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatalf("write bad file: %v", err)
	}

	r, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(r.Names()) != 1 || r.Names()[0] != "good" {
		t.Fatalf("expected only the parsable persona, got %v", r.Names())
	}
}

func TestRandomEligibleRespectsPlatform(t *testing.T) {
	dir := t.TempDir()
	writePersona(t, dir, "reddit_only", "reddit")
	r, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if p := r.RandomEligible("reddit"); p == nil || p.Name != "reddit_only" {
		t.Fatalf("expected reddit_only, got %v", p)
	}
	if p := r.RandomEligible("twitter"); p != nil {
		t.Fatalf("expected nil for unsupported platform, got %s", p.Name)
	}
}

func TestContrastingExcludesCurrent(t *testing.T) {
	dir := t.TempDir()
	writePersona(t, dir, "first", "reddit")
	writePersona(t, dir, "second", "reddit")
	r, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r.SetRandSource(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		p := r.Contrasting("first", "reddit")
		if p == nil || p.Name == "first" {
			t.Fatalf("contrasting returned the current persona")
		}
	}
}

func TestContrastingFallsBackToCurrent(t *testing.T) {
	dir := t.TempDir()
	writePersona(t, dir, "only", "reddit")
	r, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	p := r.Contrasting("only", "reddit")
	if p == nil || p.Name != "only" {
		t.Fatalf("expected fallback to the sole persona, got %v", p)
	}
}

func TestForThreadIsSticky(t *testing.T) {
	dir := t.TempDir()
	writePersona(t, dir, "one", "reddit")
	writePersona(t, dir, "two", "reddit")
	writePersona(t, dir, "three", "reddit")
	r, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r.SetRandSource(rand.NewSource(9))

	first := r.ForThread("t3_abc", "reddit")
	if first == nil {
		t.Fatalf("expected a persona")
	}
	for i := 0; i < 20; i++ {
		if got := r.ForThread("t3_abc", "reddit"); got.Name != first.Name {
			t.Fatalf("thread affinity broke: %s vs %s", got.Name, first.Name)
		}
	}

	// A different thread may get a different persona, but must be sticky too.
	other := r.ForThread("t3_xyz", "reddit")
	if got := r.ForThread("t3_xyz", "reddit"); got.Name != other.Name {
		t.Fatalf("second thread affinity broke")
	}
}

func TestShouldInteractProbabilities(t *testing.T) {
	dir := t.TempDir()
	writePersona(t, dir, "p", "reddit")

	always, err := Load(dir, map[string]float64{"reddit": 1.0})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	never, err := Load(dir, map[string]float64{"reddit": 0.0})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	for i := 0; i < 100; i++ {
		if !always.ShouldInteract("reddit") {
			t.Fatalf("probability 1.0 must always interact")
		}
		if never.ShouldInteract("reddit") {
			t.Fatalf("probability 0.0 must never interact")
		}
	}
}

func TestPromptMentionsPlatformStyle(t *testing.T) {
	r, err := Load(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p := r.Get("crypto_researcher")
	if p == nil {
		t.Fatalf("missing default persona")
	}

	prompt := p.Prompt("reddit", false)
	if prompt == "" {
		t.Fatalf("expected a non-empty prompt")
	}
	reply := p.Prompt("reddit", true)
	if reply == prompt {
		t.Fatalf("reply prompt should differ from post prompt")
	}
}
