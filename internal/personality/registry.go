package personality

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultReplyProbability applies when a platform has no configured value.
const DefaultReplyProbability = 0.7

// Registry holds all loaded personas plus the in-memory thread affinity map.
// The persona set is read-only after Load; the affinity map is guarded and
// deliberately not persisted (new threads are simply reassigned on restart).
type Registry struct {
	personalities map[string]*Personality
	replyProb     map[string]float64

	mu      sync.Mutex
	threads map[string]string
	rng     *rand.Rand
}

// Load reads every *.json persona file in dir. When dir is missing or holds
// no personas, the embedded defaults are used. Zero loadable personas is an
// error: the process cannot run without at least one.
func Load(dir string, replyProb map[string]float64) (*Registry, error) {
	r := &Registry{
		personalities: make(map[string]*Personality),
		replyProb:     replyProb,
		threads:       make(map[string]string),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				slog.Warn("skipping unreadable personality file", "path", path, "error", err)
				continue
			}
			var p Personality
			if err := json.Unmarshal(data, &p); err != nil {
				slog.Warn("skipping malformed personality file", "path", path, "error", err)
				continue
			}
			if p.Name == "" {
				slog.Warn("skipping personality with empty name", "path", path)
				continue
			}
			r.personalities[p.Name] = &p
		}
	}

	if len(r.personalities) == 0 {
		defaults, derr := embeddedDefaults()
		if derr != nil {
			return nil, derr
		}
		for _, p := range defaults {
			r.personalities[p.Name] = p
		}
		slog.Info("no personality files found, using embedded defaults", "dir", dir, "count", len(r.personalities))
	}

	if len(r.personalities) == 0 {
		return nil, fmt.Errorf("no personalities loaded from %s", dir)
	}
	slog.Info("personalities loaded", "count", len(r.personalities), "names", r.Names())
	return r, nil
}

// Names returns all persona names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.personalities))
	for name := range r.personalities {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Get returns a persona by name, or nil.
func (r *Registry) Get(name string) *Personality {
	return r.personalities[name]
}

// RandomEligible returns a uniform-random persona that supports the platform,
// or nil when none does. A nil result means "skip this cycle", not an error.
func (r *Registry) RandomEligible(platform string) *Personality {
	eligible := r.eligible(platform, "")
	if len(eligible) == 0 {
		return nil
	}
	r.mu.Lock()
	idx := r.rng.Intn(len(eligible))
	r.mu.Unlock()
	return eligible[idx]
}

// Contrasting returns a uniform-random eligible persona other than current.
// When current is the only eligible persona, it is returned itself.
func (r *Registry) Contrasting(current, platform string) *Personality {
	eligible := r.eligible(platform, current)
	if len(eligible) == 0 {
		if p := r.personalities[current]; p != nil {
			return p
		}
		return r.RandomEligible(platform)
	}
	r.mu.Lock()
	idx := r.rng.Intn(len(eligible))
	r.mu.Unlock()
	return eligible[idx]
}

// ForThread returns the persona sticky-assigned to a conversation thread,
// reassigning when the current one no longer supports the platform.
func (r *Registry) ForThread(threadID, platform string) *Personality {
	r.mu.Lock()
	if name, ok := r.threads[threadID]; ok {
		if p := r.personalities[name]; p != nil && p.SupportsPlatform(platform) {
			r.mu.Unlock()
			return p
		}
	}
	r.mu.Unlock()

	p := r.RandomEligible(platform)
	if p != nil {
		r.mu.Lock()
		r.threads[threadID] = p.Name
		r.mu.Unlock()
	}
	return p
}

// ShouldInteract draws whether a follow-up comment should be added on the
// platform, independent of rate limiting.
func (r *Registry) ShouldInteract(platform string) bool {
	prob, ok := r.replyProb[platform]
	if !ok {
		prob = DefaultReplyProbability
	}
	r.mu.Lock()
	v := r.rng.Float64()
	r.mu.Unlock()
	return v < prob
}

// SetRandSource replaces the random source. Test hook.
func (r *Registry) SetRandSource(src rand.Source) {
	r.mu.Lock()
	r.rng = rand.New(src)
	r.mu.Unlock()
}

func (r *Registry) eligible(platform, exclude string) []*Personality {
	names := r.Names()
	out := make([]*Personality, 0, len(names))
	for _, name := range names {
		if name == exclude {
			continue
		}
		p := r.personalities[name]
		if p.SupportsPlatform(platform) {
			out = append(out, p)
		}
	}
	return out
}
