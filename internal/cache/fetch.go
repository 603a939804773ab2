package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CachedFetch returns the value cached under key, or calls fetch and caches
// its result for ttl. Errors are never cached.
func CachedFetch[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	if cached, ok := c.Get(key); ok {
		if value, ok := cached.(T); ok {
			return value, nil
		}
	}

	value, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.Put(key, value, ttl)
	return value, nil
}

// Timing is the duration of the last call of a named operation.
type Timing struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Failed   bool          `json:"failed"`
}

// Seconds is the duration in seconds.
func (t Timing) Seconds() float64 {
	return t.Duration.Seconds()
}

// Recorder keeps the last timing per operation name.
type Recorder struct {
	mu      sync.Mutex
	timings map[string]Timing
	now     func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{timings: map[string]Timing{}, now: time.Now}
}

// Record stores a timing, replacing the previous one with the same name.
func (r *Recorder) Record(timing Timing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timings[timing.Name] = timing
}

// Timings returns the recorded timings ordered by name.
func (r *Recorder) Timings() []Timing {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Timing, 0, len(r.timings))
	for _, timing := range r.timings {
		result = append(result, timing)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Reset forgets every timing.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timings = map[string]Timing{}
}

// TimedFetch calls fetch and records how long it took under name.
func TimedFetch[T any](ctx context.Context, r *Recorder, name string, fetch func(context.Context) (T, error)) (T, error) {
	started := r.now()
	value, err := fetch(ctx)

	r.Record(Timing{
		ID:       uuid.NewString(),
		Name:     name,
		Started:  started,
		Duration: r.now().Sub(started),
		Failed:   err != nil,
	})
	return value, err
}
