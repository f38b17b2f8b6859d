package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternMatcher(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		path    string
		want    bool
	}{
		{name: "default include root", include: DefaultInclude, path: "index.html", want: true},
		{name: "default include nested", include: DefaultInclude, path: "cards/2024/a.htm", want: true},
		{name: "default include skips other files", include: DefaultInclude, path: "style.css", want: false},
		{name: "single star stays in directory", include: []string{"*.html"}, path: "cards/a.html", want: false},
		{name: "single star root", include: []string{"*.html"}, path: "a.html", want: true},
		{name: "exclude wins", include: DefaultInclude, exclude: []string{"drafts/**"}, path: "drafts/a.html", want: false},
		{name: "no include selects all", exclude: []string{"*.css"}, path: "x/y.txt", want: true},
		{name: "clean path", include: []string{"cards/*.html"}, path: "cards/./a.html", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewPatternMatcher(tt.include, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Match(tt.path))
		})
	}
}

func TestNewPatternMatcher_Invalid(t *testing.T) {
	_, err := NewPatternMatcher([]string{"[a-"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid include pattern")

	_, err = NewPatternMatcher(nil, []string{"{a,"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid exclude pattern")
}

func writeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("<p>"+f+"</p>"), 0644))
	}
	return root
}

func TestCollect(t *testing.T) {
	root := writeTree(t,
		"b.html",
		"a.html",
		"cards/one.html",
		"cards/notes.txt",
		"drafts/wip.html",
		".cache/hidden.html",
	)
	m, err := NewPatternMatcher(DefaultInclude, []string{"drafts/**"})
	require.NoError(t, err)

	jobs, err := Collect(root, m)
	require.NoError(t, err)

	var rels []string
	for _, j := range jobs {
		rels = append(rels, j.Rel)
		assert.FileExists(t, j.Path)
	}
	assert.Equal(t, []string{"a.html", "b.html", "cards/one.html"}, rels)
}

func TestCollect_MissingRoot(t *testing.T) {
	m, err := NewPatternMatcher(DefaultInclude, nil)
	require.NoError(t, err)

	_, err = Collect(filepath.Join(t.TempDir(), "nope"), m)
	assert.Error(t, err)
}

func TestJobOutputPath(t *testing.T) {
	j := Job{Rel: "cards/one.html"}
	assert.Equal(t, filepath.Join("out", "cards", "one.png"), j.OutputPath("out", ".png"))
}

func TestRun_BoundsParallelism(t *testing.T) {
	jobs := make([]Job, 20)
	for i := range jobs {
		jobs[i] = Job{Rel: filepath.ToSlash(filepath.Join("dir", string(rune('a'+i))+".html"))}
	}

	var inFlight, maxInFlight atomic.Int32
	results := Run(context.Background(), jobs, 3, func(ctx context.Context, job Job) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := maxInFlight.Load()
			if n <= old || maxInFlight.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		if job.Rel == "dir/c.html" {
			return "", errors.New("selector not found")
		}
		return job.OutputPath("out", ".jpg"), nil
	})

	require.Len(t, results, len(jobs))
	assert.LessOrEqual(t, maxInFlight.Load(), int32(3))
	assert.Equal(t, 1, Failed(results))
	for i, r := range results {
		assert.Equal(t, jobs[i], r.Job, "results keep job order")
	}
	assert.Equal(t, filepath.Join("out", "dir", "a.jpg"), results[0].Output)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{{Rel: "a.html"}, {Rel: "b.html"}}
	var calls atomic.Int32
	results := Run(ctx, jobs, 1, func(ctx context.Context, job Job) (string, error) {
		calls.Add(1)
		return "", ctx.Err()
	})

	assert.Equal(t, 2, Failed(results))
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}
