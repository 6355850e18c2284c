package frame

import (
	"hash/fnv"
	"testing"

	"github.com/getsentry/stackprof/internal/testutil"
)

func frameType(isApplication bool) string {
	if isApplication {
		return "application"
	}
	return "system"
}

func TestFromGoFunction(t *testing.T) {
	tests := []struct {
		name     string
		function string
		path     string
		line     int
		want     Frame
	}{
		{
			name:     "method with pointer receiver",
			function: "github.com/getsentry/stackprof/internal/session.(*Session).Start",
			path:     "/src/stackprof/internal/session/session.go",
			line:     42,
			want: Frame{
				File:     "session.go",
				Function: "github.com/getsentry/stackprof/internal/session.(*Session).Start",
				InApp:    &[]bool{true}[0],
				Line:     42,
				Package:  "github.com/getsentry/stackprof/internal/session",
				Path:     "/src/stackprof/internal/session/session.go",
			},
		},
		{
			name:     "runtime",
			function: "runtime.gopark",
			path:     "/usr/local/go/src/runtime/proc.go",
			line:     381,
			want: Frame{
				File:     "proc.go",
				Function: "runtime.gopark",
				InApp:    &[]bool{false}[0],
				Line:     381,
				Package:  "runtime",
				Path:     "/usr/local/go/src/runtime/proc.go",
			},
		},
		{
			name:     "closure in main",
			function: "main.main.func1",
			path:     "/src/app/main.go",
			line:     7,
			want: Frame{
				File:     "main.go",
				Function: "main.main.func1",
				InApp:    &[]bool{true}[0],
				Line:     7,
				Package:  "main",
				Path:     "/src/app/main.go",
			},
		},
		{
			name:     "standard library with slash",
			function: "net/http.(*conn).serve",
			path:     "/usr/local/go/src/net/http/server.go",
			line:     0,
			want: Frame{
				File:     "server.go",
				Function: "net/http.(*conn).serve",
				InApp:    &[]bool{false}[0],
				Package:  "net/http",
				Path:     "/usr/local/go/src/net/http/server.go",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromGoFunction(tt.function, tt.path, tt.line)
			if diff := testutil.Diff(got, tt.want); diff != "" {
				t.Fatalf("Result mismatch: got - want +\n%s", diff)
			}
			if got.IsGoApplicationFrame() != *tt.want.InApp {
				t.Fatalf(
					"expected %s frame but got %s frame",
					frameType(*tt.want.InApp),
					frameType(got.IsGoApplicationFrame()),
				)
			}
		})
	}
}

func TestIDDependsOnLine(t *testing.T) {
	a := Frame{File: "a.go", Function: "main.f", Line: 1}
	b := Frame{File: "a.go", Function: "main.f", Line: 2}
	if a.ID() == b.ID() {
		t.Fatal("frames on different lines should have different IDs")
	}
	if a.ID() != (Frame{File: "a.go", Function: "main.f", Line: 1}).ID() {
		t.Fatal("ID should be stable")
	}
}

func TestWriteToHash(t *testing.T) {
	sum := func(frames ...Frame) uint64 {
		h := fnv.New64a()
		for _, f := range frames {
			f.WriteToHash(h)
		}
		return h.Sum64()
	}
	a := Frame{Path: "/app/a.go", Function: "main.f", Line: 1}

	tests := []struct {
		name  string
		other []Frame
		equal bool
	}{
		{name: "same frame", other: []Frame{{Path: "/app/a.go", Function: "main.f", Line: 1}}, equal: true},
		{name: "other line", other: []Frame{{Path: "/app/a.go", Function: "main.f", Line: 2}}},
		{name: "other function", other: []Frame{{Path: "/app/a.go", Function: "main.g", Line: 1}}},
		{name: "other path", other: []Frame{{Path: "/app/b.go", Function: "main.f", Line: 1}}},
		{name: "split across frames", other: []Frame{{Path: "/app/a.go"}, {Function: "main.f", Line: 1}}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := sum(a) == sum(test.other...); got != test.equal {
				t.Fatalf("expected equal hashes to be %v", test.equal)
			}
		})
	}
}
