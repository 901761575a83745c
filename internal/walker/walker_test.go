package walker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/testutil"
)

var comicExts = []string{".cbr", ".cbz"}

// tree:
//
//	root: a.cbz, F1/, F2/, notes.txt, B.CBR
//	F1:   c.cbr
//	F2:   d.cbz, sub/
//	sub:  e.cbz
func newTree() *testutil.FakeProvider {
	p := testutil.NewFakeProvider()
	p.AddFile("root", "a", "a.cbz", []byte("a"))
	p.AddFolder("root", "f1", "F1")
	p.AddFolder("root", "f2", "F2")
	p.AddFile("root", "n", "notes.txt", []byte("n"))
	p.AddFile("root", "b", "B.CBR", []byte("b"))
	p.AddFile("f1", "c", "c.cbr", []byte("c"))
	p.AddFile("f2", "d", "d.cbz", []byte("d"))
	p.AddFolder("f2", "f3", "sub")
	p.AddFile("f3", "e", "e.cbz", []byte("e"))
	return p
}

func paths(nodes []domain.RemoteNode) string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.Path)
	}
	return strings.Join(out, ",")
}

func TestIterMatchingFiles(t *testing.T) {
	tests := []struct {
		name      string
		recursive bool
		want      string
	}{
		{"flat", false, "a.cbz,B.CBR"},
		{"recursive", true, "a.cbz,B.CBR,F1/c.cbr,F2/d.cbz,F2/sub/e.cbz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTree()
			nodes, err := Collect(IterMatchingFiles(context.Background(), p, "root", tt.recursive, comicExts))
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if got := paths(nodes); got != tt.want {
				t.Errorf("paths = %s, want %s", got, tt.want)
			}
			if !tt.recursive && len(p.ListCalls()) != 1 {
				t.Errorf("flat walk listed %v", p.ListCalls())
			}
		})
	}
}

func TestIterMatchingFiles_IsLazy(t *testing.T) {
	p := newTree()
	seq := IterMatchingFiles(context.Background(), p, "root", true, comicExts)

	if len(p.ListCalls()) != 0 {
		t.Fatal("sequence listed before being ranged over")
	}
	for node, err := range seq {
		if err != nil {
			t.Fatal(err)
		}
		if node.Name != "a.cbz" {
			t.Errorf("first node = %s", node.Name)
		}
		break
	}
	if calls := p.ListCalls(); len(calls) != 1 || calls[0] != "root" {
		t.Errorf("ListCalls() = %v, want only root", calls)
	}
}

func TestIterMatchingFiles_ListingErrorStops(t *testing.T) {
	p := newTree()
	p.FailList("f1", domain.ErrPermissionDenied)

	var got []domain.RemoteNode
	var errs []error
	for node, err := range IterMatchingFiles(context.Background(), p, "root", true, comicExts) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		got = append(got, node)
	}

	if len(errs) != 1 || !errors.Is(errs[0], domain.ErrPermissionDenied) {
		t.Fatalf("errors = %v, want one ErrPermissionDenied", errs)
	}
	if paths(got) != "a.cbz,B.CBR" {
		t.Errorf("nodes before failure = %s", paths(got))
	}
	for _, id := range p.ListCalls() {
		if id == "f2" {
			t.Error("walk continued past the failed folder")
		}
	}

	nodes, err := Collect(IterMatchingFiles(context.Background(), p, "root", true, comicExts))
	if err == nil || len(nodes) != 2 {
		t.Errorf("Collect() = %d nodes, err %v", len(nodes), err)
	}
}

func TestIterMatchingFiles_ListTimeout(t *testing.T) {
	p := newTree()
	p.SetListDelay(500 * time.Millisecond)

	_, err := Collect(IterMatchingFiles(context.Background(), p, "root", true, comicExts,
		WithListTimeout(20*time.Millisecond)))

	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) || !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("error = %v, want NetworkError wrapping ErrTimeout", err)
	}
}

func TestIterMatchingFiles_Cancelled(t *testing.T) {
	p := newTree()
	p.SetListDelay(500 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Collect(IterMatchingFiles(ctx, p, "root", true, comicExts))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if errors.Is(err, domain.ErrTimeout) {
		t.Error("cancellation must not be reported as a timeout")
	}
}

func TestIterMatchingFiles_EmptyFolder(t *testing.T) {
	p := testutil.NewFakeProvider()
	nodes, err := Collect(IterMatchingFiles(context.Background(), p, "root", true, comicExts))
	if err != nil || len(nodes) != 0 {
		t.Errorf("Collect() = %v, %v", nodes, err)
	}
}
