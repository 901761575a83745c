// Package walker enumerates a provider's folder tree lazily.
package walker

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path"
	"time"

	"github.com/Ning0612/Comicshelf/internal/adapter"
	"github.com/Ning0612/Comicshelf/internal/domain"
)

// DefaultListTimeout bounds a single ListChildren call
const DefaultListTimeout = 30 * time.Second

type options struct {
	listTimeout time.Duration
}

// Option configures a walk
type Option func(*options)

// WithListTimeout overrides the per-listing timeout. Zero or negative
// values keep the default.
func WithListTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.listTimeout = d
		}
	}
}

type frame struct {
	id   string
	path string
}

// IterMatchingFiles yields the files under root whose name ends with one
// of exts (case-insensitive). Traversal is depth-first with an explicit
// stack; subfolders are visited in listing order and only when recursive.
// Nothing is listed until the sequence is ranged over. A listing failure
// is yielded once and ends the sequence.
func IterMatchingFiles(ctx context.Context, p adapter.Provider, root string, recursive bool, exts []string, opts ...Option) iter.Seq2[domain.RemoteNode, error] {
	o := options{listTimeout: DefaultListTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	return func(yield func(domain.RemoteNode, error) bool) {
		stack := []frame{{id: root}}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			children, err := list(ctx, p, top, o.listTimeout)
			if err != nil {
				yield(domain.RemoteNode{}, err)
				return
			}

			var folders []frame
			for _, child := range children {
				child.Path = path.Join(top.path, child.Name)
				if child.IsFolder {
					if recursive {
						folders = append(folders, frame{id: child.ID, path: child.Path})
					}
					continue
				}
				if !child.HasExtension(exts) {
					continue
				}
				if !yield(child, nil) {
					return
				}
			}

			for i := len(folders) - 1; i >= 0; i-- {
				stack = append(stack, folders[i])
			}
		}
	}
}

func list(ctx context.Context, p adapter.Provider, f frame, timeout time.Duration) ([]domain.RemoteNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	listCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	children, err := p.ListChildren(listCtx, f.id)
	if err == nil {
		return children, nil
	}

	where := f.path
	if where == "" {
		where = "/"
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, &domain.NetworkError{
			Op:  "list " + where,
			Err: fmt.Errorf("%w after %s", domain.ErrTimeout, timeout),
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, fmt.Errorf("list %s: %w", where, err)
}

// Collect drains seq, returning the first error
func Collect(seq iter.Seq2[domain.RemoteNode, error]) ([]domain.RemoteNode, error) {
	var nodes []domain.RemoteNode
	for node, err := range seq {
		if err != nil {
			return nodes, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
