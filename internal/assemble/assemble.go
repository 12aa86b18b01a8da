// Package assemble builds a collection from a file or directory tree.
//
// Enumeration is sequential and deterministic; content ingestion runs on a
// bounded worker pool and may complete out of order, so results are written
// into an index-addressed slice and the collection is assembled from that
// slice in enumeration order. The collection blob is persisted before any
// per-file temp tag is released: until then the tags are the only thing
// keeping the ingested blobs alive.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/flitshare/flit/internal/store"
	"github.com/flitshare/flit/pkg/collection"
	"github.com/flitshare/flit/pkg/pathname"
)

var (
	// ErrNotFound indicates the import root does not exist.
	ErrNotFound = errors.New("import root not found")
	// ErrAssemblyFailed indicates the build aborted; no collection was
	// persisted and temporary tags have been released.
	ErrAssemblyFailed = errors.New("assembly failed")
	// ErrDuplicateName indicates two source paths mapped to the same
	// entry name.
	ErrDuplicateName = errors.New("duplicate entry name")
)

// source is one enumerated file, in deterministic walk order.
type source struct {
	name string
	path string
}

// Result is a successfully built collection.
type Result struct {
	// Tag is the durable reference to the stored collection blob. The
	// caller owns it and drops it when the collection no longer needs
	// protection.
	Tag *store.TempTag
	// Size is the sum of all member byte sizes.
	Size int64
}

// Build imports every regular file under root into st and stores the
// resulting collection. Entry names are relative to the parent of root, so
// providing a single file yields an entry named like the file and providing
// a directory prefixes every entry with the directory's own name.
//
// Any single ingestion or naming failure aborts the whole build: the
// partial ingestions are untagged and reclaimed, and no collection blob is
// persisted.
func Build(ctx context.Context, st *store.Store, root string) (*Result, error) {
	root, err := canonicalRoot(root)
	if err != nil {
		return nil, err
	}
	sources, err := enumerate(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssemblyFailed, err)
	}

	type ingested struct {
		tag  *store.TempTag
		size int64
	}
	results := make([]ingested, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tag, size, err := st.ImportFile(src.path, store.ImportTryReference)
			if err != nil {
				return fmt.Errorf("import %s: %w", src.path, err)
			}
			results[i] = ingested{tag: tag, size: size}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, r := range results {
			if r.tag != nil {
				r.tag.Drop()
			}
		}
		if rerr := st.ReclaimUntagged(); rerr != nil {
			return nil, fmt.Errorf("%w: %v (reclaim: %v)", ErrAssemblyFailed, err, rerr)
		}
		return nil, fmt.Errorf("%w: %v", ErrAssemblyFailed, err)
	}

	var c collection.Collection
	var total int64
	tags := make([]*store.TempTag, 0, len(results))
	for i, r := range results {
		c.Push(sources[i].name, r.tag.Hash())
		tags = append(tags, r.tag)
		total += r.size
	}

	colTag, err := st.PutCollection(&c)
	if err != nil {
		store.DropTags(tags)
		return nil, fmt.Errorf("%w: persist collection: %v", ErrAssemblyFailed, err)
	}
	// The stored collection now protects the data; the per-file tags can go.
	store.DropTags(tags)

	return &Result{Tag: colTag, Size: total}, nil
}

// canonicalRoot resolves root to an absolute, symlink-free path.
func canonicalRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, root)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, root)
		}
		return "", err
	}
	return resolved, nil
}

// enumerate lists every regular file reachable from root in walk order.
// Directories contribute no entry of their own; symlinks are skipped rather
// than followed. Names are computed relative to the parent of root and two
// sources mapping to the same name are rejected.
func enumerate(root string) ([]source, error) {
	parent := filepath.Dir(root)
	var sources []source
	seen := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			// Directories are traversed transparently; symlinks and
			// other special files contribute nothing.
			return nil
		}
		name, err := pathname.EntryName(path, parent)
		if err != nil {
			return err
		}
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%w: %q from both %s and %s", ErrDuplicateName, name, prev, path)
		}
		seen[name] = path
		sources = append(sources, source{name: name, path: path})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}
