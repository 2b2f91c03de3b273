// Package lock serializes writers on string keys, either inside one process
// or across instances through Redis leases.
package lock

import (
	"context"
	"errors"
	"sort"
)

var ErrTimeout = errors.New("lock wait timed out")

type Locker interface {
	// Acquire blocks until every key is held or ctx is done. Keys are taken
	// in sorted order. The returned release is safe to call once.
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

func sortedUnique(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
