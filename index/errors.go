package index

import (
	"errors"

	"github.com/scampagna/ftsearch/query"
)

// Error kinds, not type names (spec.md §7): every error this package
// returns wraps exactly one of these sentinels so callers can branch on
// errors.Is regardless of the underlying cause.
var (
	ErrSchema   = errors.New("index: schema error")
	ErrAnalysis = errors.New("index: analysis error")
	ErrParse    = errors.New("index: parse error")
	ErrNotFound = errors.New("index: not found")
	ErrStorage  = errors.New("index: storage error")
	ErrConflict = errors.New("index: conflict")
)

// ErrCancelled is query.ErrCancelled re-exported so callers of this
// package never need to import query directly just to check for
// cancellation (spec.md §5).
var ErrCancelled = query.ErrCancelled
