// Command ftsearch is the reference CLI over the core library: it
// exercises schema creation, document indexing (single and bulk) and the
// query DSL end to end, the way the teacher's weaviate repo ships
// cmd/create-index, cmd/index, cmd/query-index and cmd/stats as separate
// binaries. Here they are subcommands of one cobra tree instead (spec.md
// §6's CLI exit codes; SPEC_FULL.md §2's ambient CLI decision).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/scampagna/ftsearch/cmd/ftsearch/cli"
	"github.com/scampagna/ftsearch/index"
	"github.com/scampagna/ftsearch/query"
	"github.com/scampagna/ftsearch/schema"
)

// Exit codes per spec.md §6.
const (
	exitOK             = 0
	exitMisconfigured  = 2
	exitStorageFailure = 70
	exitCancelled      = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.Execute(ctx)
	os.Exit(exitCode(ctx, err))
}

func exitCode(ctx context.Context, err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, query.ErrCancelled) || ctx.Err() != nil {
		return exitCancelled
	}
	switch {
	case errors.Is(err, index.ErrSchema),
		errors.Is(err, index.ErrParse),
		errors.Is(err, index.ErrConflict),
		errors.Is(err, index.ErrNotFound),
		errors.Is(err, schema.ErrUnknownFieldType),
		errors.Is(err, schema.ErrUnknownField),
		errors.Is(err, schema.ErrDuplicateField):
		fmt.Fprintln(os.Stderr, "ftsearch:", err)
		return exitMisconfigured
	case errors.Is(err, index.ErrStorage):
		fmt.Fprintln(os.Stderr, "ftsearch:", err)
		return exitStorageFailure
	default:
		fmt.Fprintln(os.Stderr, "ftsearch:", err)
		return exitStorageFailure
	}
}
