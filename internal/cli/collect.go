package cli

import (
	"context"
	"errors"

	"rank_tracker/internal/app"
	"rank_tracker/internal/pipeline"
)

// errRunFailed makes the process exit non-zero after the result is printed.
var errRunFailed = errors.New("run failed")

func (e *env) printResult(res pipeline.Result) error {
	if res.Log == nil {
		res.Log = []string{}
	}
	if err := e.printJSON(res); err != nil {
		return err
	}
	if !res.OK {
		return errRunFailed
	}
	return nil
}

// Execute implements the go-flags Commander interface for CollectCommand.
func (c *CollectCommand) Execute(_ []string) error {
	return c.env.withApp(func(ctx context.Context, a *app.App) error {
		if c.URLID > 0 {
			return c.env.printResult(a.Pipeline.RunCollectionForURL(ctx, c.URLID))
		}
		return c.env.printResult(a.Pipeline.RunCollection(ctx))
	})
}

// Execute implements the go-flags Commander interface for BackfillCommand.
func (c *BackfillCommand) Execute(_ []string) error {
	return c.env.withApp(func(ctx context.Context, a *app.App) error {
		return c.env.printResult(a.Pipeline.RunBackfill(ctx, pipeline.BackfillOptions{
			WeeksBack:         c.Weeks,
			URLID:             c.URLID,
			UseHistoricalSERP: c.Historical,
		}))
	})
}

type pruneOutput struct {
	Deleted int64 `json:"deleted"`
}

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(_ []string) error {
	return c.env.withApp(func(ctx context.Context, a *app.App) error {
		n, err := a.Pipeline.Prune(ctx)
		if err != nil {
			return err
		}
		return c.env.printJSON(pruneOutput{Deleted: n})
	})
}
