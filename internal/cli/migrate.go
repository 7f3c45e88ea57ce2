package cli

import (
	"fmt"
	"slices"

	"rank_tracker/internal/storage"
	"rank_tracker/migrations"
)

type migrateOutput struct {
	Command string `json:"command"`
	Version int64  `json:"version"`
}

// Execute implements the go-flags Commander interface for MigrateCommand.
func (c *MigrateCommand) Execute(_ []string) error {
	cmd := c.Args.Command
	if !slices.Contains(migrations.Commands, cmd) {
		return fmt.Errorf("unknown migration command %q, want one of %v", cmd, migrations.Commands)
	}

	cfg, err := c.env.config()
	if err != nil {
		return err
	}
	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := migrations.Exec(db, cmd); err != nil {
		return err
	}
	v, err := migrations.Version(db)
	if err != nil {
		return err
	}
	return c.env.printJSON(migrateOutput{Command: cmd, Version: v})
}
