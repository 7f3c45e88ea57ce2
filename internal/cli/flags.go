package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	DB      string `long:"db" description:"Path to the SQLite database (overrides DATABASE_PATH)"`
	Verbose bool   `long:"verbose" short:"v" description:"Enable debug logging"`
}

// MigrateCommand runs one goose command.
type MigrateCommand struct {
	Args struct {
		Command string `positional-arg-name:"command" description:"up | up-one | down | status | version | reset"`
	} `positional-args:"yes" required:"yes"`

	env *env
}

// CollectCommand runs a collection for the current period.
type CollectCommand struct {
	URLID int64 `long:"url-id" description:"Collect a single URL"`

	env *env
}

// BackfillCommand collects past periods.
type BackfillCommand struct {
	Weeks      int   `long:"weeks" description:"Number of weeks to go back" required:"yes"`
	URLID      int64 `long:"url-id" description:"Backfill a single URL"`
	Historical bool  `long:"historical" description:"Fetch historical SERP positions for past weeks"`

	env *env
}

// PruneCommand deletes snapshots past the archive horizon.
type PruneCommand struct {
	env *env
}

// ImportCommand loads tracked URLs from a YAML file.
type ImportCommand struct {
	File string `long:"file" short:"f" description:"YAML file with urls and keywords" required:"yes"`

	env *env
}
