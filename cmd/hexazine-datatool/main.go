// Command hexazine-datatool operates on a hexazine data file offline:
// inspect its version and contents, run the schema migration pipeline, or
// seed an admin account.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hexazine/hexazine"
	"github.com/hexazine/hexazine/store"
)

func main() {
	var (
		configPath  = flag.String("config", "", "YAML config file; defaults apply when empty")
		dataPath    = flag.String("data", "", "data file path, overriding the config")
		inspect     = flag.Bool("inspect", false, "print the data file's version and entity counts")
		migrate     = flag.Bool("migrate", false, "run pending schema migrations and write the result")
		createAdmin = flag.Bool("create-admin", false, "create an admin account (requires -username and -password)")
		username    = flag.String("username", "", "username for -create-admin")
		password    = flag.String("password", "", "password for -create-admin")
		verbose     = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	modes := 0
	for _, on := range []bool{*inspect, *migrate, *createAdmin} {
		if on {
			modes++
		}
	}
	if modes != 1 {
		fmt.Fprintln(os.Stderr, "exactly one of -inspect, -migrate, -create-admin must be set")
		os.Exit(2)
	}
	if *createAdmin && (*username == "" || *password == "") {
		fmt.Fprintln(os.Stderr, "-create-admin requires -username and -password")
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = logger.Sync() }()
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *dataPath != "" {
		cfg.Storage.DataPath = *dataPath
	}

	ctx := context.Background()

	switch {
	case *inspect:
		err = runInspect(ctx, cfg, logger)
	case *migrate:
		err = runMigrate(ctx, cfg, logger)
	case *createAdmin:
		err = runCreateAdmin(ctx, cfg, logger, *username, *password)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		if errors.Is(err, store.ErrVersionSkew) {
			// Data from a newer build must never be rewritten here.
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func loadConfig(path string) (hexazine.Config, error) {
	if path == "" {
		return hexazine.DefaultConfig(), nil
	}
	return hexazine.LoadConfigFile(path)
}

// runInspect reads the raw document without migrating or writing and
// prints its version and entity counts.
func runInspect(ctx context.Context, cfg hexazine.Config, logger *zap.Logger) error {
	summary, err := store.Inspect(cfg.Storage.DataPath)
	if err != nil {
		return err
	}

	fmt.Printf("path:            %s\n", cfg.Storage.DataPath)
	fmt.Printf("version:         %d (latest %d)\n", summary.Version, store.SchemaVersion())
	fmt.Printf("accounts:        %d\n", summary.Accounts)
	fmt.Printf("projects:        %d\n", summary.Projects)
	fmt.Printf("publish tokens:  %d\n", summary.PublishTokens)
	fmt.Printf("active tokens:   %d\n", summary.ActiveTokens)
	fmt.Printf("emails:          %d\n", summary.Emails)
	fmt.Printf("verify codes:    %d\n", summary.EmailVerifyCodes)
	fmt.Printf("revert codes:    %d\n", summary.EmailRevertCodes)
	fmt.Printf("bug reports:     %d\n", summary.BugReports)
	return nil
}

func runMigrate(ctx context.Context, cfg hexazine.Config, logger *zap.Logger) error {
	st := store.Open(cfg.Storage.DataPath, logger)
	data, err := st.Load(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("data file at version %d, %d accounts\n", data.Version, len(data.Accounts))
	return nil
}

func runCreateAdmin(ctx context.Context, cfg hexazine.Config, logger *zap.Logger, username, password string) error {
	engine, err := hexazine.New().
		WithConfig(cfg).
		WithLogger(logger).
		Build(ctx)
	if err != nil {
		return err
	}
	defer engine.Close()

	id, err := engine.CreateAdminAccount(ctx, username, password)
	if err != nil {
		return err
	}
	fmt.Printf("admin account %s created with id %s\n", username, id)
	return nil
}
