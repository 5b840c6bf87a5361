package main

import (
	"context"
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-agency-admin/app"
	"github.com/jrsteele09/go-agency-admin/internal/config"
	"github.com/jrsteele09/go-agency-admin/internal/logging"
	"github.com/jrsteele09/go-agency-admin/storage"
	"github.com/jrsteele09/go-agency-admin/storage/memstore"
	"github.com/jrsteele09/go-agency-admin/storage/redisstore"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var apiURL, redisAddr, env string

	flagSet := pflag.NewFlagSet("agency-admin", pflag.ContinueOnError)
	flagSet.StringVar(&apiURL, "api", "", "base URL of the agency API (default $API_BASE_URL)")
	flagSet.StringVar(&redisAddr, "redis", "", "share the session with other terminals through this Redis address (default $REDIS_URL)")
	flagSet.StringVar(&env, "env", "", "environment name, DEV enables console logging (default $ENV)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if env != "" {
		os.Setenv("ENV", env)
	}

	cfg := config.New()
	logging.Setup(cfg.GetEnv(), os.Stderr)
	if redisAddr == "" {
		redisAddr = cfg.GetRedisURL()
	}

	ctx := context.Background()
	shared, closeShared, err := openSharedStore(ctx, redisAddr, cfg.GetRedisPassword())
	if err != nil {
		return err
	}
	defer closeShared()

	opts := app.OptionsFromConfig(cfg, shared)
	if apiURL != "" {
		opts.BaseURL = apiURL
	}
	opts.OnNavigate = func(path string) {
		fmt.Fprintf(os.Stdout, "-> %s\n", path)
	}

	tab, err := app.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer tab.Close()

	displayAppname(cfg.GetAppName())
	log.Info().Str("api", opts.BaseURL).Str("tab", tab.ID).Str("refreshMode", string(opts.RefreshMode)).Msg("Tab ready")
	return newShell(tab, os.Stdout).Run(ctx, os.Stdin)
}

// openSharedStore connects the cross-tab store: Redis when an address is
// given, otherwise a store private to this process.
func openSharedStore(ctx context.Context, addr, password string) (storage.Store, func(), error) {
	if addr == "" {
		store := memstore.New()
		return store, store.Close, nil
	}
	client, err := redisstore.Connect(ctx, addr, password)
	if err != nil {
		return nil, nil, err
	}
	return redisstore.New(client, ""), func() { _ = client.Close() }, nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
