// Package cli implements slotboardctl, the operator command line used for
// unattended weekly resets and one-off maintenance.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/alecthomas/kong"
	"github.com/redis/go-redis/v9"

	"github.com/abrezinsky/slotboard/internal/auth"
	"github.com/abrezinsky/slotboard/internal/feed"
	"github.com/abrezinsky/slotboard/internal/logger"
	"github.com/abrezinsky/slotboard/internal/repository"
	"github.com/abrezinsky/slotboard/internal/schedule"
	"github.com/abrezinsky/slotboard/internal/services"
)

// Globals are the flags shared by every command
type Globals struct {
	Version    kong.VersionFlag `help:"Show version and exit."`
	DB         string           `help:"SQLite path or postgres:// URL." env:"DATABASE_URL" default:"slotboard.db"`
	Timezone   string           `help:"Timezone for cutoffs, backup ids and archive names." env:"TIMEZONE" default:"Local"`
	CutoffHour int              `help:"Hour of the day slot cutoffs fall on." env:"CUTOFF_HOUR" default:"12"`
	SportsFile string           `help:"JSON sport catalog overriding the defaults." env:"SPORTS_FILE"`
	LogLevel   string           `help:"Log level." env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error"`
	LogFile    string           `help:"Also write logs to this file, rotated by size." env:"SLOTBOARD_LOG_FILE"`
	RedisURL   string           `help:"Publish seed and reset events to running servers through Redis." env:"REDIS_URL"`
}

// CLI is the slotboardctl command tree
type CLI struct {
	Globals

	BackupReset BackupResetCmd `cmd:"" help:"Archive every collection, then back up and reset the week."`
	Seed        SeedCmd        `cmd:"" help:"Seed the weekly schedule into an empty store."`
	Backups     BackupsCmd     `cmd:"" help:"List weekly snapshots and JSON archives."`
	Token       TokenCmd       `cmd:"" help:"Issue an identity token for testing or scripted access."`
}

// Context is passed to every command's Run method
type Context struct {
	Ctx     context.Context
	Globals *Globals
	Log     logger.Logger
	Out     io.Writer

	now   func() time.Time
	repo  repository.FullRepository
	redis *redis.Client
}

// Repository opens the store on first use.
func (c *Context) Repository() (repository.FullRepository, error) {
	if c.repo == nil {
		repo, err := repository.Open(c.Ctx, c.Globals.DB)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		c.repo = repo
	}
	return c.repo, nil
}

// Location resolves the configured timezone.
func (c *Context) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Globals.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// Lifecycle builds the weekly lifecycle service over the store. Only its
// elevated entry points are used here, so no admins are configured.
func (c *Context) Lifecycle() (*services.LifecycleService, error) {
	repo, err := c.Repository()
	if err != nil {
		return nil, err
	}
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	catalog, err := schedule.LoadCatalogFile(c.Globals.SportsFile)
	if err != nil {
		return nil, err
	}

	svc := services.NewLifecycleService(c.Log, repo, catalog, auth.NewAdminList(nil), services.Options{
		Location:   loc,
		CutoffHour: c.Globals.CutoffHour,
	})
	if c.now != nil {
		svc.SetClock(c.now)
	}
	if c.Globals.RedisURL != "" {
		// Running servers relay these events to their live subscribers
		if c.redis == nil {
			client, err := feed.Dial(c.Ctx, c.Globals.RedisURL)
			if err != nil {
				return nil, fmt.Errorf("connect to redis: %w", err)
			}
			c.redis = client
		}
		svc.SetBroadcaster(feed.New(c.Log, c.redis, feed.Discard))
	}
	return svc, nil
}

// Close releases the store and the Redis connection if they were opened.
func (c *Context) Close() {
	if c.redis != nil {
		c.redis.Close()
	}
	if c.repo != nil {
		if err := c.repo.Close(); err != nil {
			c.Log.Warn("Failed to close database", "error", err)
		}
	}
}

// Main parses args and runs the selected command. Command output goes to
// stdout; logs go to stderr and the optional log file.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer, version string) error {
	var root CLI
	parser, err := kong.New(&root,
		kong.Name("slotboardctl"),
		kong.Description("Operator tools for the weekly slot board."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": version},
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	log, err := logger.NewConsole(logger.ConsoleOptions{
		Level:  logger.ParseLevel(root.LogLevel),
		Prefix: "slotboardctl",
		File:   root.LogFile,
		Stderr: stderr,
	})
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer log.Close()

	c := &Context{Ctx: ctx, Globals: &root.Globals, Log: log, Out: stdout}
	defer c.Close()
	return kctx.Run(c)
}
