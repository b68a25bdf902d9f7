// Package cli implements the crmctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-crm/internal/app"
	"github.com/odyssey-erp/odyssey-crm/internal/docstore"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
	"github.com/odyssey-erp/odyssey-crm/internal/seed"
	"github.com/odyssey-erp/odyssey-crm/jobs"
)

// Env carries what every command needs.
type Env struct {
	Config *app.Config
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
	// Container overrides the container built from Config.
	Container *app.Container
	// Jobs overrides the job client built from Config.
	Jobs Enqueuer
}

// Enqueuer submits a task by name.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string) (*asynq.TaskInfo, error)
}

var _ Enqueuer = (*jobs.Client)(nil)

const usage = `usage: crmctl <command> [flags]

commands:
  reconcile          post revenue missing for paid orders
  trigger <task>     enqueue ledger:reconcile or idempotency:cleanup
  queue              show default queue statistics
  migrate            create the postgres document table
  seed               load the demo catalog and leads
`

// Run dispatches args and returns the process exit code.
func Run(ctx context.Context, args []string, env Env) int {
	if env.Stdout == nil {
		env.Stdout = os.Stdout
	}
	if env.Stderr == nil {
		env.Stderr = os.Stderr
	}
	if env.Logger == nil {
		env.Logger = slog.New(slog.NewTextHandler(env.Stderr, nil))
	}
	if len(args) == 0 {
		fmt.Fprint(env.Stderr, usage)
		return 2
	}
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	jsonOut := fs.Bool("json", false, "print the result as JSON")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	var (
		result any
		err    error
	)
	switch args[0] {
	case "reconcile":
		result, err = reconcile(ctx, env)
	case "trigger":
		if fs.NArg() != 1 {
			fmt.Fprint(env.Stderr, usage)
			return 2
		}
		result, err = trigger(ctx, env, fs.Arg(0))
	case "queue":
		result, err = queue(ctx, env)
	case "migrate":
		result, err = migrate(ctx, env)
	case "seed":
		result, err = seedDemo(ctx, env)
	default:
		fmt.Fprintf(env.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err != nil {
		fmt.Fprintf(env.Stderr, "%s: %v\n", args[0], err)
		return 1
	}
	if *jsonOut {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(env.Stderr, "encode result: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(env.Stdout, "%s: %+v\n", args[0], result)
	return 0
}

func container(ctx context.Context, env Env) (*app.Container, func(), error) {
	if env.Container != nil {
		return env.Container, func() {}, nil
	}
	c, err := app.NewContainer(ctx, env.Config, env.Logger, app.Options{})
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}

type reconcileResult struct {
	Posted int `json:"posted"`
}

func reconcile(ctx context.Context, env Env) (any, error) {
	c, done, err := container(ctx, env)
	if err != nil {
		return nil, err
	}
	defer done()
	n, err := c.Orders.ReconcileRevenue(ctx)
	return reconcileResult{Posted: n}, err
}

type triggerResult struct {
	Task string `json:"task"`
	ID   string `json:"id,omitempty"`
}

func trigger(ctx context.Context, env Env, name string) (any, error) {
	enq := env.Jobs
	if enq == nil {
		client := jobs.NewClient(asynq.RedisClientOpt{Addr: env.Config.RedisAddr})
		defer func() { _ = client.Close() }()
		enq = client
	}
	info, err := enq.Enqueue(ctx, name)
	if err != nil {
		return nil, err
	}
	return triggerResult{Task: name, ID: info.ID}, nil
}

func queue(ctx context.Context, env Env) (any, error) {
	jc := NewJobsCLI(env.Config.RedisAddr)
	defer func() { _ = jc.Close() }()
	return jc.InspectQueue(ctx)
}

type migrateResult struct {
	Table string `json:"table"`
}

func migrate(ctx context.Context, env Env) (any, error) {
	pool, err := db.New(ctx, env.Config.PGDSN, 2)
	if err != nil {
		return nil, err
	}
	defer pool.Close()
	if err := docstore.NewPostgres(pool).Migrate(ctx); err != nil {
		return nil, err
	}
	return migrateResult{Table: "documents"}, nil
}

func seedDemo(ctx context.Context, env Env) (any, error) {
	c, done, err := container(ctx, env)
	if err != nil {
		return nil, err
	}
	defer done()
	return seed.Run(ctx, c.Inventory, c.Leads, env.Logger)
}
