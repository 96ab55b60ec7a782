// Package cli implements the churnctl commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/churnboard/churnboard/internal/analytics"
	"github.com/churnboard/churnboard/internal/churnapi"
	"github.com/churnboard/churnboard/internal/dashboard"
	"github.com/churnboard/churnboard/internal/platform/cache"
	"github.com/churnboard/churnboard/jobs"
)

// Env is the subset of the dashboard configuration the CLI reads.
type Env struct {
	ChurnAPIBaseURL   string        `envconfig:"CHURN_API_BASE_URL" default:"http://localhost:8000/api"`
	ChurnAPITimeout   time.Duration `envconfig:"CHURN_API_TIMEOUT" default:"10s"`
	RedisAddr         string        `envconfig:"REDIS_ADDR"`
	CacheTTL          time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	SegmentDimensions []string      `envconfig:"SEGMENT_DIMENSIONS" default:"Contract,InternetService,PaymentMethod,TechSupport"`
}

type rootOptions struct {
	apiURL    string
	timeout   time.Duration
	redisAddr string
	json      bool
	verbose   bool
}

// services holds the wired services for one command invocation.
type services struct {
	env       Env
	api       *churnapi.Client
	redis     *redis.Client
	analytics *analytics.Service
	flows     *dashboard.Dashboard
	logger    *slog.Logger
}

func (r *services) Close() error {
	if r.redis != nil {
		return r.redis.Close()
	}
	return nil
}

// NewRootCommand builds the churnctl command tree writing to stdout/stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "churnctl",
		Short:         "Query the churn analytics API and manage the dashboard cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "analytics API base URL (default $CHURN_API_BASE_URL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "upstream request timeout (default $CHURN_API_TIMEOUT)")
	root.PersistentFlags().StringVar(&opts.redisAddr, "redis", "", "redis address for the analytics cache (default $REDIS_ADDR)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print raw JSON instead of tables")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log upstream calls to stderr")

	root.AddCommand(
		newKPIsCmd(opts),
		newSegmentsCmd(opts),
		newPredictCmd(opts),
		newPredictBatchCmd(opts),
		newCustomersCmd(opts),
		newCustomerCmd(opts),
		newExportCmd(opts),
		newCacheCmd(opts),
		newJobsCmd(opts),
	)
	return root
}

func (o *rootOptions) services(ctx context.Context, stderr io.Writer) (*services, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if o.apiURL != "" {
		env.ChurnAPIBaseURL = o.apiURL
	}
	if o.timeout > 0 {
		env.ChurnAPITimeout = o.timeout
	}
	if o.redisAddr != "" {
		env.RedisAddr = o.redisAddr
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	rt := &services{
		env:    env,
		api:    churnapi.NewClient(env.ChurnAPIBaseURL, env.ChurnAPITimeout, churnapi.WithLogger(logger)),
		logger: logger,
	}
	if env.RedisAddr != "" {
		client, err := cache.New(ctx, env.RedisAddr)
		if err != nil {
			return nil, err
		}
		rt.redis = client
	}
	rt.analytics = analytics.NewService(rt.api, analytics.NewCache(rt.redis, env.CacheTTL), env.SegmentDimensions)
	rt.analytics.SetLoadTimeout(env.ChurnAPITimeout)
	rt.flows = dashboard.New(rt.analytics, dashboard.SVGCharts{}, logger)
	return rt, nil
}

func (o *rootOptions) jobsCLI() (*JobsCLI, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, err
	}
	addr := env.RedisAddr
	if o.redisAddr != "" {
		addr = o.redisAddr
	}
	if addr == "" {
		return nil, fmt.Errorf("redis address required (--redis or $REDIS_ADDR)")
	}
	opts, err := cache.Options(addr)
	if err != nil {
		return nil, err
	}
	return NewJobsCLI(jobs.RedisOpts(opts)), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
