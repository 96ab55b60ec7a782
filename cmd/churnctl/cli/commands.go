package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/churnboard/churnboard/internal/analytics"
	"github.com/churnboard/churnboard/internal/analytics/export"
	"github.com/churnboard/churnboard/internal/churnapi"
	"github.com/churnboard/churnboard/internal/dashboard"
	"github.com/churnboard/churnboard/jobs"
)

// customerColumns are printed by the customers listing, in order.
var customerColumns = []string{"customerID", "gender", "tenure", "Contract", "InternetService", "MonthlyCharges", "Churn"}

func newKPIsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "kpis",
		Short: "Show the headline churn indicators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, svc *services, term *terminal) error {
				var kpis dashboard.KPIDisplay
				summary, err := svc.flows.LoadKPIs(ctx, kpiRecorder{term, &kpis}, term)
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"kpis": kpis, "summary": summary})
				}
				return nil
			})
		},
	}
}

// kpiRecorder keeps a copy of the card for JSON output.
type kpiRecorder struct {
	*terminal
	dst *dashboard.KPIDisplay
}

func (r kpiRecorder) ShowKPIs(kpis dashboard.KPIDisplay) {
	*r.dst = kpis
	r.terminal.ShowKPIs(kpis)
}

func newSegmentsCmd(opts *rootOptions) *cobra.Command {
	var segmentBy string
	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Show churn by customer segment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, svc *services, term *terminal) error {
				if err := checkDimension(svc, segmentBy); err != nil {
					return err
				}
				board := dashboard.NewBoard()
				defer board.Release()
				chart, err := svc.flows.LoadSegments(ctx, board, segmentBy, term, term)
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), analytics.SegmentAnalysis{
						SegmentBy: chart.Data.Dimension,
						Segments:  chart.Data.Entries,
					})
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&segmentBy, "by", "Contract", "segment dimension")
	return cmd
}

func newPredictCmd(opts *rootOptions) *cobra.Command {
	var (
		fields []string
		file   string
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict churn for one customer",
		Example: "  churnctl predict --set tenure=12 --set MonthlyCharges=70.35 --set Contract=Month-to-month\n" +
			"  churnctl predict --file customer.json",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var input analytics.PredictionInput
			switch {
			case file != "":
				raw, err := readObject(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				input = dashboard.CoerceInput(raw)
			case len(fields) > 0:
				form, err := parseFields(fields)
				if err != nil {
					return err
				}
				input = dashboard.CoerceForm(form)
			default:
				return errors.New("provide --set key=value pairs or --file")
			}
			return opts.run(cmd, func(ctx context.Context, svc *services, term *terminal) error {
				result, err := svc.flows.Predict(ctx, input, term, term)
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), result)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&fields, "set", nil, "customer field as key=value (repeatable)")
	cmd.Flags().StringVar(&file, "file", "", "JSON object with the customer fields (- for stdin)")
	return cmd
}

func newPredictBatchCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "predict-batch",
		Short: "Predict churn for a list of customers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			customers, err := readBatch(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, svc *services, term *terminal) error {
				resp, err := svc.api.PredictBatch(ctx, customers)
				if err != nil {
					term.Notify(dashboard.Notification{Level: dashboard.LevelError, Message: dashboard.MsgPredictFailed})
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), resp)
				}
				tw := term.table()
				fmt.Fprintf(tw, "#\tCUSTOMER\tPREDICTION\tPROBABILITY\tRISK\n")
				for i, p := range resp.Predictions {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, customerID(customers, i), p.ChurnPrediction,
						dashboard.FormatProbability(derefFloat(p.ChurnProbability)), p.RiskLevel)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d predictions\n", resp.Count)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON array of customers or {\"customers\": [...]} (- for stdin)")
	return cmd
}

func newCustomersCmd(opts *rootOptions) *cobra.Command {
	var filter churnapi.CustomerFilter
	cmd := &cobra.Command{
		Use:   "customers",
		Short: "List customers from the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if filter.Page < 1 || filter.PageSize < 1 {
				return errors.New("--page and --page-size must be positive")
			}
			return opts.run(cmd, func(ctx context.Context, svc *services, term *terminal) error {
				page, err := svc.api.ListCustomers(ctx, filter)
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), page)
				}
				tw := term.table()
				fmt.Fprintln(tw, strings.Join(customerColumns, "\t"))
				for _, customer := range page.Results {
					cells := make([]string, 0, len(customerColumns))
					for _, col := range customerColumns {
						cells = append(cells, cellText(customer[col]))
					}
					fmt.Fprintln(tw, strings.Join(cells, "\t"))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "page %d, %d of %d customers\n", page.Page, len(page.Results), page.Count)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter.Contract, "contract", "", "filter by contract type")
	cmd.Flags().StringVar(&filter.InternetService, "internet-service", "", "filter by internet service")
	cmd.Flags().StringVar(&filter.Churn, "churn", "", "filter by churn flag (Yes or No)")
	cmd.Flags().IntVar(&filter.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&filter.PageSize, "page-size", 20, "page size")
	return cmd
}

func newCustomerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "customer <id>",
		Short: "Show one customer record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, svc *services, term *terminal) error {
				customer, err := svc.api.GetCustomer(ctx, args[0])
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), customer)
				}
				keys := make([]string, 0, len(customer))
				for key := range customer {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				tw := term.table()
				for _, key := range keys {
					fmt.Fprintf(tw, "%s\t%s\n", key, cellText(customer[key]))
				}
				return tw.Flush()
			})
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		segmentBy string
		out       string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export dashboard data to CSV or XLSX",
	}
	cmd.PersistentFlags().StringVar(&out, "out", "-", "output file (- for stdout)")

	csvCmd := &cobra.Command{
		Use:   "csv",
		Short: "Export the segment breakdown as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, svc *services, _ *terminal) error {
				if err := checkDimension(svc, segmentBy); err != nil {
					return err
				}
				analysis, err := svc.analytics.GetSegmentAnalysis(ctx, segmentBy)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), out, func(w io.Writer) error {
					return export.WriteSegmentsCSV(w, analysis)
				})
			})
		},
	}
	csvCmd.Flags().StringVar(&segmentBy, "by", "Contract", "segment dimension")

	kpiCmd := &cobra.Command{
		Use:   "kpis",
		Short: "Export the churn summary as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, svc *services, _ *terminal) error {
				summary, err := svc.analytics.GetChurnSummary(ctx)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), out, func(w io.Writer) error {
					return export.WriteKPICSV(w, summary)
				})
			})
		},
	}

	xlsxCmd := &cobra.Command{
		Use:   "xlsx",
		Short: "Export KPIs and segments as an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, svc *services, _ *terminal) error {
				if err := checkDimension(svc, segmentBy); err != nil {
					return err
				}
				payload, err := loadPayload(ctx, svc.analytics, segmentBy)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), out, func(w io.Writer) error {
					return export.WriteXLSX(w, payload)
				})
			})
		},
	}
	xlsxCmd.Flags().StringVar(&segmentBy, "by", "Contract", "segment dimension")

	cmd.AddCommand(csvCmd, kpiCmd, xlsxCmd)
	return cmd
}

func newCacheCmd(opts *rootOptions) *cobra.Command {
	var queue bool
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the analytics cache",
	}
	warm := &cobra.Command{
		Use:   "warm",
		Short: "Reload the KPIs and every segment breakdown into the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if queue {
				return opts.enqueueWarmup(cmd)
			}
			return opts.run(cmd, func(ctx context.Context, svc *services, _ *terminal) error {
				if svc.redis == nil {
					return errors.New("redis address required (--redis or $REDIS_ADDR)")
				}
				job := jobs.NewCacheWarmupJob(svc.analytics, svc.logger, nil)
				if err := job.Run(ctx, jobs.CacheWarmupPayload{Reason: "churnctl", Invalidate: true}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cache warmed")
				return nil
			})
		},
	}
	warm.Flags().BoolVar(&queue, "queue", false, "enqueue the warm-up on the worker instead of running it here")

	invalidate := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop every cached payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, svc *services, _ *terminal) error {
				if svc.redis == nil {
					return errors.New("redis address required (--redis or $REDIS_ADDR)")
				}
				if err := svc.analytics.Invalidate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cache invalidated")
				return nil
			})
		},
	}
	cmd.AddCommand(warm, invalidate)
	return cmd
}

func newJobsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show the job queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jc, err := opts.jobsCLI()
			if err != nil {
				return err
			}
			defer jc.Close()
			stats, err := jc.Stats()
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			term := newTerminal(cmd.OutOrStdout(), cmd.ErrOrStderr(), false)
			tw := term.table()
			fmt.Fprintf(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED\tDONE TODAY\tFAILED TODAY\n")
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled,
				stats.Retry, stats.Archived, stats.Processed, stats.Failed)
			return tw.Flush()
		},
	}
	trigger := &cobra.Command{
		Use:   "trigger <task>",
		Short: "Enqueue a job by task name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jc, err := opts.jobsCLI()
			if err != nil {
				return err
			}
			defer jc.Close()
			info, err := jc.Trigger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (%s)\n", info.Type, info.ID)
			return nil
		},
	}
	cmd.AddCommand(stats, trigger)
	return cmd
}

// run wires the services for one command and releases them afterwards.
func (o *rootOptions) run(cmd *cobra.Command, fn func(context.Context, *services, *terminal) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := o.services(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(ctx, svc, newTerminal(cmd.OutOrStdout(), cmd.ErrOrStderr(), o.json))
}

func (o *rootOptions) enqueueWarmup(cmd *cobra.Command) error {
	jc, err := o.jobsCLI()
	if err != nil {
		return err
	}
	defer jc.Close()
	info, err := jc.Trigger(cmd.Context(), jobs.TaskCacheWarmup)
	if errors.Is(err, errAlreadyQueued) {
		fmt.Fprintln(cmd.OutOrStdout(), "cache warm-up already queued")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cache warm-up queued (%s)\n", info.ID)
	return nil
}

func checkDimension(svc *services, dim string) error {
	if svc.analytics.ValidDimension(dim) {
		return nil
	}
	return fmt.Errorf("unknown segment dimension %q (valid: %s)", dim, strings.Join(svc.analytics.Dimensions(), ", "))
}

func loadPayload(ctx context.Context, svc *analytics.Service, segmentBy string) (export.DashboardPayload, error) {
	payload := export.DashboardPayload{GeneratedAt: time.Now().UTC()}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := svc.GetChurnSummary(ctx)
		payload.Summary = summary
		return err
	})
	g.Go(func() error {
		analysis, err := svc.GetSegmentAnalysis(ctx, segmentBy)
		payload.Segments = analysis
		return err
	})
	if err := g.Wait(); err != nil {
		return export.DashboardPayload{}, err
	}
	return payload, nil
}

func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func parseFields(fields []string) (url.Values, error) {
	form := url.Values{}
	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", field)
		}
		form.Set(key, value)
	}
	return form, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func readObject(stdin io.Reader, path string) (map[string]any, error) {
	data, err := readInput(stdin, path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("decode %s: want a JSON object", path)
	}
	return raw, nil
}

func readBatch(stdin io.Reader, path string) ([]map[string]any, error) {
	data, err := readInput(stdin, path)
	if err != nil {
		return nil, err
	}
	var list []map[string]any
	if err := json.Unmarshal(data, &list); err != nil {
		var wrapped churnapi.BatchPredictionRequest
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		list = wrapped.Customers
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("decode %s: no customers", path)
	}
	customers := make([]map[string]any, 0, len(list))
	for _, raw := range list {
		customers = append(customers, map[string]any(dashboard.CoerceInput(raw)))
	}
	return customers, nil
}

func customerID(customers []map[string]any, i int) string {
	if i >= len(customers) {
		return "-"
	}
	if id := cellText(customers[i]["customerID"]); id != "" {
		return id
	}
	return "-"
}

func cellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprint(val)
	}
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
