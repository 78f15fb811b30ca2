package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
	"github.com/ajitpratap0/opgate/pkg/logger"
)

func operationCommands(flags *globalFlags) []*cobra.Command {
	return []*cobra.Command{
		testCommand(flags),
		schemaCommand(flags),
		searchCommand(flags),
		getCommand(flags),
		createCommand(flags),
		updateCommand(flags),
		deleteCommand(flags),
		watchCommand(flags),
	}
}

// withSession opens a session around fn.
func withSession(flags *globalFlags, fn func(ctx context.Context, s *session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = logger.ContextWithRequestID(ctx, uuid.NewString())
		s, err := openSession(ctx, flags)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(ctx, s)
	}
}

func testCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check connectivity to the configured system",
	}
	cmd.RunE = withSession(flags, func(ctx context.Context, s *session) error {
		if err := s.facade.Test(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	})
	return cmd
}

func schemaCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the connector schema as JSON",
	}
	cmd.RunE = withSession(flags, func(ctx context.Context, s *session) error {
		schema, err := s.facade.Schema(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, schema)
	})
	return cmd
}

func searchCommand(flags *globalFlags) *cobra.Command {
	var (
		class    string
		where    []string
		attrs    []string
		pageSize int
		offset   int
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search objects, printing one JSON object per line",
		Example: `  opgate search -c crm.yaml --class users --where team=core --page-size 50`,
	}
	cmd.RunE = withSession(flags, func(ctx context.Context, s *session) error {
		filter, err := parseWhere(where)
		if err != nil {
			return err
		}
		var printErr error
		result, err := s.facade.Search(ctx, core.ObjectClass(class), filter, func(obj *core.ConnectorObject) bool {
			printErr = printJSON(cmd, obj)
			return printErr == nil
		}, &core.OperationOptions{PageSize: pageSize, PagedResultsOffset: offset, AttributesToGet: attrs})
		if err != nil {
			return err
		}
		if printErr != nil {
			return printErr
		}
		if result.PagedResultsCookie != "" {
			fmt.Fprintf(os.Stderr, "more results: --offset %s\n", result.PagedResultsCookie)
		}
		return nil
	})
	cmd.Flags().StringVar(&class, "class", "", "Object class to search (required)")
	cmd.Flags().StringArrayVar(&where, "where", nil, "Equality condition attr=value; repeat to AND conditions")
	cmd.Flags().StringSliceVar(&attrs, "attrs", nil, "Attributes to return")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Maximum number of objects to return (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of matching objects to skip")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

func getCommand(flags *globalFlags) *cobra.Command {
	var class, uid string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch one object by uid",
	}
	cmd.RunE = withSession(flags, func(ctx context.Context, s *session) error {
		obj, err := s.facade.GetObject(ctx, core.ObjectClass(class), core.Uid(uid), nil)
		if err != nil {
			return err
		}
		if obj == nil {
			return errors.Newf(errors.ErrorTypeNotFound, "%s/%s not found", class, uid)
		}
		return printJSON(cmd, obj)
	})
	cmd.Flags().StringVar(&class, "class", "", "Object class (required)")
	cmd.Flags().StringVar(&uid, "uid", "", "Object uid (required)")
	_ = cmd.MarkFlagRequired("class")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}

func createCommand(flags *globalFlags) *cobra.Command {
	var (
		class string
		set   []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an object and print its uid",
		Example: `  opgate create -c crm.yaml --class users --set name=alice --set age=31`,
	}
	cmd.RunE = withSession(flags, func(ctx context.Context, s *session) error {
		attrs, err := parseAssignments(set)
		if err != nil {
			return err
		}
		uid, err := s.facade.Create(ctx, core.ObjectClass(class), attrs, nil)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]string{"uid": string(uid)})
	})
	cmd.Flags().StringVar(&class, "class", "", "Object class (required)")
	cmd.Flags().StringArrayVar(&set, "set", nil, "Attribute assignment attr=value; values are parsed as JSON when possible")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

func updateCommand(flags *globalFlags) *cobra.Command {
	var (
		class, uid string
		set        []string
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update attributes of an object; attr=null removes an attribute",
	}
	cmd.RunE = withSession(flags, func(ctx context.Context, s *session) error {
		attrs, err := parseAssignments(set)
		if err != nil {
			return err
		}
		newUid, err := s.facade.Update(ctx, core.ObjectClass(class), core.Uid(uid), attrs, nil)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]string{"uid": string(newUid)})
	})
	cmd.Flags().StringVar(&class, "class", "", "Object class (required)")
	cmd.Flags().StringVar(&uid, "uid", "", "Object uid (required)")
	cmd.Flags().StringArrayVar(&set, "set", nil, "Attribute assignment attr=value")
	_ = cmd.MarkFlagRequired("class")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}

func deleteCommand(flags *globalFlags) *cobra.Command {
	var class, uid string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an object",
		RunE: withSession(flags, func(ctx context.Context, s *session) error {
			return s.facade.Delete(ctx, core.ObjectClass(class), core.Uid(uid), nil)
		}),
	}
	cmd.Flags().StringVar(&class, "class", "", "Object class (required)")
	cmd.Flags().StringVar(&uid, "uid", "", "Object uid (required)")
	_ = cmd.MarkFlagRequired("class")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}

func watchCommand(flags *globalFlags) *cobra.Command {
	var (
		class       string
		where       []string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print change events until interrupted",
		Long: `watch subscribes to changes of one object class and prints each event as a
JSON line. The connector serving the subscription stays checked out until
SIGINT or SIGTERM closes it.`,
	}
	cmd.RunE = withSession(flags, func(ctx context.Context, s *session) error {
		filter, err := parseWhere(where)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		if metricsAddr != "" {
			srv := serveMetrics(metricsAddr)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}

		sub, err := s.facade.Subscribe(ctx, core.ObjectClass(class), filter, func(event *core.ChangeEvent) bool {
			if err := printJSON(cmd, event); err != nil {
				logger.Error("failed to print event", zap.Error(err))
				return false
			}
			return true
		}, nil)
		if err != nil {
			return err
		}

		<-ctx.Done()
		logger.WithContext(ctx).Info("closing subscription", zap.String("class", class))
		return sub.Close()
	})
	cmd.Flags().StringVar(&class, "class", "", "Object class to watch (required)")
	cmd.Flags().StringArrayVar(&where, "where", nil, "Equality condition attr=value applied to events")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while watching, e.g. :9090")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return srv
}
