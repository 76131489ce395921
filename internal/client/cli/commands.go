package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/services"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/client/transport"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/spf13/cobra"
)

func newSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a full session: pull reference data and push documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, opts, services.SessionRequest{Mode: transport.ModeFull})
		},
	}
}

func newSendCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Push pending documents and uploads without a full pull",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, opts, services.SessionRequest{Mode: transport.ModeSendOnly})
		},
	}
}

func newConfirmCommand(opts *RootOptions) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "confirm <guid> <code>",
		Short: "Report a response code for a sent document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k := models.DocKind(kind)
			if k != models.KindOrder && k != models.KindCash {
				return fmt.Errorf("unknown document kind %q", kind)
			}
			return runSession(cmd, opts, services.SessionRequest{
				Mode:         transport.ModeConfirm,
				ConfirmKind:  k,
				ConfirmGUID:  args[0],
				ResponseCode: args[1],
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(models.KindOrder), "document kind: order or cash")
	return cmd
}

func newPrintCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "print <guid> <file>",
		Short: "Download the printable form of a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := opts.app.sync.Run(cmd.Context(), opts.app.tenant,
				services.SessionRequest{Mode: transport.ModePrint, PrintGUID: args[0]})
			if err != nil {
				return err
			}
			if len(sum.PrintFile) == 0 {
				return fmt.Errorf("document %s: %w", args[0], common.ErrNotFound)
			}
			if err := filex.WriteFileAtomic(args[1], sum.PrintFile, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", args[1], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes\n", args[1], len(sum.PrintFile))
			return nil
		},
	}
}

func newContentCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "content <client-guid> <doc-id>",
		Short: "Show the body of a debt document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.app.sync.DocumentContent(cmd.Context(), opts.app.tenant, args[0], args[1])
			if err != nil {
				return err
			}
			if c == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "no content")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), c)
			return nil
		},
	}
}

func newMigrateTenantCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-tenant",
		Short: "Assign rows stored without a tenant to the selected tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := opts.app.store.MigrateLegacyTenant(cmd.Context(), opts.app.tenant)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows assigned to %s\n", n, opts.app.tenant)
			return nil
		},
	}
}

func newStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local row counts and the last session summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return status(cmd, opts.app)
		},
	}
}

func runSession(cmd *cobra.Command, opts *RootOptions, req services.SessionRequest) error {
	sum, err := opts.app.sync.Run(cmd.Context(), opts.app.tenant, req)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), sum)
	return nil
}

func printSummary(w io.Writer, s *services.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "tenant\t%s\n", s.Tenant)
	fmt.Fprintf(tw, "mode\t%s\n", s.Mode)
	fmt.Fprintf(tw, "duration\t%s\n", s.Duration.Round(time.Millisecond))

	types := make([]string, 0, len(s.Records))
	for dt := range s.Records {
		types = append(types, string(dt))
	}
	sort.Strings(types)
	for _, dt := range types {
		fmt.Fprintf(tw, "  %s\t%d\n", dt, s.Records[models.DataType(dt)])
	}
	if s.Failed > 0 {
		fmt.Fprintf(tw, "failed rows\t%d\n", s.Failed)
	}
	if s.Sent+s.Rejected > 0 {
		fmt.Fprintf(tw, "documents sent\t%d\n", s.Sent)
		fmt.Fprintf(tw, "documents rejected\t%d\n", s.Rejected)
	}
	if s.Confirmed > 0 {
		fmt.Fprintf(tw, "confirmed\t%d\n", s.Confirmed)
	}
	if s.Uploads > 0 {
		fmt.Fprintf(tw, "uploads\t%d\n", s.Uploads)
	}
	var pruned int64
	for _, n := range s.Pruned {
		pruned += n
	}
	if pruned > 0 {
		fmt.Fprintf(tw, "pruned\t%d\n", pruned)
	}
	_ = tw.Flush()
}

func status(cmd *cobra.Command, a *App) error {
	ctx := cmd.Context()
	tn := a.Tenant()
	w := cmd.OutOrStdout()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "tenant\t%s\n", a.tenant)
	for _, dt := range models.ReferenceTypes() {
		n, err := tn.Count(ctx, dt)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "  %s\t%d\n", dt, n)
	}
	orders, err := tn.PendingOrders(ctx)
	if err != nil {
		return err
	}
	cash, err := tn.PendingCash(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(tw, "pending documents\t%d\n", len(orders)+len(cash))
	_ = tw.Flush()

	var last services.Summary
	err = tn.LoadJSON(ctx, store.SettingLastSync, &last)
	switch {
	case errors.Is(err, common.ErrNotFound):
		fmt.Fprintln(w, "never synchronized")
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(w, "last session %s (%s)\n", last.Started.Local().Format("2006-01-02 15:04:05"), last.Mode)
	printSummary(w, &last)
	return nil
}
