package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/consentdesk/console/internal/console"
)

// lister loads one resource table and renders it.
type lister func(ctx context.Context, w io.Writer, tables *console.Tables, search, category string) error

var listers = map[string]lister{
	console.KindRules: func(ctx context.Context, w io.Writer, t *console.Tables, search, category string) error {
		return listTable(ctx, w, t.Rules, search, category, []column{
			{title: "id", width: 14},
			{title: "name", width: 30},
			{title: "regulation", width: 10},
			{title: "enabled", width: 8},
		}, func(r console.Rule) []string {
			return []string{r.ID, r.Name, r.Regulation, strconv.FormatBool(r.Enabled)}
		})
	},
	console.KindCustomers: func(ctx context.Context, w io.Writer, t *console.Tables, search, category string) error {
		return listTable(ctx, w, t.Customers, search, category, []column{
			{title: "id", width: 14},
			{title: "name", width: 24},
			{title: "email", width: 30},
			{title: "status", width: 10},
		}, func(c console.Customer) []string {
			return []string{c.ID, c.Name, c.Email, c.Status}
		})
	},
	console.KindGuardianConsents: func(ctx context.Context, w io.Writer, t *console.Tables, search, category string) error {
		return listTable(ctx, w, t.GuardianConsents, search, category, []column{
			{title: "id", width: 14},
			{title: "minor", width: 20},
			{title: "age", width: 4},
			{title: "guardian", width: 28},
			{title: "status", width: 9},
		}, func(g console.GuardianConsent) []string {
			return []string{g.ID, g.MinorName, strconv.Itoa(g.MinorAge), g.GuardianEmail, g.Status}
		})
	},
	console.KindPrivacyNotices: func(ctx context.Context, w io.Writer, t *console.Tables, search, category string) error {
		return listTable(ctx, w, t.PrivacyNotices, search, category, []column{
			{title: "id", width: 14},
			{title: "title", width: 28},
			{title: "version", width: 8},
			{title: "lang", width: 5},
			{title: "status", width: 10},
			{title: "effective", width: 16},
		}, func(p console.PrivacyNotice) []string {
			return []string{p.ID, p.Title, p.Version, p.Language, p.Status, formatTime(p.EffectiveAt)}
		})
	},
	console.KindTopicPreferences: func(ctx context.Context, w io.Writer, t *console.Tables, search, category string) error {
		return listTable(ctx, w, t.TopicPreferences, search, category, []column{
			{title: "id", width: 14},
			{title: "customer", width: 14},
			{title: "topic", width: 24},
			{title: "channel", width: 8},
			{title: "opted in", width: 8},
		}, func(p console.TopicPreference) []string {
			return []string{p.ID, p.CustomerID, p.Topic, p.Channel, strconv.FormatBool(p.OptedIn)}
		})
	},
}

func kinds() []string {
	out := make([]string, 0, len(listers))
	for k := range listers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func listTable[T console.Record](ctx context.Context, w io.Writer, table *console.Table[T], search, category string, cols []column, row func(T) []string) error {
	if err := table.Load(ctx); err != nil {
		return fmt.Errorf("loading %s: %w", table.Name(), err)
	}

	items := table.Query(search, category)
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, row(item))
	}
	renderTable(w, fmt.Sprintf("%s (%d)", table.Name(), len(items)), cols, rows)
	renderSummary(w, table.Name(), table.Summary())
	return nil
}

func newResourcesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resources",
		Short: "Browse consent backend resources",
	}
	cmd.AddCommand(newResourcesListCmd(opts))
	return cmd
}

func newResourcesListCmd(opts *rootOptions) *cobra.Command {
	var search, category string

	cmd := &cobra.Command{
		Use:       "list <kind>",
		Short:     "List a resource: " + strings.Join(kinds(), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: kinds(),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, ok := listers[args[0]]
			if !ok {
				return fmt.Errorf("unknown resource %q, expected one of %s", args[0], strings.Join(kinds(), ", "))
			}

			ctx := cmd.Context()
			a, err := opts.open(ctx, cmd, failures(cmd))
			if err != nil {
				return err
			}
			defer a.Close()

			return list(ctx, cmd.OutOrStdout(), a.Tables, search, category)
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Free-text filter")
	cmd.Flags().StringVar(&category, "category", "", "Only show records in this category")
	return cmd
}

