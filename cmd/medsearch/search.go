package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/to-ny/medsearch-sub001/internal/api/handlers"
	"github.com/to-ny/medsearch-sub001/internal/application/services"
	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
	apperrors "github.com/to-ny/medsearch-sub001/pkg/errors"
)

// filterFlags maps CLI flag names to the HTTP query parameters they set
var filterFlags = []struct {
	flag, param, usage string
}{
	{"vtm", "vtm", "Substance root code"},
	{"vmp", "vmp", "Generic product code"},
	{"amp", "amp", "Branded product code"},
	{"atc", "atc", "ATC classification code"},
	{"company", "company", "Company code"},
	{"vmp-group", "vmp_group", "Therapeutic group code"},
	{"substance", "substance", "Raw substance code"},
	{"form", "form", "Pharmaceutical form codes (comma-separated)"},
	{"route", "route", "Route of administration codes (comma-separated)"},
	{"reimbursement-category", "reimbursement_category", "Reimbursement categories (comma-separated)"},
	{"price-min", "price_min", "Minimum public price"},
	{"price-max", "price_max", "Maximum public price"},
	{"delivery", "delivery", "Delivery channel: public|hospital"},
	{"medicine-type", "medicine_type", "Medicine type: allopathic|homeopathic|herbal|other"},
}

type searchOptions struct {
	lang          string
	types         string
	limit         int
	offset        int
	perKindCap    int
	partial       bool
	reimbursable  bool
	blackTriangle bool
	outputJSON    bool
	timeout       time.Duration
	filters       map[string]*string
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{filters: make(map[string]*string)}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search every entity type at once",
		Long: `Search every entity type at once and print the ranked results.

A query needs at least three characters unless a filter narrows it.

Examples:
  medsearch search paracetamol --snapshot index.json
  medsearch search 1234567 --types ampp
  medsearch search --company C01 --reimbursable --types amp,ampp
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, root, opts, strings.Join(args, " "))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.lang, "lang", entities.DefaultLanguage, "Result language: nl|fr|de|en")
	flags.StringVar(&opts.types, "types", "", "Restrict to entity types (comma-separated)")
	flags.IntVar(&opts.limit, "limit", 20, "Number of results to return")
	flags.IntVar(&opts.offset, "offset", 0, "Number of results to skip")
	flags.IntVar(&opts.perKindCap, "cap", 50, "Maximum candidates fetched per entity type")
	flags.BoolVar(&opts.partial, "partial", false, "Return the other types' results when one lookup fails")
	flags.BoolVar(&opts.reimbursable, "reimbursable", false, "Only reimbursable products")
	flags.BoolVar(&opts.blackTriangle, "black-triangle", false, "Only products under additional monitoring")
	flags.BoolVarP(&opts.outputJSON, "json", "j", false, "Output results in JSON format")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Search timeout")
	for _, f := range filterFlags {
		opts.filters[f.param] = flags.String(f.flag, "", f.usage)
	}

	return cmd
}

func runSearch(cmd *cobra.Command, root *rootOptions, opts *searchOptions, text string) error {
	values := url.Values{}
	values.Set("q", text)
	values.Set("lang", opts.lang)
	values.Set("types", opts.types)
	values.Set("limit", strconv.Itoa(opts.limit))
	values.Set("offset", strconv.Itoa(opts.offset))
	for param, v := range opts.filters {
		if *v != "" {
			values.Set(param, *v)
		}
	}
	if opts.reimbursable {
		values.Set("reimbursable", "true")
	}
	if opts.blackTriangle {
		values.Set("black_triangle", "true")
	}

	query, err := handlers.ParseSearchQuery(values, 0)
	if err != nil {
		return err
	}
	if opts.perKindCap <= 0 || opts.perKindCap > services.MaxPerKindCap {
		return apperrors.NewInvalidParamsError(fmt.Sprintf("--cap must be between 1 and %d", services.MaxPerKindCap))
	}

	ctx, cancel := contextWithTimeout(cmd, opts.timeout)
	defer cancel()

	index, closeIndex, err := openIndex(ctx, root)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer closeIndex()

	engine := services.NewSearchEngine(index, services.SearchEngineConfig{
		PerKindCap:     opts.perKindCap,
		PartialResults: opts.partial,
	})

	resp, err := engine.Search(ctx, query)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok && appErr.Guidance {
			fmt.Fprintln(cmd.ErrOrStderr(), appErr.Message)
		}
		return err
	}

	if opts.outputJSON {
		enc := json.NewEncoder(root.out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return printResults(root.out, resp)
}

func printResults(out io.Writer, resp *entities.SearchResponse) error {
	if resp.TotalCount == 0 {
		_, err := fmt.Fprintf(out, "No results for %q\n", resp.Query)
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tCODE\tNAME\tDETAILS\tSCORE")
	for _, item := range resp.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\n", item.EntityType, item.Code, item.Name, details(item), item.Score)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	first := resp.Pagination.Offset + 1
	last := resp.Pagination.Offset + len(resp.Results)
	fmt.Fprintf(out, "\nShowing %d-%d of %d (%s)\n", first, last, resp.TotalCount, facetSummary(resp.Facets))
	if resp.Incomplete {
		fmt.Fprintf(out, "Counts are lower bounds for: %s\n", kindList(resp.TruncatedKinds))
	}
	if resp.Partial {
		fmt.Fprintf(out, "Lookups failed for: %s\n", kindList(resp.FailedKinds))
	}
	return nil
}

func details(item entities.SearchResultItem) string {
	var parts []string
	if item.CNK != "" {
		parts = append(parts, "CNK "+item.CNK)
	}
	if item.PackDisplayValue != "" {
		parts = append(parts, item.PackDisplayValue)
	}
	if item.Price != nil {
		parts = append(parts, fmt.Sprintf("€%.2f", *item.Price))
	}
	if item.Reimbursable != nil && *item.Reimbursable {
		parts = append(parts, "reimbursed")
	}
	if item.CompanyName != "" {
		parts = append(parts, item.CompanyName)
	}
	if item.ParentName != "" && len(parts) == 0 {
		parts = append(parts, item.ParentName)
	}
	if item.ProductCount != nil {
		parts = append(parts, fmt.Sprintf("%d products", *item.ProductCount))
	}
	if item.BlackTriangle != nil && *item.BlackTriangle {
		parts = append(parts, "▼")
	}
	return strings.Join(parts, ", ")
}

func facetSummary(facets map[entities.EntityKind]int) string {
	kinds := make([]entities.EntityKind, 0, len(facets))
	for k := range facets {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, facets[k]))
	}
	return strings.Join(parts, " ")
}

func kindList(kinds []entities.EntityKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}
