package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ariefcatur/go-storefront/internal/catalog"
)

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the catalog with the built-in seed or a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ps := catalog.Seed()
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				ps = nil
				if err := json.Unmarshal(b, &ps); err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
			}
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Catalog.Import(cmd.Context(), ps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d products\n", len(ps))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON array of products")
	return cmd
}

func newProductsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "products", Short: "Inspect the catalog"}

	var (
		q      = url.Values{}
		asJSON bool
	)
	query := &cobra.Command{
		Use:   "query",
		Short: "Search, filter and sort the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range []string{"search", "category", "seller-id", "min-price", "max-price", "sort", "order"} {
				if v, _ := cmd.Flags().GetString(name); v != "" {
					q.Set(queryParam[name], v)
				}
			}
			f, err := catalog.ParseFilter(q)
			if err != nil {
				return err
			}
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ps := catalog.Query(a.Catalog.List(), f)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), ps)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK\tRATING")
			for _, p := range ps {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%.1f\n", p.ID, p.Name, p.Category, p.Price.StringFixed(2), p.Stock, p.Rating)
			}
			return tw.Flush()
		},
	}
	fl := query.Flags()
	fl.String("search", "", "substring of name or description")
	fl.String("category", "", "exact category, case-insensitive")
	fl.String("seller-id", "", "only products of this seller")
	fl.String("min-price", "", "inclusive lower price bound")
	fl.String("max-price", "", "inclusive upper price bound")
	fl.String("sort", "", "price, rating or newest")
	fl.String("order", "", "asc or desc")
	fl.BoolVar(&asJSON, "json", false, "print JSON")

	cmd.AddCommand(query)
	return cmd
}

var queryParam = map[string]string{
	"search":    "search",
	"category":  "category",
	"seller-id": "seller_id",
	"min-price": "min_price",
	"max-price": "max_price",
	"sort":      "sort_by",
	"order":     "sort_order",
}
