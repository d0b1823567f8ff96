package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/linemk/storefront/internal/app"
	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/service"
)

func productsCmd(svc func() *app.Services) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Inspect and extend the catalog",
	}
	cmd.AddCommand(productsListCmd(svc), productsAddCmd(svc))
	return cmd
}

func productsListCmd(svc func() *app.Services) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := svc().Product.ListProducts(cmd.Context())
			if err != nil {
				return err
			}
			return renderProducts(cmd.OutOrStdout(), products)
		},
	}
}

func productsAddCmd(svc func() *app.Services) *cobra.Command {
	var (
		name, description, category, price string
		sizes                              []string
		bestseller                         bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			product, err := buildProduct(name, description, category, price, sizes, bestseller)
			if err != nil {
				return err
			}
			created, err := svc().Product.AddProduct(cmd.Context(), product)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "product %d created\n", created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "product name")
	cmd.Flags().StringVar(&description, "description", "", "product description")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&price, "price", "", "unit price, e.g. 25.50")
	cmd.Flags().StringSliceVar(&sizes, "sizes", nil, "available sizes, comma separated")
	cmd.Flags().BoolVar(&bestseller, "bestseller", false, "mark as bestseller")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func buildProduct(name, description, category, price string, sizes []string, bestseller bool) (*models.Product, error) {
	price = strings.TrimSpace(price)
	if price == "" {
		return nil, fmt.Errorf("price is required: %w", service.ErrValidation)
	}
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", price, service.ErrValidation)
	}
	cleaned := make([]string, 0, len(sizes))
	for _, s := range sizes {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return &models.Product{
		Name:        strings.TrimSpace(name),
		Description: description,
		Category:    category,
		Price:       amount,
		Sizes:       cleaned,
		Bestseller:  bestseller,
	}, nil
}

func renderProducts(w io.Writer, products []*models.Product) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Name", "Category", "Price", "Sizes", "Bestseller")
	for _, p := range products {
		if err := table.Append([]string{
			strconv.FormatInt(p.ID, 10),
			p.Name,
			p.Category,
			p.Price.StringFixed(2),
			strings.Join(p.Sizes, ","),
			strconv.FormatBool(p.Bestseller),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
