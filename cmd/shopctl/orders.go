package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/linemk/storefront/internal/app"
	"github.com/linemk/storefront/internal/domain/models"
)

func ordersCmd(svc func() *app.Services) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and manage orders",
	}
	cmd.AddCommand(ordersListCmd(svc), ordersStatusCmd(svc), ordersDeleteCmd(svc))
	return cmd
}

func ordersListCmd(svc func() *app.Services) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				orders []*models.Order
				err    error
			)
			if userID > 0 {
				orders, err = svc().Orders.UserOrders(cmd.Context(), userID)
			} else {
				orders, err = svc().Orders.AllOrders(cmd.Context())
			}
			if err != nil {
				return err
			}
			return renderOrders(cmd.OutOrStdout(), orders)
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "only orders of this user id")
	return cmd
}

func ordersStatusCmd(svc func() *app.Services) *cobra.Command {
	return &cobra.Command{
		Use:   "status <order-id> <status>",
		Short: "Set order status (e.g. \"Shipped\", \"Out for delivery\")",
		Long:  "Set order status. Valid statuses:\n" + statusList(),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := svc().Orders.SetStatus(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %s: status set to %q\n", args[0], args[1])
			return nil
		},
	}
}

func ordersDeleteCmd(svc func() *app.Services) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <order-id>",
		Short: "Delete an order if the deletion rules allow it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := svc().Orders.DeleteOrder(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %s deleted\n", args[0])
			return nil
		},
	}
}

func statusList() string {
	var b strings.Builder
	for _, st := range models.OrderStatuses() {
		fmt.Fprintf(&b, "  %q\n", st)
	}
	return b.String()
}

func renderOrders(w io.Writer, orders []*models.Order) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "User", "Method", "Paid", "Status", "Amount", "Date")
	for _, o := range orders {
		if err := table.Append([]string{
			o.ID,
			strconv.FormatInt(o.UserID, 10),
			string(o.PaymentMethod),
			strconv.FormatBool(o.Payment),
			string(o.Status),
			o.Amount.StringFixed(2),
			o.CreatedAt.Format("2006-01-02 15:04"),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
