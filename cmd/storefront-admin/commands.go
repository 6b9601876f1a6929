package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"storefront/internal/service"

	"github.com/spf13/cobra"
)

func newRootCmd(open backendFactory, out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "storefront-admin",
		Short:         "Provision storefronts and inspect orders",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.AddCommand(migrateCmd(open))
	rootCmd.AddCommand(createStoreCmd(open))
	rootCmd.AddCommand(setConfigCmd(open))
	rootCmd.AddCommand(addDomainCmd(open))
	rootCmd.AddCommand(publishCmd(open))
	rootCmd.AddCommand(exportOrdersCmd(open))
	return rootCmd
}

// withBackend 打开 backend，执行 fn 后关闭
func withBackend(open backendFactory, fn func(b *backend) error) error {
	b, err := open()
	if err != nil {
		return fmt.Errorf("failed to open backend: %w", err)
	}
	if b.Close != nil {
		defer b.Close()
	}
	return fn(b)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd(open backendFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(open, func(b *backend) error {
				n, err := b.Migrate(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d schema statements\n", n)
				return nil
			})
		},
	}
}

func createStoreCmd(open backendFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "create-store [name]",
		Short: "Create a tenant with a draft storefront",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(open, func(b *backend) error {
				resp, err := b.Provisioning.CreateStore(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, resp)
			})
		},
	}
}

func setConfigCmd(open backendFactory) *cobra.Command {
	var req service.UpdateStoreConfigRequest
	cmd := &cobra.Command{
		Use:   "set-config [tenantId]",
		Short: "Update storefront name, currency, locale, theme or subdomain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(open, func(b *backend) error {
				resp, err := b.Provisioning.UpdateStoreConfig(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				return printJSON(cmd, resp)
			})
		},
	}
	cmd.Flags().StringVar(&req.StoreName, "name", "", "store display name")
	cmd.Flags().StringVar(&req.Currency, "currency", "", "ISO 4217 currency code")
	cmd.Flags().StringVar(&req.Locale, "locale", "", "storefront locale")
	cmd.Flags().StringVar(&req.Theme, "theme", "", "storefront theme")
	cmd.Flags().StringVar(&req.Subdomain, "subdomain", "", "platform subdomain")
	return cmd
}

func addDomainCmd(open backendFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "add-domain [tenantId] [hostname]",
		Short: "Bind a hostname to a tenant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(open, func(b *backend) error {
				resp, err := b.Provisioning.AddDomain(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, resp)
			})
		},
	}
}

func publishCmd(open backendFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "publish [tenantId]",
		Short: "Publish a draft storefront",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(open, func(b *backend) error {
				resp, err := b.Provisioning.PublishStore(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, resp)
			})
		},
	}
}

func exportOrdersCmd(open backendFactory) *cobra.Command {
	var outPath, status string
	cmd := &cobra.Command{
		Use:   "export-orders [tenantId]",
		Short: "Export a tenant's orders to an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(open, func(b *backend) error {
				data, err := b.Orders.ExportOrders(cmd.Context(), args[0], status)
				if err != nil {
					return err
				}
				if err := os.WriteFile(outPath, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", outPath, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", outPath, len(data))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "orders.xlsx", "output file")
	cmd.Flags().StringVar(&status, "status", "", "only export orders in this status")
	return cmd
}
