package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"memoriqr-service/internal/auth"
	"memoriqr-service/internal/broker"
	"memoriqr-service/internal/models"
	"memoriqr-service/internal/service"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func generateCmd() *cobra.Command {
	var (
		variant   string
		quantity  int
		partnerID string
		noEvents  bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a batch of activation codes",
		Long: `Generate a batch of activation codes and print them one per line.

Examples:
  codesctl generate --variant 5N --quantity 50
  codesctl generate --variant 10B --quantity 20 --partner-id 7c1e...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			var publisher service.EventPublisher
			if !noEvents {
				producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
				defer producer.Close()
				publisher = broker.NewEventPublisher(producer)
			}

			gen := service.NewCodeGenerator(db, nil, publisher, service.GeneratorConfig{
				MaxQuantity: cfg.Business.MaxBatchQuantity,
				ExpiryYears: cfg.Business.CodeExpiryYears,
			})
			res, err := gen.Generate(ctx, &service.GenerateRequest{
				Variant:   variant,
				Quantity:  quantity,
				PartnerID: partnerID,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(cmd.ErrOrStderr(), "Batch %s (%s): %d codes\n", res.BatchName, res.BatchID, len(res.Codes))
			for _, code := range res.Codes {
				fmt.Fprintln(out, code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&variant, "variant", "", "product variant token, e.g. 5N, 10B, 25Q")
	cmd.Flags().IntVarP(&quantity, "quantity", "n", 0, "number of codes to generate")
	cmd.Flags().StringVar(&partnerID, "partner-id", "", "assign the batch to this partner")
	cmd.Flags().BoolVar(&noEvents, "no-events", false, "do not publish a codes-generated event")
	_ = cmd.MarkFlagRequired("variant")
	_ = cmd.MarkFlagRequired("quantity")

	return cmd
}

func batchesCmd() *cobra.Command {
	var partnerID string

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List code batches with used and unused counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			batches, err := service.NewBatchLedger(db).ListBatches(ctx, partnerID)
			if err != nil {
				return err
			}
			return printBatches(cmd.OutOrStdout(), batches)
		},
	}

	cmd.Flags().StringVar(&partnerID, "partner-id", "", "only batches owned by this partner")
	return cmd
}

func printBatches(w io.Writer, batches []models.BatchSummary) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Product", "Years", "Total", "Used", "Unused", "Deleted", "Created"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for i := range batches {
		b := &batches[i]
		table.Append([]string{
			b.Name,
			string(b.ProductType),
			strconv.Itoa(b.HostingDurationYears),
			strconv.Itoa(b.TotalCodes),
			strconv.Itoa(b.UsedCodes),
			strconv.Itoa(b.UnusedCodes),
			strconv.Itoa(b.DeletedCodes()),
			b.CreatedAt.Format(time.DateOnly),
		})
	}
	table.Render()
	return nil
}

func lookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup [code]",
		Short: "Show a code with its partner, history and hosting phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			detail, err := service.NewCodeCatalog(db).Lookup(ctx, args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(detail)
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		role      string
		partnerID string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the admin or partner API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if auth.Role(role) == auth.RolePartner {
				p, err := service.NewPartnerService(db, nil).GetPartner(ctx, partnerID)
				if err != nil {
					return err
				}
				if !p.IsActive {
					return fmt.Errorf("partner %s is inactive", p.ID)
				}
			}

			tokens := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
			token, exp, err := tokens.GenerateToken(auth.Role(role), partnerID)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(auth.RoleAdmin), "admin or partner")
	cmd.Flags().StringVar(&partnerID, "partner-id", "", "partner the token belongs to (partner role only)")
	return cmd
}
