package cli

import (
	"github.com/spf13/cobra"

	"github.com/tra-portal/tra-portal/internal/services"
)

func newTaxpayersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxpayers",
		Short: "List and register taxpayers",
	}
	cmd.AddCommand(newTaxpayersListCmd(a), newTaxpayersRegisterCmd(a))
	return cmd
}

func newTaxpayersListCmd(a *app) *cobra.Command {
	var (
		status, taxpayerType, region, search string
		page, limit                          int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered taxpayers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := services.Filters{
				"status":       status,
				"taxpayerType": taxpayerType,
				"region":       region,
				"search":       search,
			}
			if page > 0 {
				f["page"] = page
			}
			if limit > 0 {
				f["limit"] = limit
			}

			taxpayers, err := a.store.FetchTaxpayers(cmd.Context(), f)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(taxpayers))
			for _, t := range taxpayers {
				rows = append(rows, []string{t.TIN, t.Name, t.TaxpayerType, t.Region, t.Status, number(t.ComplianceScore)})
			}
			return a.print(cmd.OutOrStdout(), taxpayers,
				[]string{"TIN", "Name", "Type", "Region", "Status", "Score"}, rows)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (ACTIVE, INACTIVE, SUSPENDED)")
	cmd.Flags().StringVar(&taxpayerType, "type", "", "filter by taxpayer type")
	cmd.Flags().StringVar(&region, "region", "", "filter by region")
	cmd.Flags().StringVar(&search, "search", "", "match name or TIN")
	cmd.Flags().IntVar(&page, "page", 0, "page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	return cmd
}

func newTaxpayersRegisterCmd(a *app) *cobra.Command {
	var reg services.TaxpayerRegistration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a taxpayer",
		Long:  `Register a taxpayer. The TIN must contain 9 digits; separators such as 123-456-789 are accepted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.store.RegisterTaxpayer(cmd.Context(), reg)
			if err != nil {
				return err
			}
			a.notice(cmd.ErrOrStderr(), "Registered taxpayer %s", t.TIN)
			return a.printFields(cmd.OutOrStdout(), t, [][2]string{
				{"TIN", t.TIN},
				{"Name", t.Name},
				{"Type", t.TaxpayerType},
				{"Region", t.Region},
				{"Status", t.Status},
				{"Registered", timestamp(t.RegisteredAt)},
				{"Ledger tx", t.BlockchainTxID},
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&reg.TIN, "tin", "", "taxpayer identification number")
	flags.StringVar(&reg.Name, "name", "", "registered name")
	flags.StringVar(&reg.TaxpayerType, "type", "", "taxpayer type, e.g. INDIVIDUAL or CORPORATE")
	flags.StringVar(&reg.Region, "region", "", "region")
	flags.StringVar(&reg.Sector, "sector", "", "business sector")
	flags.StringVar(&reg.Email, "email", "", "contact email")
	flags.StringVar(&reg.Phone, "phone", "", "contact phone")
	flags.StringVar(&reg.Address, "address", "", "postal address")
	flags.StringVar(&reg.NationalID, "national-id", "", "NIDA national identification number")
	flags.StringVar(&reg.BusinessRegistrationNumber, "brn", "", "BRELA business registration number")
	_ = cmd.MarkFlagRequired("tin")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
