package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tra-portal/tra-portal/internal/services"
)

func newComplianceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compliance",
		Short: "Compliance dashboards and scores",
	}
	cmd.AddCommand(newComplianceDashboardCmd(a), newComplianceScoreCmd(a), newRevenueCmd(a))
	return cmd
}

func newComplianceDashboardCmd(a *app) *cobra.Command {
	var region, sector, period string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the compliance dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.store.FetchComplianceDashboard(cmd.Context(),
				services.Filters{"region": region, "sector": sector, "period": period})
			if err != nil {
				return err
			}
			if a.store.State().Error != nil {
				a.notice(cmd.ErrOrStderr(), "Showing sample data: the dashboard could not be loaded")
			}

			if a.output != OutputTable {
				return a.print(cmd.OutOrStdout(), d, nil, nil)
			}
			err = a.printFields(cmd.OutOrStdout(), d, [][2]string{
				{"Overall score", number(d.OverallScore)},
				{"Taxpayers", fmt.Sprint(d.TotalTaxpayers)},
				{"Compliant", fmt.Sprint(d.CompliantTaxpayers)},
				{"Non-compliant", fmt.Sprint(d.NonCompliantTaxpayers)},
				{"Pending audits", fmt.Sprint(d.PendingAudits)},
				{"Total penalties", money(d.TotalPenalties)},
			})
			if err != nil || len(d.ByRegion) == 0 {
				return err
			}

			rows := make([][]string, 0, len(d.ByRegion))
			for _, r := range d.ByRegion {
				rows = append(rows, []string{r.Region, number(r.Score), fmt.Sprint(r.Taxpayers)})
			}
			return a.print(cmd.OutOrStdout(), d, []string{"Region", "Score", "Taxpayers"}, rows)
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "filter by region")
	cmd.Flags().StringVar(&sector, "sector", "", "filter by sector")
	cmd.Flags().StringVar(&period, "period", "", "reporting period")
	return cmd
}

func newComplianceScoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "score <tin>",
		Short: "Show a taxpayer's compliance score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.service.GetComplianceScore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printFields(cmd.OutOrStdout(), s, [][2]string{
				{"TIN", s.TIN},
				{"Score", number(s.Score)},
				{"Rating", s.Rating},
				{"Updated", timestamp(s.UpdatedAt)},
			})
		},
	}
}

func newRevenueCmd(a *app) *cobra.Command {
	var period, region string
	cmd := &cobra.Command{
		Use:   "revenue",
		Short: "Show the revenue dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.store.FetchRevenueDashboard(cmd.Context(),
				services.Filters{"period": period, "region": region})
			if err != nil {
				return err
			}

			if a.output != OutputTable {
				return a.print(cmd.OutOrStdout(), d, nil, nil)
			}
			rows := [][]string{
				{"Total", money(d.TotalRevenue)},
				{"Target", money(d.TargetRevenue)},
				{"Collection rate", number(d.CollectionRate)},
			}
			for _, b := range d.ByTaxType {
				rows = append(rows, []string{b.Category, money(b.Amount)})
			}
			return a.print(cmd.OutOrStdout(), d, []string{"Revenue", "Amount"}, rows)
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "reporting period")
	cmd.Flags().StringVar(&region, "region", "", "filter by region")
	return cmd
}
