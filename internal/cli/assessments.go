package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tra-portal/tra-portal/internal/forms"
	"github.com/tra-portal/tra-portal/internal/services"
)

func newAssessmentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "assessments",
		Aliases: []string{"assessment"},
		Short:   "Manage tax assessments",
	}
	cmd.AddCommand(
		newAssessmentsListCmd(a),
		newAssessmentsCreateCmd(a),
		newAssessmentsUpdateCmd(a),
		newAssessmentsDeleteCmd(a),
		newAssessmentsHistoryCmd(a),
		newAssessmentsLedgerCmd(a),
	)
	return cmd
}

func newAssessmentsListCmd(a *app) *cobra.Command {
	var (
		tin, taxType, status string
		year, quarter        int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tax assessments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := services.Filters{"tin": tin, "taxType": taxType, "status": status}
			if year > 0 {
				f["year"] = year
			}
			if quarter > 0 {
				f["quarter"] = quarter
			}

			assessments, err := a.store.FetchAssessments(cmd.Context(), f)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(assessments))
			for _, as := range assessments {
				rows = append(rows, []string{
					as.ID, as.TIN, as.TaxType, as.Period, money(as.Amount), as.Currency, as.Status, as.DueDate,
				})
			}
			return a.print(cmd.OutOrStdout(), assessments,
				[]string{"ID", "TIN", "Tax type", "Period", "Amount", "Currency", "Status", "Due"}, rows)
		},
	}
	cmd.Flags().StringVar(&tin, "tin", "", "filter by TIN")
	cmd.Flags().StringVar(&taxType, "tax-type", "", "filter by tax type")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&year, "year", 0, "filter by year")
	cmd.Flags().IntVar(&quarter, "quarter", 0, "filter by quarter")
	return cmd
}

// draftFlags binds the editable assessment fields to command flags.
type draftFlags struct {
	tin, taxType, amount, currency, status string
	description, dueDate, penalties        string
	interest                               string
	year, quarter                          int
}

func (d *draftFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&d.tin, "tin", "", "taxpayer identification number")
	fs.StringVar(&d.taxType, "tax-type", "", "tax type, e.g. VAT or PAYE")
	fs.IntVar(&d.year, "year", 0, "assessment year")
	fs.IntVar(&d.quarter, "quarter", 0, "assessment quarter (1-4)")
	fs.StringVar(&d.amount, "amount", "", "assessed amount")
	fs.StringVar(&d.currency, "currency", "", "currency code")
	fs.StringVar(&d.status, "status", "", "PENDING, ASSESSED, PAID, OVERDUE or DISPUTED")
	fs.StringVar(&d.description, "description", "", "description")
	fs.StringVar(&d.dueDate, "due-date", "", "due date (YYYY-MM-DD)")
	fs.StringVar(&d.penalties, "penalties", "", "penalties")
	fs.StringVar(&d.interest, "interest", "", "interest")
}

// apply copies the flags the user set onto draft.
func (d *draftFlags) apply(fs *pflag.FlagSet, draft *forms.AssessmentDraft) {
	set := func(name string, target *string, value string) {
		if fs.Changed(name) {
			*target = value
		}
	}
	set("tin", &draft.TIN, d.tin)
	set("tax-type", &draft.TaxType, d.taxType)
	set("amount", &draft.Amount, d.amount)
	set("currency", &draft.Currency, d.currency)
	set("status", &draft.Status, strings.ToUpper(d.status))
	set("description", &draft.Description, d.description)
	set("due-date", &draft.DueDate, d.dueDate)
	set("penalties", &draft.Penalties, d.penalties)
	set("interest", &draft.Interest, d.interest)
	if fs.Changed("year") {
		draft.Year = d.year
	}
	if fs.Changed("quarter") {
		draft.Quarter = d.quarter
	}
}

func newAssessmentsCreateCmd(a *app) *cobra.Command {
	var flags draftFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tax assessment",
		Long: `Create a tax assessment. Year and quarter default to the current quarter,
currency to TZS and status to PENDING.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := forms.NewDraft(a.now())
			flags.apply(cmd.Flags(), &draft)

			out := forms.Submitter{Writer: a.store}.SubmitCreate(cmd.Context(), draft)
			return a.reportOutcome(cmd, out)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func newAssessmentsUpdateCmd(a *app) *cobra.Command {
	var flags draftFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a tax assessment",
		Long: `Update a tax assessment. Only the fields that differ from the current
assessment are sent; when nothing differs no request is made.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := a.service.GetTaxAssessment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			original := forms.RecordFromAssessment(*current)
			draft := forms.DraftFromRecord(original)
			flags.apply(cmd.Flags(), &draft)

			out := forms.Submitter{Writer: a.store}.SubmitUpdate(cmd.Context(), args[0], original, draft)
			return a.reportOutcome(cmd, out)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

// reportOutcome prints the result of a form submission.
func (a *app) reportOutcome(cmd *cobra.Command, out forms.Outcome) error {
	switch out.Kind {
	case forms.NoChanges:
		a.notice(cmd.ErrOrStderr(), "No changes to save")
		return nil
	case forms.ValidationFailed:
		fields := make([]string, 0, len(out.Errors))
		for field := range out.Errors {
			fields = append(fields, field)
		}
		slices.Sort(fields)
		problems := make([]string, 0, len(fields))
		for _, field := range fields {
			problems = append(problems, fmt.Sprintf("%s: %s", field, out.Errors[field]))
		}
		return fmt.Errorf("invalid assessment: %s", strings.Join(problems, "; "))
	case forms.ServerError:
		return out.Err
	}

	as := out.Assessment
	a.notice(cmd.ErrOrStderr(), "Saved assessment %s", as.ID)
	return a.printFields(cmd.OutOrStdout(), as, [][2]string{
		{"ID", as.ID},
		{"TIN", as.TIN},
		{"Tax type", as.TaxType},
		{"Period", as.Period},
		{"Amount", money(as.Amount)},
		{"Currency", as.Currency},
		{"Status", as.Status},
		{"Due", as.DueDate},
		{"Penalties", money(as.Penalties)},
		{"Interest", money(as.Interest)},
		{"Ledger tx", as.BlockchainTxID},
	})
}

func newAssessmentsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a tax assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.DeleteAssessment(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.notice(cmd.ErrOrStderr(), "Deleted assessment %s", args[0])
			return nil
		},
	}
}

func newAssessmentsHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the change history of an assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.service.GetAssessmentHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				changed := make([]string, 0, len(e.Changes))
				for field := range e.Changes {
					changed = append(changed, field)
				}
				slices.Sort(changed)
				rows = append(rows, []string{timestamp(e.Timestamp), e.Action, strings.Join(changed, ", "), e.ChangedBy, e.BlockchainTxID})
			}
			return a.print(cmd.OutOrStdout(), entries,
				[]string{"Time", "Action", "Changed", "By", "Ledger tx"}, rows)
		},
	}
}

func newAssessmentsLedgerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger <id>",
		Short: "Show the ledger transactions of an assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.service.GetAssessmentLedger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{fmt.Sprint(e.BlockNumber), timestamp(e.Timestamp), e.Action, e.TxID})
			}
			return a.print(cmd.OutOrStdout(), entries,
				[]string{"Block", "Time", "Action", "Tx"}, rows)
		},
	}
}
