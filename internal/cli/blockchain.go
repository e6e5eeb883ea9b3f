package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tra-portal/tra-portal/internal/services"
)

func newBlockchainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "blockchain",
		Aliases: []string{"ledger"},
		Short:   "Ledger statistics and record verification",
	}
	cmd.AddCommand(newBlockchainStatsCmd(a), newBlockchainVerifyCmd(a))
	return cmd
}

func newBlockchainStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show ledger network statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store.FetchBlockchainStats(cmd.Context())
			if err != nil {
				return err
			}
			return a.printFields(cmd.OutOrStdout(), s, [][2]string{
				{"Transactions", fmt.Sprint(s.TotalTransactions)},
				{"Blocks", fmt.Sprint(s.TotalBlocks)},
				{"Active nodes", fmt.Sprint(s.ActiveNodes)},
				{"Average block time", number(s.AverageBlockTime)},
				{"Last block", s.LastBlockHash},
				{"Last block time", timestamp(s.LastBlockTime)},
				{"Status", s.NetworkStatus},
			})
		},
	}
}

var errRecordMismatch = errors.New("record does not match the ledger hash")

func newBlockchainVerifyCmd(a *app) *cobra.Command {
	var recordFile string
	cmd := &cobra.Command{
		Use:   "verify <txId>",
		Short: "Verify a ledger transaction",
		Long: `Verify a ledger transaction. With --record the given JSON document is hashed
and compared with the hash the ledger recorded for the transaction.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.service.VerifyRecord(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			matches := "-"
			var mismatch bool
			if recordFile != "" {
				ok, err := matchRecord(res, recordFile)
				if err != nil {
					return err
				}
				matches = fmt.Sprint(ok)
				mismatch = !ok
			}

			err = a.printFields(cmd.OutOrStdout(), res, [][2]string{
				{"Tx", res.TxID},
				{"Verified", fmt.Sprint(res.Verified)},
				{"Block", fmt.Sprint(res.BlockNumber)},
				{"Hash", res.DataHash},
				{"Entity", strings.TrimSpace(res.EntityType + " " + res.EntityID)},
				{"Time", timestamp(res.Timestamp)},
				{"Record matches", matches},
			})
			if err != nil {
				return err
			}
			if mismatch {
				return errRecordMismatch
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&recordFile, "record", "", "JSON file holding the record to check against the ledger hash")
	return cmd
}

// matchRecord hashes the JSON document in path and compares it with res.
func matchRecord(res *services.VerificationResult, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read record: %w", err)
	}
	var record any
	if err := json.Unmarshal(data, &record); err != nil {
		return false, fmt.Errorf("record is not valid JSON: %w", err)
	}
	return res.Matches(record)
}
