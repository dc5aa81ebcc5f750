package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	tenf "github.com/Redshadow31/tenf-v2-sub007"
)

func (a *app) keyCmd() *cobra.Command {
	var (
		month string
		at    string
	)

	cmd := &cobra.Command{
		Use:   "key COLLECTION ENTITY",
		Short: "Print the storage key for an entity",
		Long: `Print the storage key COLLECTION/YYYY-MM/ENTITY.json. The partition is the
current month (UTC) unless --month or --at is given.`,
		Example: `  tenfstore key tenf-follow-validations alice --month 2024-06
  tenfstore key tenf-follow-validations alice --at 2024-06-15T23:30:00-02:00`,
		Args:        usageArgs(cobra.ExactArgs(2)),
		Annotations: map[string]string{annotationNoStore: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			if month != "" && at != "" {
				return usagef("key: --month and --at are mutually exclusive")
			}

			var key tenf.Key
			switch {
			case month != "":
				if _, err := tenf.ParseMonth(month); err != nil {
					return usagef("key: --month: %v", err)
				}
				key = tenf.NewKey(args[0], month, args[1])
			case at != "":
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return usagef("key: --at: %v", err)
				}
				key = tenf.MonthKey(args[0], t, args[1])
			default:
				key = tenf.MonthKey(args[0], time.Now(), args[1])
			}

			if err := key.Validate(); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), key.String())
			return err
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "Partition as YYYY-MM")
	cmd.Flags().StringVar(&at, "at", "", "Derive the partition from an RFC 3339 timestamp")
	return cmd
}
