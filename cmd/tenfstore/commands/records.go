package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	tenf "github.com/Redshadow31/tenf-v2-sub007"
)

func (a *app) getCmd() *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print the record stored under KEY",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.store.Read(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, err := rec.MarshalJSON()
			if err != nil {
				return err
			}
			if !compact {
				var buf bytes.Buffer
				if err := json.Indent(&buf, data, "", "  "); err != nil {
					return err
				}
				data = buf.Bytes()
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "Print on a single line")
	return cmd
}

func (a *app) putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put KEY [JSON|-]",
		Short: "Store a JSON record under KEY, replacing any previous one",
		Long: `Store a JSON record under KEY. The record is taken from the second
argument, or from standard input when it is omitted or "-".`,
		Args: usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			if len(args) == 2 && args[1] != "-" {
				data = []byte(args[1])
			} else {
				var err error
				if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}

			var rec tenf.Record
			if err := rec.UnmarshalJSON(bytes.TrimSpace(data)); err != nil {
				return usagef("put: record is not valid JSON: %v", err)
			}
			return a.store.Write(cmd.Context(), args[0], rec)
		},
	}
}

func (a *app) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [PREFIX]",
		Short: "List keys starting with PREFIX",
		Long: `List keys starting with PREFIX, in lexicographic order. Matching is a plain
string prefix: "c/2024-0" matches every 2024-0x partition of collection c.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			keys, err := a.store.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(keys, "\n"))
			return err
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm KEY...",
		Short: "Delete records",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, key := range args {
				err := a.store.Delete(cmd.Context(), key)
				if err != nil && !(force && tenf.IsNotFound(err)) {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Ignore keys that do not exist")
	return cmd
}
