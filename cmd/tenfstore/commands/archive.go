package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Redshadow31/tenf-v2-sub007/archive"
)

type archiveFlags struct {
	concurrency int
	rate        float64
}

func (f *archiveFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 8, "Records processed in parallel")
	cmd.Flags().Float64Var(&f.rate, "rate", 0, "Maximum backend operations per second (0 = unlimited)")
}

func (f *archiveFlags) options() []archive.Option {
	return []archive.Option{
		archive.WithConcurrency(f.concurrency),
		archive.WithRateLimit(f.rate),
	}
}

func (a *app) exportCmd() *cobra.Command {
	var (
		flags       archiveFlags
		output      string
		compression string
	)

	cmd := &cobra.Command{
		Use:   "export PREFIX",
		Short: "Write every record under PREFIX to a compressed JSON-lines archive",
		Example: `  tenfstore export tenf-follow-validations/ -o follow.jsonl.zst
  tenfstore --backend s3 export "" > all.jsonl.zst`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			c, err := archive.ParseCompression(compression)
			if err != nil {
				return usagef("export: %v", err)
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, ferr := os.Create(output)
				if ferr != nil {
					return ferr
				}
				defer func() {
					if cerr := f.Close(); err == nil {
						err = cerr
					}
				}()
				w = f
			}

			opts := append(flags.options(), archive.WithCompression(c))
			n, err := archive.Export(cmd.Context(), a.store, args[0], w, opts...)
			if err != nil {
				return err
			}
			a.logger.Info("export complete", "prefix", args[0], "records", n)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive file (default stdout)")
	cmd.Flags().StringVar(&compression, "compression", "zstd", "Stream compression (zstd, lz4, none)")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	var (
		flags        archiveFlags
		skipExisting bool
	)

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Write the records of an archive produced by export",
		Long: `Write the records of an archive produced by export. FILE may be "-" for
standard input. Existing records are replaced unless --skip-existing is set.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			opts := flags.options()
			if skipExisting {
				opts = append(opts, archive.WithSkipExisting())
			}
			n, err := archive.Import(cmd.Context(), a.store, r, opts...)
			if err != nil {
				return fmt.Errorf("import %s: %d records written before failure: %w", args[0], n, err)
			}
			a.logger.Info("import complete", "file", args[0], "records", n)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Keep records that already exist")
	return cmd
}
