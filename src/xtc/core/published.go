package core

import (
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
	"github.com/bitswalk/xtc/src/common/output"
	"github.com/bitswalk/xtc/src/xtc/toolchain"
)

var publishedCmd = &cobra.Command{
	Use:   "published",
	Short: "List toolchain archives published for the host and target",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		host, err := toolchain.ParseTriple(viper.GetString("toolchain.host"))
		if err != nil {
			return err
		}
		target, err := toolchain.ParseTriple(viper.GetString("toolchain.target"))
		if err != nil {
			return err
		}

		publisher, err := newPublisher()
		if err != nil {
			return xerrors.ErrPublishFailed.WithMessage("invalid storage configuration").WithCause(err)
		}
		objects, err := publisher.List(cmd.Context(), host, target)
		if err != nil {
			return xerrors.ErrPublishFailed.WithMessage("failed to list published archives").WithCause(err)
		}

		out := cmd.OutOrStdout()
		if outputFormat == string(output.FormatJSON) {
			return output.PrintJSON(out, objects)
		}
		if len(objects) == 0 {
			output.PrintWarning(out, "No published archives")
			return nil
		}

		var rows [][]string
		for _, o := range objects {
			rows = append(rows, []string{
				o.Key,
				units.HumanSize(float64(o.Size)),
				o.LastModified.Format(time.RFC3339),
			})
		}
		output.PrintTable(out, []string{"KEY", "SIZE", "MODIFIED"}, rows)
		return nil
	},
}
