package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/mentalmath/internal/domain"
)

var masteryCmd = &cobra.Command{
	Use:   "mastery",
	Short: "Print a learner's mastery of a topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		topic, _ := cmd.Flags().GetString("topic")

		d, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		m, err := d.engine.Mastery(cmd.Context(), domain.LearnerID(user), domain.Topic(topic))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s / %s: %.3f\n", user, topic, m)
		return nil
	},
}

func init() {
	masteryCmd.Flags().String("user", "", "Learner id")
	masteryCmd.Flags().String("topic", "", "Topic")
	_ = masteryCmd.MarkFlagRequired("user")
	_ = masteryCmd.MarkFlagRequired("topic")
}
