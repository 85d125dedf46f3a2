package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abhisek/mentalmath/internal/domain"
	"github.com/abhisek/mentalmath/internal/selector"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Manage the question bank",
}

var questionsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Validate and import a JSON question bank",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.ImportFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		log.Info().Str("file", args[0]).Int("topics", res.Topics).Int("questions", res.Questions).Msg("bank imported")
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d topics and %d questions.\n", res.Topics, res.Questions)
		return nil
	},
}

var questionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List questions in the bank",
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		limit, _ := cmd.Flags().GetInt("limit")

		q := selector.Query{Topic: domain.Topic(topic), Limit: limit}
		if cmd.Flags().Changed("difficulty") {
			n, _ := cmd.Flags().GetInt("difficulty")
			d := domain.Difficulty(n)
			if err := domain.ValidateDifficulty("difficulty", d); err != nil {
				return err
			}
			q.Difficulty = &d
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		qs, err := s.ListQuestions(cmd.Context(), q)
		if err != nil {
			return err
		}
		if len(qs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No questions found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTOPIC\tSUBTOPIC\tDIFF\tEST(s)\tPROMPT")
		for _, item := range qs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.1f\t%s\n",
				item.ID, item.Topic, item.Subtopic, item.Difficulty, item.EstimatedTime, truncate(item.Prompt, 40))
		}
		return w.Flush()
	},
}

func init() {
	questionsListCmd.Flags().String("topic", "", "Only questions of this topic")
	questionsListCmd.Flags().Int("difficulty", 0, "Only questions of this difficulty (1-5)")
	questionsListCmd.Flags().Int("limit", 0, "Maximum number of questions (0 for all)")

	questionsCmd.AddCommand(questionsImportCmd, questionsListCmd)
}
