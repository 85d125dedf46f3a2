package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abhisek/mentalmath/internal/domain"
	"github.com/abhisek/mentalmath/internal/engine"
	"github.com/abhisek/mentalmath/internal/store"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Drive and inspect practice sessions",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a practice session",
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topic")
		user, _ := cmd.Flags().GetString("user")
		id, _ := cmd.Flags().GetString("id")

		req := engine.StartRequest{
			SessionID: domain.SessionID(id),
			LearnerID: domain.LearnerID(user),
		}
		for _, t := range topics {
			req.TopicOrder = append(req.TopicOrder, domain.Topic(t))
		}
		if cmd.Flags().Changed("budget") {
			b, _ := cmd.Flags().GetFloat64("budget")
			req.TimeBudget = &b
		}

		d, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		s, err := d.engine.StartSession(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), s)
	},
}

var sessionAnswerCmd = &cobra.Command{
	Use:   "answer <session-id>",
	Short: "Report an answered question and print the next decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		qid, _ := cmd.Flags().GetString("question")
		correct, _ := cmd.Flags().GetBool("correct")
		taken, _ := cmd.Flags().GetFloat64("time")
		answer, _ := cmd.Flags().GetString("answer")

		d, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		req := engine.AnswerRequest{
			SessionID:  domain.SessionID(args[0]),
			QuestionID: domain.QuestionID(qid),
			Correct:    correct,
			TimeTaken:  taken,
			Answer:     answer,
		}
		// Topic, difficulty and estimate default to the bank's values.
		q, err := d.store.GetQuestion(cmd.Context(), req.QuestionID)
		if err != nil {
			return err
		}
		if q != nil {
			req.Topic, req.Subtopic, req.Difficulty = q.Topic, q.Subtopic, q.Difficulty
			if q.EstimatedTime > 0 {
				est := q.EstimatedTime
				req.EstimatedTime = &est
			}
		}
		if t, _ := cmd.Flags().GetString("topic"); t != "" {
			req.Topic = domain.Topic(t)
		}
		if cmd.Flags().Changed("difficulty") {
			n, _ := cmd.Flags().GetInt("difficulty")
			req.Difficulty = domain.Difficulty(n)
		}
		if cmd.Flags().Changed("estimated") {
			est, _ := cmd.Flags().GetFloat64("estimated")
			req.EstimatedTime = &est
		}

		dec, err := d.engine.SubmitAnswer(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), dec)
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end <session-id>",
	Short: "End a session and print its summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		sum, err := d.engine.EndSession(cmd.Context(), domain.SessionID(args[0]))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), sum)
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session with its decision traces",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		id := domain.SessionID(args[0])
		sess, err := s.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		traces, err := s.ListDecisionTraces(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), struct {
			Session any                   `json:"session"`
			Traces  []store.DecisionTrace `json:"traces"`
		}{sess, traces})
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		infos, err := s.ListSessions(cmd.Context(), domain.LearnerID(user), limit)
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSER\tSTARTED\tSTATUS\tANSWERS")
		fmt.Fprintln(w, strings.Repeat("-", 70))
		for _, si := range infos {
			status := "open"
			if si.EndedAt != nil {
				status = "ended"
			}
			user := string(si.LearnerID)
			if user == "" {
				user = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
				si.ID, user, si.StartedAt.Local().Format("2006-01-02 15:04:05"), status, si.Events)
		}
		return w.Flush()
	},
}

func init() {
	sessionStartCmd.Flags().StringSlice("topic", nil, "Topic to practice, in order (repeatable)")
	sessionStartCmd.Flags().String("user", "", "Learner id (empty for an anonymous session)")
	sessionStartCmd.Flags().Float64("budget", 0, "Time budget in seconds")
	sessionStartCmd.Flags().String("id", "", "Session id (generated when empty)")
	_ = sessionStartCmd.MarkFlagRequired("topic")

	sessionAnswerCmd.Flags().String("question", "", "Answered question id")
	sessionAnswerCmd.Flags().Bool("correct", false, "Whether the answer was correct")
	sessionAnswerCmd.Flags().Float64("time", 0, "Seconds taken to answer")
	sessionAnswerCmd.Flags().String("answer", "", "The learner's answer")
	sessionAnswerCmd.Flags().String("topic", "", "Topic (defaults to the question's topic)")
	sessionAnswerCmd.Flags().Int("difficulty", 0, "Difficulty 1-5 (defaults to the question's difficulty)")
	sessionAnswerCmd.Flags().Float64("estimated", 0, "Estimated seconds (defaults to the question's estimate)")
	_ = sessionAnswerCmd.MarkFlagRequired("question")

	sessionListCmd.Flags().String("user", "", "Only sessions of this learner")
	sessionListCmd.Flags().Int("limit", 20, "Maximum number of sessions")

	sessionCmd.AddCommand(sessionStartCmd, sessionAnswerCmd, sessionEndCmd, sessionShowCmd, sessionListCmd)
}
