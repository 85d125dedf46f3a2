package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	SessionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "learner_id", Type: field.TypeString, Default: ""},
		{Name: "topic_order", Type: field.TypeJSON},
		{Name: "time_budget", Type: field.TypeFloat64, Default: 0},
		{Name: "started_at", Type: field.TypeTime},
		{Name: "ended_at", Type: field.TypeTime, Nullable: true},
		{Name: "summary_text", Type: field.TypeString, Size: 2147483647, Default: ""},
	}
	SessionsTable = &schema.Table{
		Name:       "sessions",
		Columns:    SessionsColumns,
		PrimaryKey: []*schema.Column{SessionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "sessions_learner_id", Columns: []*schema.Column{SessionsColumns[2]}},
		},
	}

	// SessionEventsColumns doubles as the attempt log.
	SessionEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "session_id", Type: field.TypeString},
		{Name: "question_id", Type: field.TypeString},
		{Name: "topic", Type: field.TypeString},
		{Name: "subtopic", Type: field.TypeString, Default: ""},
		{Name: "difficulty", Type: field.TypeInt},
		{Name: "correct", Type: field.TypeBool},
		{Name: "time_taken", Type: field.TypeFloat64},
		{Name: "estimated_time", Type: field.TypeFloat64, Nullable: true},
		{Name: "answer", Type: field.TypeString, Default: ""},
		{Name: "timestamp", Type: field.TypeTime},
	}
	SessionEventsTable = &schema.Table{
		Name:       "session_events",
		Columns:    SessionEventsColumns,
		PrimaryKey: []*schema.Column{SessionEventsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "session_events_sessions_events",
				Columns:    []*schema.Column{SessionEventsColumns[2]},
				RefColumns: []*schema.Column{SessionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "session_events_session_id", Columns: []*schema.Column{SessionEventsColumns[2]}},
			{Name: "session_events_topic", Columns: []*schema.Column{SessionEventsColumns[4]}},
		},
	}

	FeedbackColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "session_id", Type: field.TypeString},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "message", Type: field.TypeString, Size: 2147483647},
		{Name: "kind", Type: field.TypeEnum, Enums: []string{"hint", "encouragement"}},
		{Name: "strategy_tip", Type: field.TypeString, Default: ""},
	}
	FeedbackTable = &schema.Table{
		Name:       "feedback",
		Columns:    FeedbackColumns,
		PrimaryKey: []*schema.Column{FeedbackColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "feedback_sessions_feedback",
				Columns:    []*schema.Column{FeedbackColumns[2]},
				RefColumns: []*schema.Column{SessionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
	}

	TopicsColumns = []*schema.Column{
		{Name: "name", Type: field.TypeString},
		{Name: "title", Type: field.TypeString, Default: ""},
		{Name: "subtopics", Type: field.TypeJSON},
		{Name: "tips", Type: field.TypeJSON},
	}
	TopicsTable = &schema.Table{
		Name:       "topics",
		Columns:    TopicsColumns,
		PrimaryKey: []*schema.Column{TopicsColumns[0]},
	}

	QuestionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "topic", Type: field.TypeString},
		{Name: "subtopic", Type: field.TypeString, Default: ""},
		{Name: "difficulty", Type: field.TypeInt},
		{Name: "estimated_time", Type: field.TypeFloat64},
		{Name: "hints", Type: field.TypeJSON},
		{Name: "strategy_tip", Type: field.TypeString, Default: ""},
		{Name: "prompt", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "answer", Type: field.TypeString, Default: ""},
	}
	QuestionsTable = &schema.Table{
		Name:       "questions",
		Columns:    QuestionsColumns,
		PrimaryKey: []*schema.Column{QuestionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "questions_topic_difficulty", Columns: []*schema.Column{QuestionsColumns[1], QuestionsColumns[3]}},
		},
	}

	DecisionTracesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "session_id", Type: field.TypeString},
		{Name: "prev_question_id", Type: field.TypeString},
		{Name: "next_question_id", Type: field.TypeString, Nullable: true},
		{Name: "next_difficulty", Type: field.TypeInt},
		{Name: "mastery", Type: field.TypeFloat64, Nullable: true},
		{Name: "reason", Type: field.TypeString},
		{Name: "tier", Type: field.TypeString, Default: ""},
		{Name: "message", Type: field.TypeString, Size: 2147483647},
		{Name: "generated", Type: field.TypeBool, Default: false},
		{Name: "timestamp", Type: field.TypeTime},
	}
	DecisionTracesTable = &schema.Table{
		Name:       "decision_traces",
		Columns:    DecisionTracesColumns,
		PrimaryKey: []*schema.Column{DecisionTracesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "decision_traces_session_id", Columns: []*schema.Column{DecisionTracesColumns[2]}},
		},
	}

	LlmRequestEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: 2147483647, Default: ""},
	}
	LlmRequestEventsTable = &schema.Table{
		Name:       "llm_request_events",
		Columns:    LlmRequestEventsColumns,
		PrimaryKey: []*schema.Column{LlmRequestEventsColumns[0]},
	}

	// Tables are migrated in this order on Open.
	Tables = []*schema.Table{
		SessionsTable,
		SessionEventsTable,
		FeedbackTable,
		TopicsTable,
		QuestionsTable,
		DecisionTracesTable,
		LlmRequestEventsTable,
	}
)

func init() {
	SessionEventsTable.ForeignKeys[0].RefTable = SessionsTable
	FeedbackTable.ForeignKeys[0].RefTable = SessionsTable
}
