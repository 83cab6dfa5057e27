package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/retention-intel/server/internal/agent/model"
	errx "github.com/retention-intel/server/internal/core/error"
	logx "github.com/retention-intel/server/pkg/logger"
)

// DB is the subset of *pgxpool.Pool used by the store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schemaDDL = `
create table if not exists conversations (
    id text primary key,
    customer_id text,
    started_at timestamptz not null,
    ended_at timestamptz
);

create table if not exists chat_messages (
    id text primary key,
    conversation_id text references conversations(id),
    role text not null,
    content text not null,
    metadata jsonb,
    created_at timestamptz not null
);
create index if not exists chat_messages_created_at_idx on chat_messages (created_at);

create table if not exists events (
    id text primary key,
    conversation_id text references conversations(id),
    event_type text not null,
    payload jsonb,
    created_at timestamptz not null
);

create table if not exists audit_trail (
    id text primary key,
    conversation_id text references conversations(id),
    event_type text not null,
    payload jsonb,
    created_at timestamptz not null
);

create table if not exists ai_eval_metrics (
    id text primary key,
    window_start timestamptz not null,
    window_end timestamptz not null,
    compliance numeric not null,
    completeness numeric not null,
    guardrail_blocks integer not null,
    total_messages integer not null,
    created_at timestamptz not null
);

create table if not exists llm_judge_runs (
    id text primary key,
    conversation_id text references conversations(id),
    scoring_id text not null,
    scoring_version text not null,
    scoring_revision text not null,
    model text not null,
    input jsonb not null,
    prompt text not null,
    raw_output text not null,
    parsed jsonb,
    validation_errors jsonb,
    scored_at timestamptz not null,
    created_at timestamptz not null
);
`

const (
	upsertConversationSQL = `insert into conversations (id, customer_id, started_at)
values ($1, nullif($2, ''), $3) on conflict (id) do nothing`
	insertMessageSQL = `insert into chat_messages (id, conversation_id, role, content, metadata, created_at)
values ($1, $2, $3, $4, $5, $6)`
	insertEventSQL = `insert into events (id, conversation_id, event_type, payload, created_at)
values ($1, $2, $3, $4, $5)`
	insertAuditSQL = `insert into audit_trail (id, conversation_id, event_type, payload, created_at)
values ($1, $2, $3, $4, $5)`
	listMessagesSQL = `select id, conversation_id, role, content, created_at from chat_messages
where created_at >= $1 and created_at < $2 order by created_at`
	countBlocksSQL = `select count(*) from events
where event_type = 'guardrail_block' and created_at >= $1 and created_at < $2`
	insertMetricSQL = `insert into ai_eval_metrics
(id, window_start, window_end, compliance, completeness, guardrail_blocks, total_messages, created_at)
values ($1, $2, $3, $4, $5, $6, $7, $8)`
	listMetricsSQL = `select id, window_start, window_end, compliance::float8, completeness::float8,
guardrail_blocks, total_messages, created_at
from ai_eval_metrics order by window_end desc limit $1`
	insertJudgeRunSQL = `insert into llm_judge_runs
(id, conversation_id, scoring_id, scoring_version, scoring_revision, model, input, prompt,
 raw_output, parsed, validation_errors, scored_at, created_at)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	listJudgeRunsSQL = `select id, conversation_id, scoring_id, scoring_version, scoring_revision, model,
input, prompt, raw_output, parsed, validation_errors, scored_at, created_at
from llm_judge_runs order by created_at desc limit $1`
)

// PostgresStore persists conversations, audit events and evaluation results.
type PostgresStore struct {
	db    DB
	newID func() string
	now   func() time.Time
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{
		db:    db,
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Init creates the tables when they do not exist.
func (s *PostgresStore) Init(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaDDL); err != nil {
		logx.Error().Err(err).Msg("failed to initialise postgres schema")
		return errx.WrapPostgres(err)
	}
	return nil
}

// Record routes an event: messages to chat_messages, PII redactions to
// audit_trail and everything else to events.
func (s *PostgresStore) Record(ctx context.Context, ev model.Event) error {
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	id := ev.ID
	if id == "" {
		id = s.newID()
	}

	if _, err := s.db.Exec(ctx, upsertConversationSQL, ev.ConversationID, ev.CustomerID, createdAt); err != nil {
		logx.Error().Err(err).Str("conversation_id", ev.ConversationID).Msg("failed to upsert conversation")
		return errx.WrapPostgres(err)
	}

	var (
		sql  string
		args []any
	)
	switch {
	case ev.IsMessage():
		meta, err := json.Marshal(map[string]any{"customer_id": ev.CustomerID})
		if err != nil {
			return fmt.Errorf("marshal message metadata: %w", err)
		}
		sql, args = insertMessageSQL, []any{id, ev.ConversationID, ev.Role, ev.Content, meta, createdAt}
	default:
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		sql = insertEventSQL
		if ev.Type == model.EventPIIRedaction {
			sql = insertAuditSQL
		}
		args = []any{id, ev.ConversationID, string(ev.Type), payload, createdAt}
	}

	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		logx.Error().Err(err).
			Str("conversation_id", ev.ConversationID).
			Str("event_type", string(ev.Type)).
			Msg("failed to insert event")
		return errx.WrapPostgres(err)
	}
	return nil
}

// ListMessages returns chat messages created in [start, end).
func (s *PostgresStore) ListMessages(ctx context.Context, start, end time.Time) ([]model.StoredMessage, error) {
	rows, err := s.db.Query(ctx, listMessagesSQL, start, end)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	out := []model.StoredMessage{}
	for rows.Next() {
		var m model.StoredMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, errx.WrapPostgres(err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return out, nil
}

// CountGuardrailBlocks counts guardrail_block events in [start, end).
func (s *PostgresStore) CountGuardrailBlocks(ctx context.Context, start, end time.Time) (int, error) {
	var n int64
	if err := s.db.QueryRow(ctx, countBlocksSQL, start, end).Scan(&n); err != nil {
		return 0, errx.WrapPostgres(err)
	}
	return int(n), nil
}

func (s *PostgresStore) InsertMetric(ctx context.Context, m model.EvalMetric) error {
	if m.ID == "" {
		m.ID = s.newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	_, err := s.db.Exec(ctx, insertMetricSQL,
		m.ID, m.WindowStart, m.WindowEnd, m.Compliance, m.Completeness,
		m.GuardrailBlocks, m.TotalMessages, m.CreatedAt)
	if err != nil {
		logx.Error().Err(err).Msg("failed to insert eval metric")
		return errx.WrapPostgres(err)
	}
	return nil
}

func (s *PostgresStore) InsertJudgeRun(ctx context.Context, r model.JudgeRun) error {
	if r.ID == "" {
		r.ID = s.newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}

	input, err := json.Marshal(r.Input)
	if err != nil {
		return fmt.Errorf("marshal judge input: %w", err)
	}
	parsed, err := json.Marshal(r.Parsed)
	if err != nil {
		return fmt.Errorf("marshal judge output: %w", err)
	}
	validation, err := json.Marshal(r.ValidationErrors)
	if err != nil {
		return fmt.Errorf("marshal validation errors: %w", err)
	}

	_, err = s.db.Exec(ctx, insertJudgeRunSQL,
		r.ID, r.ConversationID, r.ScoringID, r.ScoringVersion, r.ScoringRevision, r.Model,
		input, r.Prompt, r.RawOutput, parsed, validation, r.ScoredAt, r.CreatedAt)
	if err != nil {
		logx.Error().Err(err).
			Str("conversation_id", r.ConversationID).
			Str("scoring_id", r.ScoringID).
			Msg("failed to insert judge run")
		return errx.WrapPostgres(err)
	}
	return nil
}

// ListMetrics returns the latest metrics, newest window first.
func (s *PostgresStore) ListMetrics(ctx context.Context, limit int) ([]model.EvalMetric, error) {
	rows, err := s.db.Query(ctx, listMetricsSQL, limit)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	out := []model.EvalMetric{}
	for rows.Next() {
		var (
			m             model.EvalMetric
			blocks, total int32
		)
		if err := rows.Scan(&m.ID, &m.WindowStart, &m.WindowEnd, &m.Compliance, &m.Completeness,
			&blocks, &total, &m.CreatedAt); err != nil {
			return nil, errx.WrapPostgres(err)
		}
		m.GuardrailBlocks, m.TotalMessages = int(blocks), int(total)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return out, nil
}

// ListJudgeRuns returns the latest judge runs, newest first.
func (s *PostgresStore) ListJudgeRuns(ctx context.Context, limit int) ([]model.JudgeRun, error) {
	rows, err := s.db.Query(ctx, listJudgeRunsSQL, limit)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	out := []model.JudgeRun{}
	for rows.Next() {
		var (
			r                         model.JudgeRun
			input, parsed, validation []byte
		)
		if err := rows.Scan(&r.ID, &r.ConversationID, &r.ScoringID, &r.ScoringVersion, &r.ScoringRevision,
			&r.Model, &input, &r.Prompt, &r.RawOutput, &parsed, &validation, &r.ScoredAt, &r.CreatedAt); err != nil {
			return nil, errx.WrapPostgres(err)
		}
		if err := unmarshalOptional(input, &r.Input); err != nil {
			return nil, err
		}
		if err := unmarshalOptional(parsed, &r.Parsed); err != nil {
			return nil, err
		}
		if err := unmarshalOptional(validation, &r.ValidationErrors); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return out, nil
}

func unmarshalOptional(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode jsonb column: %w", err)
	}
	return nil
}

var _ model.EventSink = (*PostgresStore)(nil)
