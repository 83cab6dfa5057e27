// Package chat runs one retention chat turn: the guardrail gate, the audit
// events around it and the pipeline in between.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/retention-intel/server/internal/agent/graph"
	"github.com/retention-intel/server/internal/agent/graph/conversations"
	"github.com/retention-intel/server/internal/agent/model"
	errx "github.com/retention-intel/server/internal/core/error"
	"github.com/retention-intel/server/internal/guardrail"
	logx "github.com/retention-intel/server/pkg/logger"
)

var (
	// ErrBlocked marks a turn rejected by the guardrail.
	ErrBlocked = errors.New("message blocked by guardrail")
	// ErrEmptyMessage marks a request without message text.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrMissingConversation marks a transcript request without an id.
	ErrMissingConversation = errors.New("conversation id is empty")
)

// BlockedError carries the findings of a blocked turn.
type BlockedError struct {
	ConversationID string
	Findings       map[string][]string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("conversation %s: %v", e.ConversationID, ErrBlocked)
}

func (e *BlockedError) Unwrap() error {
	return ErrBlocked
}

// Guard evaluates an inbound message.
type Guard interface {
	Evaluate(ctx context.Context, text string) guardrail.Result
}

// Service handles chat turns.
type Service struct {
	guard    Guard
	runner   graph.Runner
	recorder *conversations.Recorder
}

func NewService(guard Guard, runner graph.Runner, recorder *conversations.Recorder) *Service {
	if recorder == nil {
		recorder = conversations.NewRecorder(nil, nil)
	}
	return &Service{guard: guard, runner: runner, recorder: recorder}
}

// HandleTurn gates the message, records the turn and runs the pipeline on
// the redacted text. A blocked message returns an *errx.Error with status
// 400 wrapping a *BlockedError.
func (s *Service) HandleTurn(ctx context.Context, req model.TurnRequest) (*model.TurnResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errx.New(ErrEmptyMessage, http.StatusBadRequest, errx.InvalidRequestMessage)
	}

	verdict := s.guard.Evaluate(ctx, req.Message)

	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = s.recorder.NewConversationID()
	}

	if verdict.HasRedactions() {
		s.recorder.RecordRedaction(ctx, conversationID, verdict.Redactions, len(req.Message))
	}

	if verdict.Blocked {
		s.recorder.RecordBlock(ctx, conversationID, verdict.Findings)
		logx.Warn().
			Str("conversation_id", conversationID).
			Interface("findings", verdict.Findings).
			Msg("message blocked by guardrail")
		return nil, errx.New(&BlockedError{
			ConversationID: conversationID,
			Findings:       verdict.Findings,
		}, http.StatusBadRequest, errx.BlockedMessage)
	}

	s.recorder.RecordUserMessage(ctx, conversationID, verdict.RedactedText, req.CustomerID)

	out, err := s.runner.Run(ctx, &model.PipelineState{
		ConversationID:      conversationID,
		UserInput:           verdict.RedactedText,
		CustomerID:          strings.TrimSpace(req.CustomerID),
		ApproveEmail:        req.ApproveEmail,
		ApproveEmailContent: req.ApproveEmailContent,
	})
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("pipeline run failed")
		return nil, errx.New(err, http.StatusInternalServerError, errx.SystemErrorMessage)
	}

	s.recorder.RecordAssistantMessage(ctx, conversationID, out.ResponseText, req.CustomerID)

	return &model.TurnResponse{
		ConversationID:    conversationID,
		Response:          out.ResponseText,
		Blocked:           false,
		GuardrailFindings: verdict.Findings,
	}, nil
}

// ClearTranscript removes the stored messages of a conversation.
func (s *Service) ClearTranscript(ctx context.Context, conversationID string) error {
	if strings.TrimSpace(conversationID) == "" {
		return errx.New(ErrMissingConversation, http.StatusBadRequest, errx.InvalidRequestMessage)
	}
	if err := s.recorder.ClearTranscript(ctx, conversationID); err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("clear transcript failed")
		return err
	}
	return nil
}

// Transcript returns the stored messages of a conversation.
func (s *Service) Transcript(ctx context.Context, conversationID string) (*model.ConversationHistory, error) {
	msgs, err := s.recorder.Transcript(ctx, conversationID, 0)
	if err != nil {
		return nil, err
	}
	return &model.ConversationHistory{ConversationID: conversationID, Messages: msgs}, nil
}
