package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/retention-intel/server/internal/agent/chat"
	"github.com/retention-intel/server/internal/agent/model"
	errx "github.com/retention-intel/server/internal/core/error"
	logx "github.com/retention-intel/server/pkg/logger"
)

const (
	streamChunkRunes   = 32
	defaultMetricLimit = 24
	defaultRunLimit    = 50
	maxLimit           = 500
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service errors to responses; guardrail blocks keep
// their findings in the body.
func writeServiceError(w http.ResponseWriter, err error) {
	var blocked *chat.BlockedError
	if errors.As(err, &blocked) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"blocked":         true,
			"conversation_id": blocked.ConversationID,
			"findings":        blocked.Findings,
		})
		return
	}
	writeError(w, errx.StatusOf(err), errx.MessageOf(err))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func decodeTurn(r *http.Request) (model.TurnRequest, error) {
	var req model.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("decode chat request: %w", err)
	}
	return req, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTurn(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errx.InvalidRequestMessage)
		return
	}

	resp, err := s.chat.HandleTurn(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if resp.GuardrailFindings == nil {
		resp.GuardrailFindings = map[string][]string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleChatStream runs the turn to completion, then replays the response
// as server-sent events: meta, chunk..., done.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTurn(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errx.InvalidRequestMessage)
		return
	}

	resp, err := s.chat.HandleTurn(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(event, data string) bool {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			logx.Debug().Err(err).Str("conversation_id", resp.ConversationID).Msg("stream client went away")
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	if !writeEvent("meta", resp.ConversationID) {
		return
	}
	for _, chunk := range ChunkText(resp.Response, streamChunkRunes) {
		if r.Context().Err() != nil {
			return
		}
		if !writeEvent("chunk", strings.ReplaceAll(chunk, "\n", `\n`)) {
			return
		}
	}
	writeEvent("done", "end")
}

// ChunkText splits text into pieces of at most n runes.
func ChunkText(text string, n int) []string {
	if n <= 0 || text == "" {
		return nil
	}
	chunks := make([]string, 0, utf8.RuneCountInString(text)/n+1)
	start, count := 0, 0
	for i := range text {
		if count == n {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.evals == nil {
		writeError(w, http.StatusServiceUnavailable, errx.UnavailableMessage)
		return
	}
	metrics, err := s.evals.ListMetrics(r.Context(), parseLimit(r, defaultMetricLimit))
	if err != nil {
		logx.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("list metrics failed")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics": metrics,
		"sla":     s.sla,
	})
}

func (s *Server) handleJudgeRuns(w http.ResponseWriter, r *http.Request) {
	if s.evals == nil {
		writeError(w, http.StatusServiceUnavailable, errx.UnavailableMessage)
		return
	}
	runs, err := s.evals.ListJudgeRuns(r.Context(), parseLimit(r, defaultRunLimit))
	if err != nil {
		logx.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("list judge runs failed")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleScoringFunctions(w http.ResponseWriter, r *http.Request) {
	if s.scoring == nil {
		writeError(w, http.StatusServiceUnavailable, errx.UnavailableMessage)
		return
	}
	refs, err := s.scoring.List()
	if err != nil {
		logx.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("list scoring functions failed")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"scoring_functions": refs})
}

func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.chat.ClearTranscript(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transcriptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	history, err := s.chat.Transcript(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	msgs := make([]transcriptMessage, 0, len(history.Messages))
	for _, m := range history.Messages {
		msgs = append(msgs, transcriptMessage{Role: string(m.Role), Content: m.Content})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversation_id": id,
		"messages":        msgs,
	})
}

// parseLimit reads ?limit=, clamped to [1, maxLimit].
func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}
