// Package ingest validates and persists batches of session graphs, then
// schedules analysis for each stored session. Validation runs before any
// write: a malformed batch is rejected whole, so clients can safely retry.
package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bagula/platform/internal/metrics"
	"github.com/bagula/platform/internal/models"
	"github.com/bagula/platform/internal/scheduler"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Batch is the ingestion payload: a list of completed session graphs.
type Batch struct {
	Sessions  []SessionInput `json:"sessions"`
	Timestamp int64          `json:"timestamp"`
}

// SessionInput is one session graph as sent by an agent SDK. Timestamps are
// unix milliseconds.
type SessionInput struct {
	SessionID      string         `json:"sessionId"`
	AgentName      string         `json:"agentName"`
	UserID         string         `json:"userId"`
	StartTime      int64          `json:"startTime"`
	EndTime        *int64         `json:"endTime"`
	InitialRequest string         `json:"initialRequest"`
	FinalOutcome   *OutcomeInput  `json:"finalOutcome"`
	Turns          []TurnInput    `json:"turns"`
	Metadata       map[string]any `json:"metadata"`
	Tags           []string       `json:"tags"`
}

// OutcomeInput is the session's final outcome, when the agent recorded one.
type OutcomeInput struct {
	Status            string   `json:"status"`
	Result            string   `json:"result"`
	SatisfactionScore *float64 `json:"satisfactionScore"`
}

// TurnInput is one request/response exchange.
type TurnInput struct {
	TurnID       string           `json:"turnId"`
	TurnNumber   int              `json:"turnNumber"`
	Timestamp    int64            `json:"timestamp"`
	Trigger      TriggerInput     `json:"trigger"`
	Response     *ResponseInput   `json:"agentResponse"`
	ModelCalls   []ModelCallInput `json:"llmCalls"`
	ToolCalls    []ToolCallInput  `json:"toolCalls"`
	UserFeedback *FeedbackInput   `json:"userFeedback"`
}

// TriggerInput describes what started the turn.
type TriggerInput struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ResponseInput is the agent's reply for a turn.
type ResponseInput struct {
	Message string `json:"message"`
}

// FeedbackInput is optional end-user feedback on a turn.
type FeedbackInput struct {
	Rating  *int   `json:"rating"`
	Comment string `json:"comment"`
}

// ModelCallInput is one LLM invocation.
type ModelCallInput struct {
	CallID       string          `json:"callId"`
	Provider     string          `json:"provider"`
	Model        string          `json:"model"`
	StartTime    int64           `json:"startTime"`
	EndTime      int64           `json:"endTime"`
	InputTokens  int64           `json:"inputTokens"`
	OutputTokens int64           `json:"outputTokens"`
	TotalTokens  int64           `json:"totalTokens"`
	CostUSD      float64         `json:"costUsd"`
	Request      json.RawMessage `json:"request"`
	Response     json.RawMessage `json:"response"`
}

// ToolCallInput is one tool invocation. Result and Error are mutually
// exclusive; a call carrying neither is accepted and surfaced later by the
// quality detector.
type ToolCallInput struct {
	CallID    string          `json:"callId"`
	ToolName  string          `json:"toolName"`
	Arguments json.RawMessage `json:"arguments"`
	StartTime int64           `json:"startTime"`
	EndTime   int64           `json:"endTime"`
	Result    string          `json:"result"`
	Error     string          `json:"error"`
}

// Validate checks the whole batch without touching the store.
func (b *Batch) Validate() error {
	if len(b.Sessions) == 0 {
		return fmt.Errorf("ingest: batch has no sessions")
	}
	for i := range b.Sessions {
		if err := b.Sessions[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks one session graph.
func (s *SessionInput) Validate() error {
	if s.SessionID == "" {
		return fmt.Errorf("ingest: session is missing sessionId")
	}
	if s.AgentName == "" {
		return fmt.Errorf("ingest: session %s: agentName is required", s.SessionID)
	}
	if s.StartTime == 0 {
		return fmt.Errorf("ingest: session %s: startTime is required", s.SessionID)
	}
	if s.FinalOutcome != nil {
		switch s.FinalOutcome.Status {
		case models.OutcomeSuccess, models.OutcomeFailure, models.OutcomeAbandoned:
		default:
			return fmt.Errorf("ingest: session %s: outcome status %q is not one of success, failure, abandoned", s.SessionID, s.FinalOutcome.Status)
		}
	}

	seen := make(map[int]bool, len(s.Turns))
	for i := range s.Turns {
		turn := &s.Turns[i]
		if turn.TurnNumber < 1 {
			return fmt.Errorf("ingest: session %s: turn numbers are 1-based, got %d", s.SessionID, turn.TurnNumber)
		}
		if seen[turn.TurnNumber] {
			return fmt.Errorf("ingest: session %s: duplicate turn number %d", s.SessionID, turn.TurnNumber)
		}
		seen[turn.TurnNumber] = true

		for j := range turn.ToolCalls {
			tc := &turn.ToolCalls[j]
			if tc.ToolName == "" {
				return fmt.Errorf("ingest: session %s turn %d: tool call is missing toolName", s.SessionID, turn.TurnNumber)
			}
			if tc.Result != "" && tc.Error != "" {
				return fmt.Errorf("ingest: session %s turn %d: tool %s has both result and error", s.SessionID, turn.TurnNumber, tc.ToolName)
			}
		}
		for j := range turn.ModelCalls {
			if turn.ModelCalls[j].Model == "" {
				return fmt.Errorf("ingest: session %s turn %d: model call is missing model", s.SessionID, turn.TurnNumber)
			}
		}
	}
	return nil
}

// StoreBatch validates the batch, persists every session graph in one
// transaction, and schedules analysis for each session. Duplicate session
// IDs are skipped silently (client retry), but their analysis is still
// enqueued, which is itself idempotent. Returns the number of newly stored
// sessions.
func StoreBatch(db *gorm.DB, prices *metrics.PriceTable, batch *Batch) (int, error) {
	if err := batch.Validate(); err != nil {
		return 0, err
	}

	stored := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		for i := range batch.Sessions {
			created, err := storeSession(tx, prices, &batch.Sessions[i])
			if err != nil {
				return err
			}
			if created {
				stored++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for i := range batch.Sessions {
		s := &batch.Sessions[i]
		if err := scheduler.EnqueueAll(db, s.SessionID, s.AgentName); err != nil {
			return stored, err
		}
	}
	return stored, nil
}

// storeSession writes one session graph. Returns false when the session ID
// already exists, in which case nothing is written for it.
func storeSession(tx *gorm.DB, prices *metrics.PriceTable, in *SessionInput) (bool, error) {
	session := models.Session{
		ID:             in.SessionID,
		AgentName:      in.AgentName,
		UserID:         in.UserID,
		StartTime:      time.UnixMilli(in.StartTime),
		InitialRequest: in.InitialRequest,
		Metadata:       encodeJSON(in.Metadata),
		Tags:           encodeJSON(in.Tags),
	}
	if in.EndTime != nil {
		end := time.UnixMilli(*in.EndTime)
		session.EndTime = &end
	}
	if in.FinalOutcome != nil {
		session.OutcomeStatus = in.FinalOutcome.Status
		session.OutcomeResult = in.FinalOutcome.Result
		session.SatisfactionScore = in.FinalOutcome.SatisfactionScore
	}

	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&session)
	if result.Error != nil {
		return false, fmt.Errorf("ingest: store session %s: %w", in.SessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	for i := range in.Turns {
		if err := storeTurn(tx, prices, in.SessionID, &in.Turns[i]); err != nil {
			return false, err
		}
	}
	return true, nil
}

func storeTurn(tx *gorm.DB, prices *metrics.PriceTable, sessionID string, in *TurnInput) error {
	turnID := in.TurnID
	if turnID == "" {
		turnID = fmt.Sprintf("%s-t%d", sessionID, in.TurnNumber)
	}
	turn := models.Turn{
		ID:             turnID,
		SessionID:      sessionID,
		TurnNumber:     in.TurnNumber,
		Timestamp:      time.UnixMilli(in.Timestamp),
		TriggerType:    in.Trigger.Type,
		TriggerContent: in.Trigger.Content,
	}
	if in.Response != nil {
		turn.ResponseMessage = in.Response.Message
	}
	if in.UserFeedback != nil {
		turn.FeedbackRating = in.UserFeedback.Rating
		turn.FeedbackComment = in.UserFeedback.Comment
	}
	if err := tx.Create(&turn).Error; err != nil {
		return fmt.Errorf("ingest: store turn %d of session %s: %w", in.TurnNumber, sessionID, err)
	}

	for i := range in.ModelCalls {
		mc := &in.ModelCalls[i]
		call := models.ModelCall{
			ID:           orUUID(mc.CallID),
			TurnID:       turnID,
			SessionID:    sessionID,
			Provider:     mc.Provider,
			Model:        mc.Model,
			StartTime:    time.UnixMilli(mc.StartTime),
			EndTime:      time.UnixMilli(mc.EndTime),
			InputTokens:  mc.InputTokens,
			OutputTokens: mc.OutputTokens,
			TotalTokens:  mc.TotalTokens,
			CostUSD:      mc.CostUSD,
			LatencyMS:    mc.EndTime - mc.StartTime,
			Request:      string(mc.Request),
			Response:     string(mc.Response),
		}
		if call.TotalTokens == 0 {
			call.TotalTokens = call.InputTokens + call.OutputTokens
		}
		// Clients that do not track pricing send zero cost; fill it in
		// from the price table.
		if call.CostUSD == 0 && prices != nil {
			call.CostUSD = prices.Cost(call.Model, call.InputTokens, call.OutputTokens)
		}
		if err := tx.Create(&call).Error; err != nil {
			return fmt.Errorf("ingest: store model call in session %s: %w", sessionID, err)
		}
	}

	for i := range in.ToolCalls {
		tc := &in.ToolCalls[i]
		call := models.ToolCall{
			ID:        orUUID(tc.CallID),
			TurnID:    turnID,
			SessionID: sessionID,
			ToolName:  tc.ToolName,
			Arguments: string(tc.Arguments),
			StartTime: time.UnixMilli(tc.StartTime),
			EndTime:   time.UnixMilli(tc.EndTime),
			Result:    tc.Result,
			Error:     tc.Error,
			LatencyMS: tc.EndTime - tc.StartTime,
		}
		if err := tx.Create(&call).Error; err != nil {
			return fmt.Errorf("ingest: store tool call in session %s: %w", sessionID, err)
		}
	}
	return nil
}

func encodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return ""
	}
	return string(data)
}

func orUUID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
