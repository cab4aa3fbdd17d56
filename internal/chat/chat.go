// Package chat runs one question-and-answer turn against a data source.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hyperjump/chatdata/internal/apperrors"
	"github.com/hyperjump/chatdata/internal/chart"
	"github.com/hyperjump/chatdata/internal/llm"
	"github.com/hyperjump/chatdata/internal/models"
	"github.com/hyperjump/chatdata/internal/storage"
	"github.com/hyperjump/chatdata/internal/vizspec"
)

// DefaultMaxHistory is the number of conversation messages forwarded when
// no limit is configured.
const DefaultMaxHistory = 20

// SourceLookup resolves data sources by id.
type SourceLookup interface {
	Get(ctx context.Context, id string) (*models.DataSource, error)
}

// Request is a chat turn. The last message is the user's question.
type Request struct {
	Messages     []models.ChatMessage `json:"messages" validate:"required,min=1,dive"`
	DataSourceID string               `json:"dataSourceId,omitempty"`
}

// Response is the assistant's answer split into prose and an optional visualization.
type Response struct {
	Role          models.Role         `json:"role"`
	Content       string              `json:"content"`
	Prose         string              `json:"prose"`
	Visualization *vizspec.Spec       `json:"visualization,omitempty"`
	EligibleKinds []vizspec.ChartType `json:"eligibleKinds,omitempty"`
	Model         string              `json:"model,omitempty"`
}

// Service answers chat turns.
type Service struct {
	sources    SourceLookup
	queries    storage.Collection[models.QueryLog]
	generator  llm.Generator
	maxHistory int
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewService creates a chat service. maxHistory <= 0 selects DefaultMaxHistory.
func NewService(sources SourceLookup, queries storage.Collection[models.QueryLog], generator llm.Generator, maxHistory int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Service{
		sources:    sources,
		queries:    queries,
		generator:  generator,
		maxHistory: maxHistory,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger.Named("chat"),
	}
}

// Respond sends the conversation to the generator and extracts any
// visualization from the answer. Generator errors are returned unchanged.
func (s *Service) Respond(ctx context.Context, req Request) (*Response, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	question := req.Messages[len(req.Messages)-1]

	ds := s.resolveSource(ctx, req.DataSourceID)
	msgs := s.buildMessages(ds, req.Messages)

	out, err := s.generator.Generate(ctx, llm.Request{Messages: msgs})
	if err != nil {
		return nil, err
	}

	s.recordQuery(ctx, question.Content, req.DataSourceID)

	result := vizspec.Extract(out.Content)
	if result.Invalid != nil {
		s.logger.Debug("Ignoring invalid visualization block", zap.Error(result.Invalid))
	}
	resp := &Response{
		Role:          models.RoleAssistant,
		Content:       out.Content,
		Prose:         result.Prose,
		Visualization: result.Spec,
		EligibleKinds: chart.EligibleKinds(result.Spec),
		Model:         out.Model,
	}
	return resp, nil
}

func (s *Service) check(req Request) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: messages are required", apperrors.ErrValidation)
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s has invalid value %q", apperrors.ErrValidation, verrs[0].Namespace(), fmt.Sprint(verrs[0].Value()))
		}
		return fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != models.RoleUser {
		return fmt.Errorf("%w: the last message must come from the user", apperrors.ErrValidation)
	}
	if strings.TrimSpace(last.Content) == "" {
		return fmt.Errorf("%w: the question is empty", apperrors.ErrValidation)
	}
	return nil
}

// resolveSource looks up the data source. An unknown id is not an error;
// the conversation just carries no source context.
func (s *Service) resolveSource(ctx context.Context, id string) *models.DataSource {
	if id == "" || s.sources == nil {
		return nil
	}
	ds, err := s.sources.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("Failed to resolve data source", zap.String("data_source_id", id), zap.Error(err))
		}
		return nil
	}
	return ds
}

func (s *Service) buildMessages(ds *models.DataSource, history []models.ChatMessage) []models.ChatMessage {
	if len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}
	msgs := make([]models.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, models.ChatMessage{Role: models.RoleSystem, Content: SystemPrompt(ds)})
	msgs = append(msgs, history...)
	msgs = append(msgs, models.ChatMessage{Role: models.RoleUser, Content: Nudge})
	return msgs
}

// recordQuery appends an audit entry. Failures are logged and otherwise ignored.
func (s *Service) recordQuery(ctx context.Context, content, dataSourceID string) {
	if s.queries == nil {
		return
	}
	entry := &models.QueryLog{Content: content}
	if dataSourceID != "" {
		entry.DataSourceID = &dataSourceID
	}
	if _, err := s.queries.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to record query", zap.String("data_source_id", dataSourceID), zap.Error(err))
	}
}
