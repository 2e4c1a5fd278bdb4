package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/smartcache/internal/errors"
	"github.com/hrygo/smartcache/store"
)

// CreateInteractionRequest stores a question/answer pair.
type CreateInteractionRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// CreateInteractionResponse carries the stored interaction. Warning is set
// when the answer was cached but could not be indexed.
type CreateInteractionResponse struct {
	Interaction *InteractionView `json:"interaction"`
	Warning     string           `json:"warning,omitempty"`
}

// InteractionView is the JSON form of a stored interaction.
type InteractionView struct {
	ID        string `json:"id,omitempty"`
	UserID    string `json:"user_id"`
	Query     string `json:"query"`
	Answer    string `json:"answer"`
	Category  string `json:"category"`
	CreatedTs int64  `json:"created_ts,omitempty"`
}

// GetAnswerRequest asks a question.
type GetAnswerRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
	Debug    bool   `json:"debug"`
}

// FeedbackRequest reports whether an answer helped.
type FeedbackRequest struct {
	UserID  string `json:"user_id"`
	Query   string `json:"query"`
	Helpful *bool  `json:"helpful"`
}

// CreateInteraction categorizes and stores an interaction.
// POST /api/v1/interactions
func (s *APIV1Service) CreateInteraction(c echo.Context) error {
	var req CreateInteractionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	interaction, err := s.Cache.StoreInteractionAutoCat(c.Request().Context(), req.UserID, req.Query, req.Answer)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeServiceUnavailable) && interaction != nil {
			return c.JSON(http.StatusAccepted, CreateInteractionResponse{
				Interaction: convertInteraction(interaction),
				Warning:     "answer cached but not indexed for similarity search",
			})
		}
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, CreateInteractionResponse{Interaction: convertInteraction(interaction)})
}

// GetAnswer answers a question from the cache or the LLM.
// POST /api/v1/answer
func (s *APIV1Service) GetAnswer(c echo.Context) error {
	var req GetAnswerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	answer, err := s.Cache.GetAnswer(c.Request().Context(), req.UserID, req.Question, req.Debug)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, answer)
}

// CreateFeedback records user feedback on an answer.
// POST /api/v1/feedback
func (s *APIV1Service) CreateFeedback(c echo.Context) error {
	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Helpful == nil {
		return badRequest(c, "helpful is required")
	}

	if err := s.Cache.UserFeedback(c.Request().Context(), req.UserID, req.Query, *req.Helpful); err != nil {
		return s.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func convertInteraction(interaction *store.Interaction) *InteractionView {
	return &InteractionView{
		ID:        interaction.ID,
		UserID:    interaction.UserID,
		Query:     interaction.Query,
		Answer:    interaction.Answer,
		Category:  interaction.Category,
		CreatedTs: interaction.CreatedTs,
	}
}
