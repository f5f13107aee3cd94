package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gigmarket-backend/internal/dto"
	"github.com/ignatzorin/gigmarket-backend/internal/interface/http/response"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// RatingHandler оценки после завершения проекта.
type RatingHandler struct {
	ratings *service.RatingService
}

func NewRatingHandler(ratings *service.RatingService) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

// Submit POST /ratings
func (h *RatingHandler) Submit(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req dto.SubmitRatingRequest
	if !bindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		response.Error(c, err)
		return
	}

	rating, err := h.ratings.Submit(c.Request.Context(), userID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rating)
}

// ListForUser GET /users/:id/ratings
func (h *RatingHandler) ListForUser(c *gin.Context) {
	userID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	limit, offset := pagination(c)
	ratings, err := h.ratings.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.ratings.Summary(ctx, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.UserRatingsResponse{Summary: summary, Ratings: ratings})
}
