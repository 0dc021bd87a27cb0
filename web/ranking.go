package web

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/EatingIting/DRAW-IT/domain"
)

type RankingRepo interface {
	ListMonth(ctx context.Context, monthKey string) ([]domain.RankedImage, error)
	IncrementRecommend(ctx context.Context, imgId int64) error
}

// RankingFiles resolves ranked images on disk. The ranking service
// implements it.
type RankingFiles interface {
	MonthKey() string
	ImagePath(monthKey, imgName string) (string, error)
}

type rankingHandler struct {
	repo  RankingRepo
	files RankingFiles
}

func NewRankingHandler(repo RankingRepo, files RankingFiles) *rankingHandler {
	return &rankingHandler{repo: repo, files: files}
}

// month keys are yyMM, e.g. 2608 for August 2026.
var monthKeyPattern = regexp.MustCompile(`^\d{4}$`)

func (h *rankingHandler) ListMonthHandler(ctx *gin.Context) {
	monthKey := ctx.Query("month")
	if monthKey == "" {
		monthKey = h.files.MonthKey()
	}
	if !monthKeyPattern.MatchString(monthKey) {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrInvalidRequestFormatStr})
		return
	}

	images, err := h.repo.ListMonth(ctx.Request.Context(), monthKey)

	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			ctx.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{"error": ErrServerTimeoutStr})
		case errors.Is(err, context.Canceled):
			ctx.AbortWithStatus(499)
		default:
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrUnknownStr})
		}
		return
	}

	if images == nil {
		images = []domain.RankedImage{}
	}
	ctx.JSON(http.StatusOK, gin.H{"month": monthKey, "images": images})
}

func (h *rankingHandler) RecommendHandler(ctx *gin.Context) {
	imgId, err := strconv.ParseInt(ctx.Param("imgId"), 10, 64)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrInvalidRequestFormatStr})
		return
	}

	err = h.repo.IncrementRecommend(ctx.Request.Context(), imgId)

	if err != nil {
		switch {
		case errors.Is(err, domain.ErrImageNotFound):
			ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": ErrImageNotFoundStr})
		case errors.Is(err, context.DeadlineExceeded):
			ctx.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{"error": ErrServerTimeoutStr})
		case errors.Is(err, context.Canceled):
			ctx.AbortWithStatus(499)
		default:
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrUnknownStr})
		}
		return
	}

	ctx.Status(http.StatusOK)
}

func (h *rankingHandler) ServeImageHandler(ctx *gin.Context) {
	monthKey := ctx.Param("month")
	imgName := ctx.Param("name")

	path, err := h.files.ImagePath(monthKey, imgName)

	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": ErrImageNotFoundStr})
		return
	}

	ctx.File(path)
}
