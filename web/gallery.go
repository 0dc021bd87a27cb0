package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EatingIting/DRAW-IT/domain"
	"github.com/EatingIting/DRAW-IT/gallery"
	"github.com/EatingIting/DRAW-IT/logger"
)

type GalleryStore interface {
	SaveImage(roomId, keyword, userId, nickname, data string) (int, error)
	Images(roomId string) []gallery.ImageInfo
	FilePath(roomId, filename string) (string, error)
}

type galleryHandler struct {
	store GalleryStore
}

func NewGalleryHandler(store GalleryStore) *galleryHandler {
	return &galleryHandler{store: store}
}

// SaveImageHandler accepts the drawer's canvas export at round end. The
// payload is a base64 JPEG, with or without the data-URL prefix.
func (h *galleryHandler) SaveImageHandler(ctx *gin.Context) {
	roomId := ctx.Param("roomId")

	var body struct {
		Keyword  string `json:"keyword"`
		UserId   string `json:"userId"`
		Nickname string `json:"nickname"`
		Image    string `json:"image"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrInvalidRequestFormatStr})
		return
	}
	if body.Image == "" {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrInvalidImageStr})
		return
	}

	index, err := h.store.SaveImage(roomId, body.Keyword, body.UserId, body.Nickname, body.Image)

	if err != nil {
		if errors.Is(err, domain.ErrInvalidImageData) {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrInvalidImageStr})
			return
		}
		logger.Criticalf("[Web] saving gallery image for room %s: %v", roomId, err)
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrUnknownStr})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"index": index})
}

func (h *galleryHandler) ListImagesHandler(ctx *gin.Context) {
	roomId := ctx.Param("roomId")

	images := h.store.Images(roomId)
	if images == nil {
		images = []gallery.ImageInfo{}
	}

	ctx.JSON(http.StatusOK, gin.H{"images": images})
}

func (h *galleryHandler) ServeImageHandler(ctx *gin.Context) {
	roomId := ctx.Param("roomId")
	filename := ctx.Param("filename")

	path, err := h.store.FilePath(roomId, filename)

	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": ErrImageNotFoundStr})
		return
	}

	ctx.File(path)
}
