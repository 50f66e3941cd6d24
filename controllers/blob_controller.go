package controllers

import (
	"net/http"
	"strings"

	"pkgsync/internal/fileutil"
	"pkgsync/internal/logger"
	"pkgsync/internal/models"
	"pkgsync/internal/storage"
	"pkgsync/internal/syncerr"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// BlobController serves a DirStore over HTTP so that HTTPStore clients can
// read and publish archives and package descriptors.
type BlobController struct {
	store *storage.DirStore
}

func NewBlobController(store *storage.DirStore) *BlobController {
	return &BlobController{store: store}
}

/**
 * Register blob routes to Gin engine
 * @param {*gin.Engine} r - Gin router instance
 * @param {...gin.HandlerFunc} writeGuards - Handlers run before PUT, e.g. token checks
 * @description
 * - GET/HEAD /blobs/*key download an object
 * - PUT /blobs/*key?overwrite=false refuses to replace an existing object
 */
func (b *BlobController) RegisterRoutes(r *gin.Engine, writeGuards ...gin.HandlerFunc) {
	blobs := r.Group("/blobs")
	blobs.GET("/*key", b.Get)
	blobs.HEAD("/*key", b.Get)
	blobs.PUT("/*key", append(writeGuards, b.Put)...)
}

func blobKey(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("key"), "/")
}

func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "blob.failed"
	switch syncerr.KindOf(err) {
	case syncerr.NotFound:
		status, code = http.StatusNotFound, "blob.not_found"
	case syncerr.AlreadyExists:
		status, code = http.StatusConflict, "blob.exists"
	case syncerr.InvalidInput:
		status, code = http.StatusBadRequest, "blob.invalid_key"
	}
	if status == http.StatusInternalServerError {
		logger.Errorf("Blob request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, models.ErrorResponse{Code: code, Message: err.Error()})
}

// @Summary 下载对象
// @Tags Blob
// @Produce octet-stream
// @Param key path string true "对象键"
// @Success 200
// @Failure 404 {object} models.ErrorResponse
// @Router /blobs/{key} [get]
func (b *BlobController) Get(c *gin.Context) {
	key := blobKey(c)
	p, err := b.store.Path(key)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !fileutil.IsFile(p) {
		abortWithError(c, syncerr.Newf(syncerr.NotFound, "get", key, "object not found"))
		return
	}
	if mt, err := mimetype.DetectFile(p); err == nil {
		c.Header("Content-Type", mt.String())
	}
	c.File(p)
}

// @Summary 上传对象
// @Tags Blob
// @Accept octet-stream
// @Param key path string true "对象键"
// @Param overwrite query bool false "是否覆盖已存在的对象" default(true)
// @Success 201
// @Failure 409 {object} models.ErrorResponse
// @Router /blobs/{key} [put]
func (b *BlobController) Put(c *gin.Context) {
	key := blobKey(c)
	overwrite := c.DefaultQuery("overwrite", "true") != "false"
	if err := b.store.PutReader(key, c.Request.Body, overwrite); err != nil {
		abortWithError(c, err)
		return
	}
	logger.Debugf("Stored blob %s", key)
	c.Status(http.StatusCreated)
}
