package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/services"
	"github.com/ibuddy-app/ibuddy-service/internal/utils"
)

// Multipart overhead allowed on top of the file size limit.
const multipartSlack = 1 << 20

type AssetHandler struct {
	BaseHandler
	assetService services.AssetService
}

func NewAssetHandler(assetService services.AssetService, logger utils.Logger) *AssetHandler {
	return &AssetHandler{
		BaseHandler:  NewBaseHandler(logger),
		assetService: assetService,
	}
}

// ListAssets lists the assets the actor can see
// @Summary List assets
// @Tags assets
// @Produce json
// @Param type query string false "image, document or email-template"
// @Success 200 {array} models.Asset
// @Router /assets [get]
func (h *AssetHandler) ListAssets(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	var assetType *models.AssetType
	if raw := c.Query("type"); raw != "" {
		t := models.AssetType(raw)
		assetType = &t
	}
	h.LogRequest(c, "Listing assets", "type", c.Query("type"))

	assets, err := h.assetService.List(c.Request.Context(), actor, assetType)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, assets)
}

// GetAsset returns one asset
// @Summary Get asset
// @Tags assets
// @Produce json
// @Param id path string true "Asset ID"
// @Success 200 {object} models.Asset
// @Router /assets/{id} [get]
func (h *AssetHandler) GetAsset(c *gin.Context) {
	id := c.Param("id")
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	asset, err := h.assetService.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

// IsNameAvailable checks whether an asset name is still free
// @Summary Check asset name
// @Tags assets
// @Produce json
// @Param name query string true "Asset name"
// @Success 200 {object} map[string]bool
// @Router /assets/name-available [get]
func (h *AssetHandler) IsNameAvailable(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}

	available, err := h.assetService.IsNameAvailable(c.Request.Context(), c.Query("name"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": available})
}

// UploadFile stores an image or PDF
// @Summary Upload file
// @Tags assets
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image or PDF"
// @Param name formData string true "Asset name"
// @Param description formData string false "Description"
// @Param sharedUsers formData []string false "User IDs to share with"
// @Success 201 {object} models.Asset
// @Failure 413 {object} ErrorResponse
// @Failure 415 {object} ErrorResponse
// @Router /assets/files [post]
func (h *AssetHandler) UploadFile(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxFileSize+multipartSlack)

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "A file is required",
			Details: err.Error(),
		})
		return
	}
	h.LogRequest(c, "Uploading file", "file_name", fh.Filename, "size", fh.Size)

	file, err := fh.Open()
	if err != nil {
		h.LogError(c, err, "Failed to open upload")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Could not read the uploaded file"})
		return
	}
	defer file.Close()

	req := &services.UploadFileRequest{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		SharedUsers: c.PostFormArray("sharedUsers"),
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
	}
	asset, err := h.assetService.UploadFile(c.Request.Context(), actor, req, file)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, asset)
}

// CreateTemplate stores an e-mail template
// @Summary Create e-mail template
// @Tags assets
// @Accept json
// @Produce json
// @Param body body services.CreateTemplateRequest true "Template"
// @Success 201 {object} models.Asset
// @Router /assets/templates [post]
func (h *AssetHandler) CreateTemplate(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req services.CreateTemplateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Creating e-mail template", "name", req.Name)

	asset, err := h.assetService.CreateTemplate(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, asset)
}

// UpdateAsset changes an asset's metadata or template body
// @Summary Update asset
// @Tags assets
// @Accept json
// @Produce json
// @Param id path string true "Asset ID"
// @Param body body services.UpdateAssetRequest true "Changed fields"
// @Success 200 {object} models.Asset
// @Router /assets/{id} [put]
func (h *AssetHandler) UpdateAsset(c *gin.Context) {
	id := c.Param("id")
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req services.UpdateAssetRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Updating asset", "asset_id", id)

	asset, err := h.assetService.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

// DeleteAsset deletes an asset and its stored file
// @Summary Delete asset
// @Tags assets
// @Param id path string true "Asset ID"
// @Success 204
// @Router /assets/{id} [delete]
func (h *AssetHandler) DeleteAsset(c *gin.Context) {
	id := c.Param("id")
	h.LogRequest(c, "Deleting asset", "asset_id", id)
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.assetService.Delete(c.Request.Context(), actor, id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DownloadAsset redirects to a signed URL or streams the stored file
// @Summary Download asset
// @Tags assets
// @Param id path string true "Asset ID"
// @Success 200 {file} binary
// @Success 302
// @Router /assets/{id}/download [get]
func (h *AssetHandler) DownloadAsset(c *gin.Context) {
	id := c.Param("id")
	h.LogRequest(c, "Downloading asset", "asset_id", id)
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	download, err := h.assetService.Download(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if download.URL != "" {
		c.Redirect(http.StatusFound, download.URL)
		return
	}
	defer download.Body.Close()
	c.DataFromReader(http.StatusOK, -1, download.ContentType, download.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.FileName),
	})
}
