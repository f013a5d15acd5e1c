package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ibuddy-app/ibuddy-service/internal/services"
	"github.com/ibuddy-app/ibuddy-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type MenteeHandler struct {
	BaseHandler
	menteeService services.MenteeService
	mailService   services.MailService
}

func NewMenteeHandler(menteeService services.MenteeService, mailService services.MailService, logger utils.Logger) *MenteeHandler {
	return &MenteeHandler{
		BaseHandler:   NewBaseHandler(logger),
		menteeService: menteeService,
		mailService:   mailService,
	}
}

// ListMentees lists the mentees visible to the actor
// @Summary List mentees
// @Tags mentees
// @Produce json
// @Param onlyMine query bool false "Only mentees assigned to the actor"
// @Success 200 {array} models.Mentee
// @Router /mentees [get]
func (h *MenteeHandler) ListMentees(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	onlyMine, _ := strconv.ParseBool(c.Query("onlyMine"))
	h.LogRequest(c, "Listing mentees", "only_mine", onlyMine)

	mentees, err := h.menteeService.List(c.Request.Context(), actor, onlyMine)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mentees)
}

// GetMentee returns one mentee
// @Summary Get mentee
// @Tags mentees
// @Produce json
// @Param id path string true "Mentee ID"
// @Success 200 {object} services.MenteeDetail
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /mentees/{id} [get]
func (h *MenteeHandler) GetMentee(c *gin.Context) {
	id := c.Param("id")
	h.LogRequest(c, "Getting mentee", "mentee_id", id)
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	mentee, err := h.menteeService.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mentee)
}

// CreateMentee creates a mentee assigned to a buddy
// @Summary Create mentee
// @Tags mentees
// @Accept json
// @Produce json
// @Param body body services.CreateMenteeRequest true "Mentee data"
// @Success 201 {object} models.Mentee
// @Failure 400 {object} ErrorResponse
// @Router /mentees [post]
func (h *MenteeHandler) CreateMentee(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req services.CreateMenteeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Creating mentee", "buddy_id", req.BuddyID)

	mentee, err := h.menteeService.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mentee)
}

// UpdateMentee changes the fields present in the body
// @Summary Update mentee
// @Tags mentees
// @Accept json
// @Produce json
// @Param id path string true "Mentee ID"
// @Param body body services.UpdateMenteeRequest true "Changed fields"
// @Success 200 {object} models.Mentee
// @Router /mentees/{id} [put]
func (h *MenteeHandler) UpdateMentee(c *gin.Context) {
	id := c.Param("id")
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req services.UpdateMenteeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Updating mentee", "mentee_id", id)

	mentee, err := h.menteeService.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mentee)
}

// UpdateMenteeStatus moves a mentee to another status
// @Summary Update mentee status
// @Tags mentees
// @Accept json
// @Produce json
// @Param id path string true "Mentee ID"
// @Param body body services.UpdateStatusRequest true "New status"
// @Success 200 {object} models.Mentee
// @Router /mentees/{id}/status [put]
func (h *MenteeHandler) UpdateMenteeStatus(c *gin.Context) {
	id := c.Param("id")
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req services.UpdateStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Updating mentee status", "mentee_id", id, "status", req.Status)

	mentee, err := h.menteeService.UpdateStatus(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mentee)
}

// DeleteMentee deletes a mentee and its notes
// @Summary Delete mentee
// @Tags mentees
// @Param id path string true "Mentee ID"
// @Success 204
// @Router /mentees/{id} [delete]
func (h *MenteeHandler) DeleteMentee(c *gin.Context) {
	id := c.Param("id")
	h.LogRequest(c, "Deleting mentee", "mentee_id", id)
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.menteeService.Delete(c.Request.Context(), actor, id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportMentees downloads the visible mentees as a workbook
// @Summary Export mentees
// @Tags mentees
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Router /mentees/export [get]
func (h *MenteeHandler) ExportMentees(c *gin.Context) {
	h.LogRequest(c, "Exporting mentees")
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.menteeService.Export(c.Request.Context(), actor, &buf); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="mentees.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// SendEmail e-mails a set of mentees
// @Summary E-mail mentees
// @Tags mentees
// @Accept json
// @Produce json
// @Param body body services.SendEmailRequest true "Message"
// @Success 200 {object} services.SendEmailResult
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /mentees/email [post]
func (h *MenteeHandler) SendEmail(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req services.SendEmailRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Sending mentee e-mail", "recipients", len(req.Recipients))

	result, err := h.mailService.SendToMentees(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ===== NOTES =====

// ListNotes lists a mentee's notes
// @Summary List notes
// @Tags notes
// @Produce json
// @Param id path string true "Mentee ID"
// @Success 200 {array} services.NoteView
// @Router /mentees/{id}/notes [get]
func (h *MenteeHandler) ListNotes(c *gin.Context) {
	id := c.Param("id")
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	notes, err := h.menteeService.ListNotes(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

// CreateNote adds a note to a mentee
// @Summary Create note
// @Tags notes
// @Accept json
// @Produce json
// @Param id path string true "Mentee ID"
// @Param body body services.NoteRequest true "Note"
// @Success 201 {object} models.Note
// @Router /mentees/{id}/notes [post]
func (h *MenteeHandler) CreateNote(c *gin.Context) {
	id := c.Param("id")
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req services.NoteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Creating note", "mentee_id", id)

	note, err := h.menteeService.CreateNote(c.Request.Context(), actor, id, req.Content)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

// UpdateNote changes a note's content
// @Summary Update note
// @Tags notes
// @Accept json
// @Produce json
// @Param id path string true "Mentee ID"
// @Param noteId path string true "Note ID"
// @Param body body services.NoteRequest true "Note"
// @Success 200 {object} models.Note
// @Router /mentees/{id}/notes/{noteId} [put]
func (h *MenteeHandler) UpdateNote(c *gin.Context) {
	id, noteID := c.Param("id"), c.Param("noteId")
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req services.NoteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Updating note", "mentee_id", id, "note_id", noteID)

	note, err := h.menteeService.UpdateNote(c.Request.Context(), actor, id, noteID, req.Content)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

// DeleteNote deletes a note
// @Summary Delete note
// @Tags notes
// @Param id path string true "Mentee ID"
// @Param noteId path string true "Note ID"
// @Success 204
// @Router /mentees/{id}/notes/{noteId} [delete]
func (h *MenteeHandler) DeleteNote(c *gin.Context) {
	id, noteID := c.Param("id"), c.Param("noteId")
	h.LogRequest(c, "Deleting note", "mentee_id", id, "note_id", noteID)
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.menteeService.DeleteNote(c.Request.Context(), actor, id, noteID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
