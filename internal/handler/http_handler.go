package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/remsfal/remsfal-backend-sub003/internal/client"
	"github.com/remsfal/remsfal-backend-sub003/internal/domain"
	"github.com/remsfal/remsfal-backend-sub003/internal/policy"
	"github.com/remsfal/remsfal-backend-sub003/internal/service"
	"github.com/remsfal/remsfal-backend-sub003/pkg/middleware"
	"github.com/remsfal/remsfal-backend-sub003/pkg/response"
)

// HTTPHandler exposes the chat-session subsystem over REST. Every route is
// scoped to an issue; the permission layer resolves the issue to its project
// and authorises the caller before the services are touched.
type HTTPHandler struct {
	sessions    service.SessionService
	messages    service.MessageService
	files       service.FileGateway
	permissions service.PermissionChecker
	auth        *middleware.AuthMiddleware
}

func NewHTTPHandler(
	sessions service.SessionService,
	messages service.MessageService,
	files service.FileGateway,
	permissions service.PermissionChecker,
	auth *middleware.AuthMiddleware,
) *HTTPHandler {
	return &HTTPHandler{
		sessions:    sessions,
		messages:    messages,
		files:       files,
		permissions: permissions,
		auth:        auth,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.auth.RequireAuth())

	issues := api.Group("/issues/:issue_id")
	{
		issues.POST("/chat-sessions", h.CreateSession)

		sess := issues.Group("/chat-sessions/:session_id")
		{
			sess.GET("", h.GetSession)
			sess.DELETE("", h.DeleteSession)

			sess.GET("/participants", h.GetParticipants)
			sess.POST("/participants", h.AddParticipant)
			sess.PUT("/participants/:user_id", h.ChangeParticipantRole)
			sess.DELETE("/participants/:user_id", h.RemoveParticipant)

			sess.GET("/messages", h.ListMessages)
			sess.POST("/messages", h.SendMessage)
			sess.POST("/messages/file", h.SendFileMessage)
			sess.GET("/messages/:message_id", h.GetMessage)
			sess.PUT("/messages/:message_id", h.UpdateMessage)
			sess.DELETE("/messages/:message_id", h.DeleteMessage)
		}
	}

	api.GET("/files/:file_key", h.DownloadFile)

	r.GET("/health", h.HealthCheck)
}

// resolveProject checks the caller's permission on the issue and returns the
// owning project ID. It writes the error response itself on failure.
func (h *HTTPHandler) resolveProject(c *gin.Context) (projectID string, ok bool) {
	issueID := c.Param("issue_id")
	if issueID == "" {
		response.BadRequest(c, "issue_id is required")
		return "", false
	}

	userID := middleware.GetUserID(c)
	projectID, err := h.permissions.CheckWritePermissions(c.Request.Context(), userID, issueID)
	if err != nil {
		if errors.Is(err, client.ErrForbidden) {
			response.Forbidden(c, "no write access to issue")
		} else {
			response.InternalError(c, "failed to check permissions")
		}
		return "", false
	}

	return projectID, true
}

func (h *HTTPHandler) CreateSession(c *gin.Context) {
	projectID, ok := h.resolveProject(c)
	if !ok {
		return
	}

	session, err := h.sessions.CreateSession(c.Request.Context(), projectID, c.Param("issue_id"), middleware.GetUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Created(c, session)
}

func (h *HTTPHandler) GetSession(c *gin.Context) {
	projectID, ok := h.resolveProject(c)
	if !ok {
		return
	}

	session, err := h.sessions.GetSession(c.Request.Context(), projectID, c.Param("issue_id"), c.Param("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, session)
}

func (h *HTTPHandler) DeleteSession(c *gin.Context) {
	projectID, ok := h.resolveProject(c)
	if !ok {
		return
	}

	if err := h.sessions.DeleteSession(c.Request.Context(), projectID, c.Param("issue_id"), c.Param("session_id")); err != nil {
		h.writeError(c, err)
		return
	}

	response.NoContent(c)
}

func (h *HTTPHandler) GetParticipants(c *gin.Context) {
	projectID, ok := h.resolveProject(c)
	if !ok {
		return
	}

	participants, err := h.sessions.GetParticipants(c.Request.Context(), projectID, c.Param("issue_id"), c.Param("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, domain.ParticipantsResponse{Participants: participants})
}

func (h *HTTPHandler) AddParticipant(c *gin.Context) {
	projectID, ok := h.resolveProject(c)
	if !ok {
		return
	}

	var req domain.AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_id is required")
		return
	}

	// A user joining an existing session defaults to OBSERVER.
	role := domain.ParticipantRole(req.Role)
	if req.Role == "" {
		role = domain.RoleObserver
	}

	err := h.sessions.AddParticipant(c.Request.Context(), projectID, c.Param("issue_id"), c.Param("session_id"), req.UserID, role)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Created(c, gin.H{"user_id": req.UserID, "role": role})
}

func (h *HTTPHandler) ChangeParticipantRole(c *gin.Context) {
	projectID, ok := h.resolveProject(c)
	if !ok {
		return
	}

	var req domain.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "role is required")
		return
	}

	err := h.sessions.ChangeParticipantRole(
		c.Request.Context(),
		projectID, c.Param("issue_id"), c.Param("session_id"),
		c.Param("user_id"), domain.ParticipantRole(req.Role),
	)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, gin.H{"user_id": c.Param("user_id"), "role": req.Role})
}

func (h *HTTPHandler) RemoveParticipant(c *gin.Context) {
	projectID, ok := h.resolveProject(c)
	if !ok {
		return
	}

	err := h.sessions.RemoveParticipant(c.Request.Context(), projectID, c.Param("issue_id"), c.Param("session_id"), c.Param("user_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.NoContent(c)
}

func (h *HTTPHandler) SendMessage(c *gin.Context) {
	if _, ok := h.resolveProject(c); !ok {
		return
	}

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "content is required")
		return
	}

	msg, err := h.messages.SendText(c.Request.Context(), c.Param("session_id"), middleware.GetUserID(c), req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Created(c, h.toMessageResponse(c, msg))
}

func (h *HTTPHandler) SendFileMessage(c *gin.Context) {
	if _, ok := h.resolveProject(c); !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "failed to read uploaded file")
		return
	}
	defer file.Close()

	msg, err := h.messages.SendFile(
		c.Request.Context(),
		c.Param("session_id"),
		middleware.GetUserID(c),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
		fileHeader.Size,
	)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Created(c, h.toMessageResponse(c, msg))
}

func (h *HTTPHandler) GetMessage(c *gin.Context) {
	if _, ok := h.resolveProject(c); !ok {
		return
	}

	msg, err := h.messages.GetMessage(c.Request.Context(), c.Param("session_id"), c.Param("message_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, h.toMessageResponse(c, msg))
}

func (h *HTTPHandler) UpdateMessage(c *gin.Context) {
	if _, ok := h.resolveProject(c); !ok {
		return
	}

	var req domain.UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "content is required")
		return
	}

	err := h.messages.UpdateTextMessage(
		c.Request.Context(),
		c.Param("session_id"), c.Param("message_id"),
		middleware.GetUserID(c), req.Content,
	)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message_id": c.Param("message_id")})
}

func (h *HTTPHandler) DeleteMessage(c *gin.Context) {
	if _, ok := h.resolveProject(c); !ok {
		return
	}

	if err := h.messages.DeleteMessage(c.Request.Context(), c.Param("session_id"), c.Param("message_id")); err != nil {
		h.writeError(c, err)
		return
	}

	response.NoContent(c)
}

func (h *HTTPHandler) ListMessages(c *gin.Context) {
	if _, ok := h.resolveProject(c); !ok {
		return
	}

	messages, err := h.messages.ListMessages(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := domain.ChatLogResponse{
		SessionID: c.Param("session_id"),
		Messages:  make([]domain.MessageResponse, 0, len(messages)),
	}
	for i := range messages {
		resp.Messages = append(resp.Messages, h.toMessageResponse(c, &messages[i]))
	}

	response.Success(c, resp)
}

func (h *HTTPHandler) DownloadFile(c *gin.Context) {
	rc, err := h.files.Download(c.Request.Context(), c.Param("file_key"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer rc.Close()

	c.Status(http.StatusOK)
	io.Copy(c.Writer, rc)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// toMessageResponse resolves a download URL for file messages; resolution
// failures leave the field empty rather than failing the read.
func (h *HTTPHandler) toMessageResponse(c *gin.Context, msg *domain.ChatMessage) domain.MessageResponse {
	resp := domain.MessageResponse{ChatMessage: *msg}
	if msg.ContentType == domain.ContentTypeFile && msg.URL != "" {
		if url, err := h.files.FileURL(c.Request.Context(), msg.URL); err == nil {
			resp.FileURL = url
		}
	}
	return resp
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, service.ErrParticipantNotFound),
		errors.Is(err, service.ErrFileNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, policy.ErrAlreadyParticipant),
		errors.Is(err, policy.ErrDuplicateInitiator),
		errors.Is(err, service.ErrConcurrentUpdate):
		response.Conflict(c, err.Error())
	case errors.Is(err, policy.ErrInvalidRole),
		errors.Is(err, service.ErrBlankContent),
		errors.Is(err, service.ErrContentTooLong),
		errors.Is(err, service.ErrNotTextMessage),
		errors.Is(err, service.ErrEmptyFile),
		errors.Is(err, service.ErrMissingFileName),
		errors.Is(err, service.ErrUnsupportedContentType):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrNotMessageSender):
		response.Forbidden(c, err.Error())
	default:
		response.InternalError(c, "internal error")
	}
}
