package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/domain"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/service"
	pkglog "github.com/OmerEfron/friendlinesv2.0-sub002/pkg/log"
	"github.com/OmerEfron/friendlinesv2.0-sub002/pkg/middleware"
	"github.com/OmerEfron/friendlinesv2.0-sub002/pkg/response"
)

// Handler handles HTTP requests for the social graph and posts API.
type Handler struct {
	friendships    service.FriendshipService
	posts          service.PostService
	devices        service.DeviceService
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(
	friendships service.FriendshipService,
	posts service.PostService,
	devices service.DeviceService,
	authMiddleware *middleware.AuthMiddleware,
) *Handler {
	return &Handler{
		friendships:    friendships,
		posts:          posts,
		devices:        devices,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes onto the Gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		users := api.Group("/users")
		{
			// POST /api/v1/users/:user_id/friend-requests — auth required
			users.POST("/:user_id/friend-requests", h.authMiddleware.RequireAuth(), h.SendFriendRequest)
			// POST /api/v1/users/:user_id/friend-requests/accept — auth required
			users.POST("/:user_id/friend-requests/accept", h.authMiddleware.RequireAuth(), h.AcceptFriendRequest)
			// POST /api/v1/users/:user_id/friend-requests/reject — auth required
			users.POST("/:user_id/friend-requests/reject", h.authMiddleware.RequireAuth(), h.RejectFriendRequest)
			// DELETE /api/v1/users/:user_id/friend-requests — auth required (cancel own outgoing)
			users.DELETE("/:user_id/friend-requests", h.authMiddleware.RequireAuth(), h.CancelFriendRequest)
			// DELETE /api/v1/users/:user_id/friendship — auth required
			users.DELETE("/:user_id/friendship", h.authMiddleware.RequireAuth(), h.Unfriend)
			// GET /api/v1/users/:user_id/friendship — auth required
			users.GET("/:user_id/friendship", h.authMiddleware.RequireAuth(), h.FriendshipStatus)
			// GET /api/v1/users/:user_id/friends — no auth
			users.GET("/:user_id/friends", h.ListFriends)
			// GET /api/v1/users/:user_id/friends/count — no auth
			users.GET("/:user_id/friends/count", h.FriendsCount)
			// GET /api/v1/users/:user_id/posts — optional auth
			users.GET("/:user_id/posts", h.authMiddleware.OptionalAuth(), h.ListUserPosts)
		}

		me := api.Group("/me", h.authMiddleware.RequireAuth())
		{
			// GET /api/v1/me/friend-requests?direction=in|out
			me.GET("/friend-requests", h.ListFriendRequests)
			// PUT /api/v1/me/devices
			me.PUT("/devices", h.RegisterDevice)
		}

		posts := api.Group("/posts")
		{
			// POST /api/v1/posts — auth required
			posts.POST("", h.authMiddleware.RequireAuth(), h.CreatePost)
			// GET /api/v1/posts/:post_id — optional auth
			posts.GET("/:post_id", h.authMiddleware.OptionalAuth(), h.GetPost)
		}

		// GET /api/v1/feed — optional auth
		api.GET("/feed", h.authMiddleware.OptionalAuth(), h.Feed)
	}
}

// SendFriendRequest handles POST /api/v1/users/:user_id/friend-requests.
// The authenticated user sends a friend request to the target user.
func (h *Handler) SendFriendRequest(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	fromID := middleware.GetUserID(c)
	if fromID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	toID := c.Param("user_id")
	if toID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	if err := h.friendships.SendRequest(ctx, fromID, toID); err != nil {
		switch {
		case errors.Is(err, service.ErrSelfReference):
			response.BadRequest(c, "cannot send a friend request to yourself")
		case errors.Is(err, service.ErrInvalidUserID):
			response.BadRequest(c, "user_id is required")
		case errors.Is(err, service.ErrAlreadyFriends):
			response.Conflict(c, "already friends")
		case errors.Is(err, service.ErrAlreadyPending):
			response.Conflict(c, "friend request already pending")
		default:
			l.Error().Err(err).
				Str(pkglog.FieldUserID, fromID).
				Str("target_id", toID).
				Msg("send friend request failed")
			fail(c, err, "failed to send friend request")
		}
		return
	}

	response.Created(c, gin.H{"message": "friend request sent"})
}

// AcceptFriendRequest handles POST /api/v1/users/:user_id/friend-requests/accept.
// The authenticated user accepts the pending request sent by :user_id.
func (h *Handler) AcceptFriendRequest(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	accepterID := middleware.GetUserID(c)
	if accepterID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	requesterID := c.Param("user_id")
	if requesterID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	if err := h.friendships.AcceptRequest(ctx, accepterID, requesterID); err != nil {
		switch {
		case errors.Is(err, service.ErrSelfReference):
			response.BadRequest(c, "cannot accept a request from yourself")
		case errors.Is(err, service.ErrNoSuchRequest):
			response.NotFound(c, "no pending friend request from this user")
		case errors.Is(err, service.ErrAlreadyFriends):
			response.Conflict(c, "already friends")
		default:
			l.Error().Err(err).
				Str(pkglog.FieldUserID, accepterID).
				Str("requester_id", requesterID).
				Msg("accept friend request failed")
			fail(c, err, "failed to accept friend request")
		}
		return
	}

	response.Success(c, gin.H{"message": "friend request accepted"})
}

// RejectFriendRequest handles POST /api/v1/users/:user_id/friend-requests/reject.
// The authenticated user rejects the pending request sent by :user_id.
func (h *Handler) RejectFriendRequest(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	rejecterID := middleware.GetUserID(c)
	if rejecterID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	requesterID := c.Param("user_id")
	if requesterID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	if err := h.friendships.RejectRequest(ctx, rejecterID, requesterID); err != nil {
		switch {
		case errors.Is(err, service.ErrNoSuchRequest):
			response.NotFound(c, "no pending friend request from this user")
		default:
			l.Error().Err(err).
				Str(pkglog.FieldUserID, rejecterID).
				Str("requester_id", requesterID).
				Msg("reject friend request failed")
			fail(c, err, "failed to reject friend request")
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// CancelFriendRequest handles DELETE /api/v1/users/:user_id/friend-requests.
// The authenticated user cancels their own outgoing request to :user_id.
func (h *Handler) CancelFriendRequest(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	cancelerID := middleware.GetUserID(c)
	if cancelerID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	targetID := c.Param("user_id")
	if targetID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	if err := h.friendships.CancelRequest(ctx, cancelerID, targetID); err != nil {
		switch {
		case errors.Is(err, service.ErrNoSuchRequest):
			response.NotFound(c, "no pending friend request to this user")
		default:
			l.Error().Err(err).
				Str(pkglog.FieldUserID, cancelerID).
				Str("target_id", targetID).
				Msg("cancel friend request failed")
			fail(c, err, "failed to cancel friend request")
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// Unfriend handles DELETE /api/v1/users/:user_id/friendship.
func (h *Handler) Unfriend(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	friendID := c.Param("user_id")
	if friendID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	if err := h.friendships.RemoveFriendship(ctx, userID, friendID); err != nil {
		switch {
		case errors.Is(err, service.ErrSelfReference):
			response.BadRequest(c, "cannot unfriend yourself")
		case errors.Is(err, service.ErrNotFriends):
			response.Conflict(c, "not friends")
		default:
			l.Error().Err(err).
				Str(pkglog.FieldUserID, userID).
				Str("friend_id", friendID).
				Msg("unfriend failed")
			fail(c, err, "failed to remove friendship")
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// FriendshipStatus handles GET /api/v1/users/:user_id/friendship.
// Returns the relationship between the authenticated user and :user_id.
func (h *Handler) FriendshipStatus(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	viewerID := middleware.GetUserID(c)
	if viewerID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	otherID := c.Param("user_id")
	if otherID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	state, err := h.friendships.Status(ctx, viewerID, otherID)
	if err != nil {
		l.Error().Err(err).
			Str(pkglog.FieldUserID, viewerID).
			Str("other_id", otherID).
			Msg("friendship status failed")
		fail(c, err, "failed to get friendship status")
		return
	}

	response.Success(c, gin.H{"status": state})
}

// ListFriends handles GET /api/v1/users/:user_id/friends.
func (h *Handler) ListFriends(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	userID := c.Param("user_id")
	if userID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	page, limit := parsePagination(c)

	friends, err := h.friendships.ListFriends(ctx, userID, page, limit)
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldUserID, userID).Msg("list friends failed")
		fail(c, err, "failed to list friends")
		return
	}

	response.Success(c, gin.H{
		"friends": friends,
		"page":    page,
		"limit":   limit,
	})
}

// FriendsCount handles GET /api/v1/users/:user_id/friends/count.
func (h *Handler) FriendsCount(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	userID := c.Param("user_id")
	if userID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	count, err := h.friendships.FriendsCount(ctx, userID)
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldUserID, userID).Msg("friends count failed")
		fail(c, err, "failed to get friends count")
		return
	}

	response.Success(c, gin.H{"count": count})
}

// friendRequestItem is the wire form of a pending friend request.
type friendRequestItem struct {
	RequesterID string    `json:"requester_id"`
	AddresseeID string    `json:"addressee_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListFriendRequests handles GET /api/v1/me/friend-requests?direction=in|out.
func (h *Handler) ListFriendRequests(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	direction := domain.DirectionIncoming
	switch c.DefaultQuery("direction", "in") {
	case "in":
		direction = domain.DirectionIncoming
	case "out":
		direction = domain.DirectionOutgoing
	default:
		response.BadRequest(c, "direction must be 'in' or 'out'")
		return
	}

	page, limit := parsePagination(c)

	requests, err := h.friendships.ListPendingRequests(ctx, userID, direction, page, limit)
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldUserID, userID).Msg("list friend requests failed")
		fail(c, err, "failed to list friend requests")
		return
	}

	items := make([]friendRequestItem, 0, len(requests))
	for _, req := range requests {
		items = append(items, friendRequestItem{
			RequesterID: req.RequesterID,
			AddresseeID: req.AddresseeID,
			CreatedAt:   req.CreatedAt,
		})
	}

	response.Success(c, gin.H{
		"requests": items,
		"page":     page,
		"limit":    limit,
	})
}

// audienceRequest is the wire form of a post audience descriptor.
type audienceRequest struct {
	Kind     string   `json:"kind" binding:"required"`
	TargetID string   `json:"target_id"`
	GroupIDs []string `json:"group_ids"`
}

// createPostRequest is the request body for POST /api/v1/posts.
type createPostRequest struct {
	Content  string          `json:"content" binding:"required"`
	Audience audienceRequest `json:"audience" binding:"required"`
}

// postItem is the wire form of a post.
type postItem struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	Audience  gin.H     `json:"audience"`
	CreatedAt time.Time `json:"created_at"`
}

func toPostItem(p *domain.Post) postItem {
	aud := gin.H{"kind": p.Audience.Kind}
	if p.Audience.TargetID != "" {
		aud["target_id"] = p.Audience.TargetID
	}
	if len(p.Audience.GroupIDs) > 0 {
		aud["group_ids"] = p.Audience.GroupIDs
	}
	return postItem{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Content:   p.Content,
		Audience:  aud,
		CreatedAt: p.CreatedAt,
	}
}

// CreatePost handles POST /api/v1/posts.
func (h *Handler) CreatePost(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	authorID := middleware.GetUserID(c)
	if authorID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid create post request")
		response.BadRequest(c, err.Error())
		return
	}

	aud := domain.Audience{
		Kind:     domain.AudienceKind(req.Audience.Kind),
		TargetID: req.Audience.TargetID,
		GroupIDs: req.Audience.GroupIDs,
	}

	post, err := h.posts.CreatePost(ctx, authorID, req.Content, aud)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyContent):
			response.BadRequest(c, "content cannot be empty")
		case errors.Is(err, service.ErrInvalidAudience):
			response.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrTargetNotFriend):
			response.BadRequest(c, "audience target is not a friend")
		case errors.Is(err, service.ErrGroupNotFound):
			response.BadRequest(c, "audience group not found")
		case errors.Is(err, service.ErrNotGroupMember):
			response.Forbidden(c, "not a member of the audience group")
		default:
			l.Error().Err(err).Str(pkglog.FieldUserID, authorID).Msg("create post failed")
			fail(c, err, "failed to create post")
		}
		return
	}

	response.Created(c, toPostItem(post))
}

// GetPost handles GET /api/v1/posts/:post_id.
func (h *Handler) GetPost(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	postID := c.Param("post_id")
	if postID == "" {
		response.BadRequest(c, "post_id is required")
		return
	}

	viewerID := middleware.GetUserID(c)

	post, err := h.posts.GetPost(ctx, postID, viewerID)
	if err != nil {
		switch {
		// Hidden posts read as absent so existence is not leaked.
		case errors.Is(err, service.ErrPostNotFound), errors.Is(err, service.ErrPostNotVisible):
			response.NotFound(c, "post not found")
		default:
			l.Error().Err(err).Str(pkglog.FieldPostID, postID).Msg("get post failed")
			fail(c, err, "failed to get post")
		}
		return
	}

	response.Success(c, toPostItem(post))
}

// Feed handles GET /api/v1/feed.
func (h *Handler) Feed(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	viewerID := middleware.GetUserID(c)
	page, limit := parsePagination(c)

	posts, err := h.posts.Feed(ctx, viewerID, page, limit)
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldUserID, viewerID).Msg("feed failed")
		fail(c, err, "failed to get feed")
		return
	}

	items := make([]postItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, toPostItem(p))
	}

	response.Success(c, gin.H{
		"posts": items,
		"page":  page,
		"limit": limit,
	})
}

// ListUserPosts handles GET /api/v1/users/:user_id/posts.
func (h *Handler) ListUserPosts(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	authorID := c.Param("user_id")
	if authorID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	viewerID := middleware.GetUserID(c)
	page, limit := parsePagination(c)

	posts, err := h.posts.ListByAuthor(ctx, authorID, viewerID, page, limit)
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldUserID, authorID).Msg("list user posts failed")
		fail(c, err, "failed to list posts")
		return
	}

	items := make([]postItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, toPostItem(p))
	}

	response.Success(c, gin.H{
		"posts": items,
		"page":  page,
		"limit": limit,
	})
}

// registerDeviceRequest is the request body for PUT /api/v1/me/devices.
type registerDeviceRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform"`
}

// RegisterDevice handles PUT /api/v1/me/devices.
func (h *Handler) RegisterDevice(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid register device request")
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.devices.RegisterToken(ctx, userID, req.Token, req.Platform); err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyToken):
			response.BadRequest(c, "token cannot be empty")
		default:
			l.Error().Err(err).Str(pkglog.FieldUserID, userID).Msg("register device failed")
			fail(c, err, "failed to register device")
		}
		return
	}

	response.Success(c, gin.H{"message": "device registered"})
}

// fail answers an error that no sentinel matched: upstream dependency
// failures map to 503, anything else to 500.
func fail(c *gin.Context, err error, message string) {
	if errors.Is(err, service.ErrUpstream) {
		response.ServiceUnavailable(c, message)
		return
	}
	response.InternalError(c, message)
}

func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}
