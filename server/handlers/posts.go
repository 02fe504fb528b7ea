package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
	"desktown-backend/shared/search"
	"desktown-backend/shared/utils/query"
)

type CreatePostRequest struct {
	Content  string     `json:"content" binding:"required" example:"Team lunch at noon!"`
	ImageURL string     `json:"image_url"`
	OfficeID *uuid.UUID `json:"office_id"`
}

// FeedResponse is one page of the feed; pass next_cursor as ?before= for the next page
type FeedResponse struct {
	Items      []models.Post `json:"items"`
	NextCursor *uint         `json:"next_cursor"`
}

func postRecord(p *models.Post) search.PostRecord {
	rec := search.PostRecord{
		ID:       fmt.Sprint(p.ID),
		Content:  p.Content,
		AuthorID: p.AuthorID.String(),
	}
	if p.OfficeID != nil {
		rec.OfficeID = p.OfficeID.String()
	}
	return rec
}

// ListFeed godoc
// @Summary Social feed
// @Description Newest first, paged by id cursor
// @Tags posts
// @Produce json
// @Param before query int false "Return posts with id lower than this"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param office_id query string false "Only posts of this office"
// @Success 200 {object} FeedResponse
// @Router /posts [get]
func (h *Handler) ListFeed(c *gin.Context) {
	var officeID *uuid.UUID
	if raw := c.Query("office_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "Invalid office_id")
			return
		}
		officeID = &id
	}

	cur := query.ParseCursor(c)
	posts, err := h.store.ListFeed(c.Request.Context(), currentUser(c).ID, officeID, cur)
	if err != nil {
		storageError(c, err, "Post")
		return
	}

	resp := FeedResponse{Items: posts}
	if resp.Items == nil {
		resp.Items = []models.Post{}
	}
	if len(posts) == cur.Limit {
		last := posts[len(posts)-1].ID
		resp.NextCursor = &last
	}
	respond(c, http.StatusOK, resp)
}

// CreatePost godoc
// @Summary Publish a post
// @Description Posting on behalf of an office requires managing it
// @Tags posts
// @Accept json
// @Produce json
// @Param body body CreatePostRequest true "Post"
// @Success 201 {object} models.Post
// @Router /posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	var req CreatePostRequest
	if !bind(c, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		badRequest(c, "content cannot be empty")
		return
	}

	ctx := c.Request.Context()
	user := currentUser(c)
	if req.OfficeID != nil {
		office, err := h.store.GetOffice(ctx, *req.OfficeID)
		if err != nil {
			storageError(c, err, "Office")
			return
		}
		if !office.CanManage(user) {
			forbidden(c, "Only the office owner can post for this office")
			return
		}
	}

	post := &models.Post{
		AuthorID: user.ID,
		OfficeID: req.OfficeID,
		Content:  content,
		ImageURL: req.ImageURL,
	}
	if err := h.store.CreatePost(ctx, post); err != nil {
		storageError(c, err, "Post")
		return
	}
	post.Author = user
	h.search.IndexPost(postRecord(post))

	respond(c, http.StatusCreated, post)
}

// DeletePost godoc
// @Summary Delete a post
// @Description Author or admin; likes and comments go with it
// @Tags posts
// @Param id path int true "Post ID"
// @Success 200 {object} map[string]interface{}
// @Router /posts/{id} [delete]
func (h *Handler) DeletePost(c *gin.Context) {
	post, ok := h.loadPost(c)
	if !ok {
		return
	}
	user := currentUser(c)
	if post.AuthorID != user.ID && !user.IsAdmin() {
		forbidden(c, "Only the author can delete this post")
		return
	}
	if err := h.store.DeletePost(c.Request.Context(), post.ID); err != nil {
		storageError(c, err, "Post")
		return
	}
	h.search.DeletePost(fmt.Sprint(post.ID))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Post deleted"})
}

// LikePost godoc
// @Summary Like a post
// @Description Idempotent; a second like changes nothing
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} map[string]interface{}
// @Router /posts/{id}/like [post]
func (h *Handler) LikePost(c *gin.Context) {
	post, ok := h.loadPost(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user := currentUser(c)
	created, err := h.store.LikePost(ctx, post.ID, user.ID)
	if err != nil {
		storageError(c, err, "Post")
		return
	}
	if created && post.AuthorID != user.ID {
		h.notify(ctx, &notification.Notification{
			UserID:   post.AuthorID,
			Type:     notification.TypePostLiked,
			Title:    "New like",
			Message:  user.FullName() + " liked your post",
			Link:     fmt.Sprintf("/posts/%d", post.ID),
			Entity:   "post",
			EntityID: fmt.Sprint(post.ID),
		})
	}
	h.likeState(c, post.ID, true)
}

// UnlikePost godoc
// @Summary Remove a like
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} map[string]interface{}
// @Router /posts/{id}/like [delete]
func (h *Handler) UnlikePost(c *gin.Context) {
	post, ok := h.loadPost(c)
	if !ok {
		return
	}
	if _, err := h.store.UnlikePost(c.Request.Context(), post.ID, currentUser(c).ID); err != nil {
		storageError(c, err, "Post")
		return
	}
	h.likeState(c, post.ID, false)
}

func (h *Handler) likeState(c *gin.Context, postID uint, liked bool) {
	count, err := h.store.CountPostLikes(c.Request.Context(), postID)
	if err != nil {
		storageError(c, err, "Post")
		return
	}
	respond(c, http.StatusOK, gin.H{"post_id": postID, "liked": liked, "like_count": count})
}

// ListPostComments godoc
// @Summary Post comments
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {array} models.PostComment
// @Router /posts/{id}/comments [get]
func (h *Handler) ListPostComments(c *gin.Context) {
	post, ok := h.loadPost(c)
	if !ok {
		return
	}
	comments, err := h.store.ListPostComments(c.Request.Context(), post.ID)
	if err != nil {
		storageError(c, err, "Post")
		return
	}
	respond(c, http.StatusOK, comments)
}

// AddPostComment godoc
// @Summary Comment on a post
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param body body CommentRequest true "Comment"
// @Success 201 {object} models.PostComment
// @Router /posts/{id}/comments [post]
func (h *Handler) AddPostComment(c *gin.Context) {
	post, ok := h.loadPost(c)
	if !ok {
		return
	}
	var req CommentRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	user := currentUser(c)
	comment := &models.PostComment{PostID: post.ID, AuthorID: user.ID, Body: strings.TrimSpace(req.Body)}
	if err := h.store.AddPostComment(ctx, comment); err != nil {
		storageError(c, err, "Post")
		return
	}
	comment.Author = user

	if post.AuthorID != user.ID {
		h.notify(ctx, &notification.Notification{
			UserID:   post.AuthorID,
			Type:     notification.TypePostComment,
			Title:    "New comment",
			Message:  user.FullName() + " commented on your post",
			Link:     fmt.Sprintf("/posts/%d", post.ID),
			Entity:   "post",
			EntityID: fmt.Sprint(post.ID),
		})
	}
	respond(c, http.StatusCreated, comment)
}

func (h *Handler) loadPost(c *gin.Context) (*models.Post, bool) {
	id, ok := uintParam(c, "id")
	if !ok {
		return nil, false
	}
	post, err := h.store.GetPost(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		storageError(c, err, "Post")
		return nil, false
	}
	return post, true
}
