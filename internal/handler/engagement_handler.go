package handler

import (
	"errors"
	"net/http"

	"github.com/MiddyPham/middy-corner-back-end/internal/service"
	"github.com/gin-gonic/gin"
)

type commentRequest struct {
	Content  string  `json:"content" binding:"required"`
	ParentID *string `json:"parentId"`
}

type reactionRequest struct {
	Type string `json:"type"`
}

// ListComments lists comments on a post.
func (a *API) ListComments(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}
	result, err := a.comments.List(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(result.Items, newCommentView, result.Total, result.Page, result.Limit, result.TotalPages))
}

// CreateComment adds a comment to a post.
func (a *API) CreateComment(c *gin.Context) {
	var req commentRequest
	if !bindJSON(c, &req) {
		return
	}
	comment, err := a.comments.Create(c.Request.Context(), c.Param("id"), service.CommentInput{
		Content:  req.Content,
		ParentID: req.ParentID,
	}, currentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": newCommentView(*comment)})
}

func (a *API) DeleteComment(c *gin.Context) {
	if err := a.comments.Remove(c.Request.Context(), c.Param("id"), currentPrincipal(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// React sets the caller's reaction on a post, replacing any earlier one.
func (a *API) React(c *gin.Context) {
	var req reactionRequest
	if !bindJSON(c, &req) {
		return
	}
	reaction, err := a.reactions.React(c.Request.Context(), c.Param("id"), req.Type, currentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reaction": newReactionView(*reaction)})
}

func (a *API) RemoveReaction(c *gin.Context) {
	if err := a.reactions.Remove(c.Request.Context(), c.Param("id"), currentPrincipal(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReactionSummary returns the counts per type and, for signed-in callers,
// their own reaction.
func (a *API) ReactionSummary(c *gin.Context) {
	ctx := c.Request.Context()
	postID := c.Param("id")
	counts, err := a.reactions.Counts(ctx, postID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := gin.H{"counts": counts, "mine": nil}
	if principal := currentPrincipal(c); !principal.Anonymous() {
		mine, err := a.reactions.Mine(ctx, postID, principal)
		switch {
		case err == nil:
			response["mine"] = mine.Type
		case !errors.Is(err, service.ErrReactionNotFound):
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, response)
}
