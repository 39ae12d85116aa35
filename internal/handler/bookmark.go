package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/service"
	"github.com/sakif/cardbook/internal/validation"
)

type BookmarkHandler struct {
	bookmarks *service.BookmarkService
	validate  *validation.Validator
	res       *Responder
	logger    *slog.Logger
}

// NewBookmarkHandler serves the caller's own bookmark list.
func NewBookmarkHandler(bookmarks *service.BookmarkService, v *validation.Validator, res *Responder, logger *slog.Logger) *BookmarkHandler {
	return &BookmarkHandler{bookmarks: bookmarks, validate: v, res: res, logger: logger}
}

type groupNameRequest struct {
	Name string `json:"name" validate:"required,max=30"`
}

type reorderGroupRequest struct {
	GroupID  string `json:"groupId"  validate:"required"`
	NewIndex *int   `json:"newIndex" validate:"required,gte=0"`
}

type newIndexRequest struct {
	NewIndex *int `json:"newIndex" validate:"required,gte=0"`
}

// annotationRequest is a partial update: absent fields are left alone and
// "note": "" clears the note.
type annotationRequest struct {
	Note            *string  `json:"note"            validate:"omitempty,max=500"`
	Tags            []string `json:"tags"            validate:"omitempty,max=20,dive,max=30"`
	FollowerGroupID string   `json:"followerGroupId"`
}

// HandleAddBookmark handles POST /api/bookmark-list/cards/{cardId}.
func (h *BookmarkHandler) HandleAddBookmark(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	bm, err := h.bookmarks.AddBookmark(r.Context(), callerID(r), cardID)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.created(w, bm)
}

// HandleRemoveBookmark handles DELETE /api/bookmark-list/cards/{cardId}.
func (h *BookmarkHandler) HandleRemoveBookmark(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	if err := h.bookmarks.RemoveBookmark(r.Context(), callerID(r), cardID); err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.message(w, "bookmark removed")
}

// HandlePin handles POST /api/bookmark-list/cards/{cardId}/pin.
func (h *BookmarkHandler) HandlePin(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	if err := h.bookmarks.Pin(r.Context(), callerID(r), cardID); err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.message(w, "bookmark pinned")
}

// HandleUnpin handles DELETE /api/bookmark-list/cards/{cardId}/pin.
func (h *BookmarkHandler) HandleUnpin(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	if err := h.bookmarks.Unpin(r.Context(), callerID(r), cardID); err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.message(w, "bookmark unpinned")
}

// HandleEditAnnotation handles PATCH /api/bookmark-list/cards/{cardId}/notes.
func (h *BookmarkHandler) HandleEditAnnotation(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	var req annotationRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	bm, err := h.bookmarks.EditAnnotation(r.Context(), callerID(r), cardID, model.BookmarkAnnotation{
		Note:            req.Note,
		Tags:            req.Tags,
		FollowerGroupID: req.FollowerGroupID,
	})
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, bm)
}

// HandleListGroups handles GET /api/bookmark-list/groups.
func (h *BookmarkHandler) HandleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.bookmarks.ListGroups(r.Context(), callerID(r))
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, groups)
}

// HandleCreateGroup handles POST /api/bookmark-list/groups.
func (h *BookmarkHandler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupNameRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	groups, err := h.bookmarks.CreateGroup(r.Context(), callerID(r), req.Name)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.created(w, groups)
}

// HandleRenameGroup handles PATCH /api/bookmark-list/groups/{groupId}.
func (h *BookmarkHandler) HandleRenameGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, h.validate, h.res, "groupId")
	if !ok {
		return
	}
	var req groupNameRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	groups, err := h.bookmarks.RenameGroup(r.Context(), callerID(r), groupID, req.Name)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, groups)
}

// HandleDeleteGroup answers 403 for the default group.
func (h *BookmarkHandler) HandleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, h.validate, h.res, "groupId")
	if !ok {
		return
	}
	groups, err := h.bookmarks.DeleteGroup(r.Context(), callerID(r), groupID)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, groups)
}

// HandleReorderGroups handles PATCH /api/bookmark-list/groups/order with
// the group id in the body.
func (h *BookmarkHandler) HandleReorderGroups(w http.ResponseWriter, r *http.Request) {
	var req reorderGroupRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	h.reorder(w, r, req.GroupID, *req.NewIndex)
}

// HandleReorderGroup handles PATCH /api/bookmark-list/groups/{groupId}/order.
func (h *BookmarkHandler) HandleReorderGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, h.validate, h.res, "groupId")
	if !ok {
		return
	}
	var req newIndexRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	h.reorder(w, r, groupID, *req.NewIndex)
}

func (h *BookmarkHandler) reorder(w http.ResponseWriter, r *http.Request, groupID string, newIndex int) {
	groups, err := h.bookmarks.ReorderGroup(r.Context(), callerID(r), groupID, newIndex)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, groups)
}

// HandleListGroupContents handles GET
// /api/bookmark-list/groups/{groupId}/cards?page&limit&sort&asc.
func (h *BookmarkHandler) HandleListGroupContents(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, h.validate, h.res, "groupId")
	if !ok {
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	asc, err := queryBool(r, "asc")
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	result, err := h.bookmarks.ListGroupContents(r.Context(), callerID(r), groupID,
		page, r.URL.Query().Get("sort"), asc)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, result)
}

// HandleListTags handles GET /api/bookmark-list/tags.
func (h *BookmarkHandler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.bookmarks.ListTags(r.Context(), callerID(r))
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, tags)
}

// HandleListByTag handles GET /api/bookmark-list/tags/{tag}.
func (h *BookmarkHandler) HandleListByTag(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	tag, err := url.PathUnescape(chi.URLParam(r, "tag"))
	if err != nil {
		tag = chi.URLParam(r, "tag")
	}
	result, err := h.bookmarks.ListByTag(r.Context(), callerID(r), tag, page)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, result)
}

// HandleSearch handles GET /api/bookmark-list/search.
func (h *BookmarkHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	result, err := h.bookmarks.Search(r.Context(), callerID(r), r.URL.Query().Get("q"), page)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, result)
}
