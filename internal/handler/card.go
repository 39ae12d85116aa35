package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/cardbook/internal/auth"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
	"github.com/sakif/cardbook/internal/service"
	"github.com/sakif/cardbook/internal/validation"
)

// CardHandler serves the owner's portfolio, the homepages built from
// cards and the public card wall.
type CardHandler struct {
	cards    *service.CardService
	validate *validation.Validator
	res      *Responder
	logger   *slog.Logger
}

// NewCardHandler serves portfolio, homepage and card wall routes.
func NewCardHandler(cards *service.CardService, v *validation.Validator, res *Responder, logger *slog.Logger) *CardHandler {
	return &CardHandler{cards: cards, validate: v, res: res, logger: logger}
}

type jobFieldRequest struct {
	Content  string `json:"content"  validate:"max=100"`
	IsPublic bool   `json:"isPublic"`
}

type jobInfoRequest struct {
	Name        jobFieldRequest `json:"name"`
	CompanyName jobFieldRequest `json:"companyName"`
	JobTitle    jobFieldRequest `json:"jobTitle"`
	PhoneNumber jobFieldRequest `json:"phoneNumber"`
	City        jobFieldRequest `json:"city"`
	Domain      jobFieldRequest `json:"domain"`
}

func (j jobInfoRequest) model() model.JobInfo {
	f := func(r jobFieldRequest) model.JobField {
		return model.JobField{Content: r.Content, IsPublic: r.IsPublic}
	}
	return model.JobInfo{
		Name:        f(j.Name),
		CompanyName: f(j.CompanyName),
		JobTitle:    f(j.JobTitle),
		PhoneNumber: f(j.PhoneNumber),
		City:        f(j.City),
		Domain:      f(j.Domain),
	}
}

type createCardRequest struct {
	JobInfo         jobInfoRequest `json:"jobInfo"`
	LayoutDirection string         `json:"layoutDirection" validate:"omitempty,oneof=horizontal vertical"`
	HomepageTitle   string         `json:"homepageTitle"   validate:"max=50"`
}

type jobInfoUpdateRequest struct {
	JobInfo jobInfoRequest `json:"jobInfo"`
}

type saveCanvasRequest struct {
	CanvasData      model.CanvasData    `json:"canvasData"`
	CardImageData   model.CardImageData `json:"cardImageData"`
	LayoutDirection string              `json:"layoutDirection" validate:"omitempty,oneof=horizontal vertical"`
}

type titleRequest struct {
	HomepageTitle string `json:"homepageTitle" validate:"required,max=50"`
}

type linkRequest struct {
	Type     string `json:"type"     validate:"required,oneof=GITHUB LINE IG FACEBOOK LINKEDIN EMAIL LINK"`
	Title    string `json:"title"    validate:"required,max=50"`
	SubTitle string `json:"subTitle" validate:"max=100"`
	Link     string `json:"link"     validate:"required,max=2048"`
	Icon     string `json:"icon"     validate:"max=2048"`
}

func (l linkRequest) model(id string) model.HomepageLink {
	return model.HomepageLink{
		ID:       id,
		Type:     model.LinkType(l.Type),
		Title:    l.Title,
		SubTitle: l.SubTitle,
		URL:      l.Link,
		Icon:     l.Icon,
	}
}

type toggleRequest struct {
	FieldName string `json:"fieldName" validate:"required,jobfield"`
}

// HandleListOwn handles GET /api/portfolio.
func (h *CardHandler) HandleListOwn(w http.ResponseWriter, r *http.Request) {
	cards, err := h.cards.ListOwnCards(r.Context(), callerID(r))
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, cards)
}

// HandleCreate handles POST /api/portfolio.
func (h *CardHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	card, err := h.cards.CreateCard(r.Context(), callerID(r), service.CreateCardInput{
		JobInfo:         req.JobInfo.model(),
		LayoutDirection: model.LayoutDirection(req.LayoutDirection),
		HomepageTitle:   req.HomepageTitle,
	})
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.created(w, card)
}

// HandleGetOwn handles GET /api/portfolio/{cardId}.
func (h *CardHandler) HandleGetOwn(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	card, err := h.cards.GetOwnCard(r.Context(), callerID(r), cardID)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, card)
}

// HandleDelete handles DELETE /api/portfolio/{cardId}.
func (h *CardHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	if err := h.cards.DeleteCard(r.Context(), callerID(r), cardID); err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.message(w, "card deleted")
}

// HandleGetCanvas handles GET /api/portfolio/{cardId}/canvas.
func (h *CardHandler) HandleGetCanvas(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	canvas, err := h.cards.GetCanvas(r.Context(), callerID(r), cardID)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, canvas)
}

// HandleSaveCanvas handles PATCH /api/portfolio/{cardId}/canvas.
func (h *CardHandler) HandleSaveCanvas(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	var req saveCanvasRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	canvas, err := h.cards.SaveCanvas(r.Context(), callerID(r), cardID, service.SaveCanvasInput{
		CanvasData:      req.CanvasData,
		CardImageData:   req.CardImageData,
		LayoutDirection: model.LayoutDirection(req.LayoutDirection),
	})
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, canvas)
}

// HandlePublish handles POST /api/portfolio/{cardId}/publish.
func (h *CardHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	card, err := h.cards.Publish(r.Context(), callerID(r), cardID)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, card)
}

// HandleEditJobInfo handles PUT /api/portfolio/{cardId}/job-info.
func (h *CardHandler) HandleEditJobInfo(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	var req jobInfoUpdateRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	card, err := h.cards.EditJobInfo(r.Context(), callerID(r), cardID, req.JobInfo.model())
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, card)
}

// HandleHomepage runs behind OptionalAuth; a missing or bad token makes
// the viewer a guest.
func (h *CardHandler) HandleHomepage(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	viewerID, _ := auth.UserIDFromContext(r.Context())
	view, err := h.cards.GetHomepageView(r.Context(), viewerID, cardID)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, view)
}

// HandleRenameTitle handles PUT /api/homepage/{cardId}/page-title.
func (h *CardHandler) HandleRenameTitle(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	var req titleRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	card, err := h.cards.RenameHomepageTitle(r.Context(), callerID(r), cardID, req.HomepageTitle)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, card)
}

// HandleAddLink handles POST /api/homepage/{cardId}/link.
func (h *CardHandler) HandleAddLink(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	var req linkRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	card, err := h.cards.AddLink(r.Context(), callerID(r), cardID, req.model(""))
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.created(w, card.HomepageLinks)
}

// HandleEditLink handles PATCH /api/homepage/{cardId}/link/{linkId}.
func (h *CardHandler) HandleEditLink(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	linkID, ok := pathID(w, r, h.validate, h.res, "linkId")
	if !ok {
		return
	}
	var req linkRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	card, err := h.cards.EditLink(r.Context(), callerID(r), cardID, req.model(linkID))
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, card.HomepageLinks)
}

// HandleDeleteLink handles DELETE /api/homepage/{cardId}/link/{linkId}.
func (h *CardHandler) HandleDeleteLink(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	linkID, ok := pathID(w, r, h.validate, h.res, "linkId")
	if !ok {
		return
	}
	card, err := h.cards.DeleteLink(r.Context(), callerID(r), cardID, linkID)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, card.HomepageLinks)
}

// HandleReorderLink handles PATCH /api/homepage/{cardId}/link/{linkId}/order.
func (h *CardHandler) HandleReorderLink(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	linkID, ok := pathID(w, r, h.validate, h.res, "linkId")
	if !ok {
		return
	}
	var req newIndexRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	card, err := h.cards.ReorderLink(r.Context(), callerID(r), cardID, linkID, *req.NewIndex)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, card.HomepageLinks)
}

// HandleToggleField handles PATCH /api/homepage/{cardId}/job-info/toggle.
func (h *CardHandler) HandleToggleField(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	var req toggleRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	card, err := h.cards.ToggleFieldVisibility(r.Context(), callerID(r), cardID, req.FieldName)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, card.JobInfo)
}

// HandleCardWall handles GET /api/card-wall?city&domain&name&page&limit.
func (h *CardHandler) HandleCardWall(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	q := r.URL.Query()
	result, err := h.cards.CardWall(r.Context(), repository.CardWallFilter{
		City:   q.Get("city"),
		Domain: q.Get("domain"),
		Name:   q.Get("name"),
	}, page)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, result)
}
