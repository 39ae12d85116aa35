package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
)

func TestCreateCard_PairsCanvas(t *testing.T) {
	e := newEnv(t)
	u := e.signUp(t, "amy")
	ctx := context.Background()

	card, err := e.cards.CreateCard(ctx, u.ID, CreateCardInput{LayoutDirection: model.LayoutVertical})
	require.NoError(t, err)
	assert.False(t, card.IsPublished)
	assert.Equal(t, model.LayoutVertical, card.LayoutDirection)

	canvas, err := e.cards.GetCanvas(ctx, u.ID, card.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.LayoutVertical), canvas.Data.Position)
	assert.Equal(t, model.DefaultCanvasData().Front, canvas.Data.Front)
}

func TestCreateCard_RollsBackWhenCanvasFails(t *testing.T) {
	e := newEnv(t)
	u := e.signUp(t, "amy")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cards := NewCardService(e.store.Cards(), failingCanvases{e.store.Canvases()}, e.store.Bookmarks(), e.store.Users(), logger)

	_, err := cards.CreateCard(context.Background(), u.ID, CreateCardInput{})
	require.ErrorIs(t, err, errInjected)

	own, err := e.cards.ListOwnCards(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, own, "no card may exist without a canvas")
}

func TestCanvasRoundTrip(t *testing.T) {
	e := newEnv(t)
	u := e.signUp(t, "amy")
	ctx := context.Background()
	card, err := e.cards.CreateCard(ctx, u.ID, CreateCardInput{})
	require.NoError(t, err)

	data := model.CanvasData{
		Front:    `{"objects":[{"type":"text","text":"哈囉 \"quoted\" \\ end"}]}`,
		Back:     "data:image/png;base64,iVBORw0KGgo=",
		Position: "vertical",
	}
	images := model.CardImageData{Front: "data:image/png;base64,AAA=", Back: "data:image/png;base64,BBB="}
	_, err = e.cards.SaveCanvas(ctx, u.ID, card.ID, SaveCanvasInput{
		CanvasData:      data,
		CardImageData:   images,
		LayoutDirection: model.LayoutVertical,
	})
	require.NoError(t, err)

	canvas, err := e.cards.GetCanvas(ctx, u.ID, card.ID)
	require.NoError(t, err)
	assert.Equal(t, data, canvas.Data)

	stored, err := e.cards.GetOwnCard(ctx, u.ID, card.ID)
	require.NoError(t, err)
	assert.Equal(t, images, stored.CardImageData)
	assert.Equal(t, model.LayoutVertical, stored.LayoutDirection)
}

func TestOwnership(t *testing.T) {
	e := newEnv(t)
	owner := e.signUp(t, "bob")
	other := e.signUp(t, "amy")
	card := e.publishedCard(t, owner.ID, "Bob")
	ctx := context.Background()

	_, err := e.cards.GetOwnCard(ctx, other.ID, card.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = e.cards.Publish(ctx, other.ID, card.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = e.cards.GetCanvas(ctx, other.ID, card.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, e.cards.DeleteCard(ctx, other.ID, card.ID), apperror.ErrNotFound)
}

func TestDeleteCard_Cascades(t *testing.T) {
	e := newEnv(t)
	owner := e.signUp(t, "bob")
	fan := e.signUp(t, "amy")
	card := e.publishedCard(t, owner.ID, "Bob")
	ctx := context.Background()

	_, err := e.bookmarks.AddBookmark(ctx, fan.ID, card.ID)
	require.NoError(t, err)

	require.NoError(t, e.cards.DeleteCard(ctx, owner.ID, card.ID))

	_, err = e.store.Cards().GetByID(ctx, card.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = e.store.Canvases().Get(ctx, card.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = e.store.Bookmarks().Get(ctx, bookmarkKey(fan.ID, card.ID))
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestGetHomepageView_Roles(t *testing.T) {
	e := newEnv(t)
	owner := e.signUp(t, "bob")
	fan := e.signUp(t, "amy")
	stranger := e.signUp(t, "cid")
	card := e.publishedCard(t, owner.ID, "Bob")
	ctx := context.Background()

	_, err := e.bookmarks.AddBookmark(ctx, fan.ID, card.ID)
	require.NoError(t, err)

	tests := []struct {
		name        string
		viewer      string
		role        model.Role
		seesPhone   bool
		hasBookmark bool
	}{
		{"guest", "", model.RoleGuest, false, false},
		{"author", owner.ID, model.RoleAuthor, true, false},
		{"bookmarked member", fan.ID, model.RoleBookmarkedMember, false, true},
		{"other member", stranger.ID, model.RoleNonBookmarkedMember, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := e.cards.GetHomepageView(ctx, tt.viewer, card.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.role, view.Role)
			_, phone := view.JobInfo["phoneNumber"]
			assert.Equal(t, tt.seesPhone, phone)
			assert.Contains(t, view.JobInfo, "name")
			assert.Equal(t, tt.hasBookmark, view.Bookmark != nil)
		})
	}
}

func TestGetHomepageView_Unpublished(t *testing.T) {
	e := newEnv(t)
	owner := e.signUp(t, "bob")
	card, err := e.cards.CreateCard(context.Background(), owner.ID, CreateCardInput{})
	require.NoError(t, err)

	for _, viewer := range []string{"", owner.ID} {
		_, err := e.cards.GetHomepageView(context.Background(), viewer, card.ID)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	}
}

func TestHomepageLinks(t *testing.T) {
	e := newEnv(t)
	owner := e.signUp(t, "bob")
	card := e.publishedCard(t, owner.ID, "Bob")
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"A", "B", "C"} {
		c, err := e.cards.AddLink(ctx, owner.ID, card.ID, model.HomepageLink{Type: model.LinkPlain, Title: title, URL: "https://x.test/" + title})
		require.NoError(t, err)
		ids = append(ids, c.HomepageLinks[len(c.HomepageLinks)-1].ID)
	}
	assert.NotEqual(t, ids[0], ids[1])

	c, err := e.cards.ReorderLink(ctx, owner.ID, card.ID, ids[1], 0)
	require.NoError(t, err)
	assert.Equal(t, "B", c.HomepageLinks[0].Title)
	assert.Equal(t, "A", c.HomepageLinks[1].Title)
	assert.Equal(t, "C", c.HomepageLinks[2].Title)

	c, err = e.cards.EditLink(ctx, owner.ID, card.ID, model.HomepageLink{ID: ids[2], Type: model.LinkGitHub, Title: "Code", URL: "https://github.com/bob"})
	require.NoError(t, err)
	assert.Equal(t, "Code", c.HomepageLinks[2].Title)

	c, err = e.cards.DeleteLink(ctx, owner.ID, card.ID, ids[0])
	require.NoError(t, err)
	assert.Len(t, c.HomepageLinks, 2)

	_, err = e.cards.DeleteLink(ctx, owner.ID, card.ID, ids[0])
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = e.cards.ReorderLink(ctx, owner.ID, card.ID, ids[1], 5)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	view, err := e.cards.GetHomepageView(ctx, "", card.ID)
	require.NoError(t, err)
	assert.Len(t, view.HomepageLinks, 2)
}

func TestToggleFieldVisibilityAndTitle(t *testing.T) {
	e := newEnv(t)
	owner := e.signUp(t, "bob")
	card := e.publishedCard(t, owner.ID, "Bob")
	ctx := context.Background()

	c, err := e.cards.ToggleFieldVisibility(ctx, owner.ID, card.ID, "phoneNumber")
	require.NoError(t, err)
	assert.True(t, c.JobInfo.PhoneNumber.IsPublic)

	view, err := e.cards.GetHomepageView(ctx, "", card.ID)
	require.NoError(t, err)
	assert.Equal(t, "0912345678", view.JobInfo["phoneNumber"].Content)

	_, err = e.cards.ToggleFieldVisibility(ctx, owner.ID, card.ID, "salary")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	c, err = e.cards.RenameHomepageTitle(ctx, owner.ID, card.ID, "  Bob's page ")
	require.NoError(t, err)
	assert.Equal(t, "Bob's page", c.HomepageTitle)
}

func TestEditJobInfo(t *testing.T) {
	e := newEnv(t)
	owner := e.signUp(t, "bob")
	card := e.publishedCard(t, owner.ID, "Bob")

	info := model.JobInfo{Name: model.JobField{Content: "Robert", IsPublic: true}}
	c, err := e.cards.EditJobInfo(context.Background(), owner.ID, card.ID, info)
	require.NoError(t, err)
	assert.Equal(t, info, c.JobInfo)
}

func TestCardWall(t *testing.T) {
	e := newEnv(t)
	owner := e.signUp(t, "bob")
	ctx := context.Background()

	for _, name := range []string{"Ann", "Annie", "Bo"} {
		e.publishedCard(t, owner.ID, name)
	}
	_, err := e.cards.CreateCard(ctx, owner.ID, CreateCardInput{JobInfo: model.JobInfo{
		Name: model.JobField{Content: "Hidden Ann", IsPublic: true},
	}})
	require.NoError(t, err)

	page, err := e.cards.CardWall(ctx, repository.CardWallFilter{Name: "ann"}, model.PageRequest{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPage, "unpublished cards are excluded and paging uses the filtered count")
	require.Len(t, page.Records, 1)
	assert.Equal(t, "Annie", page.Records[0].Name, "newest first")
	assert.Equal(t, owner.AvatarURL, page.Records[0].Avatar)

	page, err = e.cards.CardWall(ctx, repository.CardWallFilter{City: "Tainan"}, firstPage)
	require.NoError(t, err)
	assert.Equal(t, 0, page.TotalPage)
	assert.Empty(t, page.Records)

	_, err = e.cards.CardWall(ctx, repository.CardWallFilter{}, model.PageRequest{Page: 1, Limit: 101})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestUpdate_CardDeletedMidway(t *testing.T) {
	e := newEnv(t)
	u := e.signUp(t, "amy")
	card := e.publishedCard(t, u.ID, "Amy")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cards := NewCardService(vanishingCards{e.store.Cards()}, e.store.Canvases(), e.store.Bookmarks(), e.store.Users(), logger)

	_, err := cards.RenameHomepageTitle(context.Background(), u.ID, card.ID, "New title")
	assert.ErrorIs(t, err, apperror.ErrOperationFailed)
}
