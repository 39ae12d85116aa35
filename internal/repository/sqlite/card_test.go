package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
)

func TestCardCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	created := createTestCard(t, db, owner.ID, "Amy")

	got, err := db.Cards().GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.OwnerID != owner.ID {
		t.Errorf("OwnerID = %s, want %s", got.OwnerID, owner.ID)
	}
	if got.JobInfo.PhoneNumber.Content != "0912345678" || got.JobInfo.PhoneNumber.IsPublic {
		t.Errorf("PhoneNumber = %+v", got.JobInfo.PhoneNumber)
	}
	if got.LayoutDirection != model.LayoutHorizontal {
		t.Errorf("LayoutDirection = %q, want horizontal default", got.LayoutDirection)
	}
	if got.HomepageLinks == nil {
		t.Error("HomepageLinks should decode to an empty slice")
	}
}

func TestCardUpdateKeepsLinkOrder(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	card := createTestCard(t, db, owner.ID, "Amy")
	ctx := context.Background()

	updated := card.
		WithLink(model.HomepageLink{ID: "l1", Type: model.LinkGitHub, Title: "code", URL: "https://github.com/amy"}).
		WithLink(model.HomepageLink{ID: "l2", Type: model.LinkEmail, Title: "mail", URL: "mailto:amy@example.com"})
	updated, err := updated.WithSwappedLink("l2", 0)
	if err != nil {
		t.Fatal(err)
	}
	updated.HomepageTitle = "Amy's page"
	if err := db.Cards().Update(ctx, &updated); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := db.Cards().GetByID(ctx, card.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.HomepageTitle != "Amy's page" {
		t.Errorf("HomepageTitle = %q", got.HomepageTitle)
	}
	if len(got.HomepageLinks) != 2 || got.HomepageLinks[0].ID != "l2" || got.HomepageLinks[1].ID != "l1" {
		t.Errorf("HomepageLinks = %+v, want [l2 l1]", got.HomepageLinks)
	}

	missing := model.Card{ID: "missing"}
	if err := db.Cards().Update(ctx, &missing); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCardListByOwnerAndDelete(t *testing.T) {
	db := newTestDB(t)
	a := createTestUser(t, db, "a@example.com")
	b := createTestUser(t, db, "b@example.com")
	first := createTestCard(t, db, a.ID, "first")
	second := createTestCard(t, db, a.ID, "second")
	createTestCard(t, db, b.ID, "other")
	ctx := context.Background()

	cards, err := db.Cards().ListByOwner(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(cards) != 2 || cards[0].ID != second.ID || cards[1].ID != first.ID {
		t.Errorf("ListByOwner() returned %d cards, want newest first", len(cards))
	}

	if err := db.Cards().Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := db.Cards().GetByID(ctx, first.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID after delete error = %v, want ErrNotFound", err)
	}
}

func TestCardListPublished(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "u@example.com")
	ctx := context.Background()

	amy := createTestCard(t, db, u.ID, "Amy Wang")
	createTestCard(t, db, u.ID, "Bob Lin")
	draft := createTestCard(t, db, u.ID, "Amy Draft")
	draft.IsPublished = false
	if err := db.Cards().Update(ctx, draft); err != nil {
		t.Fatal(err)
	}
	hidden := createTestCard(t, db, u.ID, "Amy Hidden")
	hidden.JobInfo.Name.IsPublic = false
	if err := db.Cards().Update(ctx, hidden); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		filter    repository.CardWallFilter
		wantTotal int64
	}{
		{"all published", repository.CardWallFilter{}, 3},
		{"name substring ignores case and hidden names", repository.CardWallFilter{Name: "amy"}, 1},
		{"city exact", repository.CardWallFilter{City: "Taipei"}, 3},
		{"city mismatch", repository.CardWallFilter{City: "Tai"}, 0},
		{"domain and name", repository.CardWallFilter{Domain: "software", Name: "BOB"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards, total, err := db.Cards().ListPublished(ctx, tt.filter, repository.ListOptions{Limit: 10})
			if err != nil {
				t.Fatalf("ListPublished() error = %v", err)
			}
			if total != tt.wantTotal || int64(len(cards)) != tt.wantTotal {
				t.Errorf("total = %d, len = %d, want %d", total, len(cards), tt.wantTotal)
			}
		})
	}

	page, total, err := db.Cards().ListPublished(ctx, repository.CardWallFilter{Name: "amy"}, repository.ListOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || page[0].ID != amy.ID {
		t.Errorf("name filter returned %+v", page)
	}

	page, total, err = db.Cards().ListPublished(ctx, repository.CardWallFilter{}, repository.ListOptions{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(page) != 1 || page[0].ID != amy.ID {
		t.Errorf("second page = %d records (total %d), want the oldest card", len(page), total)
	}
}

func TestCanvasRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	canvas := &model.Canvas{CardID: "c1", Data: model.DefaultCanvasData()}
	if err := db.Canvases().Create(ctx, canvas); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := db.Canvases().Create(ctx, canvas); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("second Create() error = %v, want ErrConflict", err)
	}

	blob := model.CanvasData{Front: `{"objects":[{"type":"text","text":"名片"}]}`, Back: "data:image/png;base64,iVBORw0KGgo=", Position: "vertical"}
	if err := db.Canvases().Save(ctx, &model.Canvas{CardID: "c1", Data: blob}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := db.Canvases().Get(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Data != blob {
		t.Errorf("Get() = %+v, want %+v", got.Data, blob)
	}

	if err := db.Canvases().Delete(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Canvases().Get(ctx, "c1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}
}

func TestCardListPublishedFoldsNonASCII(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "u@example.com")
	emile := createTestCard(t, db, u.ID, "Émile Durand")
	createTestCard(t, db, u.ID, "Amy Wang")

	for _, name := range []string{"Émile", "émile", "ÉMILE DURAND"} {
		t.Run(name, func(t *testing.T) {
			cards, total, err := db.Cards().ListPublished(context.Background(),
				repository.CardWallFilter{Name: name}, repository.ListOptions{Limit: 10})
			if err != nil {
				t.Fatalf("ListPublished() error = %v", err)
			}
			if total != 1 || cards[0].ID != emile.ID {
				t.Errorf("ListPublished(%q) = %d cards, want Émile's card", name, total)
			}
		})
	}
}
