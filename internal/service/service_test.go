package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/auth"
	"github.com/sakif/cardbook/internal/mail"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
	"github.com/sakif/cardbook/internal/repository/sqlite"
)

const testSecret = "test-secret-0123456789"

// env wires every service against one in-memory SQLite store.
type env struct {
	store     *sqlite.DB
	tokens    *auth.TokenService
	mailer    *captureMailer
	users     *UserService
	bookmarks *BookmarkService
	cards     *CardService
	messages  *MessageService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tokens, err := auth.NewTokenService(testSecret, time.Hour, 10*time.Minute)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := &env{store: store, tokens: tokens, mailer: &captureMailer{}}
	e.bookmarks = NewBookmarkService(store.BookmarkLists(), store.Bookmarks(), store.Cards(), logger)
	e.users = NewUserService(store.Users(), store.Messages(), e.bookmarks, tokens,
		auth.NewPasswordServiceForTest(4), e.mailer, "https://app.test/reset", logger)
	e.cards = NewCardService(store.Cards(), store.Canvases(), store.Bookmarks(), store.Users(), logger)
	e.messages = NewMessageService(store.Messages(), store.Cards(), store.Bookmarks(), logger)
	return e
}

func (e *env) signUp(t *testing.T, name string) *model.User {
	t.Helper()
	res, err := e.users.SignUp(context.Background(), SignUpInput{
		Name:     name,
		Email:    name + "@example.com",
		Password: "password1",
	})
	require.NoError(t, err)
	return res.User
}

// publishedCard creates and publishes a card whose name, company and job
// title are public and whose phone number is private.
func (e *env) publishedCard(t *testing.T, ownerID, name string) *model.Card {
	t.Helper()
	ctx := context.Background()
	card, err := e.cards.CreateCard(ctx, ownerID, CreateCardInput{JobInfo: model.JobInfo{
		Name:        model.JobField{Content: name, IsPublic: true},
		CompanyName: model.JobField{Content: name + " Corp", IsPublic: true},
		JobTitle:    model.JobField{Content: "Engineer", IsPublic: true},
		PhoneNumber: model.JobField{Content: "0912345678"},
		City:        model.JobField{Content: "Taipei", IsPublic: true},
		Domain:      model.JobField{Content: "software", IsPublic: true},
	}})
	require.NoError(t, err)
	card, err = e.cards.Publish(ctx, ownerID, card.ID)
	require.NoError(t, err)
	return card
}

type captureMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

var errInjected = errors.New("injected failure")

// failingLists fails every Create and delegates everything else.
type failingLists struct {
	repository.BookmarkListRepository
}

func (failingLists) Create(context.Context, *model.BookmarkList) error { return errInjected }

// failingCanvases fails every Create and delegates everything else.
type failingCanvases struct {
	repository.CanvasRepository
}

func (failingCanvases) Create(context.Context, *model.Canvas) error { return errInjected }

// vanishingCards reports NotFound from Update, as if the card was deleted
// between the ownership check and the write.
type vanishingCards struct {
	repository.CardRepository
}

func (v vanishingCards) Update(_ context.Context, card *model.Card) error {
	return apperror.NotFound("card", card.ID)
}

// vanishingLists reports NotFound from SaveGroups.
type vanishingLists struct {
	repository.BookmarkListRepository
}

func (vanishingLists) SaveGroups(_ context.Context, userID string, _ []model.Group) error {
	return apperror.NotFound("bookmark list", userID)
}

// failingMessages inserts the first n messages and then fails.
type failingMessages struct {
	repository.MessageRepository
	n int
}

func (f failingMessages) CreateMany(ctx context.Context, msgs []model.Message) (int, error) {
	if len(msgs) <= f.n {
		return f.MessageRepository.CreateMany(ctx, msgs)
	}
	sent, err := f.MessageRepository.CreateMany(ctx, msgs[:f.n])
	if err != nil {
		return sent, err
	}
	return sent, errInjected
}
