package bot

import (
	"context"
	"errors"
	"sync"

	"goalbot/storage"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fetchResult struct {
	updates []Update
	err     error
}

// fakeTransport replays queued fetch results and records outbound sends.
type fakeTransport struct {
	mu      sync.Mutex
	fetches []fetchResult
	sent    []sentMessage
	// sendErr, when set, is returned for sends whose text matches failOn
	// (or for every send when failOn is empty).
	sendErr error
	failOn  string
	// exhausted is called when the fetch queue runs dry.
	exhausted func()
}

func (f *fakeTransport) GetUpdates(ctx context.Context, offset int) ([]Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fetches) == 0 {
		if f.exhausted != nil {
			f.exhausted()
		}
		return nil, ctx.Err()
	}
	next := f.fetches[0]
	f.fetches = f.fetches[1:]
	return next.updates, next.err
}

func (f *fakeTransport) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil && (f.failOn == "" || f.failOn == text) {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeTransport) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	texts := make([]string, len(f.sent))
	for i, m := range f.sent {
		texts[i] = m.text
	}
	return texts
}

func (f *fakeTransport) lastSent() (sentMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMessage{}, false
	}
	return f.sent[len(f.sent)-1], true
}

type createdGoal struct {
	userID     int64
	categoryID int64
	title      string
}

// fakeStore implements IdentityStore and GoalStore in memory.
type fakeStore struct {
	mu         sync.Mutex
	identities map[int64]storage.ChatIdentity
	goals      []storage.Goal
	categories []storage.Category
	created    []createdGoal
	createErr  error
	nextID     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{identities: make(map[int64]storage.ChatIdentity)}
}

func (s *fakeStore) linkUser(chatID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.identities[chatID]
	id.ChatID = chatID
	id.UserID = &userID
	s.identities[chatID] = id
}

func (s *fakeStore) FindOrCreateIdentity(ctx context.Context, chatID int64) (storage.ChatIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.identities[chatID]; ok {
		return id, false, nil
	}
	s.nextID++
	id := storage.ChatIdentity{ID: s.nextID, ChatID: chatID}
	s.identities[chatID] = id
	return id, true, nil
}

func (s *fakeStore) SetVerificationCode(ctx context.Context, chatID int64, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.identities[chatID]
	if !ok {
		return errors.New("chat not found")
	}
	id.VerificationCode = code
	s.identities[chatID] = id
	return nil
}

func (s *fakeStore) ListGoals(ctx context.Context, userID int64) ([]storage.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.Goal(nil), s.goals...), nil
}

func (s *fakeStore) ListCategories(ctx context.Context, userID int64) ([]storage.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.Category(nil), s.categories...), nil
}

func (s *fakeStore) CreateGoal(ctx context.Context, userID, categoryID int64, title string) (storage.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return storage.Goal{}, s.createErr
	}
	s.created = append(s.created, createdGoal{userID: userID, categoryID: categoryID, title: title})
	goal := storage.Goal{ID: int64(len(s.created)), Title: title}
	s.goals = append(s.goals, goal)
	return goal, nil
}

func (s *fakeStore) identity(chatID int64) storage.ChatIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identities[chatID]
}

func (s *fakeStore) createdGoals() []createdGoal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]createdGoal(nil), s.created...)
}
