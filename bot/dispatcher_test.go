package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"goalbot/bot/session"
	"goalbot/storage"
)

const (
	testChatID int64 = 7
	testUserID int64 = 100
)

func newTestDispatcher(store *fakeStore) (*Dispatcher, session.Store) {
	sessions := session.NewMemoryStore()
	return NewDispatcher(store, sessions, nil), sessions
}

func handle(t *testing.T, d *Dispatcher, tr Transport, text string) {
	t.Helper()
	if err := d.Handle(context.Background(), tr, testUserID, Message{ChatID: testChatID, Text: text}); err != nil {
		t.Fatalf("handle %q: %v", text, err)
	}
}

func TestBannerPrecedesEveryReply(t *testing.T) {
	store := newFakeStore()
	d, _ := newTestDispatcher(store)
	tr := &fakeTransport{}

	handle(t, d, tr, "/goals")
	handle(t, d, tr, "whatever")

	texts := tr.sentTexts()
	if len(texts) != 4 {
		t.Fatalf("sent %d messages, expected banner+reply per input: %v", len(texts), texts)
	}
	if texts[0] != msgBanner || texts[2] != msgBanner {
		t.Errorf("banner not sent first on each message: %v", texts)
	}
}

func TestGoalsCommand(t *testing.T) {
	store := newFakeStore()
	store.goals = []storage.Goal{{ID: 1, Title: "Buy milk"}, {ID: 2, Title: "Ship release"}}
	d, _ := newTestDispatcher(store)
	tr := &fakeTransport{}

	handle(t, d, tr, "/goals")

	last, _ := tr.lastSent()
	want := "1 - Buy milk\n2 - Ship release"
	if last.text != want {
		t.Errorf("goals reply = %q, want %q", last.text, want)
	}
}

func TestGoalsCommandEmpty(t *testing.T) {
	store := newFakeStore()
	d, _ := newTestDispatcher(store)
	tr := &fakeTransport{}

	handle(t, d, tr, "/goals")

	last, _ := tr.lastSent()
	if last.text != msgNoGoals {
		t.Errorf("reply = %q, want %q", last.text, msgNoGoals)
	}
}

func TestUnknownCommandWhileIdle(t *testing.T) {
	store := newFakeStore()
	d, sessions := newTestDispatcher(store)
	tr := &fakeTransport{}

	handle(t, d, tr, "hello")

	last, _ := tr.lastSent()
	if last.text != msgUnknownCommand {
		t.Errorf("reply = %q, want %q", last.text, msgUnknownCommand)
	}
	if _, active := sessions.Get(testChatID); active {
		t.Error("unknown command must not open a session")
	}
}

func TestCreateFlowEndToEnd(t *testing.T) {
	store := newFakeStore()
	store.categories = []storage.Category{{ID: 3, Title: "Work"}}
	d, sessions := newTestDispatcher(store)
	tr := &fakeTransport{}

	handle(t, d, tr, "/create")

	last, _ := tr.lastSent()
	if !strings.Contains(last.text, "3 - Work") {
		t.Errorf("category prompt = %q, expected to list 3 - Work", last.text)
	}
	sess, active := sessions.Get(testChatID)
	if !active || sess.Stage != session.StageAwaitingCategory {
		t.Fatalf("session = %+v active=%v, expected awaiting category", sess, active)
	}
	if _, ok := sess.CategoryIDs["3"]; !ok {
		t.Fatalf("available ids = %v, expected to contain 3", sess.CategoryIDs)
	}

	handle(t, d, tr, "3")

	last, _ = tr.lastSent()
	if last.text != msgEnterTitle {
		t.Errorf("title prompt = %q", last.text)
	}
	sess, _ = sessions.Get(testChatID)
	if sess.Stage != session.StageAwaitingTitle || sess.SelectedCategoryID != 3 {
		t.Fatalf("session after selection = %+v", sess)
	}

	handle(t, d, tr, "Buy milk")

	last, _ = tr.lastSent()
	if last.text != msgGoalSaved {
		t.Errorf("save reply = %q", last.text)
	}
	created := store.createdGoals()
	if len(created) != 1 {
		t.Fatalf("created %d goals, expected exactly one", len(created))
	}
	if created[0] != (createdGoal{userID: testUserID, categoryID: 3, title: "Buy milk"}) {
		t.Errorf("created goal = %+v", created[0])
	}
	if _, active := sessions.Get(testChatID); active {
		t.Error("session must be removed after goal is saved")
	}
}

func TestCreateWithNoCategoriesStillOpensSession(t *testing.T) {
	store := newFakeStore()
	d, sessions := newTestDispatcher(store)
	tr := &fakeTransport{}

	handle(t, d, tr, "/create")

	sess, active := sessions.Get(testChatID)
	if !active || sess.Stage != session.StageAwaitingCategory {
		t.Fatalf("expected open session, got %+v active=%v", sess, active)
	}
	if len(sess.CategoryIDs) != 0 {
		t.Fatalf("available ids = %v, expected empty", sess.CategoryIDs)
	}

	// Any numeric input is rejected as invalid.
	handle(t, d, tr, "1")
	last, _ := tr.lastSent()
	if !strings.HasPrefix(last.text, msgBadCategory) {
		t.Errorf("reply = %q, expected invalid category", last.text)
	}
	sess, _ = sessions.Get(testChatID)
	if sess.Stage != session.StageAwaitingCategory {
		t.Error("stage must stay awaiting category")
	}
}

func TestInvalidCategoryKeepsSessionAndResendsList(t *testing.T) {
	store := newFakeStore()
	store.categories = []storage.Category{{ID: 3, Title: "Work"}, {ID: 5, Title: "Home"}}
	d, sessions := newTestDispatcher(store)
	tr := &fakeTransport{}

	handle(t, d, tr, "/create")
	before, _ := sessions.Get(testChatID)

	handle(t, d, tr, "99")

	last, _ := tr.lastSent()
	if !strings.HasPrefix(last.text, msgBadCategory) {
		t.Errorf("reply = %q", last.text)
	}
	if !strings.Contains(last.text, "3 - Work") || !strings.Contains(last.text, "5 - Home") {
		t.Errorf("invalid reply must re-send the list, got %q", last.text)
	}
	after, active := sessions.Get(testChatID)
	if !active || after.Stage != before.Stage || after.SelectedCategoryID != before.SelectedCategoryID {
		t.Errorf("session changed on invalid input: before=%+v after=%+v", before, after)
	}
}

func TestCancelFromEveryState(t *testing.T) {
	store := newFakeStore()
	store.categories = []storage.Category{{ID: 3, Title: "Work"}}

	setups := map[string]func(t *testing.T, d *Dispatcher, tr *fakeTransport){
		"idle": func(t *testing.T, d *Dispatcher, tr *fakeTransport) {},
		"awaiting_category": func(t *testing.T, d *Dispatcher, tr *fakeTransport) {
			handle(t, d, tr, "/create")
		},
		"awaiting_title": func(t *testing.T, d *Dispatcher, tr *fakeTransport) {
			handle(t, d, tr, "/create")
			handle(t, d, tr, "3")
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			d, sessions := newTestDispatcher(store)
			tr := &fakeTransport{}
			setup(t, d, tr)

			handle(t, d, tr, "/cancel")

			last, _ := tr.lastSent()
			if last.text != msgCancelled {
				t.Errorf("reply = %q, want %q", last.text, msgCancelled)
			}
			if _, active := sessions.Get(testChatID); active {
				t.Error("session must be cleared by /cancel")
			}
			if len(store.createdGoals()) != 0 {
				t.Error("no goal may be created on cancel")
			}
		})
	}
}

func TestCommandsTreatedAsInputInsideSession(t *testing.T) {
	store := newFakeStore()
	store.categories = []storage.Category{{ID: 3, Title: "Work"}}
	d, sessions := newTestDispatcher(store)
	tr := &fakeTransport{}

	handle(t, d, tr, "/create")
	handle(t, d, tr, "3")
	// Inside the title stage, a command literal becomes the goal title.
	handle(t, d, tr, "/goals")

	created := store.createdGoals()
	if len(created) != 1 || created[0].title != "/goals" {
		t.Fatalf("created = %+v, expected goal titled /goals", created)
	}
	if _, active := sessions.Get(testChatID); active {
		t.Error("session must end after title input")
	}
}

func TestIntegrityFailureMessagesUserAndClearsSession(t *testing.T) {
	store := newFakeStore()
	store.categories = []storage.Category{{ID: 3, Title: "Work"}}
	d, sessions := newTestDispatcher(store)
	tr := &fakeTransport{}

	handle(t, d, tr, "/create")
	handle(t, d, tr, "3")

	store.createErr = storage.ErrIntegrity
	handle(t, d, tr, "Buy milk")

	last, _ := tr.lastSent()
	if last.text != msgSaveFailed {
		t.Errorf("reply = %q, want %q", last.text, msgSaveFailed)
	}
	if _, active := sessions.Get(testChatID); active {
		t.Error("session must be cleared after integrity failure")
	}
}

func TestUnexpectedPersistenceErrorPropagates(t *testing.T) {
	store := newFakeStore()
	store.categories = []storage.Category{{ID: 3, Title: "Work"}}
	d, _ := newTestDispatcher(store)
	tr := &fakeTransport{}

	handle(t, d, tr, "/create")
	handle(t, d, tr, "3")

	store.createErr = errors.New("connection reset")
	err := d.Handle(context.Background(), tr, testUserID, Message{ChatID: testChatID, Text: "Buy milk"})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestSendFailurePropagates(t *testing.T) {
	store := newFakeStore()
	d, _ := newTestDispatcher(store)
	tr := &fakeTransport{sendErr: errors.New("network down")}

	err := d.Handle(context.Background(), tr, testUserID, Message{ChatID: testChatID, Text: "/goals"})
	if err == nil {
		t.Fatal("expected transport failure to propagate")
	}
}
