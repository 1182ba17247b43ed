package telegram

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"hr_assistant_bot/internal/access"
	"hr_assistant_bot/internal/feature/application"
	"hr_assistant_bot/internal/feature/meeting"
	"hr_assistant_bot/internal/feature/resume"
	"hr_assistant_bot/internal/feature/user"
	"hr_assistant_bot/internal/store"
)

const testChat int64 = 500

func newTestClient(t *testing.T) (*Client, *fakeBot) {
	t.Helper()

	db, err := store.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	hookLogger, _ := logtest.NewNullLogger()
	logger := logrus.NewEntry(hookLogger)

	registrar := user.NewRegistrar(db, logger)
	policy := access.NewPolicy([]string{"hr_lead"})
	fb := &fakeBot{}

	return &Client{
		bot:          fb,
		logger:       logger,
		registrar:    registrar,
		dialog:       application.NewDialog(registrar, db, logger),
		catalog:      application.NewCatalog(db, policy, logger),
		meetings:     meeting.NewGenerator("https://meet.example.org"),
		stats:        store.NewStatsProvider(db, db),
		policy:       policy,
		currencyUnit: "RUB",
	}, fb
}

func send(c *Client, from *models.User, text string) {
	c.handleUpdate(context.Background(), nil, &models.Update{
		Message: &models.Message{
			From: from,
			Chat: models.Chat{ID: testChat},
			Text: text,
		},
	})
}

func ada() *models.User {
	return &models.User{ID: 42, FirstName: "Ada", LastName: "Lovelace", Username: "ada"}
}

func lead() *models.User {
	return &models.User{ID: 7, FirstName: "Lead", Username: "HR_Lead"}
}

func TestStartShowsMenu(t *testing.T) {
	client, fb := newTestClient(t)

	send(client, ada(), "/start")

	last := fb.last()
	if last == nil || last.Text != msgWelcome {
		t.Fatalf("expected welcome message, got %+v", last)
	}
	kb, ok := last.ReplyMarkup.(*models.ReplyKeyboardMarkup)
	if !ok {
		t.Fatalf("expected reply keyboard, got %T", last.ReplyMarkup)
	}
	if len(kb.Keyboard) != 3 || kb.Keyboard[0][0].Text != LabelRegister || kb.Keyboard[2][1].Text != LabelResume {
		t.Fatalf("unexpected keyboard layout: %+v", kb.Keyboard)
	}
	if last.ChatID != testChat {
		t.Fatalf("expected reply to chat %d, got %v", testChat, last.ChatID)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	client, fb := newTestClient(t)

	send(client, ada(), LabelRegister)
	if got := fb.last().Text; got != "You're registered, Ada Lovelace!" {
		t.Fatalf("unexpected first reply %q", got)
	}

	send(client, ada(), "/register")
	if got := fb.last().Text; got != msgAlreadyRegistered {
		t.Fatalf("unexpected second reply %q", got)
	}
}

func TestApplyRequiresRegistration(t *testing.T) {
	client, fb := newTestClient(t)

	send(client, ada(), LabelApply)

	if got := fb.last().Text; got != msgNotRegistered {
		t.Fatalf("expected registration prompt, got %q", got)
	}
	if client.dialog.Active(testChat) {
		t.Fatalf("expected no dialog for unregistered user")
	}
}

func TestApplicationDialogFlow(t *testing.T) {
	client, fb := newTestClient(t)

	send(client, ada(), LabelRegister)
	send(client, ada(), LabelApply)
	if last := fb.last(); last.Text != msgAskPosition {
		t.Fatalf("expected position question, got %q", last.Text)
	} else if _, ok := last.ReplyMarkup.(*models.ReplyKeyboardRemove); !ok {
		t.Fatalf("expected keyboard removal during dialog, got %T", last.ReplyMarkup)
	}

	send(client, ada(), "Engineer")
	if got := fb.last().Text; got != msgAskSalary {
		t.Fatalf("expected salary question, got %q", got)
	}

	send(client, ada(), "twelve hundred")
	if got := fb.last().Text; got != msgInvalidSalary {
		t.Fatalf("expected salary re-prompt, got %q", got)
	}

	send(client, ada(), "1200")
	if got := fb.last().Text; got != msgAskRegion {
		t.Fatalf("expected region question, got %q", got)
	}

	send(client, ada(), "North")
	if got := fb.last().Text; !strings.Contains(got, "Engineer | 1200 RUB | North") {
		t.Fatalf("expected confirmation with summary, got %q", got)
	}
	if client.dialog.Active(testChat) {
		t.Fatalf("expected dialog to be closed")
	}

	send(client, ada(), LabelListApplications)
	if got := fb.last().Text; !strings.Contains(got, "Applications (1):") || !strings.Contains(got, "Engineer | 1200 RUB | North") {
		t.Fatalf("expected listing with the new application, got %q", got)
	}
}

func TestMenuLabelDuringDialogIsAnswer(t *testing.T) {
	client, fb := newTestClient(t)

	send(client, ada(), LabelRegister)
	send(client, ada(), LabelApply)
	send(client, ada(), LabelMeeting)

	if got := fb.last().Text; got != msgAskSalary {
		t.Fatalf("expected label to be taken as position, got %q", got)
	}
}

func TestNonTextMessagesDoNotAnswerDialog(t *testing.T) {
	client, fb := newTestClient(t)
	sticker := func() {
		client.handleUpdate(context.Background(), nil, &models.Update{
			Message: &models.Message{
				From:    ada(),
				Chat:    models.Chat{ID: testChat},
				Sticker: &models.Sticker{FileID: "st1", Emoji: "👍"},
			},
		})
	}

	send(client, ada(), LabelRegister)
	send(client, ada(), LabelApply)

	sticker()
	if got := fb.last().Text; got != msgTextRequired+"\n"+msgAskPosition {
		t.Fatalf("expected position re-prompt, got %q", got)
	}

	send(client, ada(), "Engineer")
	send(client, ada(), "5")

	sticker()
	if got := fb.last().Text; got != msgTextRequired+"\n"+msgAskRegion {
		t.Fatalf("expected region re-prompt, got %q", got)
	}
	if !client.dialog.Active(testChat) {
		t.Fatalf("expected dialog to stay open")
	}

	apps, err := client.catalog.List(context.Background())
	if err != nil || len(apps) != 0 {
		t.Fatalf("expected nothing saved, got %d (err=%v)", len(apps), err)
	}

	send(client, ada(), "North")
	apps, err = client.catalog.List(context.Background())
	if err != nil || len(apps) != 1 {
		t.Fatalf("expected one application, got %d (err=%v)", len(apps), err)
	}
	if apps[0].Position != "Engineer" || apps[0].Salary != 5 || apps[0].Region != "North" {
		t.Fatalf("unexpected application %+v", apps[0])
	}
}

func TestDialogAnswersAreStoredVerbatim(t *testing.T) {
	client, fb := newTestClient(t)

	send(client, ada(), LabelRegister)
	send(client, ada(), LabelApply)
	send(client, ada(), "  Senior Engineer ")
	send(client, ada(), " 1200 ")
	send(client, ada(), "North ")

	if got := fb.last().Text; !strings.Contains(got, "  Senior Engineer  | 1200 RUB | North ") {
		t.Fatalf("expected untrimmed answers in summary, got %q", got)
	}
}

func TestCancelAndStartAbandonDialog(t *testing.T) {
	client, fb := newTestClient(t)

	send(client, ada(), LabelRegister)
	send(client, ada(), LabelApply)
	send(client, ada(), "/cancel")
	if got := fb.last().Text; got != msgCancelled {
		t.Fatalf("expected cancel confirmation, got %q", got)
	}

	send(client, ada(), "/cancel")
	if got := fb.last().Text; got != msgNothingToCancel {
		t.Fatalf("expected nothing to cancel, got %q", got)
	}

	send(client, ada(), "/apply")
	send(client, ada(), "/start")
	if got := fb.last().Text; got != msgWelcome {
		t.Fatalf("expected welcome, got %q", got)
	}
	if client.dialog.Active(testChat) {
		t.Fatalf("expected /start to drop the dialog")
	}
}

func TestClearRequiresPrivilege(t *testing.T) {
	client, fb := newTestClient(t)

	send(client, ada(), LabelRegister)
	send(client, ada(), LabelApply)
	send(client, ada(), "Engineer")
	send(client, ada(), "100")
	send(client, ada(), "North")

	send(client, ada(), LabelClearApplications)
	if got := fb.last().Text; got != msgPermissionDenied {
		t.Fatalf("expected permission denied, got %q", got)
	}

	send(client, lead(), "/clear")
	if got := fb.last().Text; got != "All applications have been deleted (1)." {
		t.Fatalf("unexpected clear reply %q", got)
	}

	send(client, ada(), LabelListApplications)
	if got := fb.last().Text; got != msgNoApplications {
		t.Fatalf("expected empty listing, got %q", got)
	}
}

func TestMeetingLink(t *testing.T) {
	client, fb := newTestClient(t)

	send(client, ada(), LabelMeeting)

	got := fb.last().Text
	if !strings.HasPrefix(got, "🔗 Your meeting: https://meet.example.org/") {
		t.Fatalf("unexpected meeting reply %q", got)
	}
	room := got[strings.LastIndex(got, "/")+1:]
	if len(room) != 10 {
		t.Fatalf("expected 10-character room, got %q", room)
	}
}

func TestStatsAndExportArePrivileged(t *testing.T) {
	client, fb := newTestClient(t)

	send(client, ada(), LabelRegister)
	send(client, ada(), "/stats")
	if got := fb.last().Text; got != msgPermissionDenied {
		t.Fatalf("expected stats to be denied, got %q", got)
	}
	send(client, ada(), "/export")
	if got := fb.last().Text; got != msgPermissionDenied {
		t.Fatalf("expected export to be denied, got %q", got)
	}

	send(client, lead(), "/stats")
	if got := fb.last().Text; got != "Users: 1\nApplications: 0" {
		t.Fatalf("unexpected stats reply %q", got)
	}

	send(client, lead(), "/export@hr_assistant_bot")
	if len(fb.documents) != 1 {
		t.Fatalf("expected one exported document, got %d", len(fb.documents))
	}
	doc := fb.documents[0]
	upload, ok := doc.params.Document.(*models.InputFileUpload)
	if !ok || upload.Filename != exportFileName {
		t.Fatalf("unexpected document payload %+v", doc.params.Document)
	}
	if !bytes.HasPrefix(doc.data, []byte("PK")) {
		t.Fatalf("expected xlsx archive bytes")
	}
}

func TestUnknownTextFallsBackToMenu(t *testing.T) {
	client, fb := newTestClient(t)

	send(client, ada(), "hello there")

	last := fb.last()
	if last.Text != msgNotUnderstood {
		t.Fatalf("expected fallback, got %q", last.Text)
	}
	if _, ok := last.ReplyMarkup.(*models.ReplyKeyboardMarkup); !ok {
		t.Fatalf("expected menu keyboard on fallback")
	}
}

func TestResumePromptAndRejectedFormat(t *testing.T) {
	client, fb := newTestClient(t)
	notifier := &fakeNotifier{}
	client.intake = resume.NewIntake(t.TempDir(), &fileFetcher{api: fb, http: http.DefaultClient}, notifier, client.logger)

	send(client, ada(), LabelResume)
	if got := fb.last().Text; got != msgAskResume {
		t.Fatalf("expected résumé prompt, got %q", got)
	}

	for _, name := range []string{"cv.txt", ".pdf"} {
		sendDocument(client, ada(), &models.Document{FileID: "f1", FileName: name})
		if got := fb.last().Text; got != msgUnsupportedFormat {
			t.Fatalf("expected unsupported format for %q, got %q", name, got)
		}
	}
	if len(notifier.seen) != 0 {
		t.Fatalf("expected no notification for rejected file")
	}
}

func TestResumeSavedAndNotified(t *testing.T) {
	for _, tt := range []struct {
		name      string
		notifyErr error
		followUp  string
	}{
		{name: "notified", followUp: msgResumeNotified},
		{name: "notify failed", notifyErr: errors.New("smtp down"), followUp: msgResumeNotifyError},
	} {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("%PDF-1.4 résumé"))
			}))
			defer server.Close()

			client, fb := newTestClient(t)
			fb.downloadURL = server.URL
			dir := t.TempDir()
			notifier := &fakeNotifier{err: tt.notifyErr}
			client.intake = resume.NewIntake(dir, &fileFetcher{api: fb, http: server.Client()}, notifier, client.logger)

			sendDocument(client, ada(), &models.Document{FileID: "f1", FileName: "CV.PDF"})
			client.Wait()

			texts := fb.texts()
			if len(texts) != 2 || texts[0] != msgResumeSaved || texts[1] != tt.followUp {
				t.Fatalf("unexpected replies %q", texts)
			}

			data, err := os.ReadFile(filepath.Join(dir, "CV.PDF"))
			if err != nil {
				t.Fatalf("expected saved file: %v", err)
			}
			if string(data) != "%PDF-1.4 résumé" {
				t.Fatalf("unexpected saved content %q", data)
			}
			if len(notifier.seen) != 1 || notifier.seen[0].Handle != "ada" {
				t.Fatalf("expected one notification for ada, got %+v", notifier.seen)
			}
		})
	}
}

func TestChunkLines(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		limit int
		want  []string
	}{
		{name: "fits", lines: []string{"ab", "cd"}, limit: 5, want: []string{"ab\ncd"}},
		{name: "splits at line boundary", lines: []string{"abc", "def"}, limit: 5, want: []string{"abc", "def"}},
		{name: "long line", lines: []string{"abcdefg"}, limit: 3, want: []string{"abc", "def", "g"}},
		{name: "counts runes", lines: []string{"ёё", "ж"}, limit: 4, want: []string{"ёё\nж"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := chunkLines(tt.lines, tt.limit)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("chunkLines() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestListSplitsLongOutput(t *testing.T) {
	client, fb := newTestClient(t)

	send(client, ada(), LabelRegister)
	position := strings.Repeat("x", 1000)
	for i := 0; i < 6; i++ {
		send(client, ada(), LabelApply)
		send(client, ada(), position)
		send(client, ada(), "1")
		send(client, ada(), "R")
	}

	before := len(fb.texts())
	send(client, ada(), LabelListApplications)
	texts := fb.texts()[before:]
	if len(texts) < 2 {
		t.Fatalf("expected listing to be split, got %d messages", len(texts))
	}
	for _, text := range texts {
		if n := len([]rune(text)); n > maxMessageLength {
			t.Fatalf("message of %d runes exceeds limit", n)
		}
	}
}

func sendDocument(c *Client, from *models.User, doc *models.Document) {
	c.handleUpdate(context.Background(), nil, &models.Update{
		Message: &models.Message{
			From:     from,
			Chat:     models.Chat{ID: testChat},
			Document: doc,
		},
	})
}
