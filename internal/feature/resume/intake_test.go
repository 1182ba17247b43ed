package resume

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"hr_assistant_bot/internal/domain"
)

func newTestIntake(t *testing.T, notifyErr error) (*Intake, *fakeFetcher, *fakeNotifier, string) {
	t.Helper()
	hookLogger, _ := logtest.NewNullLogger()
	dir := filepath.Join(t.TempDir(), "resumes")
	fetcher := &fakeFetcher{content: "%PDF-1.4 résumé"}
	notifier := &fakeNotifier{err: notifyErr}
	return NewIntake(dir, fetcher, notifier, logrus.NewEntry(hookLogger)), fetcher, notifier, dir
}

func TestSubmitRejectsUnsupportedExtension(t *testing.T) {
	intake, fetcher, notifier, dir := newTestIntake(t, nil)

	_, err := intake.Submit(context.Background(), Upload{FileID: "f1", FileName: "resume.exe"}, nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	intake.Wait()

	if fetcher.calls != 0 {
		t.Fatalf("expected no download, got %d", fetcher.calls)
	}
	if len(notifier.sent()) != 0 {
		t.Fatalf("expected no email, got %d", len(notifier.sent()))
	}
	if _, statErr := os.Stat(dir); !os.IsNotExist(statErr) {
		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Fatalf("expected no files written, found %d", len(entries))
		}
	}
}

func TestSubmitSavesAndNotifiesOnce(t *testing.T) {
	intake, _, notifier, dir := newTestIntake(t, nil)

	results := make(chan error, 1)
	saved, err := intake.Submit(context.Background(), Upload{FileID: "f1", FileName: "resume.pdf", ExternalID: 5}, func(err error) {
		results <- err
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	intake.Wait()

	if err := <-results; err != nil {
		t.Fatalf("expected successful notification result, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "resume.pdf" {
		t.Fatalf("expected exactly resume.pdf on disk, got %v", entries)
	}

	data, err := os.ReadFile(saved.Path)
	if err != nil || string(data) != "%PDF-1.4 résumé" {
		t.Fatalf("unexpected saved content %q (err=%v)", data, err)
	}

	sent := notifier.sent()
	if len(sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(sent))
	}
	if sent[0].FileName != "resume.pdf" || sent[0].Path != filepath.Join(dir, "resume.pdf") {
		t.Fatalf("unexpected notification payload: %+v", sent[0])
	}
}

func TestSubmitAcceptsUppercaseDocx(t *testing.T) {
	intake, _, _, _ := newTestIntake(t, nil)

	saved, err := intake.Submit(context.Background(), Upload{FileID: "f", FileName: "CV.DOCX"}, nil)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	intake.Wait()

	if saved.FileName != "CV.DOCX" {
		t.Fatalf("expected original name kept, got %s", saved.FileName)
	}
}

func TestSubmitOverwritesSameName(t *testing.T) {
	intake, fetcher, _, dir := newTestIntake(t, nil)
	ctx := context.Background()

	if _, err := intake.Submit(ctx, Upload{FileID: "a", FileName: "cv.pdf"}, nil); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	fetcher.content = "second"
	if _, err := intake.Submit(ctx, Upload{FileID: "b", FileName: "cv.pdf"}, nil); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	intake.Wait()

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected a single file after overwrite, got %d", len(entries))
	}
	data, _ := os.ReadFile(filepath.Join(dir, "cv.pdf"))
	if string(data) != "second" {
		t.Fatalf("expected latest content, got %q", data)
	}
}

func TestSubmitStripsDirectoryComponents(t *testing.T) {
	intake, _, _, dir := newTestIntake(t, nil)

	saved, err := intake.Submit(context.Background(), Upload{FileID: "x", FileName: "../../etc/cv.pdf"}, nil)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	intake.Wait()

	if filepath.Dir(saved.Path) != dir {
		t.Fatalf("expected file inside %s, got %s", dir, saved.Path)
	}
}

func TestSubmitKeepsFileWhenNotificationFails(t *testing.T) {
	notifyErr := errors.New("smtp down")
	intake, _, _, _ := newTestIntake(t, notifyErr)

	var (
		mu       sync.Mutex
		reported error
	)
	saved, err := intake.Submit(context.Background(), Upload{FileID: "f", FileName: "resume.pdf"}, func(err error) {
		mu.Lock()
		reported = err
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	intake.Wait()

	mu.Lock()
	defer mu.Unlock()
	if !errors.Is(reported, notifyErr) {
		t.Fatalf("expected failure callback with notify error, got %v", reported)
	}
	if _, err := os.Stat(saved.Path); err != nil {
		t.Fatalf("expected file to remain after notify failure: %v", err)
	}
}

func TestSubmitPropagatesDownloadErrors(t *testing.T) {
	intake, fetcher, notifier, _ := newTestIntake(t, nil)
	fetcher.err = errors.New("telegram unavailable")

	if _, err := intake.Submit(context.Background(), Upload{FileID: "f", FileName: "resume.pdf"}, nil); !errors.Is(err, fetcher.err) {
		t.Fatalf("expected download error, got %v", err)
	}
	intake.Wait()

	if len(notifier.sent()) != 0 {
		t.Fatalf("expected no notification after failed download")
	}
}

func TestSubmitRejectsExtensionOnlyName(t *testing.T) {
	intake, fetcher, notifier, dir := newTestIntake(t, nil)

	for _, name := range []string{".pdf", ".DOCX"} {
		if _, err := intake.Submit(context.Background(), Upload{FileID: "f1", FileName: name}, nil); !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("Submit(%q) expected ErrUnsupportedFormat, got %v", name, err)
		}
	}
	intake.Wait()

	if fetcher.calls != 0 || len(notifier.sent()) != 0 {
		t.Fatalf("expected no download or email, got %d downloads and %d emails", fetcher.calls, len(notifier.sent()))
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("expected no files written, found %d", len(entries))
	}
}

func TestAllowed(t *testing.T) {
	tests := map[string]bool{
		"resume.pdf":  true,
		"resume.PDF":  true,
		"resume.docx": true,
		"resume.doc":  false,
		"resume.exe":  false,
		"pdf":         false,
		".pdf":        false,
		".DOCX":       false,
		" .pdf ":      false,
		"dir/.pdf":    false,
		"dir/cv.pdf":  true,
	}

	for name, want := range tests {
		if got := Allowed(name); got != want {
			t.Fatalf("Allowed(%q) = %v, want %v", name, got, want)
		}
	}
}

type fakeFetcher struct {
	content string
	err     error
	calls   int
}

func (f *fakeFetcher) Fetch(context.Context, string) (io.ReadCloser, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.content)), nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	err     error
	notices []domain.Resume
}

func (f *fakeNotifier) NotifyResume(_ context.Context, r domain.Resume) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, r)
	return f.err
}

func (f *fakeNotifier) sent() []domain.Resume {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Resume(nil), f.notices...)
}
