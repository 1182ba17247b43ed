package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type fileAPI interface {
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

// fileFetcher downloads documents users send to the bot.
type fileFetcher struct {
	api  fileAPI
	http *http.Client
}

// Fetch resolves fileID to a download link and streams the body. The caller
// closes the returned reader.
func (f *fileFetcher) Fetch(ctx context.Context, fileID string) (io.ReadCloser, error) {
	file, err := f.api.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.api.FileDownloadLink(file), nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download file: unexpected status %s", resp.Status)
	}

	return resp.Body, nil
}
