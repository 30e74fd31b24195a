package asr

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"

	"redub/internal/services"
)

// Uploader publishes a local audio file to a location the recognition
// service can fetch. The provider only accepts URLs, never bytes.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// HTTPUploader PUTs audio to an object-store endpoint using key/secret
// headers and returns the resulting public URL.
type HTTPUploader struct {
	Endpoint string
	KeyID    string
	Secret   string
	Client   *http.Client
}

// Upload implements Uploader.
func (u *HTTPUploader) Upload(ctx context.Context, localPath string) (string, error) {
	if strings.TrimSpace(u.Endpoint) == "" {
		return "", services.Wrap(services.ErrConfiguration, "recognize", "upload audio",
			"no upload endpoint configured and no audio_url provided", nil)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "recognize", "upload audio", localPath, err)
	}
	defer f.Close()

	target := strings.TrimRight(u.Endpoint, "/") + "/" + path.Base(localPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, f)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	if info, statErr := f.Stat(); statErr == nil {
		req.ContentLength = info.Size()
	}
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("X-Store-Access-Key", u.KeyID)
	req.Header.Set("X-Store-Secret-Key", u.Secret)

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "recognize", "upload audio", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		marker := services.ErrTransient
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			marker = services.ErrPermanent
		}
		return "", services.Wrap(marker, "recognize", "upload audio",
			fmt.Sprintf("http %d from %s", resp.StatusCode, target), nil)
	}
	return target, nil
}
