package network

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"plex-observer/src/logger"
	"plex-observer/src/models"
)

// -----------------------------------------------------------------------------
// HTTPManager is the shared outbound HTTP client. Retries transient failures
// with exponential backoff; treats HTTP >= 400 as failure.
// -----------------------------------------------------------------------------

type HTTPManager struct {
	Config *models.MConfig
	Client *http.Client
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewHTTPManager(cfg *models.MConfig, log *logger.Logger) *HTTPManager {
	return &HTTPManager{
		Config: cfg,
		Client: &http.Client{
			Timeout: time.Duration(cfg.Network.RequestTimeout) * time.Second,
		},
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries.
func (nm *HTTPManager) Get(urlStr string, params map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	reqUrl.RawQuery = q.Encode()

	finalUrl := reqUrl.String()

	maxRetries := nm.Config.Network.MaxRetries
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(i*i) * time.Second) // Exponential backoff
		}

		req, err := http.NewRequest("GET", finalUrl, nil)
		if err != nil {
			return nil, err
		}

		if ua := nm.Config.Network.UserAgent; ua != "" {
			req.Header.Set("User-Agent", ua)
		}

		resp, err := nm.Client.Do(req)
		if err != nil {
			lastErr = err
			nm.Logger.Info("Request failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("request to %s returned status %d", finalUrl, resp.StatusCode)
			nm.Logger.Info("Request rejected (attempt %d/%d): status %d", i+1, maxRetries+1, resp.StatusCode)
			continue
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}

		return body, nil
	}

	return nil, lastErr
}
