package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTP client configuration constants
const (
	defaultHTTPTimeout  = 10 * time.Second
	maxIdleConns        = 10
	maxIdleConnsPerHost = 10
	idleConnTimeout     = 90 * time.Second
	retryBaseDelay      = 500 * time.Millisecond
	maxRetries          = 3
	userAgent           = "timeline-intake/1.0"
)

/**************************************************************************************************
** Geocoder turns GPS coordinates into a human readable place. An empty string with a nil error
** means the position is not known to the service.
**************************************************************************************************/
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// Noop is the Geocoder used when no service is configured.
type Noop struct{}

func (Noop) ReverseGeocode(context.Context, float64, float64) (string, error) {
	return "", nil
}

/**************************************************************************************************
** Client is a reverse-geocoding client for Nominatim-compatible services. It handles request
** retries and response decoding.
**************************************************************************************************/
type Client struct {
	client  *http.Client
	baseURL string
	logger  *logrus.Logger
}

/**************************************************************************************************
** NewClient creates a new geocoding client.
**
** @param baseURL - Base URL of the service, e.g. https://nominatim.openstreetmap.org
** @param logger - Logger instance for output
** @return *Client - Configured client, nil when the URL or logger is unusable
**************************************************************************************************/
func NewClient(baseURL string, logger *logrus.Logger) *Client {
	if baseURL == "" || logger == nil {
		return nil
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil || parsedURL.Host == "" {
		return nil
	}

	client := &http.Client{
		Timeout: defaultHTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        maxIdleConns,
			MaxIdleConnsPerHost: maxIdleConnsPerHost,
			IdleConnTimeout:     idleConnTimeout,
		},
	}

	return &Client{
		client:  client,
		baseURL: strings.TrimRight(parsedURL.String(), "/"),
		logger:  logger,
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		State        string `json:"state"`
		Country      string `json:"country"`
	} `json:"address"`
}

/**************************************************************************************************
** ReverseGeocode resolves a position to "city, state, country", falling back to the service's
** display name when the address has none of those parts.
**
** @param ctx - Context for the request
** @param lat - Latitude in decimal degrees
** @param lon - Longitude in decimal degrees
** @return string - Location text, empty when the service does not know the position
** @return error - Transport or decoding failure
**************************************************************************************************/
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	query.Set("zoom", "10")

	var response reverseResponse
	if err := c.doRequest(ctx, "/reverse?"+query.Encode(), &response); err != nil {
		return "", fmt.Errorf("error reverse geocoding %.5f,%.5f: %w", lat, lon, err)
	}
	if response.Error != "" {
		c.logger.Debugf("geocode: %s for %.5f,%.5f", response.Error, lat, lon)
		return "", nil
	}

	return formatAddress(response), nil
}

func formatAddress(response reverseResponse) string {
	address := response.Address
	locality := firstNonEmpty(address.City, address.Town, address.Village, address.Municipality)

	var parts []string
	for _, part := range []string{locality, address.State, address.Country} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return response.DisplayName
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

/**************************************************************************************************
** doRequest performs a GET with retry logic on transport errors and 5xx responses.
**
** @param ctx - Context for cancellation
** @param path - Path and query relative to the base URL
** @param result - Pointer to store response data
** @return error - Any error that occurred during the request
**************************************************************************************************/
func (c *Client) doRequest(ctx context.Context, path string, result interface{}) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBaseDelay * time.Duration(i)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("error creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			err := json.NewDecoder(resp.Body).Decode(result)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("error decoding response: %w", err)
			}
			return nil
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("error response: %s - %s", resp.Status, strings.TrimSpace(string(body)))
		if resp.StatusCode < 500 {
			return lastErr
		}
	}

	return fmt.Errorf("error making request after %d retries: %w", maxRetries, lastErr)
}
