package srcful

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	monitoring "gateway-monitor/internal/monitoring/domain"
)

// Client is a minimal Sourceful GraphQL client for gateway telemetry.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// NewClient constructs a telemetry client.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("srcful: empty base url")
	}
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

const gatewayQuery = `query {
  gateway {
    gateway(id: %q) {
      name
      id
      typeOf
      ders {
        type
        name
        lastSeen
        sn
        meta {
          make
          nominalPower
        }
      }
    }
  }
}`

const derLatestQuery = `query {
  derData {
    solar(sn: %q) {
      latest {
        ts
        power
      }
    }
  }
}`

// Fetch retrieves the gateway and the latest datapoint of each of its DERs,
// aggregated into one telemetry observation. A DER whose latest-data query
// fails is reported without a datapoint rather than failing the gateway.
func (c *Client) Fetch(ctx context.Context, gatewayID string) (monitoring.Telemetry, error) {
	if gatewayID == "" {
		return monitoring.Telemetry{}, monitoring.NewFetchError(monitoring.FetchNotFound, gatewayID, errors.New("srcful: empty gateway id"))
	}

	var resp gatewayResponse
	if err := c.query(ctx, fmt.Sprintf(gatewayQuery, gatewayID), &resp); err != nil {
		return monitoring.Telemetry{}, c.classify(gatewayID, err)
	}
	raw := resp.Data.Gateway.Gateway
	if raw == nil {
		return monitoring.Telemetry{}, monitoring.NewFetchError(monitoring.FetchNotFound, gatewayID, nil)
	}

	telemetry := monitoring.Telemetry{
		Gateway: monitoring.Gateway{
			ID:   raw.ID,
			Name: raw.Name,
			Type: raw.TypeOf,
		},
		FetchedAt: time.Now().UTC(),
	}

	for _, der := range raw.DERs {
		item := monitoring.DER{
			Serial: der.SN,
			Name:   der.Name,
			Type:   der.Type,
		}
		if der.Meta != nil {
			item.Make = der.Meta.Make
			item.NominalPower = der.Meta.NominalPower
		}
		if ts, ok := parseTimestamp(der.LastSeen); ok {
			item.LastSeen = ts
		}
		if der.SN != "" {
			if latest, err := c.fetchLatest(ctx, der.SN); err == nil && latest != nil {
				if latest.Power != nil {
					item.LatestPower = *latest.Power
					telemetry.PowerWatts += *latest.Power
				}
				if ts, ok := parseTimestamp(latest.TS); ok {
					item.LastSeen = ts
					if ts.After(telemetry.LastDatapoint) {
						telemetry.LastDatapoint = ts
					}
				}
			}
		}
		telemetry.Gateway.DERs = append(telemetry.Gateway.DERs, item)
	}
	return telemetry, nil
}

func (c *Client) fetchLatest(ctx context.Context, serial string) (*latestData, error) {
	var resp derDataResponse
	if err := c.query(ctx, fmt.Sprintf(derLatestQuery, serial), &resp); err != nil {
		return nil, err
	}
	return resp.Data.DERData.Solar.Latest, nil
}

func (c *Client) classify(gatewayID string, err error) error {
	if fetchErr, ok := monitoring.AsFetchError(err); ok {
		if fetchErr.GatewayID == "" {
			fetchErr.GatewayID = gatewayID
		}
		return err
	}
	kind := monitoring.FetchUnreachable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = monitoring.FetchTimeout
	}
	return monitoring.NewFetchError(kind, gatewayID, err)
}

type gatewayResponse struct {
	Data struct {
		Gateway struct {
			Gateway *rawGateway `json:"gateway"`
		} `json:"gateway"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type rawGateway struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	TypeOf string   `json:"typeOf"`
	DERs   []rawDER `json:"ders"`
}

type rawDER struct {
	Type     string      `json:"type"`
	Name     string      `json:"name"`
	LastSeen any         `json:"lastSeen"`
	SN       string      `json:"sn"`
	Meta     *rawDERMeta `json:"meta"`
}

type rawDERMeta struct {
	Make         string `json:"make"`
	NominalPower int    `json:"nominalPower"`
}

type derDataResponse struct {
	Data struct {
		DERData struct {
			Solar struct {
				Latest *latestData `json:"latest"`
			} `json:"solar"`
		} `json:"derData"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type latestData struct {
	TS    any      `json:"ts"`
	Power *float64 `json:"power"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlErrors struct {
	Errors []graphqlError `json:"errors"`
}

func (c *Client) query(ctx context.Context, query string, out any) error {
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("srcful: http %d", resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return monitoring.NewFetchError(monitoring.FetchInvalidResponse, "", fmt.Errorf("srcful: http %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var probe graphqlErrors
	if err := json.Unmarshal(body, &probe); err != nil {
		return monitoring.NewFetchError(monitoring.FetchInvalidResponse, "", err)
	}
	if len(probe.Errors) > 0 {
		return monitoring.NewFetchError(monitoring.FetchInvalidResponse, "", fmt.Errorf("srcful: graphql: %s", probe.Errors[0].Message))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return monitoring.NewFetchError(monitoring.FetchInvalidResponse, "", err)
	}
	return nil
}

// parseTimestamp accepts epoch milliseconds or ISO strings, which is what the
// API mixes for ts and lastSeen fields.
func parseTimestamp(raw any) (time.Time, bool) {
	switch value := raw.(type) {
	case float64:
		if value <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(value)).UTC(), true
	case string:
		if value == "" {
			return time.Time{}, false
		}
		if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
			return ts.UTC(), true
		}
		if ts, err := time.Parse("2006-01-02T15:04:05", value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
