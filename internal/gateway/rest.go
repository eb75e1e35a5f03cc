package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"school-journal/internal/config"
	"school-journal/internal/logger"
	"school-journal/pkg/errors"

	"github.com/rs/zerolog"
)

// RESTStore talks to a hosted relational data service exposing tables over
// a PostgREST style HTTP interface.
type RESTStore struct {
	cfg         config.RESTConfig
	httpClient  *http.Client
	authManager *AuthManager
	log         zerolog.Logger
}

var _ Store = (*RESTStore)(nil)

func NewRESTStore(cfg config.RESTConfig) *RESTStore {
	client := &http.Client{
		Timeout: cfg.Timeout,
	}
	return &RESTStore{
		cfg:         cfg,
		httpClient:  client,
		authManager: NewAuthManager(cfg, client),
		log:         logger.Component("rest_store"),
	}
}

func (s *RESTStore) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	if err := checkQuery(table, q.Filters, q.Order); err != nil {
		return nil, err
	}

	params := filterParams(q.Filters)
	params.Set("select", "*")
	if q.Order != nil {
		direction := "desc"
		if q.Order.Ascending {
			direction = "asc"
		}
		params.Set("order", q.Order.Column+"."+direction)
	}

	var rows []Row
	if err := s.do(ctx, http.MethodGet, table, params, nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *RESTStore) Upsert(ctx context.Context, table string, rec Row, conflictKeys []string) (Row, error) {
	if err := checkIdentifier(table); err != nil {
		return nil, err
	}
	for _, k := range conflictKeys {
		if err := checkIdentifier(k); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal([]Row{rec})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	params := url.Values{}
	params.Set("on_conflict", strings.Join(conflictKeys, ","))
	headers := map[string]string{
		"Prefer": "resolution=merge-duplicates,return=representation",
	}

	var rows []Row
	if err := s.do(ctx, http.MethodPost, table, params, headers, body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: upsert on %s returned no representation", errors.ErrRemoteStore, table)
	}
	return rows[0], nil
}

func (s *RESTStore) Delete(ctx context.Context, table string, filters []Filter) error {
	if err := checkQuery(table, filters, nil); err != nil {
		return err
	}
	if len(filters) == 0 {
		return fmt.Errorf("%w: refusing unfiltered delete on %s", errors.ErrRemoteStore, table)
	}

	return s.do(ctx, http.MethodDelete, table, filterParams(filters), nil, nil, nil)
}

func (s *RESTStore) do(ctx context.Context, method, table string, params url.Values, headers map[string]string, body []byte, out any) error {
	token, err := s.authManager.GetToken(ctx)
	if err != nil {
		return errors.NewRetryableError(err, "failed to get auth token")
	}

	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/rest/v1/" + table
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cfg.APIKey != "" {
		req.Header.Set("apikey", s.cfg.APIKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	s.log.Debug().Str("method", method).Str("table", table).Msg("Sending request to data service")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.NewRetryableError(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		// Token might be expired, a retry will refresh it
		s.authManager.Invalidate()
		return errors.NewRetryableError(errors.ErrAuthenticationFailed, "data service rejected credentials")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.NewRetryableError(
			fmt.Errorf("%w: HTTP %d: %s", errors.ErrRemoteStore, resp.StatusCode, strings.TrimSpace(string(msg))),
			"data service unavailable",
		)
	default:
		// Business logic error - don't retry
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: HTTP %d: %s", errors.ErrRemoteStore, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}

func filterParams(filters []Filter) url.Values {
	params := url.Values{}
	for _, f := range filters {
		switch f.Op {
		case OpEq:
			params.Add(f.Column, "eq."+fmt.Sprint(f.Value))
		case OpIn:
			values, _ := f.Value.([]string)
			quoted := make([]string, len(values))
			for i, v := range values {
				quoted[i] = quoteListValue(v)
			}
			params.Add(f.Column, "in.("+strings.Join(quoted, ",")+")")
		}
	}
	return params
}

// quoteListValue wraps values that would break the in.(...) list syntax.
func quoteListValue(v string) string {
	if strings.ContainsAny(v, `,()"\ `) {
		return `"` + strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), `"`, `\"`) + `"`
	}
	return v
}
