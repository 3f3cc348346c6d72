package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const krakenGraphQLURL = "https://api.octopus.energy/v1/graphql/"

const obtainTokenMutation = `
mutation obtainKrakenToken($input: ObtainJSONWebTokenInput!) {
	obtainKrakenToken(input: $input) {
		token
	}
}`

const viewerAccountsQuery = `
query {
	viewer {
		accounts {
			number
		}
	}
}`

const dispatchesQuery = `
query getDispatches($accountNumber: String!) {
	plannedDispatches(accountNumber: $accountNumber) {
		startDt
		endDt
		delta
		source
	}
	completedDispatches(accountNumber: $accountNumber) {
		startDt
		endDt
		delta
		source
	}
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// KrakenSession owns the token and account number needed to query the Kraken
// GraphQL API. Both are fetched once under a mutex and memoized for the
// process lifetime; Invalidate forces a refetch on the next use. Concurrent
// requests therefore share a single handshake instead of racing to repeat it.
type KrakenSession struct {
	apiKey string
	client *http.Client
	url    string
	log    *zap.SugaredLogger

	mu            sync.Mutex
	token         string
	tokenExpiry   time.Time
	accountNumber string
}

func NewKrakenSession(client *http.Client, apiKey string, log *zap.SugaredLogger) *KrakenSession {
	return &KrakenSession{
		apiKey: apiKey,
		client: client,
		url:    krakenGraphQLURL,
		log:    log,
	}
}

// Invalidate discards the cached token and account number so the next call
// performs the handshake again.
func (s *KrakenSession) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.tokenExpiry = time.Time{}
	s.accountNumber = ""
}

// credentials returns a usable token and account number, performing the
// two-step handshake if nothing valid is cached.
func (s *KrakenSession) credentials(ctx context.Context) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokenValidLocked() && s.accountNumber != "" {
		return s.token, s.accountNumber, nil
	}

	token, err := s.obtainToken(ctx)
	if err != nil {
		return "", "", fmt.Errorf("obtaining kraken token: %w", err)
	}
	account, err := s.fetchAccountNumber(ctx, token)
	if err != nil {
		return "", "", fmt.Errorf("resolving account number: %w", err)
	}

	s.token = token
	s.tokenExpiry = tokenExpiry(token)
	s.accountNumber = account
	return token, account, nil
}

// tokenValidLocked reports whether the cached token is still usable. Callers
// must hold mu. A token with no parsable expiry stays valid until Invalidate.
func (s *KrakenSession) tokenValidLocked() bool {
	if s.token == "" {
		return false
	}
	if s.tokenExpiry.IsZero() {
		return true
	}
	return time.Now().Before(s.tokenExpiry.Add(-time.Minute))
}

// tokenExpiry reads the exp claim out of the Kraken JWT. The signature is not
// checked; we only use the claim to schedule a refresh before it lapses.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func (s *KrakenSession) obtainToken(ctx context.Context) (string, error) {
	var payload struct {
		ObtainKrakenToken struct {
			Token string `json:"token"`
		} `json:"obtainKrakenToken"`
	}
	req := graphQLRequest{
		Query: obtainTokenMutation,
		Variables: map[string]any{
			"input": map[string]any{"APIKey": s.apiKey},
		},
	}
	if err := s.post(ctx, "", req, &payload); err != nil {
		return "", err
	}
	if payload.ObtainKrakenToken.Token == "" {
		return "", fmt.Errorf("no token in obtainKrakenToken response")
	}
	return payload.ObtainKrakenToken.Token, nil
}

func (s *KrakenSession) fetchAccountNumber(ctx context.Context, token string) (string, error) {
	var payload struct {
		Viewer struct {
			Accounts []struct {
				Number string `json:"number"`
			} `json:"accounts"`
		} `json:"viewer"`
	}
	if err := s.post(ctx, token, graphQLRequest{Query: viewerAccountsQuery}, &payload); err != nil {
		return "", err
	}
	if len(payload.Viewer.Accounts) == 0 {
		return "", fmt.Errorf("no accounts on viewer")
	}
	return payload.Viewer.Accounts[0].Number, nil
}

type krakenDispatch struct {
	StartDt string          `json:"startDt"`
	EndDt   string          `json:"endDt"`
	Delta   json.RawMessage `json:"delta"`
	Source  string          `json:"source"`
}

// RecentDispatches returns the planned dispatch windows plus completed
// dispatches that started within the last 24 hours, in that order.
func (s *KrakenSession) RecentDispatches(ctx context.Context, now time.Time) ([]DispatchWindow, error) {
	token, account, err := s.credentials(ctx)
	if err != nil {
		return nil, err
	}

	var payload struct {
		PlannedDispatches   []krakenDispatch `json:"plannedDispatches"`
		CompletedDispatches []krakenDispatch `json:"completedDispatches"`
	}
	req := graphQLRequest{
		Query:     dispatchesQuery,
		Variables: map[string]any{"accountNumber": account},
	}
	if err := s.post(ctx, token, req, &payload); err != nil {
		return nil, fmt.Errorf("querying dispatches: %w", err)
	}

	var windows []DispatchWindow
	for _, d := range payload.PlannedDispatches {
		w, err := d.toWindow(DispatchPlanned)
		if err != nil {
			s.log.Warnw("skipping malformed planned dispatch", "err", err)
			continue
		}
		windows = append(windows, w)
	}
	cutoff := now.Add(-24 * time.Hour)
	for _, d := range payload.CompletedDispatches {
		w, err := d.toWindow(DispatchCompleted)
		if err != nil {
			s.log.Warnw("skipping malformed completed dispatch", "err", err)
			continue
		}
		if w.Start.Before(cutoff) {
			continue
		}
		windows = append(windows, w)
	}

	s.log.Debugw("fetched dispatch windows", "count", len(windows))
	return windows, nil
}

func (d krakenDispatch) toWindow(kind DispatchKind) (DispatchWindow, error) {
	start, err := time.Parse(time.RFC3339, d.StartDt)
	if err != nil {
		return DispatchWindow{}, fmt.Errorf("parsing startDt %q: %w", d.StartDt, err)
	}
	end, err := time.Parse(time.RFC3339, d.EndDt)
	if err != nil {
		return DispatchWindow{}, fmt.Errorf("parsing endDt %q: %w", d.EndDt, err)
	}
	return DispatchWindow{
		Start:  start,
		End:    end,
		Kind:   kind,
		Delta:  parseDelta(d.Delta),
		Source: d.Source,
	}, nil
}

// parseDelta tolerates Kraken returning dispatch deltas as either a JSON
// number or a quoted decimal string.
func parseDelta(raw json.RawMessage) float64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// post sends a GraphQL request and decodes the data payload into out.
// A non-2xx status or a populated errors array is a definitive failure.
func (s *KrakenSession) post(ctx context.Context, token string, body graphQLRequest, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("building graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling kraken api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kraken api returned status %d", resp.StatusCode)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding graphql response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decoding graphql data: %w", err)
		}
	}
	return nil
}
