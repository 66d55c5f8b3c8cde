// Package azure is the gateway to the Azure DevOps work item tracking API.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goblinsan/ado-report/pkg/types"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://dev.azure.com"

	// MaxBatchSize is the largest id list the batch endpoint accepts.
	MaxBatchSize = 200

	wiqlAPIVersion      = "7.1-preview.2"
	workItemsAPIVersion = "7.1-preview.3"
	commentsAPIVersion  = "7.1-preview.3"
)

// Options configures a Client.
type Options struct {
	Organization string
	Project      string
	BaseURL      string
	// Token is a personal access token, sent as basic auth with an empty user.
	Token string
	// AccessToken is an Entra ID bearer token. It takes precedence over Token.
	AccessToken string
	Timeout     time.Duration
	BatchSize   int
	Concurrency int
	Logger      zerolog.Logger
	HTTPClient  *http.Client
}

// Client issues work item queries and batched fetches for one project.
type Client struct {
	http        *http.Client
	baseURL     string
	org         string
	project     string
	token       string
	batchSize   int
	concurrency int
	log         zerolog.Logger
}

// NewClient creates a new Client.
func NewClient(opts Options) *Client {
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: opts.Timeout}
	}
	httpClient := base
	token := opts.Token
	if opts.AccessToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken, TokenType: "Bearer"})
		transport := base.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		httpClient = &http.Client{
			Timeout:   base.Timeout,
			Transport: &oauth2.Transport{Source: ts, Base: transport},
		}
		token = ""
	}

	batch := opts.BatchSize
	if batch <= 0 || batch > MaxBatchSize {
		batch = MaxBatchSize
	}
	conc := opts.Concurrency
	if conc <= 0 {
		conc = 8
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		http:        httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		org:         opts.Organization,
		project:     opts.Project,
		token:       token,
		batchSize:   batch,
		concurrency: conc,
		log:         opts.Logger,
	}
}

// Criteria selects work items by area path, type and excluded states within
// the client's project.
type Criteria struct {
	AreaPath       string
	WorkItemType   string
	ExcludedStates []string
}

// WIQL renders the criteria as a work item query.
func (c Criteria) WIQL() string {
	var b strings.Builder
	b.WriteString("SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = @project")
	if c.AreaPath != "" {
		fmt.Fprintf(&b, " AND [System.AreaPath] = %s", quote(c.AreaPath))
	}
	if c.WorkItemType != "" {
		fmt.Fprintf(&b, " AND [System.WorkItemType] = %s", quote(c.WorkItemType))
	}
	if len(c.ExcludedStates) > 0 {
		states := make([]string, 0, len(c.ExcludedStates))
		for _, s := range c.ExcludedStates {
			states = append(states, quote(s))
		}
		fmt.Fprintf(&b, " AND [System.State] NOT IN (%s)", strings.Join(states, ", "))
	}
	return b.String()
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Query runs a WIQL query and returns the matching ids.
func (c *Client) Query(ctx context.Context, criteria Criteria) ([]int, error) {
	u := c.projectURL("_apis/wit/wiql", url.Values{"api-version": {wiqlAPIVersion}})
	var out struct {
		WorkItems []types.Reference `json:"workItems"`
	}
	if err := c.doJSON(ctx, http.MethodPost, u, map[string]string{"query": criteria.WIQL()}, &out); err != nil {
		return nil, fmt.Errorf("failed to query work items: %w", err)
	}
	ids := make([]int, 0, len(out.WorkItems))
	for _, ref := range out.WorkItems {
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

// GetWorkItems fetches the given ids with their relations. Duplicate ids are
// fetched once. Ids are split into batches fetched concurrently; a batch that
// fails for any reason other than rejected credentials or a cancelled context
// is logged and dropped, and the call returns the remaining items with a
// *PartialFetchError. Result order is not guaranteed.
func (c *Client) GetWorkItems(ctx context.Context, ids []int) ([]types.WorkItem, error) {
	unique := dedup(ids)
	if len(unique) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		partial PartialFetchError
	)
	p := pool.NewWithResults[[]types.WorkItem]().
		WithContext(ctx).
		WithMaxGoroutines(c.concurrency).
		WithCancelOnError()
	for _, chunk := range chunks(unique, c.batchSize) {
		p.Go(func(ctx context.Context) ([]types.WorkItem, error) {
			items, err := c.fetchBatch(ctx, chunk)
			if err == nil {
				return items, nil
			}
			if errors.Is(err, ErrAuthInvalid) || ctx.Err() != nil {
				return nil, err
			}
			c.log.Warn().Err(err).Ints("ids", chunk).Msg("work item batch failed, continuing without it")
			mu.Lock()
			partial.add(chunk, err)
			mu.Unlock()
			return nil, nil
		})
	}
	batches, err := p.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("failed to get work items: %w", ctxErr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get work items: %w", err)
	}

	var items []types.WorkItem
	for _, b := range batches {
		items = append(items, b...)
	}
	if len(partial.IDs) > 0 {
		return items, &partial
	}
	return items, nil
}

func (c *Client) fetchBatch(ctx context.Context, ids []int) ([]types.WorkItem, error) {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = strconv.Itoa(id)
	}
	q := url.Values{
		"ids":         {strings.Join(strs, ",")},
		"$expand":     {"relations"},
		"api-version": {workItemsAPIVersion},
	}
	var out struct {
		Count int              `json:"count"`
		Value []types.WorkItem `json:"value"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.orgURL("_apis/wit/workitems", q), nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// GetComments returns the discussion of a work item, with rendered HTML.
func (c *Client) GetComments(ctx context.Context, id int) ([]types.Comment, error) {
	q := url.Values{
		"$expand":     {"renderedText"},
		"api-version": {commentsAPIVersion},
	}
	u := c.projectURL(fmt.Sprintf("_apis/wit/workitems/%d/comments", id), q)
	var out struct {
		Count    int             `json:"count"`
		Comments []types.Comment `json:"comments"`
	}
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get comments for %d: %w", id, err)
	}
	return out.Comments, nil
}

// ConnectionData returns the identity the credentials authenticate as.
func (c *Client) ConnectionData(ctx context.Context) (types.Identity, error) {
	var out struct {
		AuthenticatedUser struct {
			ProviderDisplayName string `json:"providerDisplayName"`
			Properties          struct {
				Account struct {
					Value string `json:"$value"`
				} `json:"Account"`
			} `json:"properties"`
		} `json:"authenticatedUser"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.orgURL("_apis/connectionData", nil), nil, &out); err != nil {
		return types.Identity{}, fmt.Errorf("failed to get connection data: %w", err)
	}
	return types.Identity{
		DisplayName: out.AuthenticatedUser.ProviderDisplayName,
		UniqueName:  out.AuthenticatedUser.Properties.Account.Value,
	}, nil
}

func (c *Client) orgURL(path string, q url.Values) string {
	u := c.baseURL + "/" + url.PathEscape(c.org) + "/" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) projectURL(path string, q url.Values) string {
	u := c.baseURL + "/" + url.PathEscape(c.org) + "/" + url.PathEscape(c.project) + "/" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) doJSON(ctx context.Context, method, u string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.SetBasicAuth("", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &APIError{Kind: ErrNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Kind: ErrNetwork, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return &APIError{Kind: ErrAuthInvalid, StatusCode: resp.StatusCode, Message: "token rejected or expired"}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Kind: ErrRemoteAPI, StatusCode: resp.StatusCode, Message: remoteMessage(data, resp.StatusCode)}
	}
	if len(bytes.TrimSpace(data)) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Kind: ErrMalformedResponse, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return nil
}

// remoteMessage extracts the server's error message, falling back to the status.
func remoteMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return fmt.Sprintf("status %d", status)
}

func dedup(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func chunks(ids []int, size int) [][]int {
	var out [][]int
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
