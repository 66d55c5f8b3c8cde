package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		Organization: "acme",
		Project:      "Support Desk",
		BaseURL:      srv.URL,
		Token:        "pat-123",
		HTTPClient:   srv.Client(),
	})
}

func parseIDs(r *http.Request) []int {
	var ids []int
	for _, s := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id, err := strconv.Atoi(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func writeItems(w http.ResponseWriter, ids []int) {
	value := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		value = append(value, map[string]any{"id": id, "fields": map[string]any{"System.Title": fmt.Sprintf("item %d", id)}})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"count": len(value), "value": value})
}

func TestCriteriaWIQL(t *testing.T) {
	c := Criteria{AreaPath: "Soporte", WorkItemType: "Product Backlog Item", ExcludedStates: []string{"Removed", "Cut"}}
	want := "SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = @project AND [System.AreaPath] = 'Soporte' AND [System.WorkItemType] = 'Product Backlog Item' AND [System.State] NOT IN ('Removed', 'Cut')"
	if got := c.WIQL(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	quoted := Criteria{AreaPath: "O'Brien"}.WIQL()
	if !strings.Contains(quoted, "'O''Brien'") {
		t.Errorf("expected escaped quote, got %q", quoted)
	}
}

func TestQuery(t *testing.T) {
	var gotPath, gotQuery, gotUser, gotPass string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotUser, gotPass, _ = r.BasicAuth()
		var body struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotQuery = body.Query
		_, _ = w.Write([]byte(`{"workItems":[{"id":3,"url":"u3"},{"id":1,"url":"u1"}]}`))
	})

	ids, err := client.Query(context.Background(), Criteria{WorkItemType: "Feature"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if diff := cmp.Diff([]int{3, 1}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if gotPath != "/acme/Support%20Desk/_apis/wit/wiql" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotUser != "" || gotPass != "pat-123" {
		t.Errorf("expected basic auth with empty user, got %q/%q", gotUser, gotPass)
	}
	if !strings.Contains(gotQuery, "[System.WorkItemType] = 'Feature'") {
		t.Errorf("unexpected query %q", gotQuery)
	}
}

func TestGetWorkItems_DedupAndBatch(t *testing.T) {
	var (
		mu      sync.Mutex
		batches [][]int
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("$expand") != "relations" {
			t.Errorf("expected relations expansion, got %q", r.URL.RawQuery)
		}
		ids := parseIDs(r)
		mu.Lock()
		batches = append(batches, ids)
		mu.Unlock()
		writeItems(w, ids)
	})

	var ids []int
	for i := 1; i <= 450; i++ {
		ids = append(ids, i)
	}
	ids = append(ids, 5, 5, 17)

	items, err := client.GetWorkItems(context.Background(), ids)
	if err != nil {
		t.Fatalf("GetWorkItems failed: %v", err)
	}
	if len(items) != 450 {
		t.Errorf("expected 450 items, got %d", len(items))
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	sizes := []int{len(batches[0]), len(batches[1]), len(batches[2])}
	sort.Ints(sizes)
	if diff := cmp.Diff([]int{50, 200, 200}, sizes); diff != "" {
		t.Errorf("batch sizes mismatch (-want +got):\n%s", diff)
	}
}

func TestGetWorkItems_Empty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty id list")
	})
	items, err := client.GetWorkItems(context.Background(), nil)
	if err != nil || items != nil {
		t.Errorf("expected nil result, got %v, %v", items, err)
	}
}

func TestGetWorkItems_PartialFailure(t *testing.T) {
	client := NewClient(Options{Organization: "acme", Project: "p", BatchSize: 2})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := parseIDs(r)
		for _, id := range ids {
			if id == 3 {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"message":"TF401232: Work item 3 does not exist"}`))
				return
			}
		}
		writeItems(w, ids)
	}))
	defer srv.Close()
	client.baseURL = srv.URL

	items, err := client.GetWorkItems(context.Background(), []int{1, 2, 3, 4, 5})
	if !errors.Is(err, ErrPartialFetch) {
		t.Fatalf("expected partial fetch error, got %v", err)
	}
	if diff := cmp.Diff([]int{3, 4}, LostIDs(err)); diff != "" {
		t.Errorf("lost ids mismatch (-want +got):\n%s", diff)
	}
	if len(items) != 3 {
		t.Errorf("expected 3 surviving items, got %d", len(items))
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("expected server message in error, got %q", err.Error())
	}
}

func TestGetWorkItems_AuthAborts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := client.GetWorkItems(context.Background(), []int{1, 2})
	if !errors.Is(err, ErrAuthInvalid) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if errors.Is(err, ErrPartialFetch) {
		t.Error("auth failure must not be reported as a partial loss")
	}
}

func TestGetWorkItems_CancelledIsNotPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		cancel()
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	items, err := client.GetWorkItems(ctx, []int{1, 2, 3})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrPartialFetch) {
		t.Error("a cancelled fetch must not be reported as a partial loss")
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func TestDoJSON_CancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"workItems":[]}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Query(ctx, Criteria{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrNetwork) {
		t.Error("cancellation must not be reported as a network failure")
	}
}

func TestPartialFetchError_OnlyPartialCategory(t *testing.T) {
	pf := &PartialFetchError{}
	pf.add([]int{4, 3}, &APIError{Kind: ErrRemoteAPI, StatusCode: 404, Message: "gone"})
	pf.add([]int{9}, &APIError{Kind: ErrNetwork, Message: "reset"})

	var err error = pf
	if !errors.Is(err, ErrPartialFetch) {
		t.Error("expected ErrPartialFetch")
	}
	for _, kind := range []error{ErrRemoteAPI, ErrNetwork, ErrAuthInvalid} {
		if errors.Is(err, kind) {
			t.Errorf("partial loss must not match %v", kind)
		}
	}
	if diff := cmp.Diff([]int{3, 4, 9}, LostIDs(err)); diff != "" {
		t.Errorf("lost ids mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(err.Error(), "gone") {
		t.Errorf("expected batch errors in message, got %q", err.Error())
	}
}

func TestDoJSON_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    error
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, "", ErrAuthInvalid, ""},
		{"server message", http.StatusBadRequest, `{"message":"bad wiql"}`, ErrRemoteAPI, "bad wiql"},
		{"generic status", http.StatusInternalServerError, "<html>oops</html>", ErrRemoteAPI, "status 500"},
		{"malformed", http.StatusOK, "<html>sign in</html>", ErrMalformedResponse, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.Query(context.Background(), Criteria{})
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T", err)
			}
			if tt.message != "" && apiErr.Message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, apiErr.Message)
			}
		})
	}
}

func TestDoJSON_EmptyBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ids, err := client.Query(context.Background(), Criteria{})
	if err != nil {
		t.Fatalf("expected no error for empty body, got %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no ids, got %v", ids)
	}
}

func TestDoJSON_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(Options{Organization: "acme", Project: "p", BaseURL: url, Token: "x"})
	_, err := client.Query(context.Background(), Criteria{})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestGetComments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/_apis/wit/workitems/42/comments") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("$expand") != "renderedText" {
			t.Errorf("expected renderedText expansion")
		}
		_, _ = w.Write([]byte(`{"count":1,"comments":[{"id":9,"text":"hola","renderedText":"<p>hola</p>","createdBy":{"displayName":"Ana"},"createdDate":"2024-05-01T10:00:00Z"}]}`))
	})
	comments, err := client.GetComments(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetComments failed: %v", err)
	}
	if len(comments) != 1 || comments[0].CreatedBy.DisplayName != "Ana" || comments[0].RenderedText != "<p>hola</p>" {
		t.Errorf("unexpected comments %+v", comments)
	}
}

func TestConnectionData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acme/_apis/connectionData" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"authenticatedUser":{"providerDisplayName":"Ana Pérez","properties":{"Account":{"$type":"System.String","$value":"ana@example.com"}}}}`))
	})
	id, err := client.ConnectionData(context.Background())
	if err != nil {
		t.Fatalf("ConnectionData failed: %v", err)
	}
	if id.DisplayName != "Ana Pérez" || id.UniqueName != "ana@example.com" {
		t.Errorf("unexpected identity %+v", id)
	}
}

func TestBearerToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"workItems":[]}`))
	}))
	defer srv.Close()

	client := NewClient(Options{Organization: "acme", Project: "p", BaseURL: srv.URL, Token: "pat", AccessToken: "entra-token"})
	if _, err := client.Query(context.Background(), Criteria{}); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if auth != "Bearer entra-token" {
		t.Errorf("expected bearer header, got %q", auth)
	}
}
