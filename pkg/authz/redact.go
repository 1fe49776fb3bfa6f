package authz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/modeltrack/modeltrack/pkg/auth"
	"github.com/modeltrack/modeltrack/pkg/authstore"
	"github.com/modeltrack/modeltrack/pkg/permissions"
	"github.com/modeltrack/modeltrack/pkg/routes"
	"github.com/modeltrack/modeltrack/pkg/tracking"
)

// responseFilter post-processes a successful response body in place.
type responseFilter func(params *requestParams, resp *capturedResponse, caller auth.Identity) error

// capturedResponse buffers a handler's output so a response filter can
// rewrite the body before anything reaches the client.
type capturedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newCapturedResponse() *capturedResponse {
	return &capturedResponse{header: make(http.Header), status: http.StatusOK}
}

func (c *capturedResponse) Header() http.Header { return c.header }

func (c *capturedResponse) WriteHeader(status int) { c.status = status }

func (c *capturedResponse) Write(p []byte) (int, error) { return c.body.Write(p) }

func (c *capturedResponse) flush(w http.ResponseWriter) {
	for key, vals := range c.header {
		for _, v := range vals {
			w.Header().Add(key, v)
		}
	}
	w.Header().Set("Content-Length", strconv.Itoa(c.body.Len()))
	w.WriteHeader(c.status)
	_, _ = w.Write(c.body.Bytes())
}

// buildResponseFilters constructs the after-request dispatch table: search
// responses get redacted and refilled, resource creation grants the creator
// MANAGE on the new resource.
func (a *Authorizer) buildResponseFilters() map[RouteKey]responseFilter {
	return map[RouteKey]responseFilter{
		{routes.SearchExperiments, http.MethodGet}:       a.filterSearchExperiments,
		{routes.SearchExperiments, http.MethodPost}:      a.filterSearchExperiments,
		{routes.SearchRegisteredModels, http.MethodGet}:  a.filterSearchRegisteredModels,
		{routes.SearchRegisteredModels, http.MethodPost}: a.filterSearchRegisteredModels,

		{routes.CreateExperiment, http.MethodPost}:      a.grantCreatedExperiment,
		{routes.CreateRegisteredModel, http.MethodPost}: a.grantCreatedModel,
	}
}

// ResponseFilterMiddleware returns the after-request middleware. It must run
// inside the authorization middleware so the caller's identity is already in
// the request context. Routes without a registered filter pass through
// unbuffered.
func (a *Authorizer) ResponseFilterMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			filter, ok := a.filters[RouteKey{r.URL.Path, r.Method}]
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			caller, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			// Parameters must be read before the handler consumes the body.
			params, err := paramsFromRequest(r)
			if err != nil {
				a.writeError(w, http.StatusBadRequest, codeInvalidParameter, err.Error())
				return
			}

			resp := newCapturedResponse()
			next.ServeHTTP(resp, r)

			if resp.status >= http.StatusOK && resp.status < http.StatusMultipleChoices {
				if err := filter(params, resp, caller); err != nil {
					a.logger.Error("response filter failed", "path", r.URL.Path, "error", err)
					a.writeError(w, http.StatusInternalServerError, codeInternalError, "response processing failed")
					return
				}
			}
			resp.flush(w)
		})
	}
}

type experimentPage struct {
	Experiments      []tracking.Experiment `json:"experiments"`
	NextPageToken    string                `json:"next_page_token,omitempty"`
	TruncatedResults bool                  `json:"truncated_results,omitempty"`
}

// filterSearchExperiments removes experiments the caller cannot read and
// refills the page from the store. The page token always encodes the offset
// of the next unexamined store row, so redaction stays invisible to token
// arithmetic: the offset advances by rows fetched, not rows kept.
func (a *Authorizer) filterSearchExperiments(params *requestParams, resp *capturedResponse, caller auth.Identity) error {
	if caller.IsAdmin {
		return nil
	}

	var page experimentPage
	if err := json.Unmarshal(resp.body.Bytes(), &page); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}

	maxResults, err := params.getInt("max_results", tracking.DefaultMaxResults)
	if err != nil {
		return err
	}
	if maxResults > tracking.MaxResultsLimit {
		maxResults = tracking.MaxResultsLimit
	}
	filter := params.getString("filter")
	orderBy := params.getString("order_by")

	// One grant snapshot governs the whole response, refills included.
	readable, err := a.resolver.ExperimentReadPredicate(caller.Username)
	if err != nil {
		return err
	}

	kept := page.Experiments[:0]
	for _, exp := range page.Experiments {
		if readable(exp.ID) {
			kept = append(kept, exp)
		}
	}

	fetches := 0
	for len(kept) < maxResults && page.NextPageToken != "" {
		if a.maxRefillFetches > 0 && fetches >= a.maxRefillFetches {
			page.TruncatedResults = true
			break
		}
		offset, err := tracking.DecodePageToken(page.NextPageToken)
		if err != nil {
			return fmt.Errorf("refill experiments: %w", err)
		}
		batch, _, err := a.tracking.SearchExperiments(filter, orderBy, maxResults, page.NextPageToken)
		if err != nil {
			return fmt.Errorf("refill experiments: %w", err)
		}
		fetches++
		if remaining := maxResults - len(kept); len(batch) > remaining {
			batch = batch[:remaining]
		}
		if len(batch) == 0 {
			page.NextPageToken = ""
			break
		}
		for _, exp := range batch {
			if readable(exp.ID) {
				kept = append(kept, exp)
			}
		}
		page.NextPageToken = tracking.EncodePageToken(offset + len(batch))
	}

	if kept == nil {
		kept = []tracking.Experiment{}
	}
	page.Experiments = kept
	return writeJSONBody(resp, &page)
}

type registeredModelPage struct {
	RegisteredModels []tracking.RegisteredModel `json:"registered_models"`
	NextPageToken    string                     `json:"next_page_token,omitempty"`
	TruncatedResults bool                       `json:"truncated_results,omitempty"`
}

// filterSearchRegisteredModels is the registered-model counterpart of
// filterSearchExperiments, keyed by model name.
func (a *Authorizer) filterSearchRegisteredModels(params *requestParams, resp *capturedResponse, caller auth.Identity) error {
	if caller.IsAdmin {
		return nil
	}

	var page registeredModelPage
	if err := json.Unmarshal(resp.body.Bytes(), &page); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}

	maxResults, err := params.getInt("max_results", tracking.DefaultMaxResults)
	if err != nil {
		return err
	}
	if maxResults > tracking.MaxResultsLimit {
		maxResults = tracking.MaxResultsLimit
	}
	filter := params.getString("filter")
	orderBy := params.getString("order_by")

	readable, err := a.resolver.ModelReadPredicate(caller.Username)
	if err != nil {
		return err
	}

	kept := page.RegisteredModels[:0]
	for _, model := range page.RegisteredModels {
		if readable(model.Name) {
			kept = append(kept, model)
		}
	}

	fetches := 0
	for len(kept) < maxResults && page.NextPageToken != "" {
		if a.maxRefillFetches > 0 && fetches >= a.maxRefillFetches {
			page.TruncatedResults = true
			break
		}
		offset, err := tracking.DecodePageToken(page.NextPageToken)
		if err != nil {
			return fmt.Errorf("refill registered models: %w", err)
		}
		batch, _, err := a.tracking.SearchRegisteredModels(filter, orderBy, maxResults, page.NextPageToken)
		if err != nil {
			return fmt.Errorf("refill registered models: %w", err)
		}
		fetches++
		if remaining := maxResults - len(kept); len(batch) > remaining {
			batch = batch[:remaining]
		}
		if len(batch) == 0 {
			page.NextPageToken = ""
			break
		}
		for _, model := range batch {
			if readable(model.Name) {
				kept = append(kept, model)
			}
		}
		page.NextPageToken = tracking.EncodePageToken(offset + len(batch))
	}

	if kept == nil {
		kept = []tracking.RegisteredModel{}
	}
	page.RegisteredModels = kept
	return writeJSONBody(resp, &page)
}

// grantCreatedExperiment gives the creator MANAGE on a freshly created
// experiment. Admins get the grant too: admin status is revocable, the
// creator relationship is not.
func (a *Authorizer) grantCreatedExperiment(_ *requestParams, resp *capturedResponse, caller auth.Identity) error {
	var out struct {
		Experiment *tracking.Experiment `json:"experiment"`
	}
	if err := json.Unmarshal(resp.body.Bytes(), &out); err != nil {
		return fmt.Errorf("decode create response: %w", err)
	}
	if out.Experiment == nil || out.Experiment.ID == "" {
		return errors.New("create response carries no experiment id")
	}
	_, err := a.perms.CreateExperimentPermission(out.Experiment.ID, caller.Username, permissions.Manage.Name)
	if err != nil && !errors.Is(err, authstore.ErrExists) {
		return fmt.Errorf("grant creator permission: %w", err)
	}
	return nil
}

// grantCreatedModel gives the creator MANAGE on a freshly created
// registered model.
func (a *Authorizer) grantCreatedModel(_ *requestParams, resp *capturedResponse, caller auth.Identity) error {
	var out struct {
		RegisteredModel *tracking.RegisteredModel `json:"registered_model"`
	}
	if err := json.Unmarshal(resp.body.Bytes(), &out); err != nil {
		return fmt.Errorf("decode create response: %w", err)
	}
	if out.RegisteredModel == nil || out.RegisteredModel.Name == "" {
		return errors.New("create response carries no model name")
	}
	_, err := a.perms.CreateRegisteredModelPermission(out.RegisteredModel.Name, caller.Username, permissions.Manage.Name)
	if err != nil && !errors.Is(err, authstore.ErrExists) {
		return fmt.Errorf("grant creator permission: %w", err)
	}
	return nil
}

func writeJSONBody(resp *capturedResponse, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	resp.body.Reset()
	_, _ = resp.body.Write(body)
	return nil
}
