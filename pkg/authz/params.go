package authz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// maxBodyBytes bounds how much of a request body the authorization layer
// will buffer to extract parameters.
const maxBodyBytes = 1 << 20

// requestParams holds the declared parameters of a request: the query
// string for GETs, the JSON body for mutating methods. The body is buffered
// and restored so the downstream handler can still read it.
type requestParams struct {
	values map[string]any
}

// paramsFromRequest extracts request parameters per the API convention.
func paramsFromRequest(r *http.Request) (*requestParams, error) {
	switch r.Method {
	case http.MethodGet:
		values := make(map[string]any)
		for key, vals := range r.URL.Query() {
			if len(vals) > 0 {
				values[key] = vals[0]
			}
		}
		return &requestParams{values: values}, nil

	case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		values := make(map[string]any)
		if len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, &values); err != nil {
				return nil, fmt.Errorf("parse request body: %w", err)
			}
		}
		return &requestParams{values: values}, nil

	default:
		return nil, fmt.Errorf("unsupported HTTP method %q", r.Method)
	}
}

// get returns a required string parameter. run_id falls back to the legacy
// run_uuid name.
func (p *requestParams) get(param string) (string, error) {
	value, ok := p.values[param]
	if !ok {
		if param == "run_id" {
			return p.get("run_uuid")
		}
		return "", fmt.Errorf("%w: missing value for required parameter %q", errBadRequest, param)
	}
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("%w: parameter %q has unsupported type %T", errBadRequest, param, value)
	}
}

// getInt returns an optional integer parameter, or fallback when absent.
func (p *requestParams) getInt(param string, fallback int) (int, error) {
	value, ok := p.values[param]
	if !ok {
		return fallback, nil
	}
	switch v := value.(type) {
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: parameter %q is not an integer", errBadRequest, param)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: parameter %q has unsupported type %T", errBadRequest, param, value)
	}
}

// getString returns an optional string parameter, empty when absent.
func (p *requestParams) getString(param string) string {
	value, _ := p.values[param].(string)
	return value
}
