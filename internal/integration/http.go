package integration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/flowmesh/flowmesh/internal/models"
)

const (
	apiRequestTimeout    = 30 * time.Second
	apiRequestMaxRetries = 3
	apiRequestMaxBody    = 1 << 20 // 1 MiB
)

func apiRequest() *Descriptor {
	client := &http.Client{Timeout: apiRequestTimeout}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "api_request",
		Timeout: 30 * time.Second,
	})

	return &Descriptor{
		ID:          "api_request",
		Name:        "API Request",
		Description: "Performs an HTTP request with retries and a circuit breaker",
		Category:    models.NodeTypeAction,
		Version:     "1.0.0",
		Schema: []SchemaField{
			{Key: "url", Label: "URL", Type: FieldTypeURL, SupportsExpressions: true, Validate: validateURL},
			{Key: "method", Label: "Method", Type: FieldTypeSelect, Options: []string{"GET", "POST", "PUT", "PATCH", "DELETE"}},
			{Key: "headers", Label: "Headers", Type: FieldTypeTextarea, SupportsExpressions: true},
			{Key: "body", Label: "Body", Type: FieldTypeTextarea, SupportsExpressions: true},
		},
		Required: []string{"url"},
		Execute: func(ctx context.Context, config map[string]interface{}, _ *models.ExecutionContext) (*models.Result, error) {
			return executeAPIRequest(ctx, client, breaker, config)
		},
	}
}

func validateURL(value interface{}) error {
	raw, ok := value.(string)
	if !ok || raw == "" {
		return fmt.Errorf("url must be a non-empty string")
	}
	// Expression placeholders resolve at execution time
	if strings.Contains(raw, "{{") {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("url must be absolute")
	}
	return nil
}

type apiResponse struct {
	status  int
	body    string
	headers map[string]interface{}
}

func executeAPIRequest(ctx context.Context, client *http.Client, breaker *gobreaker.CircuitBreaker, config map[string]interface{}) (*models.Result, error) {
	target := stringConfig(config, "url")
	if target == "" {
		return nil, fmt.Errorf("url is required")
	}
	method := strings.ToUpper(stringConfig(config, "method"))
	if method == "" {
		method = "GET"
	}
	body := stringConfig(config, "body")

	var response *apiResponse
	operation := func() error {
		out, err := breaker.Execute(func() (interface{}, error) {
			return doRequest(ctx, client, method, target, body, config["headers"])
		})
		if err != nil {
			if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}
		response = out.(*apiResponse)
		if response.status >= 500 {
			return fmt.Errorf("server returned status %d", response.status)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), apiRequestMaxRetries),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		// A 5xx after exhausted retries still yields the response
		if response == nil {
			return nil, fmt.Errorf("request to %s failed: %w", target, err)
		}
	}

	return &models.Result{
		Success: true,
		Data: map[string]interface{}{
			"status":    response.status,
			"body":      response.body,
			"headers":   response.headers,
			"timestamp": nowTimestamp(),
		},
	}, nil
}

func doRequest(ctx context.Context, client *http.Client, method, target, body string, headers interface{}) (*apiResponse, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	applyHeaders(req, headers)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, apiRequestMaxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	responseHeaders := make(map[string]interface{}, len(resp.Header))
	for name := range resp.Header {
		responseHeaders[name] = resp.Header.Get(name)
	}

	return &apiResponse{
		status:  resp.StatusCode,
		body:    string(data),
		headers: responseHeaders,
	}, nil
}

// applyHeaders accepts either a map config value or a JSON object
// string and sets each entry on the request
func applyHeaders(req *http.Request, headers interface{}) {
	switch typed := headers.(type) {
	case map[string]interface{}:
		for name, value := range typed {
			req.Header.Set(name, asString(value))
		}
	case string:
		if typed == "" {
			return
		}
		parsed, ok := ParseValue(typed).(map[string]interface{})
		if !ok {
			return
		}
		for name, value := range parsed {
			req.Header.Set(name, asString(value))
		}
	}
}
