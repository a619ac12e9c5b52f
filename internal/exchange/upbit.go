package exchange

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Upbit implements Exchange against the Upbit REST API.
type Upbit struct {
	BaseURL   string
	AccessKey string
	SecretKey string
	Client    *http.Client

	limiter *rate.Limiter
	log     *zap.Logger
}

// NewUpbit creates a client with optional proxy support.
func NewUpbit(baseURL, accessKey, secretKey, proxyURL string, requestsPerSecond float64, log *zap.Logger) *Upbit {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 8
	}
	return &Upbit{
		BaseURL:   baseURL,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		log:     log,
	}
}

func (u *Upbit) Name() string { return "upbit" }

// APIError is the error body Upbit returns on non-2xx responses.
type APIError struct {
	StatusCode int    `json:"-"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upbit API error: status %d, %s: %s", e.StatusCode, e.Name, e.Message)
}

// Is makes rate limiting and server errors match ErrUnavailable.
func (e *APIError) Is(target error) bool {
	return target == ErrUnavailable && (e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500)
}

// request describes one API call. Private calls are signed.
type request struct {
	method  string
	path    string
	query   url.Values
	body    map[string]string
	private bool
}

func (u *Upbit) do(ctx context.Context, r request, out any) error {
	if err := u.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := u.BaseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	if r.private {
		params := r.query
		if r.body != nil {
			params = url.Values{}
			for k, v := range r.body {
				params.Set(k, v)
			}
		}
		token, err := u.token(params)
		if err != nil {
			return fmt.Errorf("sign request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := u.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, r.method, r.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrUnavailable, r.path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var wrapped struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(body, &wrapped) == nil && wrapped.Error != nil {
			apiErr.Name = wrapped.Error.Name
			apiErr.Message = wrapped.Error.Message
		} else {
			apiErr.Message = string(body)
		}
		u.log.Debug("upbit request failed",
			zap.String("method", r.method), zap.String("path", r.path), zap.Int("status", resp.StatusCode))
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", r.path, err)
	}
	return nil
}

// token builds the HS256 JWT Upbit expects on private endpoints.
func (u *Upbit) token(params url.Values) (string, error) {
	claims := jwt.MapClaims{
		"access_key": u.AccessKey,
		"nonce":      uuid.NewString(),
	}
	if len(params) > 0 {
		query, err := url.QueryUnescape(params.Encode())
		if err != nil {
			return "", err
		}
		sum := sha512.Sum512([]byte(query))
		claims["query_hash"] = hex.EncodeToString(sum[:])
		claims["query_hash_alg"] = "SHA512"
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(u.SecretKey))
}
