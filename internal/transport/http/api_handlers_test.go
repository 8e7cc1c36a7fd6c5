package http

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/cookiejar"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apiClient keeps the session cookie between calls.
type apiClient struct {
	t    *testing.T
	env  *testEnv
	http *stdhttp.Client
}

func newAPIClient(t *testing.T, env *testEnv) *apiClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiClient{t: t, env: env, http: &stdhttp.Client{Jar: jar}}
}

func (c *apiClient) do(method, path, contentType string, body io.Reader) (int, []byte) {
	c.t.Helper()
	req, err := stdhttp.NewRequest(method, c.env.ts.URL+path, body)
	require.NoError(c.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, data
}

func (c *apiClient) json(method, path string, payload any) (int, []byte) {
	c.t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(c.t, err)
		body = bytes.NewReader(data)
	}
	return c.do(method, path, "application/json", body)
}

func (c *apiClient) signup(name, email, password string) {
	c.t.Helper()
	status, body := c.json(stdhttp.MethodPost, "/api/users/signup", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(c.t, stdhttp.StatusOK, status, string(body))

	status, body = c.json(stdhttp.MethodPost, "/api/users/verify-otp", map[string]string{
		"email": email, "otp": c.env.mailer.get(email),
	})
	require.Equal(c.t, stdhttp.StatusCreated, status, string(body))
}

func multipartEvent(t *testing.T, fields map[string]string, withCover bool) (string, io.Reader) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if withCover {
		part, err := w.CreateFormFile(coverField, "cover.png")
		require.NoError(t, err)
		require.NoError(t, png.Encode(part, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	}
	require.NoError(t, w.Close())
	return w.FormDataContentType(), &buf
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestSignupVerifyLoginFlow(t *testing.T) {
	env := startTestServer(t)
	alice := newAPIClient(t, env)

	status, _ := alice.json(stdhttp.MethodGet, "/api/users/auth-status", nil)
	assert.Equal(t, stdhttp.StatusUnauthorized, status)

	alice.signup("Alice", "alice@example.com", "secret")

	status, body := alice.json(stdhttp.MethodGet, "/api/users/auth-status", nil)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, "alice@example.com", decode[UserResponse](t, body).Email)

	status, _ = alice.json(stdhttp.MethodPost, "/api/users/signup", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "x",
	})
	assert.Equal(t, stdhttp.StatusConflict, status)

	status, _ = alice.json(stdhttp.MethodPost, "/api/users/logout", nil)
	assert.Equal(t, stdhttp.StatusOK, status)
	status, _ = alice.json(stdhttp.MethodGet, "/api/users/auth-status", nil)
	assert.Equal(t, stdhttp.StatusUnauthorized, status)

	status, _ = alice.json(stdhttp.MethodPost, "/api/users/login", map[string]string{"email": "nobody@example.com", "password": "x"})
	assert.Equal(t, stdhttp.StatusUnauthorized, status)
	status, _ = alice.json(stdhttp.MethodPost, "/api/users/login", map[string]string{"email": "alice@example.com", "password": "wrong"})
	assert.Equal(t, stdhttp.StatusForbidden, status)

	status, body = alice.json(stdhttp.MethodPost, "/api/users/login", map[string]string{"email": "alice@example.com", "password": "secret"})
	require.Equal(t, stdhttp.StatusOK, status)
	assert.NotEmpty(t, decode[AuthResponse](t, body).Token)
}

func TestVerifyOTPErrors(t *testing.T) {
	env := startTestServer(t)
	c := newAPIClient(t, env)

	status, _ := c.json(stdhttp.MethodPost, "/api/users/verify-otp", map[string]string{"email": "x@example.com", "otp": "123456"})
	assert.Equal(t, stdhttp.StatusBadRequest, status)

	status, _ = c.json(stdhttp.MethodPost, "/api/users/signup", map[string]string{"name": "X", "email": "x@example.com", "password": "pw"})
	require.Equal(t, stdhttp.StatusOK, status)

	wrong := "000000"
	if env.mailer.get("x@example.com") == wrong {
		wrong = "111111"
	}
	status, body := c.json(stdhttp.MethodPost, "/api/users/verify-otp", map[string]string{"email": "x@example.com", "otp": wrong})
	assert.Equal(t, stdhttp.StatusBadRequest, status)
	assert.Equal(t, "incorrect OTP", decode[ErrorResponse](t, body).Error)
}

func TestEventLifecycle(t *testing.T) {
	env := startTestServer(t)
	host := newAPIClient(t, env)
	host.signup("Host", "host@example.com", "pw")
	guest := newAPIClient(t, env)
	guest.signup("Guest", "guest@example.com", "pw")

	contentType, body := multipartEvent(t, map[string]string{
		"title": "Jazz Night", "date": "2026-09-01", "category": "Music", "location": "Hall",
	}, false)
	status, data := host.do(stdhttp.MethodPost, "/api/events", contentType, body)
	require.Equal(t, stdhttp.StatusCreated, status, string(data))
	created := decode[EventResponse](t, data)
	assert.Equal(t, "Jazz Night", created.Title)
	assert.Zero(t, created.LiveCount)

	contentType, body = multipartEvent(t, map[string]string{"title": "Bad", "date": "2026-09-01", "category": "Nope"}, false)
	status, _ = host.do(stdhttp.MethodPost, "/api/events", contentType, body)
	assert.Equal(t, stdhttp.StatusBadRequest, status)

	status, data = guest.json(stdhttp.MethodGet, "/api/events", nil)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Len(t, decode[[]EventResponse](t, data), 1)

	status, _ = guest.json(stdhttp.MethodGet, "/api/events/missing", nil)
	assert.Equal(t, stdhttp.StatusNotFound, status)

	status, _ = guest.json(stdhttp.MethodPut, "/api/events/"+created.ID, map[string]string{"title": "Hijacked"})
	assert.Equal(t, stdhttp.StatusForbidden, status)
	status, _ = guest.json(stdhttp.MethodDelete, "/api/events/"+created.ID, nil)
	assert.Equal(t, stdhttp.StatusForbidden, status)

	status, data = host.json(stdhttp.MethodPut, "/api/events/"+created.ID, map[string]string{"title": "Jazz Night II"})
	require.Equal(t, stdhttp.StatusOK, status, string(data))
	assert.Equal(t, "Jazz Night II", decode[EventResponse](t, data).Title)

	status, _ = host.json(stdhttp.MethodPost, "/api/events/"+created.ID+"/register", nil)
	assert.Equal(t, stdhttp.StatusConflict, status)
	status, _ = guest.json(stdhttp.MethodPost, "/api/events/"+created.ID+"/register", nil)
	assert.Equal(t, stdhttp.StatusOK, status)
	status, _ = guest.json(stdhttp.MethodPost, "/api/events/"+created.ID+"/register", nil)
	assert.Equal(t, stdhttp.StatusConflict, status)

	status, data = guest.json(stdhttp.MethodGet, "/api/users/events-registered", nil)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Len(t, decode[[]EventResponse](t, data), 1)

	status, data = host.json(stdhttp.MethodGet, "/api/users/events-created", nil)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Len(t, decode[[]EventResponse](t, data), 1)

	status, data = guest.json(stdhttp.MethodPost, "/api/events/"+created.ID+"/questions", map[string]string{"text": "Dress code?"})
	require.Equal(t, stdhttp.StatusCreated, status, string(data))
	question := decode[QuestionResponse](t, data)
	assert.Equal(t, "Guest", question.AuthorName)

	status, data = host.json(stdhttp.MethodPost, "/api/events/"+created.ID+"/questions/"+question.ID+"/answers", map[string]string{"text": "Casual."})
	require.Equal(t, stdhttp.StatusCreated, status, string(data))
	assert.Len(t, decode[QuestionResponse](t, data).Answers, 1)

	status, _ = host.json(stdhttp.MethodPost, "/api/events/"+created.ID+"/questions/missing/answers", map[string]string{"text": "?"})
	assert.Equal(t, stdhttp.StatusNotFound, status)

	status, _ = guest.json(stdhttp.MethodPost, "/api/events/"+created.ID+"/unregister", nil)
	assert.Equal(t, stdhttp.StatusOK, status)

	status, _ = host.json(stdhttp.MethodDelete, "/api/events/"+created.ID, nil)
	assert.Equal(t, stdhttp.StatusOK, status)
	status, _ = guest.json(stdhttp.MethodGet, "/api/events/"+created.ID, nil)
	assert.Equal(t, stdhttp.StatusNotFound, status)
}

func TestCreateEventRequiresAuth(t *testing.T) {
	env := startTestServer(t)
	anon := newAPIClient(t, env)

	contentType, body := multipartEvent(t, map[string]string{"title": "x", "date": "2026-01-01"}, true)
	status, _ := anon.do(stdhttp.MethodPost, "/api/events", contentType, body)
	assert.Equal(t, stdhttp.StatusUnauthorized, status)
}

func TestMetricsEndpoint(t *testing.T) {
	env := startTestServer(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "eventlify_")
}
