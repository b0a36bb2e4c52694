package bridge

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingResponse はNativeResponseへの呼び出しを順に記録する。
type recordingResponse struct {
	calls    []string
	headers  http.Header
	status   int
	location string
	body     []byte
}

func newRecordingResponse() *recordingResponse {
	return &recordingResponse{headers: http.Header{}}
}

func (r *recordingResponse) AddHeader(key, value string) {
	r.calls = append(r.calls, "header:"+key)
	r.headers.Add(key, value)
}

func (r *recordingResponse) Redirect(status int, location string) {
	r.calls = append(r.calls, "redirect")
	r.status = status
	r.location = location
}

func (r *recordingResponse) Send(status int, body []byte) {
	r.calls = append(r.calls, "send")
	r.status = status
	r.body = body
}

func TestHandle_RedirectForwardsCookieWithoutBody(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "tok", Path: "/"})
		w.Header().Set("X-Internal", "secret")
		http.Redirect(w, r, "/x", http.StatusFound)
	})
	out := newRecordingResponse()

	err := New(h, nil).Handle(context.Background(), NativeRequest{Method: "GET", Path: "/auth/google/callback"}, out)
	require.NoError(t, err)

	assert.Equal(t, http.StatusFound, out.status)
	assert.Equal(t, "/x", out.location)
	assert.Equal(t, "session=tok; Path=/", out.headers.Get("Set-Cookie"))
	assert.Empty(t, out.headers.Get("X-Internal"))
	assert.Nil(t, out.body)
	assert.Equal(t, []string{"header:Set-Cookie", "redirect"}, out.calls)
}

func TestHandle_ForwardsOnlyAllowListedHeaders(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "http://localhost:5173")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		w.Header().Set("X-Powered-By", "internal")
		w.Header().Set("Content-Type", "application/json")
		w.Header().Add("Set-Cookie", "a=1")
		w.Header().Add("Set-Cookie", "b=2")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"ok":true}`)
	})
	out := newRecordingResponse()

	require.NoError(t, New(h, nil).Handle(context.Background(), NativeRequest{Method: "POST", Path: "/"}, out))

	assert.Equal(t, http.StatusCreated, out.status)
	assert.JSONEq(t, `{"ok":true}`, string(out.body))
	assert.Equal(t, "http://localhost:5173", out.headers.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "no-store", out.headers.Get("Cache-Control"))
	assert.Equal(t, "no-cache", out.headers.Get("Pragma"))
	assert.Equal(t, "0", out.headers.Get("Expires"))
	assert.Equal(t, []string{"a=1", "b=2"}, out.headers.Values("Set-Cookie"))
	assert.Empty(t, out.headers.Get("X-Powered-By"))
	assert.Empty(t, out.headers.Get("Content-Type"))
	assert.Equal(t, "send", out.calls[len(out.calls)-1])
}

func TestHandle_RedirectStatusWithoutLocationSendsBody(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	})
	out := newRecordingResponse()

	require.NoError(t, New(h, nil).Handle(context.Background(), NativeRequest{Method: "GET", Path: "/"}, out))

	assert.Equal(t, []string{"send"}, out.calls)
	assert.Equal(t, http.StatusNotModified, out.status)
	assert.Nil(t, out.body)
}

func TestHandle_RebuildsQueryAndStripsContentLength(t *testing.T) {
	var gotQuery map[string][]string
	var gotContentLength string
	var gotMethod string
	var gotBody string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotContentLength = r.Header.Get("Content-Length")
		gotMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	})
	out := newRecordingResponse()

	req := NativeRequest{
		Method: "trace",
		Path:   "/items",
		Query:  map[string][]string{"types": {"runes", "uniqueItems"}, "q": {"a&b=c"}},
		Header: map[string][]string{"Content-Length": {"999"}, "Cookie": {"session=tok"}},
		Body:   []byte(`{"x":1}`),
	}
	require.NoError(t, New(h, nil).Handle(context.Background(), req, out))

	assert.Equal(t, []string{"runes", "uniqueItems"}, gotQuery["types"])
	assert.Equal(t, []string{"a&b=c"}, gotQuery["q"])
	assert.Empty(t, gotContentLength)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, `{"x":1}`, gotBody)
}

func TestHandle_NonJSONBodyBecomesInternalError(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>oops</html>")
	})
	out := newRecordingResponse()

	require.NoError(t, New(h, nil).Handle(context.Background(), NativeRequest{Method: "GET", Path: "/"}, out))

	assert.Equal(t, http.StatusInternalServerError, out.status)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, string(out.body))
}

func TestServeHTTP_Redirect(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "tok"})
		http.Redirect(w, r, "http://localhost:5173", http.StatusFound)
	})

	w := httptest.NewRecorder()
	New(h, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=c&state=s", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Location"))
	assert.Equal(t, "session=tok", w.Header().Get("Set-Cookie"))
	assert.Empty(t, w.Body.String())
}

func TestServeHTTP_JSON(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"types":"`+r.URL.Query().Get("types")+`"}`+"\n")
	})

	w := httptest.NewRecorder()
	New(h, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items?types=runes", strings.NewReader("")))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"types":"runes"}`, w.Body.String())
}

func TestHandleLambda(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"method":"`+r.Method+`","types":`+quoteAll(r.URL.Query()["types"])+`,"body":`+string(body)+`}`)
	})

	resp, err := New(h, nil).HandleLambda(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:                      "POST",
		Path:                            "/user-items/set",
		MultiValueQueryStringParameters: map[string][]string{"types": {"runes", "setItems"}},
		Headers:                         map[string]string{"Content-Type": "application/json"},
		Body:                            base64.StdEncoding.EncodeToString([]byte(`{"found":true}`)),
		IsBase64Encoded:                 true,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"method":"POST","types":["runes","setItems"],"body":{"found":true}}`, resp.Body)
	assert.Equal(t, []string{"true"}, resp.MultiValueHeaders["Access-Control-Allow-Credentials"])
	assert.Equal(t, []string{"application/json"}, resp.MultiValueHeaders["Content-Type"])
}

func TestHandleLambda_Redirect(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "tok"})
		http.Redirect(w, r, "/x", http.StatusFound)
	})

	resp, err := New(h, nil).HandleLambda(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: "GET",
		Path:       "/auth/discord/callback",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, []string{"/x"}, resp.MultiValueHeaders["Location"])
	assert.Equal(t, []string{"session=tok"}, resp.MultiValueHeaders["Set-Cookie"])
	assert.Empty(t, resp.Body)
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + v + `"`
	}
	return "[" + strings.Join(quoted, ",") + "]"
}
