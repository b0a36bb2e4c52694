// Package bridge はサーバーレス環境のネイティブなリクエスト/レスポンスと
// アプリケーション内部のhttp.Handlerを相互に変換する。
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/hitoshi/grailtracker/internal/model"
)

// NativeRequest はプラットフォームから受け取ったリクエスト。
type NativeRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Header map[string][]string
	Body   []byte
}

// NativeResponse はプラットフォームへのレスポンス書き込み先。
// Bridge.Handleは必ずRedirectかSendのどちらか一方を一度だけ呼ぶ。
type NativeResponse interface {
	// AddHeader はヘッダー値を追加する。
	AddHeader(key, value string)
	// Redirect はボディなしのリダイレクトを送信する。
	Redirect(status int, location string)
	// Send はステータスとJSONボディを送信する。bodyがnilなら空ボディ。
	Send(status int, body []byte)
}

// supportedMethods 以外のメソッドはGETとして扱う。
var supportedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodPatch:   true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// internalErrorBody は内部レスポンスがJSONでなかった場合に返すボディ。
var internalErrorBody = []byte(`{"error":"` + model.InternalErrorMessage + `"}`)

// Bridge はネイティブリクエストを内部ハンドラーへディスパッチする。
type Bridge struct {
	handler http.Handler
	logger  *slog.Logger
}

// New はBridgeを生成する。loggerがnilの場合はslog.Default()を使う。
func New(handler http.Handler, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{handler: handler, logger: logger}
}

// Handle はreqを内部ハンドラーで処理し、結果をoutへ書き出す。
//
// 書き出しは次の順序で行う。
//  1. 3xxかつLocationあり: Set-Cookieと許可ヘッダーを転送してリダイレクトし、終了する
//  2. Set-Cookieと許可ヘッダーを転送する
//  3. ボディがあればJSONとして送信し、なければ空ボディで送信する
func (b *Bridge) Handle(ctx context.Context, req NativeRequest, out NativeResponse) error {
	r, err := b.buildRequest(ctx, req)
	if err != nil {
		return err
	}

	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, r)
	resp := rec.Result()
	defer resp.Body.Close()

	if location := resp.Header.Get("Location"); isRedirect(resp.StatusCode) && location != "" {
		forwardHeaders(resp.Header, out)
		out.Redirect(resp.StatusCode, location)
		return nil
	}

	forwardHeaders(resp.Header, out)

	body := rec.Body.Bytes()
	if len(bytes.TrimSpace(body)) == 0 {
		out.Send(resp.StatusCode, nil)
		return nil
	}

	var parsed json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		b.logger.Error("bridge: response body is not JSON",
			slog.String("path", req.Path),
			slog.Int("status", resp.StatusCode),
			slog.String("error", err.Error()),
		)
		out.Send(http.StatusInternalServerError, internalErrorBody)
		return nil
	}

	out.Send(resp.StatusCode, parsed)
	return nil
}

// buildRequest はNativeRequestから内部ディスパッチ用の*http.Requestを組み立てる。
// クエリ文字列はマップから再構築し、content-lengthは引き継がない。
func (b *Bridge) buildRequest(ctx context.Context, req NativeRequest) (*http.Request, error) {
	method := strings.ToUpper(req.Method)
	if !supportedMethods[method] {
		method = http.MethodGet
	}

	path := req.Path
	if path == "" {
		path = "/"
	}
	target := path
	if q := url.Values(req.Query).Encode(); q != "" {
		target += "?" + q
	}

	r, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", req.Path, err)
	}

	for key, values := range req.Header {
		if strings.EqualFold(key, "Content-Length") {
			continue
		}
		for _, v := range values {
			r.Header.Add(key, v)
		}
	}
	// ContentLengthを未知として扱い、ボディの実長を信頼する
	r.ContentLength = -1
	if len(req.Body) == 0 {
		r.ContentLength = 0
	}

	return r, nil
}

// forwardHeaders はSet-Cookieを先に、続いて許可リストのヘッダーを転送する。
func forwardHeaders(h http.Header, out NativeResponse) {
	for _, c := range h.Values("Set-Cookie") {
		out.AddHeader("Set-Cookie", c)
	}
	for key, values := range h {
		if key == "Set-Cookie" || !allowedHeader(key) {
			continue
		}
		for _, v := range values {
			out.AddHeader(key, v)
		}
	}
}

// allowedHeader はクライアントへ転送してよいヘッダーかを返す。
// CORSとキャッシュ制御、Cookie以外は内部情報の漏洩を防ぐため落とす。
func allowedHeader(key string) bool {
	k := strings.ToLower(key)
	if strings.HasPrefix(k, "access-control-") {
		return true
	}
	switch k {
	case "cache-control", "pragma", "expires", "set-cookie":
		return true
	}
	return false
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}
