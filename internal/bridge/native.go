package bridge

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

// httpResponse はhttp.ResponseWriterをNativeResponseとして扱うアダプター。
type httpResponse struct {
	w http.ResponseWriter
}

func (h httpResponse) AddHeader(key, value string) {
	h.w.Header().Add(key, value)
}

func (h httpResponse) Redirect(status int, location string) {
	h.w.Header().Set("Location", location)
	h.w.WriteHeader(status)
}

func (h httpResponse) Send(status int, body []byte) {
	if body != nil {
		h.w.Header().Set("Content-Type", "application/json")
	}
	h.w.WriteHeader(status)
	if body != nil {
		if _, err := h.w.Write(body); err != nil {
			slog.Warn("bridge: failed to write response", slog.String("error", err.Error()))
		}
	}
}

// ServeHTTP はVercelなどnet/http互換の関数ランタイム向けのエントリポイント。
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		b.logger.Warn("bridge: failed to read request body", slog.String("error", err.Error()))
		httpResponse{w: w}.Send(http.StatusBadRequest, []byte(`{"error":"Invalid request body"}`))
		return
	}

	req := NativeRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header,
		Body:   body,
	}
	if err := b.Handle(r.Context(), req, httpResponse{w: w}); err != nil {
		b.logger.Error("bridge: dispatch failed", slog.String("error", err.Error()))
		httpResponse{w: w}.Send(http.StatusInternalServerError, internalErrorBody)
	}
}

// lambdaResponse はAPI Gatewayプロキシレスポンスを組み立てるNativeResponse。
type lambdaResponse struct {
	resp events.APIGatewayProxyResponse
}

func (l *lambdaResponse) AddHeader(key, value string) {
	if l.resp.MultiValueHeaders == nil {
		l.resp.MultiValueHeaders = make(map[string][]string)
	}
	l.resp.MultiValueHeaders[key] = append(l.resp.MultiValueHeaders[key], value)
}

func (l *lambdaResponse) Redirect(status int, location string) {
	l.AddHeader("Location", location)
	l.resp.StatusCode = status
}

func (l *lambdaResponse) Send(status int, body []byte) {
	l.resp.StatusCode = status
	if body != nil {
		l.AddHeader("Content-Type", "application/json")
		l.resp.Body = string(body)
	}
}

// HandleLambda はAWS Lambda（API Gatewayプロキシ統合）向けのエントリポイント。
// lambda.Startにそのまま渡せるシグネチャを持つ。
func (b *Bridge) HandleLambda(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return events.APIGatewayProxyResponse{}, fmt.Errorf("failed to decode request body: %w", err)
		}
		body = decoded
	}

	req := NativeRequest{
		Method: event.HTTPMethod,
		Path:   event.Path,
		Query:  mergeSingleValues(event.MultiValueQueryStringParameters, event.QueryStringParameters),
		Header: mergeSingleValues(event.MultiValueHeaders, event.Headers),
		Body:   body,
	}

	out := &lambdaResponse{}
	if err := b.Handle(ctx, req, out); err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return out.resp, nil
}

// mergeSingleValues は複数値マップを優先し、そこにない単一値を補う。
func mergeSingleValues(multi map[string][]string, single map[string]string) map[string][]string {
	merged := make(map[string][]string, len(multi)+len(single))
	for k, v := range multi {
		merged[k] = v
	}
	for k, v := range single {
		if _, ok := merged[k]; !ok {
			merged[k] = []string{v}
		}
	}
	return merged
}
