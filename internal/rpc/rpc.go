// Package rpc builds the HTTP clients used to talk to a blob mirror, either
// over TCP or over the mirror's unix socket.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"pkgsync/internal/models"
)

// HTTPConfig 定义HTTP客户端配置
type HTTPConfig struct {
	Network string        // unix, tcp
	Address string        // unix socket路径, tcp时为空表示按URL拨号
	Timeout time.Duration // 整个请求的超时, 0表示不超时
}

/**
 * Create an HTTP client for the blob mirror
 * @param {*HTTPConfig} config - Dial settings, nil dials by URL host over TCP
 * @returns {*http.Client} Client whose connections go to config.Address when Network is unix
 * @description
 * - Requests keep their http://host/path URL; only the dial target changes
 * - Keep-alive connections are reused across archive downloads
 * @example
 * client := rpc.NewHTTPClient(&rpc.HTTPConfig{Network: "unix", Address: "/run/pkgsync.sock"})
 * store := storage.NewHTTPStore("http://localhost/blobs", client)
 */
func NewHTTPClient(config *HTTPConfig) *http.Client {
	if config == nil {
		config = &HTTPConfig{Network: "tcp"}
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.Network == "unix" && config.Address != "" {
		dialer := &net.Dialer{Timeout: 5 * time.Second}
		socket := config.Address
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", socket)
		}
		transport.Proxy = nil
	}
	return &http.Client{Transport: transport, Timeout: config.Timeout}
}

/**
 * Describe a failed mirror response
 * @param {*http.Response} rsp - Response with a non-2xx status, body is consumed
 * @returns {string} "code: N, error: msg" using the mirror's ErrorResponse when present
 */
func ErrorMessage(rsp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(rsp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	var errBody models.ErrorResponse
	if json.Unmarshal(body, &errBody) == nil && errBody.Message != "" {
		msg = errBody.Message
	}
	if msg == "" {
		msg = rsp.Status
	}
	return fmt.Sprintf("code: %d, error: %s", rsp.StatusCode, msg)
}
