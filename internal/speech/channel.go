package speech

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Credentials 语音引擎鉴权凭证，ASR/TTS 共用。
type Credentials struct {
	AppID     string
	APIKey    string
	APISecret string
}

// SignedURL 对接入地址做 HMAC-SHA256 签名，生成可直接拨号的 URL。
// 签名串格式为 "host: {h}\ndate: {d}\nGET {path} HTTP/1.1"，
// date 使用 RFC1123 GMT 时间，引擎侧按同样规则校验。
func (c Credentials) SignedURL(endpoint string, now time.Time) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid speech endpoint %q: %w", endpoint, err)
	}

	date := now.UTC().Format(http.TimeFormat)
	signOrigin := fmt.Sprintf("host: %s\ndate: %s\nGET %s HTTP/1.1", u.Host, date, u.Path)

	mac := hmac.New(sha256.New, []byte(c.APISecret))
	mac.Write([]byte(signOrigin))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	descriptor := fmt.Sprintf(
		`api_key="%s", algorithm="hmac-sha256", headers="host date request-line", signature="%s"`,
		c.APIKey, signature,
	)

	query := url.Values{}
	query.Set("authorization", base64.StdEncoding.EncodeToString([]byte(descriptor)))
	query.Set("date", date)
	query.Set("host", u.Host)
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// runExchange 在一条 WebSocket 连接上跑一次完整交换：
// 发送协程投递请求帧，接收协程消费响应直到终态。
// 任何一方出错、或整体超时，都会关闭连接并让另一方退出，
// 保证恰好产生一个终态结果。
func runExchange(
	ctx context.Context,
	conn *websocket.Conn,
	timeout time.Duration,
	send func(ctx context.Context) error,
	receive func(ctx context.Context) error,
) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sendErrCh := make(chan error, 1)
	recvErrCh := make(chan error, 1)

	go func() { sendErrCh <- send(ctx) }()
	go func() { recvErrCh <- receive(ctx) }()

	var sendDone bool
	for {
		select {
		case err := <-sendErrCh:
			sendDone = true
			if err != nil {
				cancel()
				conn.Close()
				<-recvErrCh
				return err
			}
			// 发送完成后继续等接收侧的终态

		case err := <-recvErrCh:
			cancel()
			conn.Close()
			if !sendDone {
				<-sendErrCh
			}
			return err

		case <-ctx.Done():
			conn.Close()
			if !sendDone {
				<-sendErrCh
			}
			<-recvErrCh
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTimeout
			}
			return ctx.Err()
		}
	}
}

func newDialer() *websocket.Dialer {
	return &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
}
