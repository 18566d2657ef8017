package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func newTestAsrClient(endpoint string) *AsrClient {
	return &AsrClient{
		creds:         Credentials{AppID: "app", APIKey: "key", APISecret: "secret"},
		endpoint:      endpoint,
		dialer:        newDialer(),
		frameSize:     8000,
		frameInterval: time.Millisecond,
		vadEOS:        10000,
		timeout:       5 * time.Second,
	}
}

func wsEndpoint(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestAsrRecognize(t *testing.T) {
	type receivedFrame struct {
		Common   *commonParams `json:"common"`
		Business *asrBusiness  `json:"business"`
		Data     asrData       `json:"data"`
	}

	var (
		mu     sync.Mutex
		frames []receivedFrame
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var frame receivedFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			mu.Lock()
			frames = append(frames, frame)
			mu.Unlock()
			if frame.Data.Status == statusLastFrame {
				break
			}
		}

		partial := `{"code":0,"sid":"iat1","data":{"status":1,"result":{"ws":[{"cw":[{"w":"你好"}]}]}}}`
		final := `{"code":0,"sid":"iat1","data":{"status":2,"result":{"ws":[{"cw":[{"w":"小悠"}]}]}}}`
		_ = conn.WriteMessage(websocket.TextMessage, []byte(partial))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(final))
	}))
	defer srv.Close()

	client := newTestAsrClient(wsEndpoint(srv, "/v2/iat"))

	pcm := make([]byte, 12000) // 两帧：8000 + 4000
	text, err := client.Recognize(context.Background(), pcm)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if text != "你好小悠" {
		t.Fatalf("text = %q, want 你好小悠", text)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3 (two audio + terminator)", len(frames))
	}

	first := frames[0]
	if first.Common == nil || first.Common.AppID != "app" {
		t.Fatal("first frame must carry app id")
	}
	if first.Business == nil || first.Business.Domain != "iat" || first.Business.Language != "zh_cn" {
		t.Fatalf("first frame business params wrong: %+v", first.Business)
	}
	if first.Data.Status != statusFirstFrame {
		t.Fatalf("first frame status = %d", first.Data.Status)
	}

	second := frames[1]
	if second.Common != nil || second.Business != nil {
		t.Fatal("continuation frames must not repeat common/business")
	}
	if second.Data.Status != statusContinueFrame {
		t.Fatalf("second frame status = %d", second.Data.Status)
	}

	last := frames[2]
	if last.Data.Status != statusLastFrame || last.Data.Audio != "" {
		t.Fatalf("terminator frame wrong: %+v", last.Data)
	}

	var audioBytes int
	for _, f := range frames {
		chunk, err := base64.StdEncoding.DecodeString(f.Data.Audio)
		if err != nil {
			t.Fatalf("frame audio is not base64: %v", err)
		}
		audioBytes += len(chunk)
	}
	if audioBytes != len(pcm) {
		t.Fatalf("sent %d audio bytes, want %d", audioBytes, len(pcm))
	}
}

func TestAsrRecognizeEngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var frame map[string]json.RawMessage
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			var data asrData
			_ = json.Unmarshal(frame["data"], &data)
			if data.Status == statusLastFrame {
				break
			}
		}
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"code":10165,"sid":"iat2","message":"invalid appid","data":{"status":0}}`))
	}))
	defer srv.Close()

	client := newTestAsrClient(wsEndpoint(srv, "/v2/iat"))

	_, err := client.Recognize(context.Background(), make([]byte, 100))
	if err == nil {
		t.Fatal("expected engine error")
	}
	var ee *EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EngineError, got %v", err)
	}
	if ee.Code != 10165 || ee.Sid != "iat2" {
		t.Fatalf("unexpected engine error: %+v", ee)
	}
}

func TestAsrRecognizeEmptyInput(t *testing.T) {
	client := newTestAsrClient("ws://127.0.0.1:1/v2/iat")
	if _, err := client.Recognize(context.Background(), nil); err == nil {
		t.Fatal("empty pcm must be rejected")
	}
}

func TestAsrRecognizeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// 只收不答，逼客户端超时
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := newTestAsrClient(wsEndpoint(srv, "/v2/iat"))
	client.timeout = 50 * time.Millisecond

	_, err := client.Recognize(context.Background(), make([]byte, 100))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}
