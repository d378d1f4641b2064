package discord

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/planning-poker/internal/discord"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	s, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	s.Client = &http.Client{Transport: rt}
	return &Client{session: s}
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestSendChannelMessage_PostsToChannel(t *testing.T) {
	var gotPath string
	var gotBody string
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		b, _ := io.ReadAll(req.Body)
		gotBody = string(b)
		return jsonResponse(http.StatusOK, `{"id":"m-1","channel_id":"ch-1","content":"hi"}`), nil
	})

	if err := c.SendChannelMessage("ch-1", "Sprint 1 closed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(gotPath, "/channels/ch-1/messages") {
		t.Fatalf("unexpected request path: %s", gotPath)
	}
	if !strings.Contains(gotBody, "Sprint 1 closed") {
		t.Fatalf("expected content in body, got %s", gotBody)
	}
}

func TestSendChannelMessageWithFile_SendsMultipart(t *testing.T) {
	var contentType string
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		contentType = req.Header.Get("Content-Type")
		return jsonResponse(http.StatusOK, `{"id":"m-1","channel_id":"ch-1"}`), nil
	})

	err := c.SendChannelMessageWithFile(discordpkg.FileMessage{
		ChannelID: "ch-1",
		Content:   "summary",
		Filename:  "summary.txt",
		FileBody:  []byte("Login: 5"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		t.Fatalf("unexpected content type: %s", contentType)
	}
}

func TestSendChannelMessage_NamesMissingChannel(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"message":"Unknown Channel","code":10003}`), nil
	})

	err := c.SendChannelMessage("ch-missing", "hello")
	if err == nil || !strings.Contains(err.Error(), "ch-missing not found") {
		t.Fatalf("expected channel not found error, got %v", err)
	}
}

func TestTruncateContent(t *testing.T) {
	short := "short"
	if truncateContent(short) != short {
		t.Fatal("short content must be unchanged")
	}
	long := strings.Repeat("あ", maxMessageLength+10)
	got := truncateContent(long)
	if utf8.RuneCountInString(got) != maxMessageLength {
		t.Fatalf("expected %d runes, got %d", maxMessageLength, utf8.RuneCountInString(got))
	}
}
