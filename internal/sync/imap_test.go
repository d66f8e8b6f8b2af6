package sync

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInferRoleRecognizesCommonNames(t *testing.T) {
	require.Equal(t, "inbox", inferRole("INBOX"))
	require.Equal(t, "sent", inferRole("Sent Items"))
	require.Equal(t, "trash", inferRole("Deleted Items"))
	require.Equal(t, "", inferRole("Projects/2026"))
}

func TestBuildMessagePlainText(t *testing.T) {
	msg := OutgoingMessage{
		To:       []string{"a@example.com", "b@example.com"},
		Subject:  "hello",
		BodyText: "hi there",
	}
	body := string(buildMessage("me@example.com", msg))
	require.Contains(t, body, "From: me@example.com\r\n")
	require.Contains(t, body, "To: a@example.com, b@example.com\r\n")
	require.Contains(t, body, "Subject: hello\r\n")
	require.Contains(t, body, "Content-Type: text/plain; charset=utf-8")
	require.Contains(t, body, "hi there")
}

func TestBuildMessagePrefersHTMLWhenPresent(t *testing.T) {
	msg := OutgoingMessage{To: []string{"a@example.com"}, BodyHTML: "<p>hi</p>", BodyText: "hi"}
	body := string(buildMessage("me@example.com", msg))
	require.Contains(t, body, "Content-Type: text/html; charset=utf-8")
	require.Contains(t, body, "<p>hi</p>")
	require.NotContains(t, body, "text/plain")
}

func TestBuildMessageIncludesInReplyTo(t *testing.T) {
	msg := OutgoingMessage{To: []string{"a@example.com"}, InReplyTo: "<id1@example.com>"}
	body := string(buildMessage("me@example.com", msg))
	require.Contains(t, body, "In-Reply-To: <id1@example.com>\r\n")
}

type sliceLiteral struct {
	data []byte
	pos  int
}

func (l *sliceLiteral) Len() int { return len(l.data) }

func (l *sliceLiteral) Read(p []byte) (int, error) {
	if l.pos >= len(l.data) {
		return 0, io.EOF
	}
	n := copy(p, l.data[l.pos:])
	l.pos += n
	return n, nil
}

func TestReadLiteralReadsEntireBody(t *testing.T) {
	lit := &sliceLiteral{data: []byte("hello world")}
	require.Equal(t, []byte("hello world"), readLiteral(lit))
}
