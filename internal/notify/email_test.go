package notify

import (
	"context"
	"io"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestSmtpConfigEnabled(t *testing.T) {
	require.False(t, SmtpConfig{}.Enabled())
	require.False(t, SmtpConfig{Server: "smtp.example.com", From: "a@example.com"}.Enabled())
	require.True(t, SmtpConfig{Server: "smtp.example.com", From: "a@example.com", To: []string{"b@example.com"}}.Enabled())
	require.Equal(t, "smtp.example.com:25", SmtpConfig{Server: "smtp.example.com"}.addr())
}

func TestEmailBuild(t *testing.T) {
	mail := NewEmail(SmtpConfig{
		From: "HDY Monitor <monitor@example.com>",
		To:   []string{"ops@example.com"},
	}).build(Message{
		Title: "新配置上线 ID=2019",
		Body:  "ID: 2019\nCPU: 4 <vCPU>\nhttps://example.com/?a=1&b=2",
	})

	require.Equal(t, "新配置上线 ID=2019", mail.Subject)
	require.Equal(t, []string{"ops@example.com"}, mail.To)
	require.Equal(t, "ID: 2019\nCPU: 4 <vCPU>\nhttps://example.com/?a=1&b=2", string(mail.Text))
	require.Equal(t,
		"<p>ID: 2019<br/>CPU: 4 &lt;vCPU&gt;<br/>https://example.com/?a=1&amp;b=2</p>",
		string(mail.HTML),
	)
}

// TestEmailSmtp sends through a throwaway smtp server, it needs docker so it only runs
// when HDYMONITOR_SMTP_IT=1.
func TestEmailSmtp(t *testing.T) {
	if os.Getenv("HDYMONITOR_SMTP_IT") != "1" {
		t.Skip("set HDYMONITOR_SMTP_IT=1 to run against a fake smtp container")
	}

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "haravich/fake-smtp-server",
			ExposedPorts: []string{"1025/tcp", "1080/tcp"},
			WaitingFor:   wait.ForLog("smtp://0.0.0.0:1025"),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		err := container.Terminate(ctx)
		if err != nil {
			t.Fatal(err)
		}
	}()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	smtpPort, err := container.MappedPort(ctx, "1025")
	require.NoError(t, err)
	webPort, err := container.MappedPort(ctx, "1080")
	require.NoError(t, err)

	channel := NewEmail(SmtpConfig{
		Server:   host,
		Port:     smtpPort.Int(),
		Username: "monitor@example.com",
		Password: "default",
		From:     "monitor@example.com",
		To:       []string{"ops@example.com"},
	})
	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err = channel.Send(sendCtx, Message{Title: "服务器 'A' 可购买!", Body: "Price: 10"})
	require.NoError(t, err)

	res, err := resty.New().R().Get("http://" + host + ":" + webPort.Port() + "/messages/1.plain")
	require.NoError(t, err)
	require.True(t, strings.Contains(res.String(), "Price: 10"), res.String())
}
