package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"hdymonitor/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
)

const DefaultPushDeerEndpoint = "https://api2.pushdeer.com/message/push"

// SplitKeys splits a key list on commas and whitespace, dropping empty entries.
func SplitKeys(keys string) []string {
	return strings.FieldsFunc(keys, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// PushDeer delivers to a single PushDeer key.
type PushDeer struct {
	http     *resty.Client
	endpoint string
	key      string
}

// NewPushDeerChannels returns one channel per key in keys so a bad key never blocks the
// others. endpoint may be empty to use the public server.
func NewPushDeerChannels(keys, endpoint string, tel telemetry.API) []Channel {
	if endpoint == "" {
		endpoint = DefaultPushDeerEndpoint
	}

	client := resty.New()
	telemetry.InstrumentResty(client, "hdymonitor/notify/pushdeer", telemetry.NewScopedAPI("pushdeer", tel))

	var channels []Channel
	for _, key := range SplitKeys(keys) {
		channels = append(channels, PushDeer{
			http:     client,
			endpoint: endpoint,
			key:      key,
		})
	}
	return channels
}

func (p PushDeer) Name() string {
	// only enough of the key to tell channels apart in logs
	suffix := p.key
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return "pushdeer:" + suffix
}

func (p PushDeer) Send(ctx context.Context, msg Message) error {
	res, err := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"pushkey": p.key,
			"text":    msg.Title,
			"desp":    msg.Body,
		}).
		Post(p.endpoint)
	if err != nil {
		return err
	}
	if !res.IsSuccess() {
		return fmt.Errorf("pushdeer responded with %s", res.Status())
	}
	return nil
}
