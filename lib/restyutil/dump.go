// Package restyutil records full http exchanges made by a resty client, which is mostly
// useful for looking at what the upstream actually served when parsing goes wrong.
package restyutil

import (
	"fmt"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type Output interface {
	Write(id string, contents string)
}

// DumpExchanges writes every completed request and its response to output. Ids are
// sequential per client, starting at 1.
func DumpExchanges(client *resty.Client, output Output) {
	if output == nil {
		return
	}
	var counter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := atomic.AddUint64(&counter, 1)
		output.Write(fmt.Sprintf("%03d", id), formatHttpMessage(res))
		return nil
	})
}
