package pipeline

import (
	"fmt"
	"net/http"

	"github.com/ppiankov/factordb/internal/model"
	"github.com/ppiankov/factordb/internal/util"
)

// maxRedirects bounds how many redirects a lookup follows
const maxRedirects = 3

// NewHTTPClient builds the http.Client used for FactorDB lookups
func NewHTTPClient(cfg model.HTTPConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}
