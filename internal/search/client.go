package search

import (
	"crypto/tls"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/pkg/errors"
)

// ClientConfig holds the Elasticsearch connection settings.
type ClientConfig struct {
	URLs               []string
	Username           string
	Password           string
	InsecureSkipVerify bool
}

// NewClient builds the Elasticsearch client. Certificate verification can
// be disabled for clusters fronted by self-signed certificates.
func NewClient(cfg ClientConfig) (*elasticsearch.Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.URLs,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	if cfg.InsecureSkipVerify {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create elasticsearch client")
	}
	return client, nil
}
