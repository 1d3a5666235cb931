package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ElasticsearchClient PUTs one JSON document per message to
// {base}/{index}/{doctype}/{id} (spec.md §6). The integration point is
// raw HTTP, so stdlib net/http is the client (DESIGN.md): no library is
// being displaced, the sink description literally is the wire protocol.
type ElasticsearchClient struct {
	base       string
	doctype    string
	httpClient *http.Client
}

// NewElasticsearchClient builds a client bound to base (e.g.
// "http://localhost:9200") and doctype.
func NewElasticsearchClient(base, doctype string) *ElasticsearchClient {
	return &ElasticsearchClient{
		base:       base,
		doctype:    doctype,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Index PUTs doc under index/id, defaulting index to
// "logshipper-{timestamp:%Y.%m.%d}" and id to a random UUID when
// either is empty (spec.md §6).
func (c *ElasticsearchClient) Index(index, id string, doc map[string]any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("elasticsearch_http: marshal document: %w", err)
	}

	if index == "" {
		index = fmt.Sprintf("logshipper-%s", time.Now().UTC().Format("2006.01.02"))
	}
	if id == "" {
		id = uuid.NewString()
	}

	url := fmt.Sprintf("%s/%s/%s/%s", c.base, index, c.doctype, id)
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("elasticsearch_http: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elasticsearch_http: PUT %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("elasticsearch_http: PUT %s: unexpected status %s", url, resp.Status)
	}
	return nil
}
