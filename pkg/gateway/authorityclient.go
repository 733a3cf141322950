package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/previewbox/orchestrator/internal/signing"
)

type activeSchemasResponse struct {
	Data struct {
		SchemaNames []string `json:"schemaNames"`
	} `json:"data"`
}

// AuthorityActiveSchemaClient implements schema.AuthorityClient over a
// signing.Client pointed at the Authority, backing the orphan sweep's
// Authority-join (spec §4.2).
type AuthorityActiveSchemaClient struct {
	client *signing.Client
}

// NewAuthorityActiveSchemaClient wraps an HMAC-signed client.
func NewAuthorityActiveSchemaClient(client *signing.Client) *AuthorityActiveSchemaClient {
	return &AuthorityActiveSchemaClient{client: client}
}

// ActiveSchemaNames calls GET /internal/sessions/active-schemas on the Authority.
func (c *AuthorityActiveSchemaClient) ActiveSchemaNames(ctx context.Context) (map[string]bool, error) {
	var resp activeSchemasResponse
	status, err := c.client.Do(ctx, http.MethodGet, "/internal/sessions/active-schemas", nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("calling authority active-schemas: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("authority active-schemas returned status %d", status)
	}

	names := make(map[string]bool, len(resp.Data.SchemaNames))
	for _, n := range resp.Data.SchemaNames {
		names[n] = true
	}
	return names, nil
}
