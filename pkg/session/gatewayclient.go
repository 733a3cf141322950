package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/previewbox/orchestrator/internal/signing"
)

// GatewayClient is the Authority's view of the Gateway's internal schema
// lifecycle surface (spec §6 "Gateway internal routes").
type GatewayClient interface {
	ProvisionSchema(ctx context.Context, token string, features []string, tier string) (string, error)
	DropSchema(ctx context.Context, schemaName string) error
}

// SignedGatewayClient implements GatewayClient over a signing.Client.
type SignedGatewayClient struct {
	client *signing.Client
}

// NewSignedGatewayClient wraps an HMAC-signed client pointed at the Gateway.
func NewSignedGatewayClient(client *signing.Client) *SignedGatewayClient {
	return &SignedGatewayClient{client: client}
}

type provisionRequest struct {
	SessionToken string   `json:"sessionToken"`
	Features     []string `json:"features"`
	Tier         string   `json:"tier"`
}

type provisionResponse struct {
	Data struct {
		SchemaName string `json:"schemaName"`
	} `json:"data"`
}

// ProvisionSchema calls POST /internal/schemas/provision on the Gateway.
func (g *SignedGatewayClient) ProvisionSchema(ctx context.Context, token string, features []string, tier string) (string, error) {
	var resp provisionResponse
	status, err := g.client.Do(ctx, http.MethodPost, "/internal/schemas/provision", provisionRequest{
		SessionToken: token,
		Features:     features,
		Tier:         tier,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("calling gateway provision: %w", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", fmt.Errorf("gateway provision returned status %d", status)
	}
	return resp.Data.SchemaName, nil
}

// DropSchema calls DELETE /internal/schemas/{schemaName} on the Gateway.
func (g *SignedGatewayClient) DropSchema(ctx context.Context, schemaName string) error {
	status, err := g.client.Do(ctx, http.MethodDelete, "/internal/schemas/"+schemaName, nil, nil)
	if err != nil {
		return fmt.Errorf("calling gateway drop: %w", err)
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("gateway drop returned status %d", status)
	}
	return nil
}
