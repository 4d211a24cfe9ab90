package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Action is a carbon-credit ledger operation.
type Action string

const (
	ActionMint     Action = "mint"
	ActionTransfer Action = "transfer"
	ActionRetire   Action = "retire"
)

func ParseAction(v string) (Action, error) {
	switch Action(strings.ToLower(v)) {
	case ActionMint:
		return ActionMint, nil
	case ActionTransfer:
		return ActionTransfer, nil
	case ActionRetire:
		return ActionRetire, nil
	}
	return "", fmt.Errorf("%w: unknown ledger action %q", ErrInvalidRequest, v)
}

type Org struct {
	OrgID string `json:"org_id"`
	Name  string `json:"name"`
}

// Block is an opaque ledger record as returned by the service.
type Block = json.RawMessage

// ActionRequest is the form the dashboard submits.
type ActionRequest struct {
	Action Action  `json:"action"`
	OrgID  string  `json:"org_id"`
	ToOrg  string  `json:"to_org,omitempty"`
	Amount float64 `json:"amount"`
	Reason string  `json:"reason,omitempty"`
}

func (r ActionRequest) Validate() error {
	if _, err := ParseAction(string(r.Action)); err != nil {
		return err
	}
	if r.OrgID == "" {
		return fmt.Errorf("%w: org_id is required", ErrInvalidRequest)
	}
	if r.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if r.Action == ActionTransfer && r.ToOrg == "" {
		return fmt.Errorf("%w: to_org is required for transfer", ErrInvalidRequest)
	}
	return nil
}

// Payload builds the body the ledger expects for the action.
func (r ActionRequest) Payload() map[string]any {
	switch r.Action {
	case ActionTransfer:
		return map[string]any{
			"from_org": r.OrgID,
			"to_org":   r.ToOrg,
			"amount":   r.Amount,
			"metadata": map[string]string{"purpose": "dashboard transfer"},
		}
	case ActionRetire:
		return map[string]any{
			"org_id":   r.OrgID,
			"amount":   r.Amount,
			"reason":   r.Reason,
			"metadata": map[string]string{"info": "dashboard retire request"},
		}
	}
	return map[string]any{
		"org_id":   r.OrgID,
		"amount":   r.Amount,
		"metadata": map[string]string{"source": "dashboard"},
	}
}

// LedgerClient talks to the signing and carbon-credit ledger service.
type LedgerClient struct {
	client
}

func NewLedgerClient(opts Options, log zerolog.Logger) *LedgerClient {
	return &LedgerClient{client: newClient("ledger", opts, log)}
}

func (c *LedgerClient) Orgs(ctx context.Context) ([]Org, error) {
	var orgs []Org
	if err := c.getJSON(ctx, "/ccts/orgs", &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// Blocks returns the ledger as the service reports it.
func (c *LedgerClient) Blocks(ctx context.Context) ([]Block, error) {
	var resp struct {
		Blocks []Block `json:"blocks"`
	}
	if err := c.getJSON(ctx, "/ccts/ledger", &resp); err != nil {
		return nil, err
	}
	if resp.Blocks == nil {
		return []Block{}, nil
	}
	return resp.Blocks, nil
}

// Sign obtains the organisation's signature over a payload.
func (c *LedgerClient) Sign(ctx context.Context, orgID string, payload any) (string, error) {
	req := struct {
		OrgID   string `json:"org_id"`
		Payload any    `json:"payload"`
	}{orgID, payload}

	var resp struct {
		Signature string `json:"signature"`
	}
	if err := c.postJSON(ctx, "/sign", req, nil, &resp); err != nil {
		return "", err
	}
	if resp.Signature == "" {
		return "", fmt.Errorf("%w: empty signature", ErrBadResponse)
	}
	return resp.Signature, nil
}

// Submit posts a signed payload to the action's route.
func (c *LedgerClient) Submit(ctx context.Context, action Action, payload any, signature string) (json.RawMessage, error) {
	var resp json.RawMessage
	headers := map[string]string{"X-Signature": signature}
	if err := c.postJSON(ctx, "/ccts/"+string(action), payload, headers, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Execute validates the request, signs its payload and submits it.
func (c *LedgerClient) Execute(ctx context.Context, req ActionRequest) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	payload := req.Payload()

	signature, err := c.Sign(ctx, req.OrgID, payload)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", req.Action, err)
	}

	resp, err := c.Submit(ctx, req.Action, payload, signature)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", req.Action, err)
	}

	c.log.Info().Str("action", string(req.Action)).Str("org_id", req.OrgID).Float64("amount", req.Amount).Msg("Ledger action submitted")
	return resp, nil
}
