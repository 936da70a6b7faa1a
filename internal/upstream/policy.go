package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/insurego/claims-gateway/internal/policy"
)

func (c *Client) GetPolicy(ctx context.Context, policyNumber string) (*policy.Policy, error) {
	var w policyWire
	err := c.do(ctx, "policy", http.MethodGet,
		fmt.Sprintf("%s/policy/%s", c.policyBase, url.PathEscape(policyNumber)), nil, &w)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, policy.ErrPolicyNotFound
		}
		return nil, err
	}

	p, err := w.normalize()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ListPolicies(ctx context.Context, patientID string) ([]policy.Policy, error) {
	q := url.Values{}
	q.Set("patient", patientID)

	var wires []policyWire
	err := c.do(ctx, "policy", http.MethodGet,
		fmt.Sprintf("%s/policy?%s", c.policyBase, q.Encode()), nil, &wires)
	if err != nil {
		return nil, err
	}

	policies := make([]policy.Policy, 0, len(wires))
	for _, w := range wires {
		p, err := w.normalize()
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, nil
}

func (c *Client) RenewPolicy(ctx context.Context, policyNumber string) error {
	err := c.do(ctx, "policy", http.MethodPut,
		fmt.Sprintf("%s/policy/%s/renew", c.policyBase, url.PathEscape(policyNumber)), nil, nil)
	if errors.Is(err, errNotFound) {
		return policy.ErrPolicyNotFound
	}
	return err
}
