package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/insurego/claims-gateway/internal/claim"
)

// createClaimBody always uses canonical field names; the tolerance for
// variants applies to inbound payloads only.
type createClaimBody struct {
	PolicyNo             string  `json:"policyNo"`
	InsuranceProvider    string  `json:"insuranceProvider"`
	UserID               string  `json:"userId"`
	PatientName          string  `json:"patientName"`
	DoctorID             string  `json:"doctorId,omitempty"`
	DoctorName           string  `json:"doctorName,omitempty"`
	TotalBillAmount      float64 `json:"totalBillAmount"`
	DiagnosisCode        string  `json:"diagnosisCode,omitempty"`
	TreatmentDescription string  `json:"treatmentDescription,omitempty"`
	Status               string  `json:"status"`
	AppointmentID        string  `json:"appointmentId,omitempty"`
}

type claimActionBody struct {
	Notes      string `json:"notes"`
	ReviewedBy string `json:"reviewedBy"`
}

func (c *Client) GetClaim(ctx context.Context, id string) (*claim.Claim, error) {
	var w claimWire
	err := c.do(ctx, "claim", http.MethodGet,
		fmt.Sprintf("%s/claim/%s", c.claimBase, url.PathEscape(id)), nil, &w)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, claim.ErrClaimNotFound
		}
		return nil, err
	}

	cl, err := w.normalize()
	if err != nil {
		return nil, err
	}
	return &cl, nil
}

func (c *Client) ListClaims(ctx context.Context, f claim.Filter) ([]claim.Claim, error) {
	q := url.Values{}
	if f.Provider != "" {
		q.Set("provider", f.Provider)
	}
	if f.PatientID != "" {
		q.Set("patient", f.PatientID)
	}
	if f.Doctor != "" {
		q.Set("doctor", f.Doctor)
	}

	var wires []claimWire
	err := c.do(ctx, "claim", http.MethodGet,
		fmt.Sprintf("%s/claim?%s", c.claimBase, q.Encode()), nil, &wires)
	if err != nil {
		return nil, err
	}

	claims := make([]claim.Claim, 0, len(wires))
	for _, w := range wires {
		cl, err := w.normalize()
		if err != nil {
			return nil, err
		}
		claims = append(claims, cl)
	}
	return claims, nil
}

func (c *Client) CreateClaim(ctx context.Context, cl claim.Claim) (*claim.Claim, error) {
	body := createClaimBody{
		PolicyNo:             cl.PolicyNumber,
		InsuranceProvider:    cl.Provider,
		UserID:               cl.PatientID,
		PatientName:          cl.PatientName,
		DoctorID:             cl.DoctorID,
		DoctorName:           cl.DoctorName,
		TotalBillAmount:      cl.TotalBillAmount,
		DiagnosisCode:        cl.DiagnosisCode,
		TreatmentDescription: cl.TreatmentDescription,
		Status:               string(cl.Status),
		AppointmentID:        cl.AppointmentID,
	}

	var w claimWire
	err := c.do(ctx, "claim", http.MethodPost, c.claimBase+"/claim", body, &w)
	if err != nil {
		return nil, err
	}

	created, err := w.normalize()
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) ClaimAction(ctx context.Context, id string, to claim.Status, notes, reviewedBy string) (*claim.Claim, error) {
	q := url.Values{}
	q.Set("status", string(to))

	var w claimWire
	err := c.do(ctx, "claim", http.MethodPut,
		fmt.Sprintf("%s/claim/%s/action?%s", c.claimBase, url.PathEscape(id), q.Encode()),
		claimActionBody{Notes: notes, ReviewedBy: reviewedBy}, &w)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, claim.ErrClaimNotFound
		}
		return nil, err
	}

	updated, err := w.normalize()
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
