package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/insurego/claims-gateway/internal/visit"
)

type bookAppointmentBody struct {
	UserID      string `json:"userId"`
	PatientName string `json:"patientName"`
	DoctorID    string `json:"doctorId,omitempty"`
	DoctorName  string `json:"doctorName,omitempty"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Reason      string `json:"reason,omitempty"`
	PolicyNo    string `json:"policyNo,omitempty"`
	SelfPay     bool   `json:"selfPay"`
}

type rescheduleBody struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type statusBody struct {
	Status string `json:"status"`
}

func (c *Client) GetAppointment(ctx context.Context, id string) (*visit.Appointment, error) {
	var w appointmentWire
	err := c.do(ctx, "visit", http.MethodGet,
		fmt.Sprintf("%s/appointment/%s", c.visitBase, url.PathEscape(id)), nil, &w)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, visit.ErrAppointmentNotFound
		}
		return nil, err
	}

	a := w.normalize()
	return &a, nil
}

func (c *Client) ListAppointments(ctx context.Context, f visit.Filter) ([]visit.Appointment, error) {
	q := url.Values{}
	if f.PatientID != "" {
		q.Set("patient", f.PatientID)
	}
	if f.DoctorID != "" {
		q.Set("doctor", f.DoctorID)
	}

	var wires []appointmentWire
	err := c.do(ctx, "visit", http.MethodGet,
		fmt.Sprintf("%s/appointment?%s", c.visitBase, q.Encode()), nil, &wires)
	if err != nil {
		return nil, err
	}

	appts := make([]visit.Appointment, 0, len(wires))
	for _, w := range wires {
		appts = append(appts, w.normalize())
	}
	return appts, nil
}

func (c *Client) BookAppointment(ctx context.Context, a visit.Appointment) (*visit.Appointment, error) {
	body := bookAppointmentBody{
		UserID:      a.PatientID,
		PatientName: a.PatientName,
		DoctorID:    a.DoctorID,
		DoctorName:  a.DoctorName,
		Date:        a.Date,
		Time:        a.Time,
		Reason:      a.Reason,
		PolicyNo:    a.PolicyNumber,
		SelfPay:     a.SelfPay,
	}

	var w appointmentWire
	err := c.do(ctx, "visit", http.MethodPost, c.visitBase+"/appointment", body, &w)
	if err != nil {
		return nil, err
	}

	created := w.normalize()
	return &created, nil
}

func (c *Client) RescheduleAppointment(ctx context.Context, id, date, timeOfDay string) (*visit.Appointment, error) {
	var w appointmentWire
	err := c.do(ctx, "visit", http.MethodPut,
		fmt.Sprintf("%s/appointment/%s/reschedule", c.visitBase, url.PathEscape(id)),
		rescheduleBody{Date: date, Time: timeOfDay}, &w)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, visit.ErrAppointmentNotFound
		}
		return nil, err
	}

	updated := w.normalize()
	return &updated, nil
}

func (c *Client) UpdateAppointmentStatus(ctx context.Context, id string, to visit.Status) (*visit.Appointment, error) {
	var w appointmentWire
	err := c.do(ctx, "visit", http.MethodPut,
		fmt.Sprintf("%s/appointment/%s/status", c.visitBase, url.PathEscape(id)),
		statusBody{Status: string(to)}, &w)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, visit.ErrAppointmentNotFound
		}
		return nil, err
	}

	updated := w.normalize()
	return &updated, nil
}
