package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"monitord/internal/models"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func sampleAlert() models.Alert {
	return models.Alert{
		ID:             "system_cpu_percent_1771675200_ab12cd34",
		Title:          "CPU Monitoring: CPU usage percentage",
		Message:        "Metric cpu_percent is 95.00, threshold: 90.00",
		Severity:       models.SeverityCritical,
		Component:      models.ComponentSystem,
		MetricName:     "cpu_percent",
		CurrentValue:   95,
		ThresholdValue: 90,
		Timestamp:      time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC),
	}
}

func TestSlackPayload(t *testing.T) {
	var got map[string]any
	s := NewSlack("https://hooks.slack.test/x")
	s.HTTP = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("ok")), Header: make(http.Header)}, nil
	})}
	if err := s.Deliver(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	att := got["attachments"].([]any)[0].(map[string]any)
	if att["color"] != "danger" {
		t.Fatalf("color = %v, want danger", att["color"])
	}
	fields := att["fields"].([]any)
	if len(fields) != 4 || fields[2].(map[string]any)["value"] != "95.00" {
		t.Fatalf("fields = %v", fields)
	}
}

func TestDiscordPayloadAndErrorStatus(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := sampleAlert()
	a.Severity = models.SeverityHigh
	if err := NewDiscord(srv.URL).Deliver(context.Background(), a); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	embed := got["embeds"].([]any)[0].(map[string]any)
	if int(embed["color"].(float64)) != 0xff9900 {
		t.Fatalf("color = %v, want orange", embed["color"])
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer failing.Close()
	err := NewDiscord(failing.URL).Deliver(context.Background(), a)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v, want status 429", err)
	}
}

func TestUnconfiguredChannelsSkip(t *testing.T) {
	chans := []Channel{NewSlack(""), NewDiscord(""), NewWebhook(""), NewEmail("ops@example.com", nil, nil)}
	for _, c := range chans {
		if err := c.Deliver(context.Background(), sampleAlert()); !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("%s: err = %v, want ErrNotConfigured", c.Name(), err)
		}
	}
}

func TestWebhookSendsFullAlert(t *testing.T) {
	var got struct {
		Event string       `json:"event"`
		Alert models.Alert `json:"alert"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
	}))
	defer srv.Close()
	if err := NewWebhook(srv.URL).Deliver(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if got.Event != "alert" || got.Alert.Severity != models.SeverityCritical || got.Alert.MetricName != "cpu_percent" {
		t.Fatalf("payload = %+v", got)
	}
}

type fakeMailer struct {
	to            []string
	subject, body string
}

func (f *fakeMailer) Send(_ context.Context, _ string, to []string, subject, body string) error {
	f.to, f.subject, f.body = to, subject, body
	return nil
}

func TestEmailRendersSubjectAndBody(t *testing.T) {
	m := &fakeMailer{}
	e := NewEmail("monitor@example.com", []string{"ops@example.com"}, m)
	if err := e.Deliver(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if m.subject != "[CRITICAL] CPU Monitoring: CPU usage percentage" {
		t.Fatalf("subject = %q", m.subject)
	}
	for _, want := range []string{"Current:    95.00", "Threshold:  90.00", "Component:  system", "2026-02-21 12:00:00 UTC"} {
		if !strings.Contains(m.body, want) {
			t.Fatalf("body missing %q:\n%s", want, m.body)
		}
	}
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", 587, "user", "secret")
	var addr string
	var msg []byte
	m.send = func(_ context.Context, a string, auth smtp.Auth, from string, to []string, b []byte) error {
		addr, msg = a, b
		if auth == nil {
			t.Error("expected auth")
		}
		return nil
	}
	if err := m.Send(context.Background(), "monitor@example.com", []string{"a@example.com", "b@example.com"}, "[HIGH] x", "line1\nline2"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if addr != "smtp.example.com:587" {
		t.Fatalf("addr = %q", addr)
	}
	s := string(msg)
	if !strings.Contains(s, "To: a@example.com, b@example.com\r\n") || !strings.HasSuffix(s, "line1\r\nline2") {
		t.Fatalf("message = %q", s)
	}
}

func TestSMTPMailerGivesUpOnSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("tcp listen unavailable: %v", err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// Never write the 220 greeting.
		accepted <- conn
	}()
	t.Cleanup(func() {
		select {
		case conn := <-accepted:
			conn.Close()
		default:
		}
	})

	port := ln.Addr().(*net.TCPAddr).Port
	m := NewSMTPMailer("127.0.0.1", port, "", "")
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.Send(ctx, "monitor@example.com", []string{"ops@example.com"}, "[HIGH] x", "body")
	}()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error from silent server")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Send still blocked 3s after a 300ms deadline")
	}
}

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	return &sesv2.SendEmailOutput{}, f.err
}

func TestSESMailer(t *testing.T) {
	api := &fakeSES{}
	m := &SESMailer{client: api}
	if err := m.Send(context.Background(), "monitor@example.com", []string{"ops@example.com"}, "[LOW] x", "body"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if *api.in.FromEmailAddress != "monitor@example.com" || *api.in.Content.Simple.Subject.Data != "[LOW] x" {
		t.Fatalf("input = %+v", api.in)
	}
	api.err = errors.New("throttled")
	if err := m.Send(context.Background(), "a", []string{"b"}, "s", "b"); err == nil {
		t.Fatal("expected error")
	}
}
