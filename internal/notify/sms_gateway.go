package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMSGateway sends a text message through a carrier's email-to-SMS gateway
// (for example 5305550100@txt.att.net) over SMTP with STARTTLS.
type SMSGateway struct {
	Phone    string
	Gateway  string
	Host     string
	Port     int
	Username string
	Password string

	dialer *net.Dialer
}

func NewSMSGateway(phone, gateway, host string, port int, username, password string) *SMSGateway {
	return &SMSGateway{
		Phone:    phone,
		Gateway:  gateway,
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		dialer:   &net.Dialer{Timeout: 15 * time.Second},
	}
}

func (g *SMSGateway) Name() string { return "sms_gateway" }

// Address is the gateway email address for the phone.
func (g *SMSGateway) Address() string {
	gw := g.Gateway
	if !strings.HasPrefix(gw, "@") {
		gw = "@" + gw
	}
	return g.Phone + gw
}

// buildMessage writes a plain text mail with an empty subject; carriers put
// the subject in front of the text otherwise.
func buildMessage(from, to, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: \r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func (g *SMSGateway) Send(ctx context.Context, message string) error {
	addr := net.JoinHostPort(g.Host, strconv.Itoa(g.Port))
	conn, err := g.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, err := smtp.NewClient(conn, g.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: g.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if ok, _ := c.Extension("AUTH"); ok && g.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", g.Username, g.Password, g.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	to := g.Address()
	if err := c.Mail(g.Username); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(g.Username, to, message)); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}
