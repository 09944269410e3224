package novaauth

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
)

// OTPSender delivers a verification code to an email address.
// Applications can provide their own transport.
type OTPSender interface {
	SendOTP(to string, code string) error
}

// ConsoleOTPSender is a development implementation that logs codes to
// the console instead of sending mail.
type ConsoleOTPSender struct{}

func (c *ConsoleOTPSender) SendOTP(to string, code string) error {
	log.Printf("\n=== EMAIL: Verification Code ===")
	log.Printf("To: %s", to)
	log.Printf("Subject: Your Access Verification Code")
	log.Printf("Body: Enter this code to verify your account: %s", code)
	log.Printf("Code expires in %s", ChallengeTTL)
	log.Printf("================================\n")
	return nil
}

var otpEmailTemplate = template.Must(template.New("otp").Parse(`
<!DOCTYPE html>
<html>
<body style="background-color: #020617; color: white; padding: 40px; font-family: sans-serif;">
  <h1 style="color: #6366f1;">Verification Code</h1>
  <p style="font-size: 16px;">Enter this code to verify your account:</p>
  <div style="background: #1e1b4b; padding: 20px; font-size: 32px; font-weight: bold; letter-spacing: 10px; text-align: center; border-radius: 10px;">
    {{.Code}}
  </div>
  <p style="margin-top: 20px; color: #94a3b8;">This code expires in 15 minutes.</p>
</body>
</html>
`))

// SMTPOTPSender sends verification codes over SMTP with a rendered HTML
// body.
type SMTPOTPSender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func (s *SMTPOTPSender) SendOTP(to string, code string) error {
	var body bytes.Buffer
	if err := otpEmailTemplate.Execute(&body, struct{ Code string }{Code: code}); err != nil {
		return fmt.Errorf("failed to render otp email: %w", err)
	}

	from := s.From
	if from == "" {
		from = s.Username
	}

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: Your Access Verification Code\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		from, to, body.String(),
	))

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	addr := fmt.Sprintf("%s:%s", s.Host, s.Port)
	if err := smtp.SendMail(addr, auth, from, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}
