// Package mail delivers signup one-time passwords.
package mail

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// OTPSubject is the subject line of every signup code mail.
const OTPSubject = "OTP for Email Verification"

// Message is a rendered mail ready for delivery.
type Message struct {
	To      string `json:"to"`
	Name    string `json:"name,omitempty"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// NewOTPMessage renders the verification mail for otp.
func NewOTPMessage(email, name, otp string) Message {
	return Message{
		To:      email,
		Name:    name,
		Subject: OTPSubject,
		Text:    fmt.Sprintf("Your OTP is %s. It is valid for 10 minutes.", otp),
		HTML:    fmt.Sprintf("<p>Your OTP is <b>%s</b>. It is valid for 10 minutes.</p>", otp),
	}
}

// LogMailer writes codes to the log. Used when no broker is configured.
type LogMailer struct {
	log *zerolog.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(logger *zerolog.Logger) *LogMailer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LogMailer{log: logger}
}

// SendOTP logs the code instead of sending it.
func (m *LogMailer) SendOTP(_ context.Context, email, name, otp string) error {
	msg := NewOTPMessage(email, name, otp)
	m.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Str("otp", otp).Msg("otp mail (log delivery)")
	return nil
}

// Close is a no-op.
func (m *LogMailer) Close() error { return nil }
