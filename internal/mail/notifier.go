package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"golang.org/x/time/rate"

	"github.com/groupify/accounts-go/internal/metrics"
)

const verificationSubject = "Confirm your email address"

var (
	verificationText = texttemplate.Must(texttemplate.New("text").Parse(
		`Welcome!

Your verification code is: {{.Code}}

The code can be used once and expires shortly. If you did not create an account, ignore this email.
`))

	verificationHTML = htmltemplate.Must(htmltemplate.New("html").Parse(
		`<!DOCTYPE html>
<html>
<body>
<p>Welcome!</p>
<p>Your verification code is: <strong>{{.Code}}</strong></p>
<p>The code can be used once and expires shortly. If you did not create an account, ignore this email.</p>
</body>
</html>
`))
)

// Notifier emails verification codes. Outbound mail is paced by a token
// bucket so a burst of registrations cannot flood the SMTP relay.
type Notifier struct {
	sender  Sender
	from    string
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// NewNotifier creates a Notifier sending at most ratePerSecond messages per
// second with the given burst.
func NewNotifier(sender Sender, from string, ratePerSecond float64, burst int, m *metrics.Metrics) *Notifier {
	return &Notifier{
		sender:  sender,
		from:    from,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		metrics: m,
	}
}

// SendVerificationCode mails code to the given address.
func (n *Notifier) SendVerificationCode(ctx context.Context, email, code string) (err error) {
	defer func() {
		result := metrics.ResultSent
		if err != nil {
			result = metrics.ResultFailed
		}
		n.metrics.VerificationEmails.WithLabelValues(result).Inc()
	}()

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for mail rate limiter: %w", err)
	}

	msg, err := verificationMessage(n.from, email, code)
	if err != nil {
		return err
	}

	return n.sender.Send(ctx, msg)
}

func verificationMessage(from, to, code string) (Message, error) {
	data := struct{ Code string }{Code: code}

	var text, html bytes.Buffer
	if err := verificationText.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("rendering text body: %w", err)
	}
	if err := verificationHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("rendering html body: %w", err)
	}

	return Message{
		From:    from,
		To:      to,
		Subject: verificationSubject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
