package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"
)

// SendResult is what the gateway answered. Body is kept raw for diagnostics.
type SendResult struct {
	OK         bool
	StatusCode int
	Body       string
}

// Notifier delivers one text message to a digits-only phone number.
// A non-nil error is always a *NotifierError.
type Notifier interface {
	Send(ctx context.Context, phone, message string) (SendResult, error)
}

// ZAPINotifier posts {phone, message} to a z-API send-text endpoint.
type ZAPINotifier struct {
	client *resty.Client
	url    string
}

func NewZAPINotifier(url, clientToken string, timeout time.Duration) *ZAPINotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Client-Token", clientToken)
	return &ZAPINotifier{client: client, url: url}
}

type zapiMessage struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (n *ZAPINotifier) Send(ctx context.Context, phone, message string) (SendResult, error) {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(zapiMessage{Phone: phone, Message: message}).
		Post(n.url)
	if err != nil {
		return SendResult{}, &NotifierError{Err: err}
	}

	result := SendResult{
		OK:         !resp.IsError(),
		StatusCode: resp.StatusCode(),
		Body:       resp.String(),
	}
	if !result.OK {
		return result, &NotifierError{StatusCode: result.StatusCode, Body: truncate(result.Body, 500)}
	}
	return result, nil
}

// messageCreator is the slice of the Twilio API the notifier uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioNotifier sends through Twilio's WhatsApp channel.
type TwilioNotifier struct {
	api  messageCreator
	from string
}

func NewTwilioNotifier(accountSID, authToken, from string) *TwilioNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioNotifier{api: client.Api, from: from}
}

type twilioOutcome struct {
	resp *twilioApi.ApiV2010Message
	err  error
}

// Send stops waiting when ctx is done. The twilio client takes no context, so the
// request itself keeps running in the background and may still be delivered.
func (n *TwilioNotifier) Send(ctx context.Context, phone, message string) (SendResult, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:+" + phone)
	params.SetFrom("whatsapp:" + n.from)
	params.SetBody(message)

	done := make(chan twilioOutcome, 1)
	go func() {
		resp, err := n.api.CreateMessage(params)
		done <- twilioOutcome{resp: resp, err: err}
	}()

	var out twilioOutcome
	select {
	case <-ctx.Done():
		return SendResult{}, &NotifierError{Err: ctx.Err()}
	case out = <-done:
	}
	if out.err != nil {
		return SendResult{}, &NotifierError{Err: out.err}
	}

	body := ""
	if out.resp != nil && out.resp.Sid != nil {
		body = *out.resp.Sid
	}
	return SendResult{OK: true, StatusCode: http.StatusCreated, Body: body}, nil
}

// RateLimitedNotifier spaces sends out so a busy minute does not trip the gateway's limits.
type RateLimitedNotifier struct {
	next    Notifier
	limiter *rate.Limiter
}

func NewRateLimitedNotifier(next Notifier, perSecond float64, burst int) *RateLimitedNotifier {
	return &RateLimitedNotifier{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (n *RateLimitedNotifier) Send(ctx context.Context, phone, message string) (SendResult, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return SendResult{}, &NotifierError{Err: fmt.Errorf("rate limit: %w", err)}
	}
	return n.next.Send(ctx, phone, message)
}
