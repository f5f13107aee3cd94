package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
)

// StripeGateway клиент Stripe Payment Intents API с ручным захватом.
type StripeGateway struct {
	secretKey string
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
}

type StripeOption func(*StripeGateway)

func WithHTTPClient(client *http.Client) StripeOption {
	return func(g *StripeGateway) { g.client = client }
}

// NewStripeGateway создаёт клиента. rps ограничивает частоту исходящих запросов.
func NewStripeGateway(secretKey, baseURL string, timeout time.Duration, rps float64, opts ...StripeOption) *StripeGateway {
	if rps <= 0 {
		rps = 20
	}
	g := &StripeGateway{
		secretKey: secretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type stripeIntent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type stripeErrorBody struct {
	Error struct {
		Type          string        `json:"type"`
		Code          string        `json:"code"`
		DeclineCode   string        `json:"decline_code"`
		Message       string        `json:"message"`
		PaymentIntent *stripeIntent `json:"payment_intent"`
	} `json:"error"`
}

func (g *StripeGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount.ToMinorUnits(), 10))
	form.Set("currency", strings.ToLower(req.Amount.Currency))
	form.Set("capture_method", "manual")
	form.Set("payment_method", req.PaymentMethodID)
	form.Set("confirm", "true")
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("automatic_payment_methods[allow_redirects]", "never")
	for k, v := range req.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	intent, err := g.post(ctx, "/v1/payment_intents", form, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	// requires_action (3-D Secure) без участия плательщика не завершить.
	if intent.Status != "requires_capture" {
		return nil, fmt.Errorf("%w: неожиданный статус намерения %s", ErrDeclined, intent.Status)
	}
	return intent, nil
}

func (g *StripeGateway) Capture(ctx context.Context, intentID, idempotencyKey string) (*Intent, error) {
	return g.post(ctx, "/v1/payment_intents/"+url.PathEscape(intentID)+"/capture", url.Values{}, idempotencyKey)
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string, amount valueobject.Money, idempotencyKey string) (*Intent, error) {
	form := url.Values{}
	form.Set("payment_intent", intentID)
	form.Set("amount", strconv.FormatInt(amount.ToMinorUnits(), 10))
	return g.post(ctx, "/v1/refunds", form, idempotencyKey)
}

func (g *StripeGateway) Cancel(ctx context.Context, intentID, idempotencyKey string) (*Intent, error) {
	return g.post(ctx, "/v1/payment_intents/"+url.PathEscape(intentID)+"/cancel", url.Values{}, idempotencyKey)
}

func (g *StripeGateway) post(ctx context.Context, path string, form url.Values, idempotencyKey string) (*Intent, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("stripe: не удалось создать запрос: %w", err)
	}
	req.SetBasicAuth(g.secretKey, "")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: чтение ответа: %v", ErrTransient, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var intent stripeIntent
		if err := json.Unmarshal(body, &intent); err != nil {
			return nil, fmt.Errorf("stripe: некорректный ответ: %w", err)
		}
		return &Intent{ID: intent.ID, Status: intent.Status}, nil
	}

	return nil, classifyStripeError(resp.StatusCode, body)
}

// classifyStripeError сводит ответ Stripe к ErrDeclined, ErrTransient или ErrAlreadyCaptured.
func classifyStripeError(status int, body []byte) error {
	var parsed stripeErrorBody
	_ = json.Unmarshal(body, &parsed)
	e := parsed.Error

	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: http %d %s", ErrTransient, status, e.Message)
	case e.Code == "payment_intent_unexpected_state" && e.PaymentIntent != nil && e.PaymentIntent.Status == "succeeded":
		return fmt.Errorf("%w: %s", ErrAlreadyCaptured, e.Message)
	case e.Code == "charge_already_captured":
		return fmt.Errorf("%w: %s", ErrAlreadyCaptured, e.Message)
	case e.Type == "card_error" || status == http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s %s", ErrDeclined, e.DeclineCode, e.Message)
	case e.Type == "idempotency_error" || e.Code == "lock_timeout":
		return fmt.Errorf("%w: %s", ErrTransient, e.Message)
	default:
		return fmt.Errorf("%w: http %d %s %s", ErrDeclined, status, e.Code, e.Message)
	}
}

// IsRetryable сообщает, можно ли повторить операцию с тем же ключом идемпотентности.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}
