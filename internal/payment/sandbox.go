package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
)

// DeclinePaymentMethod способ оплаты, который песочница всегда отклоняет.
const DeclinePaymentMethod = "pm_card_declined"

// SandboxGateway хранит намерения в памяти. Используется в development и тестах.
type SandboxGateway struct {
	mu       sync.Mutex
	intents  map[string]*sandboxIntent
	byKey    map[string]*Intent
	failNext map[string][]error
	calls    map[string]int
}

type sandboxIntent struct {
	amount   valueobject.Money
	status   string
	refunded decimal.Decimal
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		intents:  make(map[string]*sandboxIntent),
		byKey:    make(map[string]*Intent),
		failNext: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// FailNext заставляет следующий вызов операции op ("authorize", "capture", "refund", "cancel") вернуть err.
func (g *SandboxGateway) FailNext(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext[op] = append(g.failNext[op], err)
}

// Calls возвращает число вызовов операции, дошедших до шлюза.
func (g *SandboxGateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// Status возвращает статус намерения.
func (g *SandboxGateway) Status(intentID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if in, ok := g.intents[intentID]; ok {
		return in.status
	}
	return ""
}

// Refunded возвращает сумму возвратов по намерению.
func (g *SandboxGateway) Refunded(intentID string) decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	if in, ok := g.intents[intentID]; ok {
		return in.refunded
	}
	return decimal.Zero
}

func (g *SandboxGateway) begin(ctx context.Context, op, key string) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	g.calls[op]++
	if queue := g.failNext[op]; len(queue) > 0 {
		g.failNext[op] = queue[1:]
		return nil, queue[0]
	}
	if key != "" {
		if prev, ok := g.byKey[op+key]; ok {
			copied := *prev
			return &copied, nil
		}
	}
	return nil, nil
}

func (g *SandboxGateway) remember(op, key string, intent *Intent) *Intent {
	if key != "" {
		copied := *intent
		g.byKey[op+key] = &copied
	}
	return intent
}

func (g *SandboxGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, err := g.begin(ctx, "authorize", req.IdempotencyKey); prev != nil || err != nil {
		return prev, err
	}
	if req.PaymentMethodID == DeclinePaymentMethod {
		return nil, fmt.Errorf("%w: card_declined", ErrDeclined)
	}

	id := "pi_sandbox_" + uuid.NewString()
	g.intents[id] = &sandboxIntent{amount: req.Amount, status: "requires_capture", refunded: decimal.Zero}
	return g.remember("authorize", req.IdempotencyKey, &Intent{ID: id, Status: "requires_capture"}), nil
}

func (g *SandboxGateway) Capture(ctx context.Context, intentID, key string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, err := g.begin(ctx, "capture", key); prev != nil || err != nil {
		return prev, err
	}
	in, ok := g.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("%w: неизвестное намерение %s", ErrDeclined, intentID)
	}
	switch in.status {
	case "succeeded":
		return nil, fmt.Errorf("%w: %s", ErrAlreadyCaptured, intentID)
	case "requires_capture":
		in.status = "succeeded"
		return g.remember("capture", key, &Intent{ID: intentID, Status: in.status}), nil
	default:
		return nil, fmt.Errorf("%w: намерение в статусе %s", ErrDeclined, in.status)
	}
}

func (g *SandboxGateway) Refund(ctx context.Context, intentID string, amount valueobject.Money, key string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, err := g.begin(ctx, "refund", key); prev != nil || err != nil {
		return prev, err
	}
	in, ok := g.intents[intentID]
	if !ok || in.status != "succeeded" {
		return nil, fmt.Errorf("%w: намерение %s не захвачено", ErrDeclined, intentID)
	}
	if in.refunded.Add(amount.Amount).GreaterThan(in.amount.Amount) {
		return nil, fmt.Errorf("%w: возврат больше суммы платежа", ErrDeclined)
	}
	in.refunded = in.refunded.Add(amount.Amount)
	return g.remember("refund", key, &Intent{ID: "re_sandbox_" + uuid.NewString(), Status: "succeeded"}), nil
}

func (g *SandboxGateway) Cancel(ctx context.Context, intentID, key string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, err := g.begin(ctx, "cancel", key); prev != nil || err != nil {
		return prev, err
	}
	in, ok := g.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("%w: неизвестное намерение %s", ErrDeclined, intentID)
	}
	if in.status == "succeeded" {
		return nil, fmt.Errorf("%w: захваченное намерение нельзя отменить", ErrDeclined)
	}
	in.status = "canceled"
	return g.remember("cancel", key, &Intent{ID: intentID, Status: in.status}), nil
}
