package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"go.uber.org/zap"
)

// Omise адаптер шлюза Omise: заказ - это charge
type Omise struct {
	client *omise.Client
	logger *zap.Logger
}

func NewOmise(publicKey, secretKey string, logger *zap.Logger) (*Omise, error) {
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("create omise client: %w", err)
	}
	return &Omise{client: c, logger: logger}, nil
}

func (g *Omise) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.Amount <= 0 || req.Currency == "" || req.Payer.Token == "" {
		return nil, fmt.Errorf("%w: charge needs amount, currency and payer token", ErrInvalidRequest)
	}

	op := &operations.CreateCharge{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		ReturnURI:   req.ReturnURL,
		Metadata: map[string]interface{}{
			"booking_request_id": strconv.FormatInt(req.BookingRequestID, 10),
			"payer_id":           strconv.FormatInt(req.Payer.UserID, 10),
		},
	}
	if strings.HasPrefix(req.Payer.Token, "src_") {
		op.Source = req.Payer.Token
	} else {
		op.Card = req.Payer.Token
	}

	ch := &omise.Charge{}
	if err := g.do(ctx, func() error { return g.client.Do(ch, op) }); err != nil {
		return nil, fmt.Errorf("create charge: %w", classify(err))
	}

	g.logger.Info("Omise charge created",
		zap.String("charge_id", ch.ID),
		zap.String("status", string(ch.Status)),
		zap.Int64("booking_request_id", req.BookingRequestID),
	)

	return &Order{
		ID:           ch.ID,
		SessionToken: ch.AuthorizeURI,
		Status:       chargeStatus(ch),
	}, nil
}

func (g *Omise) GetOrderStatus(ctx context.Context, orderID string) (string, error) {
	ch := &omise.Charge{}
	if err := g.do(ctx, func() error {
		return g.client.Do(ch, &operations.RetrieveCharge{ChargeID: orderID})
	}); err != nil {
		return "", fmt.Errorf("retrieve charge: %w", err)
	}
	return chargeStatus(ch), nil
}

type incomingEvent struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// ParseWebhook не доверяет телу запроса: событие заново запрашивается у Omise по id
func (g *Omise) ParseWebhook(ctx context.Context, payload []byte) (*WebhookEvent, error) {
	var inc incomingEvent
	if err := json.Unmarshal(payload, &inc); err != nil {
		return nil, fmt.Errorf("%w: decode webhook: %v", ErrInvalidRequest, err)
	}
	if inc.ID == "" {
		return nil, fmt.Errorf("%w: webhook without event id", ErrInvalidRequest)
	}

	ev := &omise.Event{}
	if err := g.do(ctx, func() error {
		return g.client.Do(ev, &operations.RetrieveEvent{EventID: inc.ID})
	}); err != nil {
		return nil, fmt.Errorf("retrieve event: %w", classify(err))
	}

	out, err := webhookEvent(ev)
	if err != nil {
		return nil, err
	}
	if out == nil {
		g.logger.Debug("Skipping omise event", zap.String("key", ev.Key))
	}
	return out, nil
}

// webhookEvent достаёт charge из события; nil, nil - событие не про оплату
func webhookEvent(ev *omise.Event) (*WebhookEvent, error) {
	if !strings.HasPrefix(ev.Key, "charge.") {
		return nil, nil
	}

	ch, ok := ev.Data.(*omise.Charge)
	if !ok {
		raw, err := json.Marshal(ev.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal event data: %w", err)
		}
		ch = &omise.Charge{}
		if err := json.Unmarshal(raw, ch); err != nil {
			return nil, fmt.Errorf("%w: unmarshal charge: %v", ErrInvalidRequest, err)
		}
	}
	if ch == nil || ch.ID == "" {
		return nil, nil
	}

	return &WebhookEvent{OrderID: ch.ID, Status: chargeStatus(ch)}, nil
}

// classify ответы API 4xx, кроме 429, окончательные; остальное считается временным сбоем
func classify(err error) error {
	var apiErr *omise.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
		apiErr.StatusCode != 429 {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return err
}

// do выполняет вызов клиента, не дожидаясь его, если ctx отменён.
// Client.WithContext меняет общее состояние клиента, поэтому для параллельных запросов не подходит.
func (g *Omise) do(ctx context.Context, call func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- call()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func chargeStatus(ch *omise.Charge) string {
	switch ch.Status {
	case omise.ChargeSuccessful:
		return StatusPaid
	case omise.ChargeFailed, omise.ChargeReversed, "expired":
		return StatusFailed
	default:
		return StatusPending
	}
}
