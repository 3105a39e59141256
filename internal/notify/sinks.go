package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/parking/pkg/parking"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ReceiptQueue is the durable queue receipts are published to.
const ReceiptQueue = "parking.receipts"

const contentTypeJSON = "application/json"

type receiptMessage struct {
	Kind         string    `json:"kind"`
	AccountEmail string    `json:"account_email"`
	SessionID    string    `json:"session_id"`
	LotID        string    `json:"lot_id"`
	LotName      string    `json:"lot_name"`
	Plate        string    `json:"plate"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	AmountCents  int64     `json:"amount_cents"`
	IssuedAt     time.Time `json:"issued_at"`
}

func newReceiptMessage(receipt parking.Receipt) receiptMessage {
	return receiptMessage{
		Kind:         string(receipt.Kind),
		AccountEmail: receipt.AccountEmail,
		SessionID:    receipt.SessionID.String(),
		LotID:        receipt.LotID.String(),
		LotName:      receipt.LotName,
		Plate:        receipt.Plate.String(),
		StartsAt:     receipt.StartsAt,
		EndsAt:       receipt.EndsAt,
		AmountCents:  receipt.AmountCents.Int64(),
		IssuedAt:     receipt.IssuedAt,
	}
}

// LogSink writes receipts to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a sink that only logs.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("receipts")}
}

func (sink *LogSink) Deliver(_ context.Context, receipt parking.Receipt) error {
	sink.logger.Info("receipt issued",
		zap.String("kind", string(receipt.Kind)),
		zap.String("email", receipt.AccountEmail),
		zap.String("session_id", receipt.SessionID.String()),
		zap.String("lot", receipt.LotName),
		zap.String("plate", receipt.Plate.String()),
		zap.Time("starts_at", receipt.StartsAt),
		zap.Time("ends_at", receipt.EndsAt),
		zap.Int64("amount_cents", receipt.AmountCents.Int64()),
	)
	return nil
}

// publisher is the part of *amqp.Channel used by AMQPSink.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange string, key string, mandatory bool, immediate bool, msg amqp.Publishing) error
}

// amqpLink is one broker connection and the channel receipts are published on.
type amqpLink struct {
	channel publisher
	// closed yields or closes when the broker drops the channel.
	closed <-chan *amqp.Error
	close  func() error
}

func (link *amqpLink) broken() bool {
	select {
	case <-link.closed:
		return true
	default:
		return false
	}
}

type amqpDialer func(url string) (*amqpLink, error)

var errSinkClosed = errors.New("receipt sink closed")

// AMQPSink publishes receipts as persistent JSON messages. A dropped
// connection is redialled on the next delivery.
type AMQPSink struct {
	url    string
	queue  string
	dial   amqpDialer
	logger *zap.Logger

	mutex  sync.Mutex
	link   *amqpLink
	closed bool
}

// DialAMQPSink connects to the broker and declares the durable receipt queue.
func DialAMQPSink(url string, logger *zap.Logger) (*AMQPSink, error) {
	sink := newAMQPSink(url, dialAMQP, logger)
	if _, err := sink.currentLink(); err != nil {
		return nil, err
	}
	return sink, nil
}

func newAMQPSink(url string, dial amqpDialer, logger *zap.Logger) *AMQPSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPSink{url: url, queue: ReceiptQueue, dial: dial, logger: logger.Named("receipts")}
}

func dialAMQP(url string) (*amqpLink, error) {
	connection, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	channel, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := channel.QueueDeclare(ReceiptQueue, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = connection.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	return &amqpLink{
		channel: channel,
		closed:  channel.NotifyClose(make(chan *amqp.Error, 1)),
		close: func() error {
			return errors.Join(channel.Close(), connection.Close())
		},
	}, nil
}

// currentLink returns a live link, redialling when the previous one was dropped.
func (sink *AMQPSink) currentLink() (*amqpLink, error) {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	if sink.closed {
		return nil, errSinkClosed
	}
	if sink.link != nil && !sink.link.broken() {
		return sink.link, nil
	}
	reconnecting := sink.link != nil
	sink.dropLocked()
	link, err := sink.dial(sink.url)
	if err != nil {
		return nil, err
	}
	if reconnecting {
		sink.logger.Info("rabbitmq reconnected", zap.String("queue", sink.queue))
	}
	sink.link = link
	return link, nil
}

// discard forgets link if it is still the current one.
func (sink *AMQPSink) discard(link *amqpLink) {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	if sink.link == link {
		sink.dropLocked()
	}
}

func (sink *AMQPSink) dropLocked() {
	if sink.link == nil {
		return
	}
	if sink.link.close != nil {
		_ = sink.link.close()
	}
	sink.link = nil
}

func (sink *AMQPSink) Deliver(ctx context.Context, receipt parking.Receipt) error {
	body, err := json.Marshal(newReceiptMessage(receipt))
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	message := amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    receipt.IssuedAt,
		MessageId:    fmt.Sprintf("%s:%s:%d", receipt.SessionID.String(), receipt.Kind, receipt.IssuedAt.UnixNano()),
		Body:         body,
	}
	link, err := sink.currentLink()
	if err != nil {
		return err
	}
	err = link.channel.PublishWithContext(ctx, "", sink.queue, false, false, message)
	if !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	// The broker went away between the liveness check and the publish.
	sink.discard(link)
	if link, err = sink.currentLink(); err != nil {
		return err
	}
	return link.channel.PublishWithContext(ctx, "", sink.queue, false, false, message)
}

// Close releases the channel and connection. Later deliveries fail.
func (sink *AMQPSink) Close() error {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	sink.closed = true
	if sink.link == nil || sink.link.close == nil {
		sink.link = nil
		return nil
	}
	err := sink.link.close()
	sink.link = nil
	return err
}
