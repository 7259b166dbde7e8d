package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"fluxgate/internal/logging"
	"fluxgate/internal/telemetry"

	"github.com/IBM/sarama"
)

type SaramaDriver struct {
	cfg    Config
	cl     sarama.Client
	group  sarama.ConsumerGroup
	cp     *commitPolicy
	keyDec Deserializer
	valDec Deserializer
	state  stateBox

	// serial keeps handler invocations one at a time across partitions.
	serial sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	fatal   error
	offsets map[string]int64

	handled atomic.Uint64
	acked   atomic.Uint64
}

// setup prepares everything except the broker connection.
func (d *SaramaDriver) setup(config Config) error {
	var err error
	if d.keyDec, err = DeserializerFor(config.KeyDeserializer); err != nil {
		return err
	}
	if d.valDec, err = DeserializerFor(config.ValueDeserializer); err != nil {
		return err
	}
	d.cfg = config
	d.cp = newCommitPolicy(config.Checkpoint.CommitEvery, config.Checkpoint.CommitInt)
	d.offsets = make(map[string]int64)
	return nil
}

func (d *SaramaDriver) Configure(config Config) error {
	if st := d.state.load(); st != StateIdle {
		return fmt.Errorf("kafka: configure in state %s", st)
	}
	if err := d.setup(config); err != nil {
		return err
	}

	ver, err := sarama.ParseKafkaVersion(config.Version)
	if err != nil {
		return err
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.ClientID = config.ClientID
	sc.ChannelBufferSize = config.Prefetch
	sc.Consumer.Return.Errors = true
	// offsets are marked on ack and flushed by the commit policy
	sc.Consumer.Offsets.AutoCommit.Enable = false
	if config.TLSEn {
		sc.Net.TLS.Enable = true
	}
	if config.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = config.SASLUser, config.SASLPass
	}
	switch config.StartFrom {
	case "oldest", "earliest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if d.cl, err = sarama.NewClient(config.Brokers, sc); err != nil {
		return err
	}
	if d.group, err = sarama.NewConsumerGroupFromClient(config.GroupID, d.cl); err != nil {
		_ = d.cl.Close()
		return err
	}
	d.state.store(StateSubscribed)
	logging.L().Info("kafka consumer subscribed",
		"group", config.GroupID, "client", config.ClientID, "topics", config.Topics)
	return nil
}

// Run consumes until ctx is cancelled, Close is called, or a handler fails.
// A handler failure is returned as *HandlerError.
func (d *SaramaDriver) Run(ctx context.Context, handle Handler) error {
	if !d.state.advance(StateReceiving, StateSubscribed) {
		return fmt.Errorf("kafka: run in state %s", d.state.load())
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.mu.Lock()
	d.cancel, d.done = cancel, done
	d.mu.Unlock()
	defer func() {
		cancel()
		d.state.advance(StateStopping, StateReceiving)
		close(done)
	}()

	go d.logErrors(ctx)

	h := &groupHandler{driver: d, handle: handle}
	for {
		err := d.group.Consume(ctx, d.cfg.Topics, h)
		if fatal := d.failure(); fatal != nil {
			return fatal
		}
		if err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close stops the receive loop, waits for an in-flight handler and its ack,
// and releases the broker connection.
func (d *SaramaDriver) Close() error {
	if d.state.load() == StateStopped {
		return nil
	}
	d.state.store(StateStopping)

	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	var errs []error
	if d.group != nil {
		errs = append(errs, d.group.Close())
	}
	if d.cl != nil && !d.cl.Closed() {
		errs = append(errs, d.cl.Close())
	}
	d.state.store(StateStopped)
	logging.L().Info("kafka consumer stopped",
		"handled", d.handled.Load(), "acked", d.acked.Load())
	return errors.Join(errs...)
}

func (d *SaramaDriver) Status() Status {
	d.mu.Lock()
	offsets := make(map[string]int64, len(d.offsets))
	for k, v := range d.offsets {
		offsets[k] = v
	}
	d.mu.Unlock()
	return Status{
		State:    d.state.load(),
		GroupID:  d.cfg.GroupID,
		ClientID: d.cfg.ClientID,
		Topics:   append([]string(nil), d.cfg.Topics...),
		Handled:  d.handled.Load(),
		Acked:    d.acked.Load(),
		Offsets:  offsets,
	}
}

func (d *SaramaDriver) logErrors(ctx context.Context) {
	if d.group == nil {
		return
	}
	errs := d.group.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			var he *HandlerError
			if errors.As(err, &he) {
				// already reported by Run
				continue
			}
			logging.L().Warn("kafka consumer error", "err", err)
		}
	}
}

// fail records the first fatal error and stops the receive loop.
func (d *SaramaDriver) fail(err error) {
	d.mu.Lock()
	if d.fatal == nil {
		d.fatal = err
	}
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (d *SaramaDriver) failure() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fatal
}

func (d *SaramaDriver) decode(msg *sarama.ConsumerMessage) (*Record, error) {
	key, err := d.keyDec(msg.Topic, msg.Key)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	val, err := d.valDec(msg.Topic, msg.Value)
	if err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return &Record{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       key,
		Value:     val,
		RawKey:    msg.Key,
		RawValue:  msg.Value,
		Headers:   toHeaderMap(msg.Headers),
		Timestamp: msg.Timestamp,
	}, nil
}

// process hands one message to the handler and acknowledges it on success.
func (d *SaramaDriver) process(sess sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage, handle Handler) error {
	d.serial.Lock()
	defer d.serial.Unlock()
	if d.failure() != nil {
		return nil
	}

	rec, err := d.decode(msg)
	if err != nil {
		telemetry.ConsumerRecords.WithLabelValues("failed").Inc()
		return &HandlerError{Topic: msg.Topic, Partition: msg.Partition, Offset: msg.Offset, Cause: err}
	}
	rec.acker = &sessionAcker{driver: d, sess: sess, msg: msg}

	// the handler and its ack run to completion even when shutdown begins
	hctx := context.WithoutCancel(sess.Context())
	if err := handle(hctx, rec); err != nil {
		telemetry.ConsumerRecords.WithLabelValues("failed").Inc()
		return &HandlerError{Topic: rec.Topic, Partition: rec.Partition, Offset: rec.Offset, Cause: err}
	}
	d.handled.Add(1)
	telemetry.ConsumerRecords.WithLabelValues("handled").Inc()
	return rec.ack(hctx)
}

type sessionAcker struct {
	driver *SaramaDriver
	sess   sarama.ConsumerGroupSession
	msg    *sarama.ConsumerMessage
}

func (a *sessionAcker) ack(_ context.Context, rec *Record) error {
	d := a.driver
	a.sess.MarkMessage(a.msg, "")

	d.mu.Lock()
	d.offsets[fmt.Sprintf("%s/%d", rec.Topic, rec.Partition)] = rec.Offset
	d.mu.Unlock()
	d.acked.Add(1)
	telemetry.ConsumerRecords.WithLabelValues("acked").Inc()

	if d.cp.mark() {
		a.sess.Commit()
		d.cp.committed()
	}
	logging.L().Debug("kafka record acknowledged", "record", rec.String())
	return nil
}

type groupHandler struct {
	driver *SaramaDriver
	handle Handler
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup flushes offsets marked since the last commit, e.g. on rebalance.
func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if n := h.driver.cp.outstanding(); n > 0 {
		sess.Commit()
		h.driver.cp.committed()
		logging.L().Info("sarama-driver: committed outstanding offsets", "count", n)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(
	sess sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if ctx.Err() != nil {
				// left unacknowledged for the next session
				return nil
			}
			if err := h.driver.process(sess, msg, h.handle); err != nil {
				h.driver.fail(err)
				return err
			}
		}
	}
}

func toHeaderMap(src []*sarama.RecordHeader) map[string][]byte {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(src))
	for _, h := range src {
		out[string(h.Key)] = h.Value
	}
	return out
}
