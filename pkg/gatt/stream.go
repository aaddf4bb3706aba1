package gatt

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smallnest/ringbuffer"

	"github.com/srg/bluegatt/internal/groutine"
)

// ErrStreamLost reports that a value stream dropped notifications under
// backpressure and can no longer present a contiguous byte sequence.
var ErrStreamLost = errors.New("notification stream lost data under backpressure")

const valueReaderBufSize = 8192

// ValueReader presents one characteristic's notification stream as an
// io.ReadCloser. Each notification payload is appended to an internal
// ring buffer; Read blocks until bytes arrive. The stream ends with
// io.EOF when the characteristic disappears or the session terminates,
// and with ErrStreamLost if notifications were dropped.
type ValueReader struct {
	session *Session
	id      CharacteristicID
	device  DeviceID
	rb      *ringbuffer.RingBuffer
	sub     *Subscription

	closeOnce sync.Once
	closeErr  error
}

// NotificationReader subscribes to the characteristic's notifications and
// returns a reader over the resulting byte stream. Closing the reader
// releases the notification reference.
func (s *Session) NotificationReader(ctx context.Context, id CharacteristicID) (*ValueReader, error) {
	info, err := s.Characteristic(id)
	if err != nil {
		return nil, err
	}

	// Subscribe before StartNotify so the first notification cannot slip
	// between the daemon call and the stream attach.
	sub := s.Subscribe()
	if err := s.StartNotify(ctx, id); err != nil {
		sub.Cancel()
		return nil, err
	}

	r := &ValueReader{
		session: s,
		id:      id,
		device:  info.Device,
		rb:      ringbuffer.New(valueReaderBufSize).SetBlocking(true),
		sub:     sub,
	}
	groutine.Go(context.Background(), "gatt-value-stream", func(context.Context) { r.pump() })
	return r, nil
}

func (r *ValueReader) pump() {
	for ev := range r.sub.Events() {
		switch e := ev.(type) {
		case CharacteristicValueChanged:
			if e.ID != r.id {
				continue
			}
			if _, err := r.rb.Write(e.Value); err != nil {
				return // reader side closed
			}
		case CharacteristicRemoved:
			if e.ID == r.id {
				r.rb.CloseWriter()
				return
			}
		case DeviceDisconnected:
			if e.Device.ID == r.device {
				r.rb.CloseWriter()
				return
			}
		case Overflow:
			// Payloads may have been dropped; a byte stream cannot paper
			// over a gap, so fail the reader.
			r.rb.CloseWithError(ErrStreamLost)
			return
		}
	}
	r.rb.CloseWriter()
}

// Read blocks until notification bytes are available. Returns io.EOF once
// the stream has ended and the buffer is drained.
func (r *ValueReader) Read(p []byte) (int, error) {
	return r.rb.Read(p)
}

// Close detaches from the event stream and releases the notification
// reference. Pending Reads unblock with io.EOF.
func (r *ValueReader) Close() error {
	r.closeOnce.Do(func() {
		r.sub.Cancel()
		r.rb.CloseWriter()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r.closeErr = r.session.StopNotify(ctx, r.id)
	})
	return r.closeErr
}
