// Package gatt is an asynchronous client for the BlueZ GATT stack. A
// Session owns one daemon connection, mirrors the daemon's object tree
// into a typed topology cache, and exposes request/response operations
// plus a typed event stream keyed by stable identifiers.
package gatt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	uatomic "go.uber.org/atomic"

	"github.com/srg/bluegatt/internal/bus"
	"github.com/srg/bluegatt/internal/eventmux"
	"github.com/srg/bluegatt/internal/groutine"
	"github.com/srg/bluegatt/internal/registry"
	"github.com/srg/bluegatt/internal/topology"
)

// Options configures a Session.
type Options struct {
	// CallTimeout bounds daemon calls issued without a caller deadline.
	CallTimeout time.Duration
	// ConnectTimeout bounds connect-and-resolve when the caller context
	// carries no deadline.
	ConnectTimeout time.Duration
	// EventBacklog is each subscriber's buffered event capacity.
	EventBacklog int
	// OrphanTTL bounds how long out-of-order children are buffered.
	OrphanTTL time.Duration
}

// DefaultOptions returns the defaults used for nil options.
func DefaultOptions() *Options {
	return &Options{
		CallTimeout:    30 * time.Second,
		ConnectTimeout: 60 * time.Second,
		EventBacklog:   128,
		OrphanTTL:      topology.DefaultOrphanTTL,
	}
}

// Session is a connection to the Bluetooth daemon. All methods are safe
// for concurrent use; blocking ones suspend only on daemon round-trips.
type Session struct {
	bus    bus.Bus
	reg    *registry.Registry
	cache  *topology.Cache
	mux    *eventmux.Mux[Event]
	logger *logrus.Logger
	opts   Options

	notifyMu   sync.Mutex
	notifyRefs map[CharacteristicID]*notifyRef

	closed    uatomic.Bool
	streamErr error // set before done closes
	done      chan struct{}
}

// notifyRef reference-counts one daemon-side notification subscription.
// Its mutex is held across the daemon subscribe/unsubscribe call so the
// count and daemon state cannot diverge under concurrent start/stop.
type notifyRef struct {
	mu    sync.Mutex
	count int
}

// Subscription yields the typed event stream. The channel closes when the
// subscription is cancelled or the session's transport goes away.
type Subscription struct {
	ch     <-chan Event
	cancel func()
}

// Events returns the subscriber's receive channel.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Cancel detaches the subscriber and closes its channel. Idempotent.
func (s *Subscription) Cancel() { s.cancel() }

// Dial connects to the system bus and initializes a session against the
// daemon's current object tree.
func Dial(logger *logrus.Logger, opts *Options) (*Session, error) {
	if logger == nil {
		logger = logrus.New()
	}
	b, err := bus.SystemBus(logger)
	if err != nil {
		return nil, err
	}
	return NewSession(b, logger, opts)
}

// NewSession builds a session on an existing bus. It bulk-loads the
// daemon's object tree and starts the background event loop. The caller
// must Close the session to release the bus.
func NewSession(b bus.Bus, logger *logrus.Logger, opts *Options) (*Session, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	s := &Session{
		bus:        b,
		reg:        registry.New(),
		logger:     logger,
		opts:       *opts,
		notifyRefs: make(map[CharacteristicID]*notifyRef),
		done:       make(chan struct{}),
	}
	s.mux = eventmux.New[Event](opts.EventBacklog, func() Event { return Overflow{} })
	s.cache = topology.New(s.reg, s.mux.Publish, logger,
		topology.WithOrphanTTL(opts.OrphanTTL))

	ctx, cancel := context.WithTimeout(context.Background(), opts.CallTimeout)
	defer cancel()
	objects, err := b.ManagedObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load daemon object tree: %w", mapDaemonError(err))
	}
	for path, ifaces := range objects {
		s.cache.ApplyObjectAdded(path, ifaces)
	}

	s.logger.WithFields(logrus.Fields{
		"adapters": len(s.cache.Adapters()),
		"devices":  len(s.cache.Devices()),
	}).Debug("Session initialized from daemon object tree")

	groutine.Go(context.Background(), "gatt-session-events", func(context.Context) { s.run() })
	return s, nil
}

// run is the single goroutine mutating the topology cache. It ends when
// the bus event channel closes, which either means Close was called or
// the transport failed.
func (s *Session) run() {
	for ev := range s.bus.Events() {
		s.cache.Apply(ev)
	}

	if err := s.bus.Err(); err != nil {
		s.streamErr = fmt.Errorf("%w: %v", ErrTransport, err)
		s.logger.WithField("error", err).Error("Bus transport lost, terminating session")
	} else {
		s.streamErr = ErrSessionClosed
	}

	s.cache.FailAllWaiters(s.streamErr)
	s.mux.Close()
	close(s.done)
}

// Close tears down the session: the event stream ends and pending
// operations fail. Safe to call more than once.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.bus.Close()
	<-s.done
	return err
}

// Subscribe attaches a new event stream subscriber receiving every event
// from this point on.
func (s *Session) Subscribe() *Subscription {
	inner := s.mux.Subscribe()
	if inner == nil {
		// Session already terminated: yield an immediately closed stream.
		ch := make(chan Event)
		close(ch)
		return &Subscription{ch: ch, cancel: func() {}}
	}
	return &Subscription{ch: inner.Events(), cancel: inner.Cancel}
}

// guard rejects operations once the session has terminated.
func (s *Session) guard() error {
	select {
	case <-s.done:
		return s.streamErr
	default:
	}
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return nil
}

// opCtx applies the default timeout when the caller set no deadline.
func opCtx(ctx context.Context, fallback time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, fallback)
}

// Snapshot accessors. Pure cache reads; no daemon round-trip.

// Adapters lists all known local adapters.
func (s *Session) Adapters() []AdapterInfo { return s.cache.Adapters() }

// Adapter returns a snapshot of one adapter.
func (s *Session) Adapter(id AdapterID) (AdapterInfo, error) {
	info, err := s.cache.Adapter(id)
	return info, mapCacheError(err)
}

// Devices lists all known devices, connected or not.
func (s *Session) Devices() []DeviceInfo { return s.cache.Devices() }

// Device returns a snapshot of one device.
func (s *Session) Device(id DeviceID) (DeviceInfo, error) {
	info, err := s.cache.Device(id)
	return info, mapCacheError(err)
}

// DeviceByAddress locates a known device by Bluetooth address.
func (s *Session) DeviceByAddress(address string) (DeviceInfo, error) {
	info, ok := s.cache.FindDeviceByAddress(address)
	if !ok {
		return DeviceInfo{}, ErrNotFound
	}
	return info, nil
}

// Services lists a connected device's GATT services.
func (s *Session) Services(id DeviceID) ([]ServiceInfo, error) {
	services, err := s.cache.Services(id)
	return services, mapCacheError(err)
}

// Service returns a snapshot of one service.
func (s *Session) Service(id ServiceID) (ServiceInfo, error) {
	info, err := s.cache.Service(id)
	return info, mapCacheError(err)
}

// Characteristics lists a service's characteristics.
func (s *Session) Characteristics(id ServiceID) ([]CharacteristicInfo, error) {
	chars, err := s.cache.Characteristics(id)
	return chars, mapCacheError(err)
}

// Characteristic returns a snapshot of one characteristic. Its Value is
// the last value obtained by read or notification, never assumed fresh.
func (s *Session) Characteristic(id CharacteristicID) (CharacteristicInfo, error) {
	info, err := s.cache.Characteristic(id)
	return info, mapCacheError(err)
}

// Descriptors lists a characteristic's descriptors.
func (s *Session) Descriptors(id CharacteristicID) ([]DescriptorInfo, error) {
	descs, err := s.cache.Descriptors(id)
	return descs, mapCacheError(err)
}

// Descriptor returns a snapshot of one descriptor.
func (s *Session) Descriptor(id DescriptorID) (DescriptorInfo, error) {
	info, err := s.cache.Descriptor(id)
	return info, mapCacheError(err)
}

// ServiceByUUID finds a device's service with the given UUID.
func (s *Session) ServiceByUUID(id DeviceID, u uuid.UUID) (ServiceInfo, error) {
	services, err := s.Services(id)
	if err != nil {
		return ServiceInfo{}, err
	}
	for _, svc := range services {
		if svc.UUID == u {
			return svc, nil
		}
	}
	return ServiceInfo{}, fmt.Errorf("service %s: %w", u, ErrNotFound)
}

// CharacteristicByUUID finds a service's characteristic with the given UUID.
func (s *Session) CharacteristicByUUID(id ServiceID, u uuid.UUID) (CharacteristicInfo, error) {
	chars, err := s.Characteristics(id)
	if err != nil {
		return CharacteristicInfo{}, err
	}
	for _, ch := range chars {
		if ch.UUID == u {
			return ch, nil
		}
	}
	return CharacteristicInfo{}, fmt.Errorf("characteristic %s: %w", u, ErrNotFound)
}

// ServiceCharacteristicByUUID chains ServiceByUUID and CharacteristicByUUID.
func (s *Session) ServiceCharacteristicByUUID(id DeviceID, serviceUUID, charUUID uuid.UUID) (CharacteristicInfo, error) {
	svc, err := s.ServiceByUUID(id, serviceUUID)
	if err != nil {
		return CharacteristicInfo{}, err
	}
	return s.CharacteristicByUUID(svc.ID, charUUID)
}

// Discovery.

// StartDiscovery powers the adapter on, applies the filter if given, and
// starts scanning. Daemon-side refusals (e.g. a scan already active) pass
// through as DaemonError.
func (s *Session) StartDiscovery(ctx context.Context, id AdapterID, filter *DiscoveryFilter) error {
	if err := s.guard(); err != nil {
		return err
	}
	path, err := s.cache.Path(registry.ID(id))
	if err != nil {
		return mapCacheError(err)
	}

	ctx, cancel := opCtx(ctx, s.opts.CallTimeout)
	defer cancel()

	if err := s.bus.SetProperty(ctx, path, bus.AdapterIface, bus.PropPowered, true); err != nil {
		return fmt.Errorf("failed to power adapter: %w", mapDaemonError(err))
	}
	if filter != nil {
		err := s.bus.Call(ctx, path, bus.AdapterIface, bus.SetDiscoveryFilterMethod,
			[]interface{}{filter.properties()})
		if err != nil {
			return fmt.Errorf("failed to set discovery filter: %w", mapDaemonError(err))
		}
	}

	s.logger.WithField("adapter", id).Debug("Starting discovery")
	if err := s.bus.Call(ctx, path, bus.AdapterIface, bus.StartDiscoveryMethod, nil); err != nil {
		return mapDaemonError(err)
	}
	return nil
}

// StopDiscovery stops an active scan on the adapter.
func (s *Session) StopDiscovery(ctx context.Context, id AdapterID) error {
	if err := s.guard(); err != nil {
		return err
	}
	path, err := s.cache.Path(registry.ID(id))
	if err != nil {
		return mapCacheError(err)
	}

	ctx, cancel := opCtx(ctx, s.opts.CallTimeout)
	defer cancel()

	s.logger.WithField("adapter", id).Debug("Stopping discovery")
	if err := s.bus.Call(ctx, path, bus.AdapterIface, bus.StopDiscoveryMethod, nil); err != nil {
		return mapDaemonError(err)
	}
	return nil
}

// Connection management.

// Connect connects to the device and additionally suspends until the
// daemon reports its GATT database resolved, so a successful return
// guarantees Services is queryable. On deadline expiry the attempt is
// cancelled at the daemon best-effort and ErrTimeout is returned.
func (s *Session) Connect(ctx context.Context, id DeviceID) error {
	if err := s.guard(); err != nil {
		return err
	}
	path, err := s.cache.Path(registry.ID(id))
	if err != nil {
		return mapCacheError(err)
	}

	ctx, cancel := opCtx(ctx, s.opts.ConnectTimeout)
	defer cancel()

	// Register the waiter before issuing Connect so a resolution racing
	// the method reply is never missed.
	resolved, stopWaiting := s.cache.AwaitResolved(id)
	defer stopWaiting()

	s.logger.WithField("device", id).Info("Connecting to device")
	if err := s.bus.Call(ctx, path, bus.DeviceIface, bus.ConnectMethod, nil); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.abandonConnect(path)
			return ErrTimeout
		}
		return mapDaemonError(err)
	}

	select {
	case err := <-resolved:
		if err != nil {
			return mapCacheError(err)
		}
		s.logger.WithField("device", id).Info("Device connected, GATT resolved")
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.abandonConnect(path)
			return ErrTimeout
		}
		return ctx.Err()
	case <-s.done:
		return s.streamErr
	}
}

// abandonConnect sends a best-effort Disconnect for a timed-out attempt.
func (s *Session) abandonConnect(path dbus.ObjectPath) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.bus.Call(ctx, path, bus.DeviceIface, bus.DisconnectMethod, nil); err != nil {
		s.logger.WithFields(logrus.Fields{
			"path":  path,
			"error": err,
		}).Debug("Best-effort connect cancellation failed")
	}
}

// Disconnect drops the device connection. Idempotent: succeeds when the
// device is already disconnected.
func (s *Session) Disconnect(ctx context.Context, id DeviceID) error {
	if err := s.guard(); err != nil {
		return err
	}
	path, err := s.cache.Path(registry.ID(id))
	if err != nil {
		return mapCacheError(err)
	}

	ctx, cancel := opCtx(ctx, s.opts.CallTimeout)
	defer cancel()

	s.logger.WithField("device", id).Info("Disconnecting device")
	if err := s.bus.Call(ctx, path, bus.DeviceIface, bus.DisconnectMethod, nil); err != nil {
		if mapped := mapDaemonError(err); !errors.Is(mapped, ErrNotConnected) {
			return mapped
		}
	}
	return nil
}

// RemoveDevice makes the daemon forget the device entirely. The removal
// flows back through the event stream and invalidates the identifier.
func (s *Session) RemoveDevice(ctx context.Context, id DeviceID) error {
	if err := s.guard(); err != nil {
		return err
	}
	dev, err := s.cache.Device(id)
	if err != nil {
		return mapCacheError(err)
	}
	devicePath, err := s.cache.Path(registry.ID(id))
	if err != nil {
		return mapCacheError(err)
	}
	adapterPath, err := s.cache.Path(registry.ID(dev.Adapter))
	if err != nil {
		return mapCacheError(err)
	}

	ctx, cancel := opCtx(ctx, s.opts.CallTimeout)
	defer cancel()

	if err := s.bus.Call(ctx, adapterPath, bus.AdapterIface, bus.RemoveDeviceMethod,
		[]interface{}{devicePath}); err != nil {
		return mapDaemonError(err)
	}
	return nil
}

// Characteristic I/O.

// ReadCharacteristic reads the characteristic's current value from the
// device and refreshes the cached value.
func (s *Session) ReadCharacteristic(ctx context.Context, id CharacteristicID) ([]byte, error) {
	info, path, err := s.checkCharacteristic(id)
	if err != nil {
		return nil, err
	}
	if !info.Flags.Read {
		return nil, fmt.Errorf("characteristic %s is not readable: %w", info.UUID, ErrNotSupported)
	}

	ctx, cancel := opCtx(ctx, s.opts.CallTimeout)
	defer cancel()

	var value []byte
	err = s.bus.Call(ctx, path, bus.GattCharacteristicIface, bus.ReadValueMethod,
		[]interface{}{bus.Properties{}}, &value)
	if err != nil {
		return nil, mapDaemonError(err)
	}

	s.cache.SetCharacteristicValue(id, value)
	return value, nil
}

// WriteCharacteristic writes value to the characteristic. With
// withResponse the call suspends until the device acknowledges; without,
// it returns once the daemon has enqueued the write, with no delivery
// guarantee.
func (s *Session) WriteCharacteristic(ctx context.Context, id CharacteristicID, value []byte, withResponse bool) error {
	info, path, err := s.checkCharacteristic(id)
	if err != nil {
		return err
	}

	writeType := "command"
	if withResponse {
		writeType = "request"
		if !info.Flags.Write {
			return fmt.Errorf("characteristic %s does not support write: %w", info.UUID, ErrNotSupported)
		}
	} else if !info.Flags.WriteWithoutResponse {
		return fmt.Errorf("characteristic %s does not support write-without-response: %w", info.UUID, ErrNotSupported)
	}

	ctx, cancel := opCtx(ctx, s.opts.CallTimeout)
	defer cancel()

	options := bus.Properties{"type": dbus.MakeVariant(writeType)}
	err = s.bus.Call(ctx, path, bus.GattCharacteristicIface, bus.WriteValueMethod,
		[]interface{}{value, options})
	if err != nil {
		return mapDaemonError(err)
	}
	return nil
}

// ReadDescriptor reads a descriptor's value from the device.
func (s *Session) ReadDescriptor(ctx context.Context, id DescriptorID) ([]byte, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	info, err := s.cache.Descriptor(id)
	if err != nil {
		return nil, mapCacheError(err)
	}
	if err := s.requireConnected(info.Device); err != nil {
		return nil, err
	}
	path, err := s.cache.Path(registry.ID(id))
	if err != nil {
		return nil, mapCacheError(err)
	}

	ctx, cancel := opCtx(ctx, s.opts.CallTimeout)
	defer cancel()

	var value []byte
	err = s.bus.Call(ctx, path, bus.GattDescriptorIface, bus.ReadValueMethod,
		[]interface{}{bus.Properties{}}, &value)
	if err != nil {
		return nil, mapDaemonError(err)
	}
	return value, nil
}

// WriteDescriptor writes a descriptor's value on the device.
func (s *Session) WriteDescriptor(ctx context.Context, id DescriptorID, value []byte) error {
	if err := s.guard(); err != nil {
		return err
	}
	info, err := s.cache.Descriptor(id)
	if err != nil {
		return mapCacheError(err)
	}
	if err := s.requireConnected(info.Device); err != nil {
		return err
	}
	path, err := s.cache.Path(registry.ID(id))
	if err != nil {
		return mapCacheError(err)
	}

	ctx, cancel := opCtx(ctx, s.opts.CallTimeout)
	defer cancel()

	err = s.bus.Call(ctx, path, bus.GattDescriptorIface, bus.WriteValueMethod,
		[]interface{}{value, bus.Properties{}})
	if err != nil {
		return mapDaemonError(err)
	}
	return nil
}

// Notifications.

// StartNotify subscribes to value-change notifications. Subscriptions are
// reference-counted per characteristic: concurrent callers share one
// daemon-side subscription.
func (s *Session) StartNotify(ctx context.Context, id CharacteristicID) error {
	info, path, err := s.checkCharacteristic(id)
	if err != nil {
		return err
	}
	if !info.Flags.Notify && !info.Flags.Indicate {
		return fmt.Errorf("characteristic %s does not support notifications: %w", info.UUID, ErrNotSupported)
	}

	ctx, cancel := opCtx(ctx, s.opts.CallTimeout)
	defer cancel()

	ref := s.lockNotifyRef(id)
	defer ref.mu.Unlock()

	if ref.count == 0 {
		err := s.bus.Call(ctx, path, bus.GattCharacteristicIface, bus.StartNotifyMethod, nil)
		if err != nil {
			return mapDaemonError(err)
		}
	}
	ref.count++
	return nil
}

// StopNotify releases one notification reference; the daemon subscription
// is torn down when the last reference goes. Stopping a characteristic
// that was never started is a no-op.
func (s *Session) StopNotify(ctx context.Context, id CharacteristicID) error {
	if err := s.guard(); err != nil {
		return err
	}

	s.notifyMu.Lock()
	ref, ok := s.notifyRefs[id]
	s.notifyMu.Unlock()
	if !ok {
		return nil
	}

	ctx, cancel := opCtx(ctx, s.opts.CallTimeout)
	defer cancel()

	ref.mu.Lock()
	defer ref.mu.Unlock()

	if !s.notifyRefLive(id, ref) {
		// Lost the race with the final teardown; the subscription this
		// handle referenced is already gone.
		return nil
	}
	if ref.count == 0 {
		return nil
	}
	ref.count--
	if ref.count > 0 {
		return nil
	}

	// Last reference gone: tear the daemon subscription down. A vanished
	// characteristic means the subscription died with the connection.
	path, err := s.cache.Path(registry.ID(id))
	if err != nil {
		s.dropNotifyRef(id)
		return nil
	}
	err = s.bus.Call(ctx, path, bus.GattCharacteristicIface, bus.StopNotifyMethod, nil)
	s.dropNotifyRef(id)
	if err != nil {
		if mapped := mapDaemonError(err); !errors.Is(mapped, ErrNotConnected) && !errors.Is(mapped, ErrNotFound) {
			return mapped
		}
	}
	return nil
}

func (s *Session) notifyRefFor(id CharacteristicID) *notifyRef {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	ref, ok := s.notifyRefs[id]
	if !ok {
		ref = &notifyRef{}
		s.notifyRefs[id] = ref
	}
	return ref
}

// lockNotifyRef returns the characteristic's current ref with its mutex
// held. A ref fetched before a concurrent final teardown is dropped from
// the map while we wait on its mutex, so it must be re-checked and
// re-fetched: incrementing such an orphan would strand a daemon-side
// subscription no StopNotify can ever reach.
func (s *Session) lockNotifyRef(id CharacteristicID) *notifyRef {
	for {
		ref := s.notifyRefFor(id)
		ref.mu.Lock()
		if s.notifyRefLive(id, ref) {
			return ref
		}
		ref.mu.Unlock()
	}
}

func (s *Session) notifyRefLive(id CharacteristicID, ref *notifyRef) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	return s.notifyRefs[id] == ref
}

func (s *Session) dropNotifyRef(id CharacteristicID) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	delete(s.notifyRefs, id)
}

// checkCharacteristic validates the identifier, the owning device's
// connection state, and resolves the daemon path.
func (s *Session) checkCharacteristic(id CharacteristicID) (CharacteristicInfo, dbus.ObjectPath, error) {
	if err := s.guard(); err != nil {
		return CharacteristicInfo{}, "", err
	}
	info, err := s.cache.Characteristic(id)
	if err != nil {
		return CharacteristicInfo{}, "", mapCacheError(err)
	}
	if err := s.requireConnected(info.Device); err != nil {
		return CharacteristicInfo{}, "", err
	}
	path, err := s.cache.Path(registry.ID(id))
	if err != nil {
		return CharacteristicInfo{}, "", mapCacheError(err)
	}
	return info, path, nil
}

func (s *Session) requireConnected(id DeviceID) error {
	connected, err := s.cache.DeviceConnected(id)
	if err != nil {
		return mapCacheError(err)
	}
	if !connected {
		return ErrNotConnected
	}
	return nil
}
