package hardware

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/kitchen-ops/internal/domain/hardware"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability"
)

// device is the shared state machine of the simulated peripherals.
type device struct {
	mu     sync.Mutex
	name   string
	status domain.Status
	subs   map[int]func(domain.Status)
	nextID int
	fail   error
	log    observability.Logger
}

func newDevice(name string, tel observability.Observability) *device {
	_, logger, _ := observability.Resolve(tel)
	return &device{
		name:   name,
		status: domain.Status{Device: name, State: domain.StateDisconnected, UpdatedAt: time.Now().UTC()},
		subs:   make(map[int]func(domain.Status)),
		log:    logger.With(observability.F("device", name)),
	}
}

func (d *device) Name() string { return d.name }

func (d *device) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.set(domain.StateReady, "")
	return nil
}

func (d *device) Test(ctx context.Context) error {
	return d.act(ctx, "test", nil)
}

func (d *device) Status() domain.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *device) Subscribe(fn func(domain.Status)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs, id)
	}
}

// FailNext makes the next primary action fail with err and leaves the device in error state.
func (d *device) FailNext(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

func (d *device) act(ctx context.Context, action string, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	state, fail := d.status.State, d.fail
	d.fail = nil
	d.mu.Unlock()

	if state == domain.StateDisconnected {
		return fmt.Errorf("%s %s: %w", d.name, action, domain.ErrNotConnected)
	}
	if fail != nil {
		d.set(domain.StateError, fail.Error())
		return fmt.Errorf("%s %s: %w", d.name, action, fail)
	}
	d.set(domain.StateBusy, action)
	if fn != nil {
		fn()
	}
	d.set(domain.StateReady, "")
	d.log.Debug("device_action", observability.F("action", action))
	return nil
}

func (d *device) set(state domain.State, msg string) {
	d.mu.Lock()
	d.status = domain.Status{Device: d.name, State: state, Message: msg, UpdatedAt: time.Now().UTC()}
	status := d.status
	subs := make([]func(domain.Status), 0, len(d.subs))
	for _, fn := range d.subs {
		subs = append(subs, fn)
	}
	d.mu.Unlock()

	for _, fn := range subs {
		fn(status)
	}
}

// Drawer is a simulated cash drawer.
type Drawer struct {
	*device
	mu    sync.Mutex
	opens int
}

func NewDrawer(tel observability.Observability) *Drawer {
	return &Drawer{device: newDevice("cash_drawer", tel)}
}

func (d *Drawer) Open(ctx context.Context) error {
	return d.act(ctx, "open", func() {
		d.mu.Lock()
		d.opens++
		d.mu.Unlock()
	})
}

func (d *Drawer) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Printer is a simulated receipt printer that keeps what it printed.
type Printer struct {
	*device
	mu      sync.Mutex
	printed []domain.Receipt
}

func NewPrinter(tel observability.Observability) *Printer {
	return &Printer{device: newDevice("receipt_printer", tel)}
}

func (p *Printer) Print(ctx context.Context, r domain.Receipt) error {
	return p.act(ctx, "print", func() {
		p.mu.Lock()
		p.printed = append(p.printed, r)
		p.mu.Unlock()
	})
}

func (p *Printer) Printed() []domain.Receipt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Receipt(nil), p.printed...)
}

// Scanner is a simulated barcode scanner fed through Feed.
type Scanner struct {
	*device
	codes chan string
}

func NewScanner(tel observability.Observability) *Scanner {
	return &Scanner{device: newDevice("barcode_scanner", tel), codes: make(chan string, 16)}
}

// Feed queues a code for the next Scan.
func (s *Scanner) Feed(code string) { s.codes <- code }

func (s *Scanner) Scan(ctx context.Context) (string, error) {
	if st := s.Status(); st.State == domain.StateDisconnected {
		return "", fmt.Errorf("%s scan: %w", s.name, domain.ErrNotConnected)
	}
	select {
	case code := <-s.codes:
		return code, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

var (
	_ domain.Drawer  = (*Drawer)(nil)
	_ domain.Printer = (*Printer)(nil)
	_ domain.Scanner = (*Scanner)(nil)
)
