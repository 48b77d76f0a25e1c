package provision

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varka/xmpp/jid"
	"github.com/varka/xmpp/service"
)

// FinaliseTimeout bounds how long Finalise waits for outstanding
// teardown work when the caller's context carries no deadline.
const FinaliseTimeout = 10 * time.Second

// Account is a set of credentials handed out by a provisioner.
type Account struct {
	JID      jid.JID
	Password string
}

// Provisioner acquires and releases test accounts against a server.
//
// The lifecycle is Configure, Initialise, then any number of
// GetAccount/Teardown rounds, and finally Finalise.
type Provisioner interface {
	// Configure applies the configuration block. It must be called
	// before Initialise.
	Configure(sec *Section) error
	// Initialise performs one-time setup against the server.
	Initialise(ctx context.Context) error
	// GetAccount acquires a fresh account. Every call yields a
	// distinct account, concurrent calls included.
	GetAccount(ctx context.Context) (*Account, error)
	// Teardown releases all accounts acquired since the last call.
	// Individual release failures do not stop the remaining
	// releases.
	Teardown(ctx context.Context) error
	// Finalise releases any remaining state. The wait is bounded:
	// if ctx has no deadline, FinaliseTimeout applies.
	Finalise(ctx context.Context) error
	// HasQuirk reports whether the configured server exhibits the
	// given quirk.
	HasQuirk(q Quirk) bool
}

// ReleaseFunc releases one previously acquired account.
type ReleaseFunc func(ctx context.Context, acc *Account) error

// AnonymousProvisioner hands out throwaway accounts with generated
// local parts. The server is expected to accept them via anonymous
// authentication, so releasing an account has no server side unless a
// Release hook is installed.
type AnonymousProvisioner struct {
	// Release, if set, is invoked once per account during Teardown
	// and Finalise.
	Release ReleaseFunc

	log zerolog.Logger

	mu       sync.Mutex
	sec      *Section
	security *SecurityLayer
	quirks   map[Quirk]bool
	active   map[string]*Account
}

// NewAnonymousProvisioner builds an unconfigured provisioner.
func NewAnonymousProvisioner(log zerolog.Logger) *AnonymousProvisioner {
	return &AnonymousProvisioner{
		log:    log.With().Str("provisioner", "anonymous").Logger(),
		active: map[string]*Account{},
	}
}

// Configure implements Provisioner.
func (p *AnonymousProvisioner) Configure(sec *Section) error {
	if sec.Host == "" {
		return errors.New("provision config: host is required")
	}
	quirks, err := ExpandQuirks(sec.Quirks)
	if err != nil {
		return err
	}
	security, err := SecurityFromSection(sec)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sec = sec
	p.quirks = quirks
	p.security = security
	return nil
}

// Initialise implements Provisioner.
func (p *AnonymousProvisioner) Initialise(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sec == nil {
		return errors.New("provisioner not configured")
	}
	p.log.Info().Str("host", p.sec.Host).Int("quirks", len(p.quirks)).
		Msg("provisioner initialised")
	return nil
}

// Security returns the verification settings derived from the
// configuration.
func (p *AnonymousProvisioner) Security() *SecurityLayer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.security
}

// HasQuirk implements Provisioner.
func (p *AnonymousProvisioner) HasQuirk(q Quirk) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quirks[q]
}

// GetAccount implements Provisioner.
func (p *AnonymousProvisioner) GetAccount(ctx context.Context) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sec == nil {
		return nil, errors.New("provisioner not configured")
	}
	local := uuid.NewString()
	acc := &Account{
		JID:      jid.JID{Local: local, Domain: p.sec.Host},
		Password: uuid.NewString(),
	}
	p.active[local] = acc
	p.log.Debug().Str("jid", acc.JID.String()).Msg("account provisioned")
	return acc, nil
}

// Teardown implements Provisioner. All active accounts are released
// concurrently and failures are collected into a single aggregate.
func (p *AnonymousProvisioner) Teardown(ctx context.Context) error {
	p.mu.Lock()
	batch := p.active
	p.active = map[string]*Account{}
	release := p.Release
	p.mu.Unlock()

	if len(batch) == 0 || release == nil {
		return nil
	}

	var (
		wg   sync.WaitGroup
		emu  sync.Mutex
		errs *service.TeardownError
	)
	for _, acc := range batch {
		acc := acc
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := release(ctx, acc); err != nil {
				p.log.Warn().Err(err).Str("jid", acc.JID.String()).
					Msg("account release failed")
				emu.Lock()
				errs = appendRelease(errs, acc, err)
				emu.Unlock()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "teardown")
	}
	if errs != nil {
		return errs
	}
	return nil
}

func appendRelease(agg *service.TeardownError, acc *Account, err error) *service.TeardownError {
	if agg == nil {
		agg = &service.TeardownError{}
	}
	agg.Errs = append(agg.Errs, errors.Wrapf(err, "release %s", acc.JID))
	return agg
}

// Finalise implements Provisioner. It tears down remaining accounts,
// bounded by the context deadline or FinaliseTimeout.
func (p *AnonymousProvisioner) Finalise(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, FinaliseTimeout)
		defer cancel()
	}
	err := p.Teardown(ctx)
	p.log.Info().Msg("provisioner finalised")
	return err
}
