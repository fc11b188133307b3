package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smazurov/mediadevice/internal/devices"
	"github.com/smazurov/mediadevice/internal/logging"
	"github.com/smazurov/mediadevice/internal/permission"
	"github.com/smazurov/mediadevice/internal/pipeline/synthetic"
	"github.com/smazurov/mediadevice/internal/session"
)

// localStack is the in-process device stack used by the one-shot commands.
// Permission is always granted: running the command is the user's consent.
type localStack struct {
	registry *devices.Registry
	gate     *permission.Gate
	sessions *session.Manager
}

func initCommandLogging(verbose bool) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logging.Initialize(logging.Config{Level: level, Format: "text"})
}

func newLocalStack(ctx context.Context, catalogFile string) (*localStack, error) {
	catalog := synthetic.DefaultCatalog()
	if catalogFile != "" {
		loaded, err := synthetic.LoadCatalog(catalogFile)
		if err != nil {
			return nil, err
		}
		catalog = loaded
	}
	backend := synthetic.New(catalog, logging.GetLogger("pipeline"))

	registry := devices.NewRegistry(&devices.Options{
		Discoverer: backend,
		Logger:     logging.GetLogger("devices"),
	})
	if err := registry.Init(ctx); err != nil {
		return nil, err
	}

	authorizer, err := permission.NewPolicyAuthorizer(permission.PolicyAllow, permission.PolicyAllow, 0)
	if err != nil {
		registry.Close()
		return nil, err
	}
	gate := permission.NewGate(&permission.Options{
		Authorizer: authorizer,
		Logger:     logging.GetLogger("permission"),
	})

	sessions := session.NewManager(&session.Options{
		Registry:     registry,
		Backend:      backend,
		Gate:         gate,
		DrainTimeout: 2 * time.Second,
		Logger:       logging.GetLogger("session"),
		OnError: func(deviceID string, err error) {
			logging.GetLogger("session").Error("Capture error", "device_id", deviceID, "error", err)
		},
	})

	return &localStack{registry: registry, gate: gate, sessions: sessions}, nil
}

func (s *localStack) Close() {
	s.sessions.StopAll()
	s.gate.Close()
	s.registry.Close()
}

// grant requests permission for kind and fails if it is denied.
func (s *localStack) grant(ctx context.Context, kind devices.Kind) error {
	granted, err := s.gate.RequestAndWait(ctx, kind)
	if err != nil {
		return err
	}
	if !granted {
		return fmt.Errorf("%s permission denied", kind)
	}
	return nil
}

// pick returns a handle to the device named by selector (ID, name or
// catalog key, case-insensitive for names), or to the first device
// matching criteria when selector is empty. The caller releases it.
func (s *localStack) pick(selector string, criteria ...devices.Criterion) (devices.Handle, devices.Info, error) {
	q := devices.NewQuery(s.registry, criteria...)
	defer q.Close()

	for i := 0; i < q.Count(); i++ {
		h, info, ok := q.At(i)
		if !ok {
			continue
		}
		if selector != "" && !s.matches(h, info, selector) {
			continue
		}
		// The query's handle goes away with Close; take our own.
		own, err := s.registry.Lookup(info.ID)
		if err != nil {
			return 0, devices.Info{}, err
		}
		return own, info, nil
	}

	if selector != "" {
		return 0, devices.Info{}, fmt.Errorf("no matching device %q", selector)
	}
	return 0, devices.Info{}, fmt.Errorf("no matching device")
}

func (s *localStack) matches(h devices.Handle, info devices.Info, selector string) bool {
	if info.ID == selector || strings.EqualFold(info.Name, selector) {
		return true
	}
	desc, err := s.registry.Descriptor(h)
	return err == nil && desc.Key == selector
}
