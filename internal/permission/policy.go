package permission

import (
	"context"
	"fmt"
	"time"

	"github.com/smazurov/mediadevice/internal/devices"
)

// Policy values accepted by PolicyAuthorizer.
const (
	PolicyAllow = "allow"
	PolicyDeny  = "deny"
)

// PolicyAuthorizer answers requests from static per-kind policy, after an
// optional delay that stands in for a user prompt.
type PolicyAuthorizer struct {
	camera     bool
	microphone bool
	delay      time.Duration
}

// NewPolicyAuthorizer validates the policies and builds an authorizer.
func NewPolicyAuthorizer(camera, microphone string, delay time.Duration) (*PolicyAuthorizer, error) {
	cam, err := parsePolicy(camera)
	if err != nil {
		return nil, fmt.Errorf("camera policy: %w", err)
	}
	mic, err := parsePolicy(microphone)
	if err != nil {
		return nil, fmt.Errorf("microphone policy: %w", err)
	}
	return &PolicyAuthorizer{camera: cam, microphone: mic, delay: delay}, nil
}

// Authorize implements Authorizer.
func (p *PolicyAuthorizer) Authorize(ctx context.Context, kind devices.Kind) (bool, error) {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	switch kind {
	case devices.KindCamera:
		return p.camera, nil
	case devices.KindMicrophone:
		return p.microphone, nil
	default:
		return false, fmt.Errorf("unknown kind %s", kind)
	}
}

func parsePolicy(s string) (bool, error) {
	switch s {
	case PolicyAllow, "":
		return true, nil
	case PolicyDeny:
		return false, nil
	default:
		return false, fmt.Errorf("unknown policy %q (want %q or %q)", s, PolicyAllow, PolicyDeny)
	}
}
