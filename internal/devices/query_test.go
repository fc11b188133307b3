package devices

import "testing"

func TestQueryCriteria(t *testing.T) {
	reg, _ := newTestRegistry(t, backCamera(), frontCamera(), microphone(), usbMicrophone())

	tests := []struct {
		name     string
		criteria []Criterion
		want     []string
	}{
		{"all", nil, []string{"Back Camera", "Front Camera", "Built-in Microphone", "USB Microphone"}},
		{"cameras", []Criterion{Cameras}, []string{"Back Camera", "Front Camera"}},
		{"front", []Criterion{FrontCamera}, []string{"Front Camera"}},
		{"rear", []Criterion{RearCamera}, []string{"Back Camera"}},
		{"torch", []Criterion{TorchCapable}, []string{"Back Camera"}},
		{"echo", []Criterion{EchoCancellationCapable}, []string{"Built-in Microphone"}},
		{"external", []Criterion{ExternalDevices}, []string{"USB Microphone"}},
		{"internal mics", []Criterion{InternalDevices, Microphones}, []string{"Built-in Microphone"}},
		{"any", []Criterion{Any(FrontCamera, ExternalDevices)}, []string{"Front Camera", "USB Microphone"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQuery(reg, tt.criteria...)
			defer q.Close()

			if q.Count() != len(tt.want) {
				t.Fatalf("count = %d, want %d", q.Count(), len(tt.want))
			}
			for i, name := range tt.want {
				_, info, ok := q.At(i)
				if !ok || info.Name != name {
					t.Errorf("At(%d) = %q, want %q", i, info.Name, name)
				}
			}
		})
	}
}

func TestQueryAdvanceWraps(t *testing.T) {
	reg, _ := newTestRegistry(t, backCamera(), frontCamera())

	q := NewQuery(reg, Cameras)
	defer q.Close()

	_, first, _ := q.Current()
	q.Advance()
	_, second, _ := q.Current()
	q.Advance()
	_, again, _ := q.Current()

	if first.Name == second.Name {
		t.Error("Advance did not move the cursor")
	}
	if again.Name != first.Name {
		t.Errorf("cursor did not wrap: %q", again.Name)
	}
}

func TestQueryCloseReleasesHandles(t *testing.T) {
	reg, _ := newTestRegistry(t, backCamera())

	q := NewQuery(reg)
	h, _, _ := q.At(0)
	q.Close()

	if _, err := reg.Name(h); !IsCode(err, ErrCodeInvalidHandle) {
		t.Errorf("query handle still valid after Close: %v", err)
	}
	if _, _, ok := q.Current(); ok {
		t.Error("Current after Close reported a device")
	}
}

func TestFlagsNamesRoundTrip(t *testing.T) {
	f := FlagInternal | FlagTorchSupported | FlagFocusLockSupported
	parsed, err := ParseFlags(f.Names())
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if parsed != f {
		t.Errorf("ParseFlags(Names()) = %s, want %s", parsed, f)
	}
	if _, err := ParseFlags([]string{"laser"}); !IsCode(err, ErrCodeInvalidArgument) {
		t.Errorf("unknown flag error = %v", err)
	}
	if FlagWhiteBalanceLockSupported != 1<<13 || FlagFrontFacing != 64 {
		t.Error("flag bit positions changed")
	}
}
