//go:build linux || darwin

package corofiber

import "testing"

func TestRoundUpPage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   uintptr
		want uintptr
	}{
		{"zero rounds to one page", 0, pageSize},
		{"exact page unchanged", pageSize, pageSize},
		{"one byte over rounds up", pageSize + 1, 2 * pageSize},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if got := roundUpPage(c.in); got != c.want {
				t.Errorf("roundUpPage(%d) = %d, want %d", c.in, got, c.want)
			}
		})
	}
}

func TestFiberStack_NewAndRelease(t *testing.T) {
	t.Parallel()

	s, err := newFiberStack(4*pageSize, 64)
	if err != nil {
		t.Fatalf("newFiberStack: %v", err)
	}
	if s.size != 4*pageSize {
		t.Errorf("size = %d, want %d", s.size, 4*pageSize)
	}
	if got := s.committedBytes(); got != pageSize {
		t.Errorf("committedBytes() = %d, want %d (only top page committed initially)", got, pageSize)
	}

	if err := s.release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	// release is idempotent.
	if err := s.release(); err != nil {
		t.Fatalf("second release: %v", err)
	}
}

func TestFiberStack_TouchGrows(t *testing.T) {
	t.Parallel()

	s, err := newFiberStack(4*pageSize, 0)
	if err != nil {
		t.Fatalf("newFiberStack: %v", err)
	}
	defer s.release()

	target := s.area + pageSize // one page above the permanent guard page
	if err := s.touch(target); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if got, want := s.committedBytes(), s.size-pageSize; got != want {
		t.Errorf("committedBytes() after touch = %d, want %d", got, want)
	}
}

func TestFiberStack_TouchRejectsGuardPage(t *testing.T) {
	t.Parallel()

	s, err := newFiberStack(4*pageSize, 0)
	if err != nil {
		t.Fatalf("newFiberStack: %v", err)
	}
	defer s.release()

	if err := s.touch(s.area); err == nil {
		t.Error("touch into the bottommost guard page should fail")
	}
}

func TestFiberStack_TouchRejectsBelowArea(t *testing.T) {
	t.Parallel()

	s, err := newFiberStack(4*pageSize, 0)
	if err != nil {
		t.Fatalf("newFiberStack: %v", err)
	}
	defer s.release()

	if err := s.touch(s.area - pageSize); err == nil {
		t.Error("touch below the reservation's base should fail, not underflow into acceptance")
	}
}

func TestFiberStack_TouchRejectsAboveLower(t *testing.T) {
	t.Parallel()

	s, err := newFiberStack(4*pageSize, 0)
	if err != nil {
		t.Fatalf("newFiberStack: %v", err)
	}
	defer s.release()

	if err := s.touch(s.lower + pageSize); err == nil {
		t.Error("touch at or above the already-committed lower bound should fail")
	}
}
