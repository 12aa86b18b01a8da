package bufpool

import "testing"

func TestGetReturnsFullBuffer(t *testing.T) {
	buf := Get()
	defer Put(buf)
	if len(buf) != CopySize {
		t.Errorf("len(Get()) = %d, want %d", len(buf), CopySize)
	}
}

func TestPutDiscardsUndersized(t *testing.T) {
	Put(make([]byte, 16))
	if got := Get(); len(got) != CopySize {
		t.Errorf("len(Get()) after undersized Put = %d, want %d", len(got), CopySize)
	}
}

func TestReuse(t *testing.T) {
	buf := Get()
	buf[0] = 0xAB
	Put(buf)
	// A reused buffer must come back at full length regardless of what the
	// previous holder did with it.
	again := Get()
	defer Put(again)
	if len(again) != CopySize {
		t.Errorf("len(Get()) = %d, want %d", len(again), CopySize)
	}
}
