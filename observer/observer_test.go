package observer

import (
	"errors"
	"testing"
)

func TestSubscribeFunc_Subscribe(t *testing.T) {
	var got []int
	src := SubscribeFunc[int](func(o Observer[int]) {
		for i := 1; i <= 3; i++ {
			if err := o.OnNext(i); err != nil {
				return
			}
		}
		_ = o.OnComplete()
	})

	completed := false
	src.Subscribe(Funcs[int]{
		Next: func(v int) error {
			got = append(got, v)
			return nil
		},
		Complete: func() error {
			completed = true
			return nil
		},
	})

	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("values = %v, want [1 2 3]", got)
	}
	if !completed {
		t.Error("expected completion")
	}
}

func TestFuncs_NilCallbacks(t *testing.T) {
	var o Observer[string] = Funcs[string]{}
	if err := o.OnNext("x"); err != nil {
		t.Errorf("OnNext = %v, want nil", err)
	}
	if err := o.OnError(errors.New("boom")); err != nil {
		t.Errorf("OnError = %v, want nil", err)
	}
	if err := o.OnComplete(); err != nil {
		t.Errorf("OnComplete = %v, want nil", err)
	}
}

func TestSubscribeFunc_StopsOnObserverError(t *testing.T) {
	stop := errors.New("stop")
	delivered := 0
	SubscribeFunc[int](func(o Observer[int]) {
		for i := range 10 {
			if err := o.OnNext(i); err != nil {
				return
			}
		}
	}).Subscribe(Funcs[int]{
		Next: func(int) error {
			delivered++
			if delivered == 2 {
				return stop
			}
			return nil
		},
	})

	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
}
