package data

import "sync"

type GenericFactory[ParamT, ResultT any] interface {
	Get(param ParamT) ResultT
}

// MemoizingFactory creates values on demand and remembers them, so that asking again for the
// same parameter gives the same value. It is safe for concurrent use.
type MemoizingFactory[ParamT comparable, ResultT any] struct {
	factoryFn func(ParamT) ResultT
	cache     map[ParamT]ResultT
	lock      sync.Mutex
}

func NewMemoizingFactory[P comparable, R any](factoryFn func(P) R) *MemoizingFactory[P, R] {
	return &MemoizingFactory[P, R]{factoryFn: factoryFn}
}

// Create always makes a new value, replacing any remembered one for the same parameter.
func (f *MemoizingFactory[P, R]) Create(param P) R {
	item := f.factoryFn(param)
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.cache == nil {
		f.cache = make(map[P]R)
	}
	f.cache[param] = item
	return item
}

func (f *MemoizingFactory[P, R]) Get(param P) R {
	f.lock.Lock()
	defer f.lock.Unlock()
	if item, ok := f.cache[param]; ok {
		return item
	}
	if f.cache == nil {
		f.cache = make(map[P]R)
	}
	item := f.factoryFn(param)
	f.cache[param] = item
	return item
}
