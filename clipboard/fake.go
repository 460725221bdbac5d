package clipboard

import "sync"

// Fake records writes in memory. Err, when set, fails every Copy.
type Fake struct {
	Err error

	mu     sync.Mutex
	writes []string
}

func (f *Fake) Copy(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.writes = append(f.writes, text)
	return nil
}

func (f *Fake) Last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return ""
	}
	return f.writes[len(f.writes)-1]
}

func (f *Fake) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}
