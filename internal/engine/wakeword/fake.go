package wakeword

// Fake is a deterministic wake-word detector for tests: it fires once
// TriggerAfter frames have been processed, then stays quiet until Reset.
type Fake struct {
	ModelID      string
	TriggerAfter int
	seen         int
	fired        bool
}

func NewFake(modelID string, triggerAfter int) *Fake {
	return &Fake{ModelID: modelID, TriggerAfter: triggerAfter}
}

func (f *Fake) Name() string { return f.ModelID }

func (f *Fake) ProcessStreaming(frame []byte) (bool, error) {
	f.seen++
	if !f.fired && f.seen >= f.TriggerAfter {
		f.fired = true
		return true, nil
	}
	return false, nil
}

func (f *Fake) Reset() {
	f.seen = 0
	f.fired = false
}

func (f *Fake) Close() error { return nil }
