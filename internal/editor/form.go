package editor

import (
	"net/url"
	"strings"
	"sync"

	"adline/internal/domain"
)

type FormState string

const (
	FormIdle    FormState = "idle"
	FormInvalid FormState = "invalid"
)

// FormMachine tracks an ad form: every change re-enters idle, Validate may
// move it to invalid.
type FormMachine struct {
	mu       sync.Mutex
	state    FormState
	ad       domain.Ad
	problems []string
	onChange func(domain.Ad)
}

func NewForm(ad domain.Ad, onChange func(domain.Ad)) *FormMachine {
	return &FormMachine{state: FormIdle, ad: ad, onChange: onChange}
}

func (f *FormMachine) Change(p domain.AdPatch) domain.Ad {
	f.mu.Lock()
	f.ad = f.ad.Apply(p)
	f.state = FormIdle
	f.problems = nil
	ad := f.ad
	f.mu.Unlock()
	if f.onChange != nil {
		f.onChange(ad)
	}
	return ad
}

// Validate reports the form problems and moves to invalid when there are any.
func (f *FormMachine) Validate() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.problems = Problems(f.ad)
	if len(f.problems) > 0 {
		f.state = FormInvalid
	} else {
		f.state = FormIdle
	}
	return append([]string(nil), f.problems...)
}

func (f *FormMachine) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FormMachine) Ad() domain.Ad {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ad
}

// Problems lists what keeps an ad from being saved.
func Problems(ad domain.Ad) []string {
	var out []string
	if strings.TrimSpace(ad.Title) == "" {
		out = append(out, "title is required")
	}
	if strings.TrimSpace(ad.URL) == "" {
		out = append(out, "url is required")
	} else if u, err := url.Parse(ad.URL); err != nil || u.Scheme == "" || u.Host == "" {
		out = append(out, "url must be absolute")
	}
	if ad.Age < 0 {
		out = append(out, "age must not be negative")
	}
	if ad.Stake.IsNegative() {
		out = append(out, "stake must not be negative")
	}
	return out
}
