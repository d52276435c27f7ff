package host

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/funvibe/shadevm/internal/vm"
)

// Shade runs prog over a w by ht grid of the scene's surface: the Init
// segment, then the parameter overrides, then the main code. setup is
// applied to the VM before anything runs.
func (h *Host) Shade(ctx context.Context, prog *vm.Program, w, ht int, params map[string]Value, setup ...func(*vm.VM)) (*vm.VM, error) {
	return shade(ctx, h, h.scene, prog, w, ht, params, setup)
}

func shade(ctx context.Context, vh vm.Host, scene *Scene, prog *vm.Program, w, ht int, params map[string]Value, setup []func(*vm.VM)) (*vm.VM, error) {
	m := vm.New(prog, vh)
	for _, s := range setup {
		s(m)
	}
	if err := m.Initialise(w, ht); err != nil {
		return nil, err
	}
	if err := m.ExecuteInitContext(ctx); err != nil {
		return m, fmt.Errorf("%s init: %w", prog.Name, err)
	}
	if err := ApplyParams(m, params); err != nil {
		return m, err
	}
	if err := scene.BindGrid(m); err != nil {
		return m, err
	}
	if err := m.ExecuteContext(ctx); err != nil {
		return m, fmt.Errorf("%s: %w", prog.Name, err)
	}
	return m, nil
}

// Session answers queries from the same scene and lights as its Host but
// keeps its own reports, so one request's warnings stay with it.
type Session struct {
	*Host

	mu      sync.Mutex
	reports []error
}

var _ vm.Host = (*Session)(nil)

func (h *Host) Session() *Session { return &Session{Host: h} }

func (s *Session) Report(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, err)
}

func (s *Session) Reports() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.reports)
}

// Shade is Host.Shade with reports going to the session.
func (s *Session) Shade(ctx context.Context, prog *vm.Program, w, ht int, params map[string]Value, setup ...func(*vm.VM)) (*vm.VM, error) {
	return shade(ctx, s, s.scene, prog, w, ht, params, setup)
}
