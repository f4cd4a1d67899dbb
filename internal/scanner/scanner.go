package scanner

import (
	"context"
	"fmt"

	"TuxLetter/internal/domain"
)

// Result is what a single scanner run produced.
type Result struct {
	Items []domain.Item
	// BotChallenges counts anti-bot interstitials met during this run.
	// Scanners that never see one leave it at zero.
	BotChallenges int
}

// Scanner captures a single source (mailing list, news site).
type Scanner interface {
	Name() string
	Scan(ctx context.Context) (Result, error)
}

// Registry keeps scanners in registration order.
type Registry struct {
	order    []string
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds a scanner or replaces the one with the same name, keeping
// its original position.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	name := scanner.Name()
	if _, ok := r.scanners[name]; !ok {
		r.order = append(r.order, name)
	}
	r.scanners[name] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// All returns every scanner in registration order.
func (r *Registry) All() []Scanner {
	all := make([]Scanner, 0, len(r.order))
	for _, name := range r.order {
		all = append(all, r.scanners[name])
	}
	return all
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
