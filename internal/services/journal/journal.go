// Package journal fans report cycle summaries out to their sinks.
package journal

import (
	"github.com/vshulcz/zbxreporter/internal/domain"
	"github.com/vshulcz/zbxreporter/pkg/observer"
)

// Observer receives cycle summaries.
type Observer = observer.Observer[domain.Cycle]

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc = observer.ObserverFunc[domain.Cycle]

// Publisher broadcasts cycle summaries.
type Publisher = observer.Publisher[domain.Cycle]

// Subject fans out cycle summaries to registered observers.
type Subject = observer.Subject[domain.Cycle]

// NewSubject creates a subject optionally pre-populated with observers.
func NewSubject(observers ...Observer) *Subject {
	return observer.NewSubject[domain.Cycle](observers...)
}
