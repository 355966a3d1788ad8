package metrics

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once    sync.Once
	pending []prometheus.Collector
)

// register queues collectors from each file's init().
func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// RegisterWith registers every queued collector with reg. Only the first call
// has any effect; collectors already present in reg are skipped.
func RegisterWith(reg prometheus.Registerer) error {
	var err error
	once.Do(func() {
		for _, c := range pending {
			if e := reg.Register(c); e != nil {
				var dup prometheus.AlreadyRegisteredError
				if !errors.As(e, &dup) {
					err = errors.Join(err, e)
				}
			}
		}
	})
	return err
}

// MustRegister registers with the default registry and panics on conflict.
func MustRegister() {
	if err := RegisterWith(prometheus.DefaultRegisterer); err != nil {
		panic(err)
	}
}

// label normalizes a label value; empty becomes "unknown".
func label(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}
