package service

// Aggregate is the derived health summary. It is computed on demand and
// used only for presentation, never for control decisions.
type Aggregate int

const (
	Stopped Aggregate = iota
	Running
	Degraded
)

func (a Aggregate) String() string {
	switch a {
	case Stopped:
		return "Stopped"
	case Running:
		return "Running"
	default:
		return "Degraded"
	}
}

// ServiceHealth is one service's probed liveness.
type ServiceHealth struct {
	Name  string
	Alive bool
}

// Health maps each registered service to liveness plus the resolved network
// identity at probe time.
type Health struct {
	Host     string // mesh DNS name or IP, "" when not connected
	IP       string
	DNSName  string
	Services []ServiceHealth // registry order
}

// Aggregate derives the three-state summary: Stopped when nothing is alive,
// Running when everything is alive and identity resolved, else Degraded.
func (h Health) Aggregate() Aggregate {
	alive := 0
	for _, s := range h.Services {
		if s.Alive {
			alive++
		}
	}
	switch {
	case alive == 0:
		return Stopped
	case alive == len(h.Services) && h.IP != "":
		return Running
	default:
		return Degraded
	}
}

// Down returns the names of dead services, registry order.
func (h Health) Down() []string {
	var out []string
	for _, s := range h.Services {
		if !s.Alive {
			out = append(out, s.Name)
		}
	}
	return out
}

// AnyAlive reports whether at least one service is alive.
func (h Health) AnyAlive() bool {
	for _, s := range h.Services {
		if s.Alive {
			return true
		}
	}
	return false
}
