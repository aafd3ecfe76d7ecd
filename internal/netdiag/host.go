package netdiag

import (
	"context"
	"net"
	"strings"
	"time"

	"hostwatch/internal/addrutil"
	"hostwatch/internal/model"
	"hostwatch/internal/telemetry"
)

// Prober is the subset of the status client used by CheckHost.
type Prober interface {
	Health(ctx context.Context, hostname string) (bool, error)
	Status(ctx context.Context, hostname string) (model.HostRecord, error)
}

// Check is the result of one probe.
type Check struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Detail  string        `json:"detail,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// HostReport collects the checks run against one host.
type HostReport struct {
	Hostname string  `json:"hostname"`
	Checks   []Check `json:"checks"`
}

// OK reports whether every check passed.
func (r HostReport) OK() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

// CheckHost resolves hostname and probes its health, status and telemetry
// stream once.
func CheckHost(ctx context.Context, prober Prober, dialer telemetry.Dialer, hostname string) HostReport {
	report := HostReport{Hostname: hostname}

	start := time.Now()
	addrs, err := net.DefaultResolver.LookupHost(ctx, addrutil.Host(hostname))
	c := Check{Name: "resolve", OK: err == nil, Detail: strings.Join(addrs, " "), Elapsed: time.Since(start)}
	if err != nil {
		c.Detail = err.Error()
	}
	report.Checks = append(report.Checks, c)

	start = time.Now()
	healthy, err := prober.Health(ctx, hostname)
	c = Check{Name: "health", OK: err == nil && healthy, Elapsed: time.Since(start)}
	if err != nil {
		c.Detail = err.Error()
	}
	report.Checks = append(report.Checks, c)

	start = time.Now()
	rec, err := prober.Status(ctx, hostname)
	c = Check{Name: "status", OK: err == nil, Elapsed: time.Since(start)}
	if err != nil {
		c.Detail = err.Error()
	} else if rec.IP != "" {
		c.Detail = "ip " + rec.IP
	}
	report.Checks = append(report.Checks, c)

	start = time.Now()
	url := addrutil.WSURL(hostname, addrutil.StreamPath)
	conn, err := dialer.Dial(ctx, url)
	c = Check{Name: "stream", OK: err == nil, Detail: url, Elapsed: time.Since(start)}
	if err != nil {
		c.Detail = err.Error()
	} else {
		_ = conn.Close()
	}
	report.Checks = append(report.Checks, c)

	return report
}
