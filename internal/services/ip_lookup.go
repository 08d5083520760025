package services

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sjperalta/eventra-api/internal/config"
)

// IPLookup resolves the caller's public address. Attribution is best-effort:
// callers fall back to models.UnknownIP when the lookup fails or times out.
type IPLookup interface {
	LookupCallerIP(ctx context.Context) (string, error)
}

type ipLookupService struct {
	client   *http.Client
	endpoint string
	timeout  time.Duration
}

// NewIPLookupService creates an IP lookup backed by a plain-text echo
// endpoint (ipify-style)
func NewIPLookupService(cfg *config.Config) IPLookup {
	timeout := time.Duration(cfg.IPLookupTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ipLookupService{
		client:   &http.Client{Timeout: timeout},
		endpoint: cfg.IPLookupURL,
		timeout:  timeout,
	}
}

func (s *ipLookupService) LookupCallerIP(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", err
	}

	ip := strings.TrimSpace(string(body))
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("ip lookup returned invalid address: %q", ip)
	}

	return ip, nil
}
