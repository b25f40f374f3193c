package waf

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

const challengeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

// AcquireOptions controls the one-time barrier cookie acquisition
type AcquireOptions struct {
	TargetURL string
	Proxy     string
	Headless  bool
	Settle    time.Duration
}

// Acquire drives a real browser through the challenge page and returns the
// barrier cookies it minted. There is no cancellation path once the
// challenge is underway beyond ctx; the caller runs this to completion
// before any account processing. A nil set with an error means the run
// should continue degraded, not abort.
func Acquire(ctx context.Context, opts AcquireOptions, log *zap.Logger) (CookieSet, error) {
	userDataDir, err := os.MkdirTemp("", "tokenctl-waf-*")
	if err != nil {
		return nil, fmt.Errorf("temp profile dir: %w", err)
	}
	defer os.RemoveAll(userDataDir)

	l := launcher.New().
		Headless(opts.Headless).
		UserDataDir(userDataDir).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-web-security").
		Set("disable-features", "VizDisplayCompositor").
		NoSandbox(true)
	if opts.Proxy != "" {
		l = l.Proxy(opts.Proxy)
	}
	defer l.Cleanup()

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.NetworkSetUserAgentOverride{UserAgent: challengeUserAgent}).Call(page); err != nil {
		log.Warn("set user agent failed", zap.Error(err))
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1.0,
	}).Call(page); err != nil {
		log.Warn("set viewport failed", zap.Error(err))
	}

	log.Info("visiting challenge page", zap.String("url", opts.TargetURL))
	if err := page.Navigate(opts.TargetURL); err != nil {
		return nil, fmt.Errorf("navigate challenge page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		log.Warn("challenge page load wait failed, reading cookies anyway", zap.Error(err))
	}

	// The barrier script sets its cookies shortly after load; give it a
	// short idle-settle window rather than waiting on any specific element.
	select {
	case <-time.After(opts.Settle):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	cookies, err := page.Cookies([]string{})
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}

	set := CookieSet{}
	for _, c := range cookies {
		for _, name := range RequiredCookies {
			if c.Name == name && c.Value != "" {
				set[name] = c.Value
			}
		}
	}

	var missing []string
	for _, name := range RequiredCookies {
		if _, ok := set[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		log.Warn("some barrier cookies were not minted", zap.Strings("missing", missing))
	}
	log.Info("barrier cookies acquired", zap.Int("count", len(set)))

	return set, nil
}
