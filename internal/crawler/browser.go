package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sjsage522/blogworker/logger"
	"sjsage522/blogworker/pkg/errors"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// hideWebdriverJS runs before any page script
const hideWebdriverJS = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

const acceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"

// rodSession drives a local Chrome through rod
type rodSession struct {
	cfg       CrawlerConfig
	extractor *Extractor
	pause     PauseFunc
	now       func() time.Time
	log       *logger.Logger

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	releaseOnce sync.Once
}

// NewRodLauncher returns a SessionLauncher starting a stealth Chrome per session
func NewRodLauncher(cfg CrawlerConfig, pause PauseFunc) SessionLauncher {
	if pause == nil {
		pause = RandomPause(cfg.PauseMin, cfg.PauseMax)
	}
	return func(ctx context.Context) (Session, error) {
		s := &rodSession{
			cfg:       cfg,
			extractor: NewExtractor(cfg.BaseURL, cfg.Selectors.Operations),
			pause:     pause,
			now:       time.Now,
			log:       logger.ForBrowser().WithField("provider", cfg.Provider),
		}
		if err := s.acquire(ctx); err != nil {
			s.Release()
			return nil, err
		}
		return s, nil
	}
}

func (s *rodSession) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.NewSessionInit(s.cfg.Provider, "context done before launch", err)
	}

	bc := s.cfg.Browser
	l := launcher.New().
		Headless(bc.Headless).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", fmt.Sprintf("%d,%d", bc.ViewportWidth, bc.ViewportHeight)).
		Set("lang", "zh-CN")
	if bc.Bin != "" {
		l = l.Bin(bc.Bin)
	}
	if bc.ProxyURL != "" {
		l = l.Proxy(bc.ProxyURL)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return errors.NewSessionInit(s.cfg.Provider, "launch browser", err)
	}
	s.launcher = l

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return errors.NewSessionInit(s.cfg.Provider, "connect browser", err)
	}
	s.browser = b

	page, err := stealth.Page(b)
	if err != nil {
		return errors.NewSessionInit(s.cfg.Provider, "create stealth page", err)
	}
	s.page = page

	if _, err := page.EvalOnNewDocument(hideWebdriverJS); err != nil {
		return errors.NewSessionInit(s.cfg.Provider, "inject webdriver override", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      bc.UserAgent,
		AcceptLanguage: acceptLanguage,
	}); err != nil {
		return errors.NewSessionInit(s.cfg.Provider, "set user agent", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             bc.ViewportWidth,
		Height:            bc.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return errors.NewSessionInit(s.cfg.Provider, "set viewport", err)
	}

	s.log.Info().
		Bool("headless", bc.Headless).
		Str("bin", bc.Bin).
		Msg("Browser session acquired")
	return nil
}

// Release closes the browser and kills the launched process
func (s *rodSession) Release() {
	s.releaseOnce.Do(func() {
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				s.log.Warn().Err(err).Msg("Failed to close browser")
			}
		}
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
		s.log.Debug().Msg("Browser session released")
	})
}

// targetIDs snapshots the open tabs
func (s *rodSession) targetIDs() map[proto.TargetTargetID]bool {
	ids := make(map[proto.TargetTargetID]bool)
	pages, err := s.browser.Pages()
	if err != nil {
		return ids
	}
	for _, p := range pages {
		ids[p.TargetID] = true
	}
	return ids
}

// newTab returns a tab opened after the snapshot was taken, if any
func (s *rodSession) newTab(before map[proto.TargetTargetID]bool) *rod.Page {
	pages, err := s.browser.Pages()
	if err != nil {
		return nil
	}
	for _, p := range pages {
		if !before[p.TargetID] {
			return p
		}
	}
	return nil
}

// snippet returns the first n bytes of the page source for diagnostics
func snippet(page *rod.Page, n int) string {
	html, err := page.HTML()
	if err != nil {
		return fmt.Sprintf("<page source unavailable: %v>", err)
	}
	if len(html) > n {
		return html[:n]
	}
	return html
}
