package orch

import (
	"github.com/dkeye/Harbor/internal/core"
)

// OnBrowserConnect registers a viewer and sends it the current boat list.
func (o *Orchestrator) OnBrowserConnect(sid core.SessionID, sig core.SignalConnection) *core.BrowserSession {
	browser := core.NewBrowserSession(sid, sig)
	o.Registry.RegisterBrowser(browser)
	o.ListBoats(browser)
	return browser
}

// OnBrowserDisconnect ends the browser's relay without notifying it.
func (o *Orchestrator) OnBrowserDisconnect(browser *core.BrowserSession) {
	if browser == nil {
		return
	}
	o.Relays.CloseBrowser(browser.SID)
	o.Registry.UnregisterBrowser(browser.SID)
}
