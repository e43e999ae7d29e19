package handshake

import "crypto/tls"

// clientSessionCache wraps the application's tls.ClientSessionCache to
// smuggle our own application data (the saved transport parameters) inside
// the opaque SessionState.Extra field, so they survive a 0-RTT resumption
// alongside the ticket itself.
type clientSessionCache struct {
	wrapped tls.ClientSessionCache
	getData func() []byte
	setData func([]byte)
}

func (c *clientSessionCache) Get(sessionKey string) (*tls.ClientSessionState, bool) {
	sess, ok := c.wrapped.Get(sessionKey)
	if sess == nil {
		return nil, ok
	}
	_, state, err := sess.ResumptionState()
	if err != nil {
		return nil, false
	}
	if len(state.Extra) > 0 {
		c.setData(state.Extra[len(state.Extra)-1])
	}
	return sess, ok
}

func (c *clientSessionCache) Put(sessionKey string, cs *tls.ClientSessionState) {
	if cs == nil {
		c.wrapped.Put(sessionKey, nil)
		return
	}
	ticket, state, err := cs.ResumptionState()
	if err != nil {
		c.wrapped.Put(sessionKey, cs)
		return
	}
	state.Extra = append(state.Extra, c.getData())
	newSess, err := tls.NewResumptionState(ticket, state)
	if err != nil {
		c.wrapped.Put(sessionKey, cs)
		return
	}
	c.wrapped.Put(sessionKey, newSess)
}
