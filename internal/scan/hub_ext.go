package scan

// HubSubscribe registers an SSE client for session events.
func (r *Runner) HubSubscribe() chan []byte {
	if r.hub == nil {
		return nil
	}
	return r.hub.Subscribe()
}

func (r *Runner) HubUnsubscribe(ch chan []byte) {
	if r.hub == nil || ch == nil {
		return
	}
	r.hub.Unsubscribe(ch)
}
